package bibtex

import (
	"path"
	"strings"
)

// CorrectedSuffix is appended to the base name of a fixed file.
const CorrectedSuffix = "_corrigido.bib"

// CorrectedFileName returns the download name for a fixed upload: the last
// extension is replaced, so "refs.bib" becomes "refs_corrigido.bib" and
// "refs" becomes "refs_corrigido.bib". Directory components are dropped,
// with either separator, since browsers may send "C:\fakepath\refs.bib".
func CorrectedFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name + CorrectedSuffix
}
