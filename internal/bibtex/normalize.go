package bibtex

import (
	"regexp"
	"strings"
	"unicode"
)

// KeySeparator replaces runs of whitespace inside a key.
const KeySeparator = "_"

// keyHeadPattern matches "@type{key," where key runs to the first unescaped
// comma and may not cross a brace, '@' or '='.
var keyHeadPattern = regexp.MustCompile(`@([A-Za-z][\w-]*)\s*\{((?:\\.|[^,{}@=\\])*),`)

// NormalizeKeys rewrites every entry key that contains whitespace: the key
// is trimmed and inner whitespace runs become KeySeparator. A key made only
// of whitespace becomes empty and is left for RepairEmptyKeys. All other
// bytes are copied unchanged, and running it twice is the same as once.
func NormalizeKeys(text string) string {
	matches := keyHeadPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		typ := text[m[2]:m[3]]
		keyStart, keyEnd := m[4], m[5]
		key := text[keyStart:keyEnd]
		if isSpecialType(typ) || strings.IndexFunc(key, unicode.IsSpace) < 0 {
			continue
		}
		b.WriteString(text[last:keyStart])
		b.WriteString(strings.Join(strings.Fields(key), KeySeparator))
		last = keyEnd
	}
	b.WriteString(text[last:])
	return b.String()
}
