package bibtex

import (
	"regexp"
	"strings"
)

// Repair records one entry whose empty key was filled in by RepairEmptyKeys.
type Repair struct {
	// Offset is the byte offset of the entry's '@' in the repaired text.
	Offset int
	Type   string
	Key    string
}

var (
	emptyKeyHeadPattern = regexp.MustCompile(`@([A-Za-z][\w-]*)\s*\{\s*,`)
	rawTitlePattern     = regexp.MustCompile(`(?is)\btitle\s*=\s*(?:\{(.*?)\}|"([^"]*)")`)
	rawYearPattern      = regexp.MustCompile(`(?is)\byear\s*=\s*(?:\{(.*?)\}|"([^"]*)"|(\d+))`)
)

// RepairEmptyKeys rewrites every "@type{,body}" entry to
// "@type{key,body}", deriving key from the body's title and year with
// CiteKey. It works on the text so that a later parse never sees an empty
// key. Keys are not made unique here; the returned repairs let Fixer do it.
//
// An entry ends at the first '}' that is followed, after optional
// whitespace, by the next "@word{" head or by the end of the text.
func RepairEmptyKeys(text string) (string, []Repair) {
	var (
		b       strings.Builder
		repairs []Repair
		pos     int
	)
	b.Grow(len(text) + 64)

	for pos < len(text) {
		loc := emptyKeyHeadPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, headEnd := pos+loc[0], pos+loc[1]
		typ := text[pos+loc[2] : pos+loc[3]]

		end := -1
		if !isSpecialType(typ) {
			end = rawEntryEnd(text, headEnd)
		}
		if end < 0 {
			b.WriteString(text[pos:headEnd])
			pos = headEnd
			continue
		}

		body := text[headEnd:end]
		title, ok := rawFieldValue(rawTitlePattern, body)
		if !ok {
			title = FallbackKey
		}
		year, _ := rawFieldValue(rawYearPattern, body)
		key := CiteKey(title, year)

		b.WriteString(text[pos:start])
		repairs = append(repairs, Repair{Offset: b.Len(), Type: typ, Key: key})
		b.WriteString("@" + typ + "{" + key + "," + body + "}")
		pos = end + 1
	}

	if len(repairs) == 0 {
		return text, nil
	}
	b.WriteString(text[pos:])
	return b.String(), repairs
}

// rawFieldValue returns the first matching alternative of pattern in body:
// a braced, quoted or bare value.
func rawFieldValue(pattern *regexp.Regexp, body string) (string, bool) {
	m := pattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	for _, v := range m[1:] {
		if v != "" {
			return v, true
		}
	}
	return "", true
}

// rawEntryEnd returns the index of the '}' closing the entry whose body
// starts at from, or -1.
func rawEntryEnd(text string, from int) int {
	for i := from; i < len(text); i++ {
		if text[i] != '}' {
			continue
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j == len(text) || isEntryHead(text, j) {
			return i
		}
	}
	return -1
}

// isEntryHead reports whether text[i:] starts with "@word{" (whitespace
// allowed before the brace).
func isEntryHead(text string, i int) bool {
	if i >= len(text) || text[i] != '@' {
		return false
	}
	j := i + 1
	for j < len(text) && isWordByte(text[j]) {
		j++
	}
	if j == i+1 {
		return false
	}
	for j < len(text) && isSpace(text[j]) {
		j++
	}
	return j < len(text) && text[j] == '{'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
