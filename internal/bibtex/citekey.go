package bibtex

import (
	"strconv"
	"strings"
)

// FallbackKey is used when a title yields no usable first word.
const FallbackKey = "Entry"

// CiteKey builds a key from the first word of title and the year, e.g.
// ("Deep Learning", "2020") -> "Deep2020". Braces are stripped from the
// title and only ASCII letters and digits of the first word are kept; an
// empty word becomes FallbackKey. The year is reduced to its ASCII letters
// and digits too, so "{2020}" and "2020, in press" cannot break the key
// out of its head. A year with nothing left is omitted.
func CiteKey(title, year string) string {
	title = strings.TrimSpace(strings.NewReplacer("{", "", "}", "").Replace(title))

	var word string
	if fields := strings.Fields(title); len(fields) > 0 {
		word = asciiAlnum(fields[0])
	}
	if word == "" {
		word = FallbackKey
	}

	if year = asciiAlnum(year); year != "" {
		return word + year
	}
	return word
}

func asciiAlnum(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// keySet tracks the keys in use within one document. It only grows.
type keySet map[string]struct{}

func newKeySet() keySet {
	return make(keySet)
}

func (s keySet) add(key string) {
	s[key] = struct{}{}
}

func (s keySet) has(key string) bool {
	_, ok := s[key]
	return ok
}

// claim returns base, or base_2, base_3, ... whichever is free first, and
// records it as taken.
func (s keySet) claim(base string) string {
	candidate := base
	for n := 2; s.has(candidate); n++ {
		candidate = base + "_" + strconv.Itoa(n)
	}
	s.add(candidate)
	return candidate
}
