// Package bibtex repairs cite keys in BibTeX documents.
//
// The repair runs in three passes over one text buffer:
//
//  1. NormalizeKeys collapses whitespace inside existing keys.
//  2. RepairEmptyKeys synthesizes keys for "@type{," heads directly in the text.
//  3. Fixer.Fix parses the text into a Document, makes every key non-empty
//     and unique, and writes the document back out with a summary comment.
//
// The two raw passes use bounded pattern scans rather than a full grammar,
// so field values that contain "@word{" or an unescaped comma inside a key
// are accepted limitations. Everything here is allocation-per-call; there is
// no shared state between documents.
package bibtex

import "strings"

// BlockKind identifies the kind of a top-level document block.
type BlockKind int

const (
	// KindEntry is a citation entry (@article, @book, ...).
	KindEntry BlockKind = iota
	// KindString is a @string macro definition.
	KindString
	// KindPreamble is a @preamble block.
	KindPreamble
	// KindComment is an explicit @comment block.
	KindComment
)

// Field is one "name = value" pair of an entry.
type Field struct {
	// Name is lowercased.
	Name string
	// Value has the outermost braces or quotes stripped. For concatenations
	// the parts are joined without delimiters.
	Value string
	// Raw is the value expression as written, trimmed. Set only when the
	// value is not a single delimited part (macros, numbers, "#" joins).
	Raw string
}

// Entry is one citation record.
type Entry struct {
	Type   string
	Key    string
	Fields []Field
	// Offset is the byte offset of the entry's '@' in the parsed text.
	Offset int
}

// Field returns the value of the named field, matched case-insensitively.
func (e *Entry) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// FieldValue is Field without the presence flag.
func (e *Entry) FieldValue(name string) string {
	v, _ := e.Field(name)
	return v
}

// Block is a top-level item of a document. Exactly one of Entry or Text is
// meaningful depending on Kind.
type Block struct {
	Kind  BlockKind
	Entry *Entry
	// Text holds the body of @string, @preamble and @comment blocks,
	// without the enclosing delimiters.
	Text string
}

// Document is an ordered sequence of blocks parsed from one text.
type Document struct {
	Blocks []Block
	// Dropped counts entry heads that could not be kept (unknown types in
	// strict mode, unreadable heads in lenient mode).
	Dropped int
	// Degraded is set when the document came from the lenient fallback.
	Degraded bool
}

// Entries returns the citation entries in document order.
func (d *Document) Entries() []*Entry {
	var entries []*Entry
	for _, b := range d.Blocks {
		if b.Kind == KindEntry {
			entries = append(entries, b.Entry)
		}
	}
	return entries
}

// standardTypes are the entry types accepted by a strict parse.
var standardTypes = map[string]bool{
	"article":       true,
	"book":          true,
	"booklet":       true,
	"conference":    true,
	"inbook":        true,
	"incollection":  true,
	"inproceedings": true,
	"manual":        true,
	"mastersthesis": true,
	"misc":          true,
	"online":        true,
	"phdthesis":     true,
	"proceedings":   true,
	"techreport":    true,
	"unpublished":   true,
}

// IsStandardType reports whether typ is one of the standard BibTeX entry types.
func IsStandardType(typ string) bool {
	return standardTypes[strings.ToLower(typ)]
}

// isSpecialType reports whether typ names a non-entry block.
func isSpecialType(typ string) bool {
	switch strings.ToLower(typ) {
	case "comment", "string", "preamble":
		return true
	}
	return false
}
