package bibtex

import (
	"io"
	"strings"
)

// fieldIndent prefixes every field line of a written entry.
const fieldIndent = " "

// String renders the document as BibTeX text.
func (d *Document) String() string {
	var b strings.Builder
	d.writeTo(&b)
	return b.String()
}

// Write renders the document to w.
func (d *Document) Write(w io.Writer) error {
	_, err := io.WriteString(w, d.String())
	return err
}

func (d *Document) writeTo(b *strings.Builder) {
	for _, blk := range d.Blocks {
		switch blk.Kind {
		case KindEntry:
			writeEntry(b, blk.Entry)
		case KindString:
			b.WriteString("@string{" + blk.Text + "}\n\n")
		case KindPreamble:
			b.WriteString("@preamble{ " + blk.Text + " }\n\n")
		case KindComment:
			b.WriteString("@comment{" + blk.Text + "}\n\n")
		}
	}
}

// writeEntry writes
//
//	@type{key,
//	 name = {value},
//	 other = {value}
//	}
//
// followed by a blank line. Macros, numbers and concatenations keep their
// source form.
func writeEntry(b *strings.Builder, e *Entry) {
	b.WriteString("@" + e.Type + "{" + e.Key)
	for _, f := range e.Fields {
		b.WriteString(",\n" + fieldIndent + f.Name + " = ")
		if f.Raw != "" {
			b.WriteString(f.Raw)
		} else {
			b.WriteString("{" + f.Value + "}")
		}
	}
	if len(e.Fields) == 0 {
		b.WriteString(",")
	}
	b.WriteString("\n}\n\n")
}
