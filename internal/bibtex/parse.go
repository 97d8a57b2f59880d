package bibtex

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how forgiving Parse is.
type Mode int

const (
	// ModeStrict keeps only standard entry types and fails on the first
	// malformed construct.
	ModeStrict Mode = iota
	// ModeLenient keeps every entry type and never fails. A malformed entry
	// keeps the fields read before the problem, and parsing resumes at the
	// next entry head.
	ModeLenient
)

func (m Mode) String() string {
	if m == ModeLenient {
		return "lenient"
	}
	return "strict"
}

var (
	// ErrUnterminated is returned when a block or value runs past the end of the text.
	ErrUnterminated = errors.New("unterminated block")
	// ErrUnbalanced is returned for a closing brace with no matching opener.
	ErrUnbalanced = errors.New("unbalanced braces")
	// ErrSyntax covers the remaining malformed constructs.
	ErrSyntax = errors.New("syntax error")
)

// ParseError locates a parse failure in the input text.
type ParseError struct {
	Offset int
	Line   int
	Column int
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bibtex: line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads text into a Document. Text outside of "@type{...}" blocks is
// ignored. In ModeLenient the returned error is always nil.
func Parse(text string, mode Mode) (*Document, error) {
	p := &parser{text: text, end: len(text), mode: mode}
	doc := &Document{}

	for p.pos < len(text) {
		i := strings.IndexByte(text[p.pos:], '@')
		if i < 0 {
			break
		}
		at := p.pos + i
		p.pos = at + 1

		typ := p.readIdent()
		if typ == "" {
			continue
		}
		p.skipSpace()
		if p.pos >= p.end || (text[p.pos] != '{' && text[p.pos] != '(') {
			continue
		}
		closer := byte('}')
		if text[p.pos] == '(' {
			closer = ')'
		}
		p.pos++
		typ = strings.ToLower(typ)

		switch {
		case isSpecialType(typ):
			body, err := p.readBody(closer)
			if err != nil {
				if mode == ModeStrict {
					return nil, err
				}
				p.pos = nextEntryHead(text, at+1)
				continue
			}
			doc.Blocks = append(doc.Blocks, specialBlock(typ, body))

		case mode == ModeStrict && !IsStandardType(typ):
			if _, err := p.readBody(closer); err != nil {
				return nil, err
			}
			doc.Dropped++

		default:
			bodyStart := p.pos
			entry, err := p.readEntry(typ, closer, at)
			if err != nil {
				if mode == ModeStrict {
					return nil, err
				}
				// Re-read the entry bounded by the next head so a bad value
				// cannot swallow the entries that follow it.
				limit := nextEntryHead(text, at+1)
				p.pos, p.end = bodyStart, limit
				entry, _ = p.readEntry(typ, closer, at)
				p.pos, p.end = limit, len(text)
			}
			if entry == nil {
				doc.Dropped++
				continue
			}
			doc.Blocks = append(doc.Blocks, Block{Kind: KindEntry, Entry: entry})
		}
	}

	return doc, nil
}

func specialBlock(typ, body string) Block {
	switch typ {
	case "string":
		return Block{Kind: KindString, Text: strings.TrimSpace(body)}
	case "preamble":
		return Block{Kind: KindPreamble, Text: strings.TrimSpace(body)}
	default:
		return Block{Kind: KindComment, Text: body}
	}
}

// nextEntryHead returns the offset of the first "@word{" at or after from,
// or len(text).
func nextEntryHead(text string, from int) int {
	for i := from; i < len(text); i++ {
		if text[i] == '@' && isEntryHead(text, i) {
			return i
		}
	}
	return len(text)
}

type parser struct {
	text string
	pos  int
	end  int
	mode Mode
}

func (p *parser) errorf(sentinel error, format string, args ...any) *ParseError {
	line, col := 1, 1
	for i := 0; i < p.pos && i < len(p.text); i++ {
		if p.text[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &ParseError{
		Offset: p.pos,
		Line:   line,
		Column: col,
		Msg:    fmt.Sprintf(format, args...),
		Err:    sentinel,
	}
}

func (p *parser) skipSpace() {
	for p.pos < p.end && isSpace(p.text[p.pos]) {
		p.pos++
	}
}

func (p *parser) readIdent() string {
	start := p.pos
	if p.pos >= p.end || !isLetter(p.text[p.pos]) {
		return ""
	}
	for p.pos < p.end && (isWordByte(p.text[p.pos]) || p.text[p.pos] == '-') {
		p.pos++
	}
	return p.text[start:p.pos]
}

// readBody consumes up to and including closer at brace depth zero and
// returns what came before it.
func (p *parser) readBody(closer byte) (string, error) {
	start := p.pos
	depth := 0
	for p.pos < p.end {
		c := p.text[p.pos]
		switch {
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == closer && depth == 0:
			body := p.text[start:p.pos]
			p.pos++
			return body, nil
		case c == '}':
			return "", p.errorf(ErrUnbalanced, "unexpected '}'")
		}
		p.pos++
	}
	return "", p.errorf(ErrUnterminated, "block opened at offset %d is never closed", start)
}

// readEntry parses "key, name = value, ...}" after the opening delimiter.
// It returns a nil entry only when the key cannot be read; on other errors
// the entry holds the fields parsed so far.
func (p *parser) readEntry(typ string, closer byte, at int) (*Entry, error) {
	p.skipSpace()
	keyStart := p.pos
	for p.pos < p.end {
		c := p.text[p.pos]
		if c == ',' || c == closer || c == '{' || c == '}' || c == '=' {
			break
		}
		p.pos++
	}
	if p.pos >= p.end {
		return nil, p.errorf(ErrUnterminated, "entry key never ends")
	}

	entry := &Entry{Type: typ, Offset: at}
	switch p.text[p.pos] {
	case ',':
		entry.Key = strings.TrimSpace(p.text[keyStart:p.pos])
		p.pos++
	case closer:
		entry.Key = strings.TrimSpace(p.text[keyStart:p.pos])
		p.pos++
		return entry, nil
	default:
		// No key at all: "@article{title = {...}, ...}". Read fields from
		// the start of the body.
		p.pos = keyStart
	}

	for {
		for p.pos < p.end && (isSpace(p.text[p.pos]) || p.text[p.pos] == ',') {
			p.pos++
		}
		if p.pos >= p.end {
			return entry, p.errorf(ErrUnterminated, "entry %q is never closed", entry.Key)
		}
		if p.text[p.pos] == closer {
			p.pos++
			return entry, nil
		}

		nameStart := p.pos
		for p.pos < p.end {
			c := p.text[p.pos]
			if c == '=' || c == ',' || c == closer || c == '{' || c == '}' || c == '"' || isSpace(c) {
				break
			}
			p.pos++
		}
		name := p.text[nameStart:p.pos]
		if name == "" {
			return entry, p.errorf(ErrSyntax, "expected field name in entry %q", entry.Key)
		}
		p.skipSpace()
		if p.pos >= p.end || p.text[p.pos] != '=' {
			return entry, p.errorf(ErrSyntax, "expected '=' after field %q", name)
		}
		p.pos++
		p.skipSpace()

		field, err := p.readValue(closer)
		if err != nil {
			return entry, err
		}
		field.Name = strings.ToLower(name)
		entry.Fields = append(entry.Fields, field)

		p.skipSpace()
		if p.pos >= p.end {
			return entry, p.errorf(ErrUnterminated, "entry %q is never closed", entry.Key)
		}
		switch p.text[p.pos] {
		case ',':
			p.pos++
		case closer:
			p.pos++
			return entry, nil
		default:
			return entry, p.errorf(ErrSyntax, "expected ',' or '%c' after field %q", closer, name)
		}
	}
}

// readValue parses one value expression: braced, quoted or bare parts
// joined with '#'.
func (p *parser) readValue(closer byte) (Field, error) {
	start := p.pos
	var (
		value     strings.Builder
		parts     int
		delimited bool
	)
	for {
		if p.pos >= p.end {
			return Field{}, p.errorf(ErrUnterminated, "value never ends")
		}
		switch c := p.text[p.pos]; c {
		case '{':
			p.pos++
			inner, err := p.readBody('}')
			if err != nil {
				return Field{}, err
			}
			value.WriteString(inner)
			delimited = true
		case '"':
			p.pos++
			inner, err := p.readQuoted()
			if err != nil {
				return Field{}, err
			}
			value.WriteString(inner)
			delimited = true
		default:
			tokStart := p.pos
			for p.pos < p.end {
				c := p.text[p.pos]
				if c == ',' || c == '#' || c == closer || c == '{' || c == '}' || c == '"' || isSpace(c) {
					break
				}
				p.pos++
			}
			if p.pos == tokStart {
				return Field{}, p.errorf(ErrSyntax, "expected value")
			}
			value.WriteString(p.text[tokStart:p.pos])
			delimited = false
		}
		parts++

		p.skipSpace()
		if p.pos < p.end && p.text[p.pos] == '#' {
			p.pos++
			p.skipSpace()
			continue
		}
		break
	}

	f := Field{Value: value.String()}
	if parts > 1 || !delimited {
		f.Raw = strings.TrimSpace(p.text[start:p.pos])
	}
	return f, nil
}

// readQuoted reads a "..." value after the opening quote. Quotes inside
// braces do not end the value.
func (p *parser) readQuoted() (string, error) {
	start := p.pos
	depth := 0
	for p.pos < p.end {
		c := p.text[p.pos]
		switch {
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return "", p.errorf(ErrUnbalanced, "unexpected '}' in quoted value")
			}
			depth--
		case c == '"' && depth == 0:
			inner := p.text[start:p.pos]
			p.pos++
			return inner, nil
		}
		p.pos++
	}
	return "", p.errorf(ErrUnterminated, "quoted value never ends")
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
