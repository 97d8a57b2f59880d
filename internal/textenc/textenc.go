// Package textenc decodes uploaded bibliography bytes into text.
package textenc

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names the charset a buffer was decoded from.
type Encoding string

const (
	UTF8   Encoding = "utf-8"
	Latin1 Encoding = "latin-1"
)

// ErrUndecodable is returned when no supported charset accepts the input.
// Latin-1 maps every byte, so this only matters if the fallback changes.
var ErrUndecodable = errors.New("input is not valid in any supported encoding")

// Decode returns raw as UTF-8 text when it is valid UTF-8 and otherwise
// decodes it as Latin-1. No byte is dropped or replaced in either case.
func Decode(raw []byte) (string, Encoding, error) {
	if utf8.Valid(raw) {
		return string(raw), UTF8, nil
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return string(out), Latin1, nil
}
