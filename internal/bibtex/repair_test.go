package bibtex

import (
	"strings"
	"testing"
)

func TestRepairEmptyKeys(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		keys  []string
	}{
		{
			name:  "title and year",
			input: "@article{, title={Deep Learning}, year={2020}}",
			want:  "@article{Deep2020, title={Deep Learning}, year={2020}}",
			keys:  []string{"Deep2020"},
		},
		{
			name:  "whitespace before comma",
			input: "@misc{ \n, note={x}}",
			want:  "@misc{Entry, note={x}}",
			keys:  []string{"Entry"},
		},
		{
			name:  "no title no year",
			input: "@misc{, note={x}}",
			want:  "@misc{Entry, note={x}}",
			keys:  []string{"Entry"},
		},
		{
			name:  "punctuation title",
			input: "@article{, title={-- Hyphens}, year={1999}}",
			want:  "@article{Entry1999, title={-- Hyphens}, year={1999}}",
			keys:  []string{"Entry1999"},
		},
		{
			name:  "booktitle is not title",
			input: "@inproceedings{, booktitle={Proc Conf}, title={Real Title}, year={2001}}",
			want:  "@inproceedings{Real2001, booktitle={Proc Conf}, title={Real Title}, year={2001}}",
			keys:  []string{"Real2001"},
		},
		{
			name:  "case insensitive fields",
			input: "@Article{,\n  TITLE = {Upper Case},\n  Year = {2010}\n}",
			want:  "@Article{Upper2010,\n  TITLE = {Upper Case},\n  Year = {2010}\n}",
			keys:  []string{"Upper2010"},
		},
		{
			name:  "title spanning lines",
			input: "@article{, title={\n  Multi\n  Line}, year={2003}}",
			want:  "@article{Multi2003, title={\n  Multi\n  Line}, year={2003}}",
			keys:  []string{"Multi2003"},
		},
		{
			name:  "nested braces end at first closer",
			input: "@article{, title = {{GPU} Computing}}",
			want:  "@article{GPU, title = {{GPU} Computing}}",
			keys:  []string{"GPU"},
		},
		{
			name:  "braced year",
			input: "@article{, title={Deep}, year={{2020}}, journal={J}}",
			want:  "@article{Deep2020, title={Deep}, year={{2020}}, journal={J}}",
			keys:  []string{"Deep2020"},
		},
		{
			name:  "year with comma",
			input: "@article{, title={Deep}, year={2020, in press}}",
			want:  "@article{Deep2020inpress, title={Deep}, year={2020, in press}}",
			keys:  []string{"Deep2020inpress"},
		},
		{
			name:  "quoted values",
			input: `@article{, title="Quoted Title", year="2018"}`,
			want:  `@article{Quoted2018, title="Quoted Title", year="2018"}`,
			keys:  []string{"Quoted2018"},
		},
		{
			name:  "bare year",
			input: "@article{, title={Bare}, year = 2017}",
			want:  "@article{Bare2017, title={Bare}, year = 2017}",
			keys:  []string{"Bare2017"},
		},
		{
			name:  "same key twice is allowed here",
			input: "@article{, title={Deep Learning}, year={2020}}\n\n@article{, title={Deep Nets}, year={2020}}\n",
			want:  "@article{Deep2020, title={Deep Learning}, year={2020}}\n\n@article{Deep2020, title={Deep Nets}, year={2020}}\n",
			keys:  []string{"Deep2020", "Deep2020"},
		},
		{
			name:  "keyed entries untouched",
			input: "@article{key, title={X}}\n@article{, title={Y}}",
			want:  "@article{key, title={X}}\n@article{Y, title={Y}}",
			keys:  []string{"Y"},
		},
		{
			name:  "comment with leading comma untouched",
			input: "@comment{, not an entry}",
			want:  "@comment{, not an entry}",
		},
		{
			name:  "nothing to repair",
			input: "@article{a, title={A}}",
			want:  "@article{a, title={A}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, repairs := RepairEmptyKeys(tt.input)
			if got != tt.want {
				t.Errorf("text:\n got %q\nwant %q", got, tt.want)
			}
			if len(repairs) != len(tt.keys) {
				t.Fatalf("got %d repairs, want %d", len(repairs), len(tt.keys))
			}
			for i, r := range repairs {
				if r.Key != tt.keys[i] {
					t.Errorf("repair %d key = %q, want %q", i, r.Key, tt.keys[i])
				}
				if !strings.HasPrefix(got[r.Offset:], "@"+r.Type+"{"+r.Key+",") {
					t.Errorf("repair %d offset %d does not point at its entry: %q", i, r.Offset, got[r.Offset:])
				}
			}
		})
	}
}

func TestRepairEmptyKeys_EntryEndsAtNextHead(t *testing.T) {
	// The first '}' after "Nets" is followed by "@book{", so the body stops there.
	input := "@article{, title={Deep Nets}}@book{, title={Second}}"
	got, repairs := RepairEmptyKeys(input)

	want := "@article{Deep, title={Deep Nets}}@book{Second, title={Second}}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if len(repairs) != 2 {
		t.Fatalf("got %d repairs, want 2", len(repairs))
	}
	if repairs[1].Offset != strings.Index(got, "@book") {
		t.Errorf("second offset = %d, want %d", repairs[1].Offset, strings.Index(got, "@book"))
	}
}
