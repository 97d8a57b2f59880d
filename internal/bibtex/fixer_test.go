package bibtex

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
)

func newTestFixer() *Fixer {
	return NewFixer(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

// keysOf re-parses fixed output and returns the entry keys in order.
func keysOf(t *testing.T, text string) []string {
	t.Helper()
	doc, err := Parse(text, ModeStrict)
	if err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, text)
	}
	var keys []string
	for _, e := range doc.Entries() {
		keys = append(keys, e.Key)
	}
	return keys
}

func TestFixer_CollidingTitles(t *testing.T) {
	input := "@article{, title={Deep Learning}, year={2020}}\n" +
		"@article{, title={Deep Learning Systems}, year={2020}}\n"

	res := newTestFixer().Fix(input)

	want := "% Corrigido automaticamente: 2 de 2 entradas sem ID.\n" +
		"% Gerado por BibTeX ID Fixer (Flask).\n" +
		"\n" +
		"@article{Deep2020,\n" +
		" title = {Deep Learning},\n" +
		" year = {2020}\n" +
		"}\n" +
		"\n" +
		"@article{Deep2020_2,\n" +
		" title = {Deep Learning Systems},\n" +
		" year = {2020}\n" +
		"}\n" +
		"\n"
	if res.Text != want {
		t.Errorf("text:\n%s\nwant:\n%s", res.Text, want)
	}
	if res.Total != 2 || res.Corrected != 2 {
		t.Errorf("total=%d corrected=%d, want 2 and 2", res.Total, res.Corrected)
	}
	if res.Degraded {
		t.Error("should not be degraded")
	}
}

func TestFixer_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		keys      []string
		corrected int
	}{
		{
			name:      "whitespace key",
			input:     "@article{Dal Maso2025, title={X}}",
			keys:      []string{"Dal_Maso2025"},
			corrected: 0,
		},
		{
			name:      "fallback keys",
			input:     "@misc{, note={a}}\n@misc{, note={b}}\n@misc{}\n",
			keys:      []string{"Entry", "Entry_2", "Entry_3"},
			corrected: 3,
		},
		{
			name:      "generated key collides with an existing one",
			input:     "@article{Deep2020, title={Other}}\n@article{, title={Deep Learning}, year={2020}}",
			keys:      []string{"Deep2020", "Deep2020_2"},
			corrected: 1,
		},
		{
			name:      "existing key later in the document still reserved",
			input:     "@article{, title={Deep Learning}, year={2020}}\n@article{Deep2020, title={Other}}",
			keys:      []string{"Deep2020_2", "Deep2020"},
			corrected: 1,
		},
		{
			name:      "whitespace-only key",
			input:     "@misc{   , title={Hello World}}",
			keys:      []string{"Hello"},
			corrected: 1,
		},
		{
			name:      "missing key uses structured fields",
			input:     "@article{title={No Key}, year={1999}}",
			keys:      []string{"No1999"},
			corrected: 1,
		},
		{
			name:      "quoted title on a missing key",
			input:     `@article{title="Quoted Title", year=2004}`,
			keys:      []string{"Quoted2004"},
			corrected: 1,
		},
		{
			name:      "duplicate explicit keys are not touched",
			input:     "@article{same, title={A}}\n@book{same, title={B}}",
			keys:      []string{"same", "same"},
			corrected: 0,
		},
		{
			name:      "unusual keys accepted",
			input:     "@article{odd:key/1, title={A}}",
			keys:      []string{"odd:key/1"},
			corrected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestFixer().Fix(tt.input)
			got := keysOf(t, res.Text)
			if strings.Join(got, ",") != strings.Join(tt.keys, ",") {
				t.Errorf("keys = %v, want %v", got, tt.keys)
			}
			if res.Corrected != tt.corrected {
				t.Errorf("Corrected = %d, want %d", res.Corrected, tt.corrected)
			}
			if res.Total != len(tt.keys) {
				t.Errorf("Total = %d, want %d", res.Total, len(tt.keys))
			}
		})
	}
}

func TestFixer_FieldsUntouched(t *testing.T) {
	input := `@article{Dal Maso2025,
  title = {Literate {P}rogramming},
  journal = jcs,
  pages = "1--10"
}`
	res := newTestFixer().Fix(input)

	doc, err := Parse(res.Text, ModeStrict)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	e := doc.Entries()[0]
	if e.Key != "Dal_Maso2025" {
		t.Errorf("Key = %q", e.Key)
	}
	checks := map[string]string{
		"title":   "Literate {P}rogramming",
		"journal": "jcs",
		"pages":   "1--10",
	}
	for name, want := range checks {
		if got := e.FieldValue(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if !strings.Contains(res.Text, " journal = jcs,\n") {
		t.Errorf("macro value should be written bare:\n%s", res.Text)
	}
}

func TestFixer_GeneratedKeysAreWellFormed(t *testing.T) {
	input := `@article{, title={Deep Learning}, year={2020}}
@article{, title={Deep Learning Systems}, year={2020}}
@book{, title={¿Qué?}}
@misc{, note={none}}
@misc{, title={{R}obots}, year={1950}}
@inproceedings{   , title={Spaced Out}}
`
	res := newTestFixer().Fix(input)
	keys := keysOf(t, res.Text)

	wellFormed := regexp.MustCompile(`^[A-Za-z0-9]+[A-Za-z0-9_]*$`)
	seen := map[string]bool{}
	for _, k := range keys {
		if !wellFormed.MatchString(k) {
			t.Errorf("key %q is not well formed", k)
		}
		if seen[k] {
			t.Errorf("key %q is duplicated", k)
		}
		seen[k] = true
	}
	if res.Corrected != 6 || res.Total != 6 {
		t.Errorf("total=%d corrected=%d, want 6 and 6", res.Total, res.Corrected)
	}
}

func TestFixer_Idempotent(t *testing.T) {
	input := `@article{, title={Deep Learning}, year={2020}}
@article{, title={Deep Learning Systems}, year={2020}}
@article{Dal Maso2025, title={X}}
@misc{, note={n}}
`
	f := newTestFixer()
	first := f.Fix(input)
	second := f.Fix(first.Text)

	if second.Corrected != 0 {
		t.Errorf("second pass corrected %d entries, want 0", second.Corrected)
	}
	if second.Total != first.Total {
		t.Errorf("second pass total = %d, want %d", second.Total, first.Total)
	}
	if a, b := keysOf(t, first.Text), keysOf(t, second.Text); strings.Join(a, ",") != strings.Join(b, ",") {
		t.Errorf("keys changed between passes: %v -> %v", a, b)
	}
	if !strings.HasPrefix(second.Text, SummaryComment(0, first.Total, DefaultToolName)) {
		t.Errorf("second pass summary:\n%s", second.Text)
	}
}

func TestFixer_UnusualYearsKeepFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
	}{
		{"braced year", "@article{, title={Deep}, year={{2020}}, journal={J}}\n", "Deep2020"},
		{"year with comma", "@article{, title={Deep}, year={2020, in press}, journal={J}}\n", "Deep2020inpress"},
		{"quoted year", "@article{, title={Deep}, year=\"2020\", journal={J}}\n", "Deep2020"},
		{"paren entry with braced year", "@article(, title={Deep}, year={{2020}}, journal={J})\n", "Deep2020"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFixer()
			first := f.Fix(tt.input)
			if first.Degraded {
				t.Errorf("degraded result:\n%s", first.Text)
			}
			if first.Total != 1 || first.Corrected != 1 {
				t.Errorf("total=%d corrected=%d, want 1 and 1", first.Total, first.Corrected)
			}
			if keys := keysOf(t, first.Text); len(keys) != 1 || keys[0] != tt.key {
				t.Errorf("keys = %v, want [%s]", keys, tt.key)
			}
			for _, field := range []string{" title = {Deep}", " journal = {J}", " year = "} {
				if !strings.Contains(first.Text, field) {
					t.Errorf("output lost %q:\n%s", field, first.Text)
				}
			}

			second := f.Fix(first.Text)
			if second.Corrected != 0 {
				t.Errorf("second pass corrected %d entries, want 0:\n%s", second.Corrected, second.Text)
			}
			if keys := keysOf(t, second.Text); len(keys) != 1 || keys[0] != tt.key {
				t.Errorf("second pass keys = %v, want [%s]", keys, tt.key)
			}
			if !strings.Contains(second.Text, " journal = {J}") {
				t.Errorf("second pass lost fields:\n%s", second.Text)
			}
		})
	}
}

func TestFixer_DegradesInsteadOfFailing(t *testing.T) {
	input := "@article{, title={Broken Entry}\n" +
		"@software{, title={Tool}, year={2021}}\n"

	res := newTestFixer().Fix(input)

	if !res.Degraded {
		t.Error("expected degraded result")
	}
	// The raw pass ends the first entry at the title's closing brace, so it
	// sees no title and falls back to "Entry".
	keys := keysOf(t, strings.ReplaceAll(res.Text, "@software", "@misc"))
	if strings.Join(keys, ",") != "Entry,Tool2021" {
		t.Errorf("keys = %v", keys)
	}
	if res.Total != 2 || res.Corrected != 2 {
		t.Errorf("total=%d corrected=%d, want 2 and 2", res.Total, res.Corrected)
	}
}

func TestFixer_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n", "% only a comment\n"} {
		res := newTestFixer().Fix(input)
		if res.Total != 0 || res.Corrected != 0 {
			t.Errorf("%q: total=%d corrected=%d", input, res.Total, res.Corrected)
		}
		if res.Text != SummaryComment(0, 0, DefaultToolName) {
			t.Errorf("%q: text = %q", input, res.Text)
		}
	}
}

func TestFixer_DroppedEntriesReported(t *testing.T) {
	res := newTestFixer().Fix("@software{tool, title={T}}\n@article{a, title={A}}\n")
	if res.Total != 1 || res.Dropped != 1 {
		t.Errorf("total=%d dropped=%d, want 1 and 1", res.Total, res.Dropped)
	}
}

func TestFixer_ToolName(t *testing.T) {
	f := NewFixer(Options{
		ToolName: "bibfix",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	res := f.Fix("@misc{a}")
	if !strings.HasPrefix(res.Text, "% Corrigido automaticamente: 0 de 1 entradas sem ID.\n% Gerado por bibfix.\n\n") {
		t.Errorf("unexpected header:\n%s", res.Text)
	}
}

func TestFix_Triple(t *testing.T) {
	text, total, corrected := Fix("@misc{, note={x}}")
	if total != 1 || corrected != 1 {
		t.Errorf("total=%d corrected=%d", total, corrected)
	}
	if !strings.Contains(text, "@misc{Entry,\n") {
		t.Errorf("text = %q", text)
	}
}

func TestFixer_ConcurrentUse(t *testing.T) {
	f := newTestFixer()
	input := "@article{, title={Deep Learning}, year={2020}}\n@article{, title={Deep Nets}, year={2020}}\n"

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.Fix(input)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.Text != results[0].Text {
			t.Errorf("result %d differs from result 0", i)
		}
		if r.RunID == "" {
			t.Errorf("result %d has no run id", i)
		}
	}
}
