package bibtex

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// DefaultToolName is the tool label written into the summary comment.
const DefaultToolName = "BibTeX ID Fixer (Flask)"

// Options configures a Fixer.
type Options struct {
	// ToolName labels the summary comment (default: DefaultToolName).
	ToolName string
	// Logger receives one line per run (default: slog.Default()).
	Logger *slog.Logger
}

// Fixer runs the full key repair pipeline. It holds no per-document state
// and is safe for concurrent use.
type Fixer struct {
	toolName string
	logger   *slog.Logger
}

// NewFixer creates a Fixer.
func NewFixer(opts Options) *Fixer {
	if opts.ToolName == "" {
		opts.ToolName = DefaultToolName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fixer{toolName: opts.ToolName, logger: opts.Logger}
}

// Result is the outcome of one Fix run.
type Result struct {
	RunID string `json:"run_id"`
	// Text is the corrected document, summary comment first.
	Text string `json:"-"`
	// Total is the number of entries the parser recognized.
	Total int `json:"total"`
	// Corrected is the number of entries that received a generated key.
	Corrected int `json:"corrected"`
	// Dropped is the number of entry heads the parser could not keep.
	Dropped int `json:"dropped"`
	// Degraded is set when the strict parse failed and the lenient
	// fallback produced the document.
	Degraded bool `json:"degraded"`
}

// Fix runs the default Fixer and returns the corrected text, the number of
// entries and the number of entries whose key was generated.
func Fix(input string) (string, int, int) {
	r := NewFixer(Options{}).Fix(input)
	return r.Text, r.Total, r.Corrected
}

// Fix normalizes whitespace keys, fills in empty keys, makes every generated
// key unique within the document and writes the result. It never fails; a
// document the strict parser rejects is re-read leniently and flagged as
// degraded.
func (f *Fixer) Fix(input string) *Result {
	runID := uuid.New().String()
	logger := f.logger.With("run_id", runID)

	text := NormalizeKeys(input)
	text, repairs := RepairEmptyKeys(text)

	doc, err := Parse(text, ModeStrict)
	if err != nil {
		logger.Warn("strict parse failed, retrying",
			"error", err,
			"mode", ModeLenient.String(),
		)
		doc, _ = Parse(text, ModeLenient)
		doc.Degraded = true
	}

	corrected := assignKeys(doc, repairs)
	entries := doc.Entries()

	var b strings.Builder
	b.WriteString(SummaryComment(corrected, len(entries), f.toolName))
	doc.writeTo(&b)

	res := &Result{
		RunID:     runID,
		Text:      b.String(),
		Total:     len(entries),
		Corrected: corrected,
		Dropped:   doc.Dropped,
		Degraded:  doc.Degraded,
	}
	logger.Info("bibtex keys fixed",
		"total", res.Total,
		"corrected", res.Corrected,
		"repaired_raw", len(repairs),
		"dropped", res.Dropped,
		"degraded", res.Degraded,
	)
	return res
}

// assignKeys gives every entry that was repaired in the raw pass, or whose
// key is still empty, a key that is unique within doc. Other entries keep
// their key as is. It returns the number of entries changed.
func assignKeys(doc *Document, repairs []Repair) int {
	repaired := make(map[int]bool, len(repairs))
	for _, r := range repairs {
		repaired[r.Offset] = true
	}

	entries := doc.Entries()
	keys := newKeySet()
	for _, e := range entries {
		if !repaired[e.Offset] && strings.TrimSpace(e.Key) != "" {
			keys.add(e.Key)
		}
	}

	corrected := 0
	for _, e := range entries {
		var base string
		switch {
		case repaired[e.Offset] && e.Key != "":
			base = e.Key
		case strings.TrimSpace(e.Key) == "":
			base = CiteKey(e.FieldValue("title"), e.FieldValue("year"))
		default:
			continue
		}
		e.Key = keys.claim(base)
		corrected++
	}
	return corrected
}

// SummaryComment returns the two comment lines that head every corrected
// document, followed by a blank line.
func SummaryComment(corrected, total int, toolName string) string {
	return fmt.Sprintf(
		"%% Corrigido automaticamente: %d de %d entradas sem ID.\n%% Gerado por %s.\n\n",
		corrected, total, toolName,
	)
}
