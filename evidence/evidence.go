// Package evidence maps evidence markers in report markup to external
// files and prepares their content for embedding.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"rptc/config"
)

// Record links an evidence label to the file holding its content.
type Record struct {
	Label string `yaml:"label"`
	Path  string `yaml:"path"`
}

// Kind classifies evidence content by what gets embedded for it.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Table is an ordered, read-only collection of evidence records with
// positional and label lookups. Lookups are safe on a nil table and
// simply miss.
type Table struct {
	records []Record
	byLabel map[string]int

	evCfg  *config.EvidenceConfig
	imgCfg *config.ImagesConfig
	log    *zap.Logger
}

// NewTable builds the lookup table over records. Record order is
// preserved, it defines the positional index. When two records share a
// label the first one wins.
func NewTable(records []Record, evCfg *config.EvidenceConfig, imgCfg *config.ImagesConfig, log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}

	t := &Table{
		records: records,
		byLabel: make(map[string]int, len(records)),
		evCfg:   evCfg,
		imgCfg:  imgCfg,
		log:     log,
	}

	for i, rec := range records {
		label := normalizeLabel(rec.Label)
		if label == "" {
			continue
		}
		if _, exists := t.byLabel[label]; exists {
			log.Debug("Duplicate evidence label found, keeping first", zap.String("label", rec.Label), zap.Int("index", i))
			continue
		}
		t.byLabel[label] = i
	}
	return t
}

// Len returns the number of records in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records returns the ordered record list for inspection.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	return t.records
}

// ByIndex looks a record up by its zero-based position.
func (t *Table) ByIndex(i int) (Record, bool) {
	if t == nil || i < 0 || i >= len(t.records) {
		return Record{}, false
	}
	return t.records[i], true
}

// ByLabel looks a record up by label. Label matching is case-insensitive
// and ignores surrounding whitespace.
func (t *Table) ByLabel(label string) (Record, bool) {
	if t == nil {
		return Record{}, false
	}
	i, ok := t.byLabel[normalizeLabel(label)]
	if !ok {
		return Record{}, false
	}
	return t.records[i], true
}

// Kind classifies a record by its file extension against the configured
// extension lists.
func (t *Table) Kind(rec Record) Kind {
	if t == nil || t.evCfg == nil {
		return KindUnknown
	}

	ext := extOf(rec.Path)
	if ext == "" {
		return KindUnknown
	}
	for _, e := range t.evCfg.ImageExtensions {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return KindImage
		}
	}
	for _, e := range t.evCfg.TextExtensions {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return KindText
		}
	}
	return KindUnknown
}

// LoadText reads a text record's content. Line endings are normalized to
// bare line feeds so the converter can split on them.
func (t *Table) LoadText(rec Record) (string, error) {
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return "", fmt.Errorf("unable to read evidence file: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text, nil
}

// normalizeLabel prepares a label for lookups.
func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// extOf returns the lowercased file extension without the leading dot.
func extOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
