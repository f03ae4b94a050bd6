package content

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rptc/common"
	"rptc/content/text"
	"rptc/evidence"
	"rptc/markup"
	"rptc/misc"
	"rptc/state"
)

// Content bundles everything one conversion works on: the parsed markup
// tree, the evidence lookup table and the resolved document identity.
type Content struct {
	SrcName      string
	Title        string
	RefID        uuid.UUID
	OutputFormat common.OutputFmt

	Doc      *markup.Document
	Index    *markup.Index
	Evidence *evidence.Table

	Splitter *text.Splitter
	WorkDir  string
}

// Prepare reads, parses, and prepares report markup for conversion. The
// manifest may be nil when the source has no evidence.
func Prepare(ctx context.Context, r io.Reader, srcName string, manifest *evidence.Manifest, outputFormat common.OutputFmt, log *zap.Logger) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)

	doc, err := markup.Parse(r, srcName, log)
	if err != nil {
		return nil, fmt.Errorf("unable to parse markup: %w", err)
	}

	refID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("unable to generate conversion UUID: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", misc.GetAppName()+"-")
	if err != nil {
		return nil, fmt.Errorf("unable to create temporary directory: %w", err)
	}
	env.Rpt.Store(fmt.Sprintf("%s-%s", misc.GetAppName(), refID), tmpDir)

	baseSrcName := filepath.Base(srcName)

	// Save parsed document to file for debugging
	if env.Rpt != nil {
		if err := os.WriteFile(filepath.Join(tmpDir, baseSrcName+"_pristine"), []byte(doc.String()), 0644); err != nil {
			return nil, fmt.Errorf("unable to write parsed doc for debugging: %w", err)
		}
	}

	markup.Normalize(doc, log)

	var (
		title   string
		records []evidence.Record
	)
	if manifest != nil {
		title = strings.TrimSpace(manifest.Title)
		records = manifest.Evidence
	}
	table := evidence.NewTable(records, &env.Cfg.Document.Evidence, &env.Cfg.Document.Images, log)

	// Pre-scan the tree so inconsistencies surface before conversion
	// starts mutating output.
	index := markup.BuildIndex(doc)
	logIndexFindings(index, table, log)

	// Document title: manifest override, then first heading, then source name
	if title == "" {
		title = doc.Title()
	}
	if title == "" {
		title = strings.TrimSuffix(baseSrcName, filepath.Ext(baseSrcName))
	}

	c := &Content{
		SrcName:      srcName,
		Title:        title,
		RefID:        refID,
		OutputFormat: outputFormat,
		Doc:          doc,
		Index:        index,
		Evidence:     table,
		WorkDir:      tmpDir,
	}

	if outputFormat == common.OutputFmtPptx && env.Cfg.Document.Slides.SentenceBullets {
		c.Splitter = text.NewSplitter(log)
	}

	// Save prepared document to file for debugging
	if env.Rpt != nil {
		if err := os.WriteFile(filepath.Join(tmpDir, baseSrcName+"_prepared"), []byte(c.String()), 0644); err != nil {
			return nil, fmt.Errorf("unable to write prepared doc for debugging: %w", err)
		}
	}

	return c, nil
}

// logIndexFindings reports markers that will not produce output. All of
// these are recoverable, conversion skips them.
func logIndexFindings(index *markup.Index, table *evidence.Table, log *zap.Logger) {
	for _, ref := range index.Evidence {
		if !ref.Valid {
			log.Warn("Markup carries malformed evidence marker, it will be skipped", zap.String("value", ref.Raw))
			continue
		}
		if _, ok := table.ByIndex(ref.Index); !ok {
			log.Warn("Evidence marker has no record in the manifest, it will be skipped", zap.Int("index", ref.Index))
		}
	}
	for _, ref := range index.Labels {
		if _, ok := table.ByLabel(ref.Label); !ok {
			log.Warn("Reference points to unknown evidence label, it will be skipped", zap.String("attr", ref.Attr), zap.String("label", ref.Label))
		}
	}
	for name, count := range index.Unknown {
		log.Warn("Markup carries unsupported tags, they will be ignored", zap.String("tag", name), zap.Int("count", count))
	}

	log.Debug("Prepared markup index",
		zap.Int("evidence_markers", len(index.Evidence)),
		zap.Int("label_refs", len(index.Labels)),
		zap.Int("links", len(index.Links)),
		zap.Int("unknown_tags", len(index.Unknown)))
}
