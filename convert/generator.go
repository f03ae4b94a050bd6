package convert

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rptc/common"
	"rptc/config"
	"rptc/content"
	"rptc/convert/docx"
	"rptc/convert/pptx"
)

// Generate renders prepared content into the requested container format and
// writes it to the destination.
func Generate(ctx context.Context, c *content.Content, outputPath string, cfg *config.DocumentConfig, log *zap.Logger) error {
	switch c.OutputFormat {
	case common.OutputFmtDocx:
		return docx.Generate(ctx, c, outputPath, cfg, log)
	case common.OutputFmtPptx:
		return pptx.Generate(ctx, c, outputPath, cfg, log)
	default:
		return fmt.Errorf("unsupported output format: %s", c.OutputFormat)
	}
}
