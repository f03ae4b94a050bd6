package markup

import (
	"strings"

	"go.uber.org/zap"
)

// Normalize cleans parser artifacts at the fragment root: whitespace-only
// text between blocks is dropped and stray text or inline elements are
// wrapped into an implicit paragraph so that every root is a proper block.
func Normalize(doc *Document, log *zap.Logger) {

	roots := make([]*Node, 0, len(doc.Roots))

	var stray []*Node
	flush := func() {
		if len(stray) == 0 {
			return
		}
		log.Debug("Wrapping stray root content into implicit paragraph", zap.String("src", doc.SrcName), zap.Int("nodes", len(stray)))
		roots = append(roots, &Node{Kind: NodeElement, Tag: TagP, Name: "p", Children: stray})
		stray = nil
	}

	for _, n := range doc.Roots {
		if n.Kind == NodeText {
			if strings.TrimSpace(n.Text) == "" {
				continue
			}
			stray = append(stray, n)
			continue
		}
		if n.Tag.IsBlock() || n.Tag == TagUnknown {
			flush()
			roots = append(roots, n)
			continue
		}
		switch n.Tag {
		case TagLI, TagTR, TagTD, TagTBody:
			// misplaced structural elements stay as roots, conversion
			// reports and skips them
			flush()
			roots = append(roots, n)
		default:
			// inline content rides along with neighboring stray text
			stray = append(stray, n)
		}
	}
	flush()

	doc.Roots = roots
}
