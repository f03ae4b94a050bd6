package markup

import (
	"strconv"
	"strings"
)

// Index collects editor annotations ahead of conversion so that problems
// can be reported up front and debug dumps stay cheap.

// EvidenceRef is a single data-gw-evidence marker occurrence.
type EvidenceRef struct {
	Raw   string
	Index int
	Valid bool
}

// LabelRef is a single data-gw-caption or data-gw-ref occurrence.
type LabelRef struct {
	Attr  string
	Label string
}

type Index struct {
	Evidence []EvidenceRef
	Labels   []LabelRef
	Links    []string
	Unknown  map[string]int // tag name to number of occurrences
}

// BuildIndex walks the document gathering evidence markers, caption
// references, hyperlink targets and unknown tags. Subtrees of unknown
// elements are not descended into, conversion skips them wholesale.
func BuildIndex(doc *Document) *Index {
	idx := &Index{Unknown: make(map[string]int)}
	for _, n := range doc.Roots {
		idx.scan(n)
	}
	return idx
}

func (idx *Index) scan(n *Node) {
	if n.Kind != NodeElement {
		return
	}

	switch n.Tag {
	case TagUnknown:
		idx.Unknown[n.Name]++
		return
	case TagSpan:
		if raw, ok := n.Attrs[AttrEvidence]; ok {
			ref := EvidenceRef{Raw: raw}
			if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && v >= 0 {
				ref.Index, ref.Valid = v, true
			}
			idx.Evidence = append(idx.Evidence, ref)
		}
		if label, ok := n.Attrs[AttrCaption]; ok {
			idx.Labels = append(idx.Labels, LabelRef{Attr: AttrCaption, Label: label})
		}
		if label, ok := n.Attrs[AttrRef]; ok {
			idx.Labels = append(idx.Labels, LabelRef{Attr: AttrRef, Label: label})
		}
	case TagA:
		if href := n.Attr(AttrHref); len(href) > 0 {
			idx.Links = append(idx.Links, href)
		}
	}

	for _, c := range n.Children {
		idx.scan(c)
	}
}
