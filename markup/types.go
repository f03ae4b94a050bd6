// Package markup defines the typed model of the editor markup subset and its
// parsing into a tree ready for conversion.
package markup

import (
	"strconv"
	"strings"
)

// Input documents come from the report platform's rich text editor and are
// sanitized upstream against a fixed whitelist, so the model below is a
// closed set. Anything outside of it is kept as TagUnknown and skipped with
// a warning during conversion instead of failing it.

// TagKind identifies an element of the markup subset.
type TagKind int

const (
	TagUnknown TagKind = iota
	TagP
	TagH1
	TagH2
	TagH3
	TagH4
	TagH5
	TagH6
	TagB
	TagI
	TagU
	TagSub
	TagSup
	TagDel
	TagSpan
	TagUL
	TagOL
	TagLI
	TagBlockquote
	TagPre
	TagCode
	TagTable
	TagTBody
	TagTR
	TagTD
	TagBR
	TagA
)

var tagNames = map[TagKind]string{
	TagUnknown:    "unknown",
	TagP:          "p",
	TagH1:         "h1",
	TagH2:         "h2",
	TagH3:         "h3",
	TagH4:         "h4",
	TagH5:         "h5",
	TagH6:         "h6",
	TagB:          "b",
	TagI:          "i",
	TagU:          "u",
	TagSub:        "sub",
	TagSup:        "sup",
	TagDel:        "del",
	TagSpan:       "span",
	TagUL:         "ul",
	TagOL:         "ol",
	TagLI:         "li",
	TagBlockquote: "blockquote",
	TagPre:        "pre",
	TagCode:       "code",
	TagTable:      "table",
	TagTBody:      "tbody",
	TagTR:         "tr",
	TagTD:         "td",
	TagBR:         "br",
	TagA:          "a",
}

func (k TagKind) String() string {
	if name, ok := tagNames[k]; ok {
		return name
	}
	return "unknown"
}

// HeadingLevel returns 1 to 6 for heading tags and 0 for everything else.
func (k TagKind) HeadingLevel() int {
	if k >= TagH1 && k <= TagH6 {
		return int(k-TagH1) + 1
	}
	return 0
}

// IsBlock reports whether the element forms its own block at the top level
// of a fragment.
func (k TagKind) IsBlock() bool {
	switch k {
	case TagP, TagH1, TagH2, TagH3, TagH4, TagH5, TagH6, TagUL, TagOL, TagBlockquote, TagPre, TagTable:
		return true
	}
	return false
}

// Attribute names carrying editor annotations.
const (
	AttrEvidence = "data-gw-evidence"
	AttrCaption  = "data-gw-caption"
	AttrRef      = "data-gw-ref"
	AttrClass    = "class"
	AttrStyle    = "style"
	AttrHref     = "href"
	AttrColSpan  = "colspan"
	AttrRowSpan  = "rowspan"
)

// NodeKind separates text runs from elements.
type NodeKind int

const (
	NodeText NodeKind = iota
	NodeElement
)

// Node is a single element or text run of parsed editor markup. Children
// keep source order, attribute keys are lowercased during parsing.
type Node struct {
	Kind     NodeKind
	Tag      TagKind
	Name     string // original element name, kept for diagnostics
	Text     string
	Attrs    map[string]string
	Children []*Node
}

// Attr returns attribute value or empty string when it is not present.
func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	return n.Attrs[name]
}

// HasAttr reports whether the attribute is present, even with empty value.
func (n *Node) HasAttr(name string) bool {
	if n == nil {
		return false
	}
	_, ok := n.Attrs[name]
	return ok
}

// Classes returns class attribute tokens in source order.
func (n *Node) Classes() []string {
	return strings.Fields(n.Attr(AttrClass))
}

// HasClass reports whether the class attribute contains the token.
func (n *Node) HasClass(name string) bool {
	for _, c := range n.Classes() {
		if c == name {
			return true
		}
	}
	return false
}

// SpanAttr returns colspan/rowspan value of a cell defaulting to 1 when the
// attribute is absent or unusable.
func (n *Node) SpanAttr(name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(n.Attr(name)))
	if err != nil || v < 1 {
		return 1
	}
	return v
}

// AsPlainText extracts plain text of the subtree collapsing interior
// whitespace. Suitable for titles and debug output, not for run emission.
func (n *Node) AsPlainText() string {
	var buf strings.Builder
	n.appendText(&buf)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func (n *Node) appendText(buf *strings.Builder) {
	if n == nil {
		return
	}
	if n.Kind == NodeText {
		buf.WriteString(n.Text)
		return
	}
	for _, c := range n.Children {
		c.appendText(buf)
	}
}

// Document is a parsed editor fragment ready for conversion.
type Document struct {
	SrcName string
	Roots   []*Node
}

// Title returns text of the first top level h1, empty when there is none.
func (d *Document) Title() string {
	for _, n := range d.Roots {
		if n.Kind == NodeElement && n.Tag == TagH1 {
			if title := n.AsPlainText(); title != "" {
				return title
			}
		}
	}
	return ""
}
