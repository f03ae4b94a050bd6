package markup

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// Parsing of editor fragments. The upstream sanitizer guarantees the
// whitelist, we still parse with a full HTML5 parser so that whatever
// reaches us (implicit tbody, entity references, stray text) comes out as a
// predictable tree.

// tagKinds maps parsed element atoms to the closed tag set. Aliases the
// whitelist treats as equivalent (strong/b, em/i) collapse here.
var tagKinds = map[atom.Atom]TagKind{
	atom.P:          TagP,
	atom.H1:         TagH1,
	atom.H2:         TagH2,
	atom.H3:         TagH3,
	atom.H4:         TagH4,
	atom.H5:         TagH5,
	atom.H6:         TagH6,
	atom.B:          TagB,
	atom.Strong:     TagB,
	atom.I:          TagI,
	atom.Em:         TagI,
	atom.U:          TagU,
	atom.Sub:        TagSub,
	atom.Sup:        TagSup,
	atom.Del:        TagDel,
	atom.Span:       TagSpan,
	atom.Ul:         TagUL,
	atom.Ol:         TagOL,
	atom.Li:         TagLI,
	atom.Blockquote: TagBlockquote,
	atom.Pre:        TagPre,
	atom.Code:       TagCode,
	atom.Table:      TagTable,
	atom.Tbody:      TagTBody,
	atom.Tr:         TagTR,
	atom.Td:         TagTD,
	atom.Br:         TagBR,
	atom.A:          TagA,
}

// Parse reads an editor fragment and lowers it into the typed tree. Input
// encoding is detected from the stream itself, the tree is always UTF-8.
func Parse(r io.Reader, srcName string, log *zap.Logger) (*Document, error) {

	cr, err := charset.NewReader(r, "text/html")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare markup reader: %w", err)
	}

	root, err := html.Parse(cr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	body := findBody(root)
	if body == nil {
		// html.Parse always synthesizes a body, this is truly unexpected
		return nil, fmt.Errorf("parsed markup has no body")
	}

	doc := &Document{SrcName: srcName}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if n := lower(c); n != nil {
			doc.Roots = append(doc.Roots, n)
		}
	}

	log.Debug("Parsed markup fragment", zap.String("src", srcName), zap.Int("roots", len(doc.Roots)))
	return doc, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

func lower(src *html.Node) *Node {
	switch src.Type {
	case html.TextNode:
		return &Node{Kind: NodeText, Text: src.Data}
	case html.ElementNode:
		kind, known := tagKinds[src.DataAtom]
		if !known {
			kind = TagUnknown
		}
		n := &Node{Kind: NodeElement, Tag: kind, Name: src.Data}
		if len(src.Attr) > 0 {
			n.Attrs = make(map[string]string, len(src.Attr))
			for _, a := range src.Attr {
				if len(a.Namespace) > 0 {
					continue
				}
				n.Attrs[strings.ToLower(a.Key)] = a.Val
			}
		}
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			if child := lower(c); child != nil {
				n.Children = append(n.Children, child)
			}
		}
		return n
	default:
		// comments, doctype and the like carry nothing we want
		return nil
	}
}
