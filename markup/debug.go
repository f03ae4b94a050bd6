package markup

import (
	"fmt"
	"sort"
	"strings"

	"rptc/utils/debug"
)

type treeWriter struct {
	*debug.TreeWriter
}

// String returns a readable tree of the parsed fragment preserving character
// data via escaped control sequences. It exists solely for manual inspection
// during debugging.
func (d *Document) String() string {
	if d == nil {
		return "<nil Document>"
	}
	tw := treeWriter{debug.NewTreeWriter()}
	tw.Line(0, "Document src=%q roots=%d", d.SrcName, len(d.Roots))
	for i, n := range d.Roots {
		tw.node(1, fmt.Sprintf("[%d]", i), n)
	}
	return tw.TreeWriter.String()
}

func (tw treeWriter) node(depth int, prefix string, n *Node) {
	if n == nil {
		tw.Line(depth, "%s <nil>", prefix)
		return
	}
	if n.Kind == NodeText {
		tw.TextBlock(depth, prefix+" text", n.Text)
		return
	}

	name := n.Tag.String()
	if n.Tag == TagUnknown {
		name = fmt.Sprintf("unknown(%s)", n.Name)
	}
	tw.Line(depth, "%s <%s>%s", prefix, name, formatAttrs(n.Attrs))

	for i, c := range n.Children {
		tw.node(depth+1, fmt.Sprintf("[%d]", i), c)
	}
}

func formatAttrs(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, attrs[k])
	}
	return b.String()
}
