package content

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"rptc/utils/debug"
)

type treeWriter struct {
	*debug.TreeWriter
}

// String returns a readable tree of the whole Content starting with the
// parsed markup. It exists solely for manual inspection during debugging.
func (c *Content) String() string {
	if c == nil {
		return "<nil Content>"
	}

	hdr := treeWriter{debug.NewTreeWriter()}
	hdr.Line(0, "Content src=%q", c.SrcName)
	hdr.Line(1, "Title: %q", c.Title)
	hdr.Line(1, "RefID: %s", c.RefID)
	hdr.Line(1, "Format: %s", c.OutputFormat)

	out := hdr.String() + "\n" + c.Doc.String()

	if c.Evidence.Len() > 0 {
		tw := treeWriter{debug.NewTreeWriter()}

		tw.Line(0, "Evidence table: %d", c.Evidence.Len())
		for i, rec := range c.Evidence.Records() {
			tw.Line(1, "Record[%d] label[%q] path[%q] kind[%s]", i, rec.Label, rec.Path, c.Evidence.Kind(rec))
		}
		out += "\n" + tw.String()
	}

	if c.Index != nil {
		tw := treeWriter{debug.NewTreeWriter()}

		tw.Line(0, "Markup index")
		tw.Line(1, "Evidence markers: %d", len(c.Index.Evidence))
		for _, ref := range c.Index.Evidence {
			tw.Line(2, "Marker[%q] index[%d] valid[%t]", ref.Raw, ref.Index, ref.Valid)
		}
		tw.Line(1, "Label references: %d", len(c.Index.Labels))
		for _, ref := range c.Index.Labels {
			tw.Line(2, "Reference[%q] attr[%q]", ref.Label, ref.Attr)
		}
		tw.Line(1, "Hyperlinks: %d", len(c.Index.Links))
		for _, href := range c.Index.Links {
			tw.Line(2, "Link[%q]", href)
		}
		if len(c.Index.Unknown) > 0 {
			tw.Line(1, "Unknown tags: %d", len(c.Index.Unknown))
			keys := slices.Collect(maps.Keys(c.Index.Unknown))
			sort.Sort(natural.StringSlice(keys))
			for _, k := range keys {
				tw.Line(2, "Tag[%q] count[%d]", k, c.Index.Unknown[k])
			}
		}
		out += "\n" + tw.String()
	}

	return out
}
