// Package compile turns parsed editor markup into output for a specific
// document format driven through a small sink interface. The tag walk,
// inline style accumulation, whitespace policy, list numbering and table
// grid resolution are shared here, everything format specific lives in the
// sink implementations.
package compile

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"rptc/css"
	"rptc/evidence"
	"rptc/markup"
)

// Stats counts what one compilation emitted.
type Stats struct {
	Blocks   int
	Runs     int
	Tables   int
	Evidence int
}

// Compile renders the parsed document into the sink. The evidence table may
// be nil when the document carries no markers. Malformed markers, unknown
// labels and unsupported tags are logged and skipped, evidence file I/O
// failures abort the compilation. There is no rollback, on failure the sink
// keeps everything emitted up to that point.
func Compile(doc *markup.Document, sink Sink, table *evidence.Table, log *zap.Logger) (Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &compiler{
		sink:     sink,
		evidence: table,
		lists:    newListAllocator(sink.ListBase()),
		log:      log,
	}
	for _, n := range doc.Roots {
		if err := c.blockNode(n, BlockOptions{}, Format{}); err != nil {
			return c.stats, err
		}
	}
	return c.stats, nil
}

// compiler is the state of one compilation. Nothing here outlives the
// Compile call, concurrent compilations never share state.
type compiler struct {
	sink     Sink
	evidence *evidence.Table
	lists    listAllocator
	ws       wsState
	block    *BlockOptions // options of the currently open block
	stats    Stats
	log      *zap.Logger
}

// blockNode dispatches one block level element. base carries options
// inherited from an enclosing blockquote or table cell.
func (c *compiler) blockNode(n *markup.Node, base BlockOptions, f Format) error {
	if n.Kind == markup.NodeText {
		// root text is wrapped into implicit paragraphs during
		// normalization, whatever remains here is whitespace
		return nil
	}

	if lvl := n.Tag.HeadingLevel(); lvl > 0 {
		opts := base
		opts.Heading = lvl
		opts.Align = blockAlignment(n, base)
		f.Bold = true
		return c.blockOf(n.Children, opts, f)
	}

	switch n.Tag {
	case markup.TagP:
		opts := base
		opts.Align = blockAlignment(n, base)
		return c.blockOf(n.Children, opts, f)
	case markup.TagBlockquote:
		opts := base
		opts.Quote = true
		opts.Align = blockAlignment(n, base)
		return c.mixed(n.Children, opts, f)
	case markup.TagUL, markup.TagOL:
		return c.list(n, f)
	case markup.TagPre:
		return c.pre(n)
	case markup.TagTable:
		return c.table(n, f)
	case markup.TagUnknown:
		c.log.Warn("Unsupported tag in markup, skipping", zap.String("tag", n.Name))
		return nil
	default:
		c.log.Warn("Unexpected tag at block level, skipping", zap.String("tag", n.Tag.String()))
		return nil
	}
}

// blockOf opens a block, renders inline children into it and closes it.
func (c *compiler) blockOf(children []*markup.Node, opts BlockOptions, f Format) error {
	if err := c.openBlock(opts); err != nil {
		return err
	}
	if err := c.inlineChildren(children, f); err != nil {
		return err
	}
	return c.closeBlock()
}

// mixed renders children that may hold both nested blocks and bare inline
// content, as blockquotes and table cells do. Runs of inline content
// between blocks are wrapped into implicit blocks with the given options.
func (c *compiler) mixed(children []*markup.Node, opts BlockOptions, f Format) error {
	var inline []*markup.Node
	flush := func() error {
		if !hasContent(inline) {
			inline = nil
			return nil
		}
		err := c.blockOf(inline, opts, f)
		inline = nil
		return err
	}
	for _, child := range children {
		if child.Kind == markup.NodeElement && child.Tag.IsBlock() {
			if err := flush(); err != nil {
				return err
			}
			if err := c.blockNode(child, opts, f); err != nil {
				return err
			}
			continue
		}
		inline = append(inline, child)
	}
	return flush()
}

func (c *compiler) openBlock(opts BlockOptions) error {
	if err := c.sink.OpenBlock(opts); err != nil {
		return err
	}
	c.stats.Blocks++
	c.block = &opts
	if opts.Pre {
		c.ws = wsPre
	} else {
		c.ws = wsNewBlock
	}
	return nil
}

func (c *compiler) closeBlock() error {
	c.block = nil
	return c.sink.CloseBlock()
}

func (c *compiler) inlineChildren(children []*markup.Node, f Format) error {
	for _, child := range children {
		if err := c.inline(child, f); err != nil {
			return err
		}
	}
	return nil
}

// inline dispatches one inline node. Formatting tags stack their flag onto
// a copy of the format and recurse, the copy dies with the subtree.
func (c *compiler) inline(n *markup.Node, f Format) error {
	if n.Kind == markup.NodeText {
		return c.text(n.Text, f)
	}

	switch n.Tag {
	case markup.TagB:
		f.Bold = true
	case markup.TagI:
		f.Italic = true
	case markup.TagU:
		f.Underline = true
	case markup.TagDel:
		f.Strike = true
	case markup.TagSub:
		f.Sub = true
	case markup.TagSup:
		f.Sup = true
	case markup.TagCode:
		f.Code = true
	case markup.TagA:
		if href := n.Attr(markup.AttrHref); href != "" {
			f.Hyperlink = href
		}
	case markup.TagSpan:
		return c.span(n, f)
	case markup.TagBR:
		return c.breakLine()
	case markup.TagUnknown:
		c.log.Warn("Unsupported tag in markup, skipping", zap.String("tag", n.Name))
		return nil
	default:
		c.log.Warn("Unexpected tag in block content, skipping", zap.String("tag", n.Tag.String()))
		return nil
	}

	if err := c.separator(); err != nil {
		return err
	}
	return c.inlineChildren(n.Children, f)
}

// span handles the annotated span variants before falling back to a
// generic inline container. Evidence markers and label references decide
// on their own whether anything is emitted, so the separator logic runs
// only after they resolve.
func (c *compiler) span(n *markup.Node, f Format) error {
	if n.HasAttr(markup.AttrEvidence) {
		return c.evidenceMarker(n)
	}
	if n.HasAttr(markup.AttrCaption) {
		return c.labelReference(n.Attr(markup.AttrCaption), f)
	}
	if n.HasAttr(markup.AttrRef) {
		return c.labelReference(n.Attr(markup.AttrRef), f)
	}

	if n.HasClass("highlight") {
		f.Highlight = true
	}
	if style := n.Attr(markup.AttrStyle); style != "" {
		st := css.ParseStyle(style, c.log)
		if st.Color != "" {
			f.Color = st.Color
		}
		if st.Highlight {
			f.Highlight = true
		}
	}

	if err := c.separator(); err != nil {
		return err
	}
	return c.inlineChildren(n.Children, f)
}

// evidenceMarker resolves a data-gw-evidence index and embeds the record
// it points to. A malformed or unresolved index produces no output at all.
// A record whose file cannot be read aborts the compilation.
func (c *compiler) evidenceMarker(n *markup.Node) error {
	raw := n.Attr(markup.AttrEvidence)
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 0 {
		c.log.Warn("Malformed evidence marker, skipping", zap.String("value", raw))
		return nil
	}
	rec, ok := c.evidence.ByIndex(idx)
	if !ok {
		c.log.Warn("Evidence marker has no record, skipping", zap.Int("index", idx))
		return nil
	}

	switch c.evidence.Kind(rec) {
	case evidence.KindImage:
		img, err := c.evidence.LoadImage(rec)
		if err != nil {
			c.log.Error("Unable to load evidence image", zap.String("label", rec.Label), zap.String("path", rec.Path), zap.Error(err))
			return err
		}
		c.stats.Evidence++
		return c.sink.PlaceImage(img)
	case evidence.KindText:
		text, err := c.evidence.LoadText(rec)
		if err != nil {
			c.log.Error("Unable to load evidence text", zap.String("label", rec.Label), zap.String("path", rec.Path), zap.Error(err))
			return err
		}
		c.stats.Evidence++
		return c.embedText(text)
	default:
		c.log.Warn("Evidence file type is not supported, skipping", zap.String("label", rec.Label), zap.String("path", rec.Path))
		return nil
	}
}

// embedText places evidence file content as a monospace block. The block
// the marker sits in is closed around it and reopened afterwards so that
// trailing markup keeps flowing.
func (c *compiler) embedText(text string) error {
	var resume *BlockOptions
	if c.block != nil {
		opts := *c.block
		resume = &opts
		if err := c.closeBlock(); err != nil {
			return err
		}
	}
	if err := c.openBlock(BlockOptions{Pre: true}); err != nil {
		return err
	}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			if err := c.breakLine(); err != nil {
				return err
			}
		}
		if line == "" {
			continue
		}
		if err := c.emitRun(line, Format{}); err != nil {
			return err
		}
	}
	if err := c.closeBlock(); err != nil {
		return err
	}
	if resume != nil {
		return c.openBlock(*resume)
	}
	return nil
}

// labelReference renders a data-gw-caption or data-gw-ref annotation as an
// italic pointer at the referenced evidence. Unknown labels emit nothing.
func (c *compiler) labelReference(label string, f Format) error {
	label = strings.TrimSpace(label)
	if label == "" {
		c.log.Warn("Evidence reference carries no label, skipping")
		return nil
	}
	if _, ok := c.evidence.ByLabel(label); !ok {
		c.log.Warn("Reference points to unknown evidence label, skipping", zap.String("label", label))
		return nil
	}
	if err := c.separator(); err != nil {
		return err
	}
	f.Italic = true
	if err := c.emitRun("See "+label, f); err != nil {
		return err
	}
	c.ws = wsAwaitSeparator
	return nil
}

// list renders ul/ol. Identity comes from the allocator, items outside li
// elements are skipped.
func (c *compiler) list(n *markup.Node, f Format) error {
	ctx := c.lists.enter(n.Tag == markup.TagOL)
	defer c.lists.leave()

	for _, item := range n.Children {
		if item.Kind == markup.NodeText {
			if strings.TrimSpace(item.Text) != "" {
				c.log.Warn("Stray text in list, skipping", zap.String("text", item.Text))
			}
			continue
		}
		if item.Tag != markup.TagLI {
			c.log.Warn("Unexpected tag in list, skipping", zap.String("tag", tagLabel(item)))
			continue
		}
		if err := c.listItem(item, ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// listItem emits exactly one block for the item, then renders lists nested
// inside it. Paragraphs some editors wrap item text into are unwrapped
// into the item's own block.
func (c *compiler) listItem(item *markup.Node, ctx ListContext, f Format) error {
	var inline, nested []*markup.Node
	for _, child := range item.Children {
		switch {
		case child.Kind == markup.NodeElement && (child.Tag == markup.TagUL || child.Tag == markup.TagOL):
			nested = append(nested, child)
		case child.Kind == markup.NodeElement && child.Tag == markup.TagP:
			inline = append(inline, child.Children...)
		default:
			inline = append(inline, child)
		}
	}

	lc := ctx
	if err := c.blockOf(inline, BlockOptions{List: &lc, Align: alignmentOf(item)}, f); err != nil {
		return err
	}
	for _, sub := range nested {
		if err := c.list(sub, f); err != nil {
			return err
		}
	}
	return nil
}

// pre renders a preformatted block. Whitespace collapsing is off for its
// whole extent and line breaks in the source stay. A sole code child is
// unwrapped, the block itself already renders monospace.
func (c *compiler) pre(n *markup.Node) error {
	children := n.Children
	if len(children) == 1 && children[0].Kind == markup.NodeElement && children[0].Tag == markup.TagCode {
		children = children[0].Children
	}
	if err := c.openBlock(BlockOptions{Pre: true}); err != nil {
		return err
	}
	if err := c.inlineChildren(children, Format{}); err != nil {
		return err
	}
	return c.closeBlock()
}

// table resolves the grid and emits exactly one cell call per slot of
// every row. The sink decides what its format needs for covered slots.
func (c *compiler) table(n *markup.Node, f Format) error {
	grid := BuildGrid(n, c.log)
	if grid.Rows() == 0 || grid.Cols() == 0 {
		c.log.Warn("Table has no cells, skipping")
		return nil
	}

	c.stats.Tables++
	if err := c.sink.OpenTable(grid.Cols()); err != nil {
		return err
	}
	for r := range grid.Rows() {
		if err := c.sink.OpenRow(); err != nil {
			return err
		}
		for col := range grid.Cols() {
			cell := grid.At(r, col)
			if cell.Covered() {
				if err := c.sink.CoveredCell(cell.CellSpan); err != nil {
					return err
				}
				continue
			}
			if err := c.sink.OpenCell(cell.CellSpan); err != nil {
				return err
			}
			if cell.Node != nil {
				opts := BlockOptions{Align: alignmentOf(cell.Node)}
				if err := c.mixed(cell.Node.Children, opts, f); err != nil {
					return err
				}
			}
			if err := c.sink.CloseCell(); err != nil {
				return err
			}
		}
		if err := c.sink.CloseRow(); err != nil {
			return err
		}
	}
	return c.sink.CloseTable()
}

// emitRun pushes one run to the sink. Sink failures are logged with the
// offending text so the source fragment can be found.
func (c *compiler) emitRun(text string, f Format) error {
	c.stats.Runs++
	if err := c.sink.EmitRun(text, f); err != nil {
		c.log.Error("Unable to emit text run", zap.String("text", text), zap.Error(err))
		return err
	}
	return nil
}

func (c *compiler) breakLine() error {
	if err := c.sink.LineBreak(); err != nil {
		return err
	}
	if c.ws != wsPre {
		c.ws = wsNewBlock
	}
	return nil
}

// Whitespace policy. Adjacent inline elements are separated by a single
// plain space run unless the boundary already carries whitespace, text
// keeps one collapsed space at most between words, preformatted blocks
// emit everything verbatim. The machine resets at every block start.

type wsState int

const (
	wsNewBlock       wsState = iota // block just opened, leading whitespace drops
	wsSeparated                     // boundary already carries whitespace
	wsAwaitSeparator                // last emitted character was not whitespace
	wsPre                           // inside a preformatted block
)

// separator runs before an inline element starts emitting and inserts the
// single space run dividing it from the preceding content.
func (c *compiler) separator() error {
	if c.ws != wsAwaitSeparator {
		return nil
	}
	c.ws = wsSeparated
	return c.emitRun(" ", Format{})
}

// text emits one text node. Outside preformatted blocks runs of whitespace
// collapse to single spaces, NBSP stays content.
func (c *compiler) text(raw string, f Format) error {
	if c.ws == wsPre {
		return c.preText(raw, f)
	}

	t := collapseWhitespace(raw)
	if c.ws == wsNewBlock || c.ws == wsSeparated {
		t = strings.TrimPrefix(t, " ")
	}
	if t == "" {
		return nil
	}
	next := wsAwaitSeparator
	if strings.HasSuffix(t, " ") {
		next = wsSeparated
	}
	if err := c.emitRun(t, f); err != nil {
		return err
	}
	c.ws = next
	return nil
}

// preText emits text verbatim, turning every line break in the source into
// an explicit break in the block. The parser already normalized line
// endings to plain newlines.
func (c *compiler) preText(raw string, f Format) error {
	for i, line := range strings.Split(raw, "\n") {
		if i > 0 {
			if err := c.breakLine(); err != nil {
				return err
			}
		}
		if line == "" {
			continue
		}
		if err := c.emitRun(line, f); err != nil {
			return err
		}
	}
	return nil
}

func isCollapsible(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if isCollapsible(r) {
			pending = true
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	if pending {
		b.WriteByte(' ')
	}
	return b.String()
}

// hasContent reports whether the nodes hold anything besides collapsible
// whitespace.
func hasContent(nodes []*markup.Node) bool {
	for _, n := range nodes {
		if n.Kind == markup.NodeElement {
			return true
		}
		if strings.Trim(collapseWhitespace(n.Text), " ") != "" {
			return true
		}
	}
	return false
}

// alignmentOf maps class tokens of a block element to its alignment.
func alignmentOf(n *markup.Node) Alignment {
	for _, class := range n.Classes() {
		switch class {
		case "left":
			return AlignLeft
		case "center":
			return AlignCenter
		case "right":
			return AlignRight
		case "justify":
			return AlignJustify
		}
	}
	return AlignDefault
}

func blockAlignment(n *markup.Node, base BlockOptions) Alignment {
	if a := alignmentOf(n); a != AlignDefault {
		return a
	}
	return base.Align
}
