package docx

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"rptc/convert/compile"
	"rptc/evidence"
)

// ListBase returns 1, numbering instances in WordprocessingML start at one.
func (d *Document) ListBase() int {
	return 1
}

// container is the element paragraphs and tables are appended to, the body
// or the innermost open table cell.
func (d *Document) container() *etree.Element {
	return d.containers[len(d.containers)-1]
}

func (d *Document) OpenBlock(opts compile.BlockOptions) error {
	p := d.container().CreateElement("w:p")
	d.para = p

	style := ""
	switch {
	case opts.Heading > 0:
		style = fmt.Sprintf("Heading%d", opts.Heading)
	case opts.Pre:
		style = "SourceCode"
	case opts.List != nil:
		style = "ListParagraph"
	case opts.Quote:
		style = "Quote"
	}
	justify := jc(opts.Align)
	if style == "" && justify == "" && opts.List == nil {
		return nil
	}

	pPr := p.CreateElement("w:pPr")
	if style != "" {
		pStyle := pPr.CreateElement("w:pStyle")
		pStyle.CreateAttr("w:val", style)
	}
	if opts.List != nil {
		d.registerList(opts.List.Identity, opts.List.Ordered)
		numPr := pPr.CreateElement("w:numPr")
		ilvl := numPr.CreateElement("w:ilvl")
		ilvl.CreateAttr("w:val", fmt.Sprintf("%d", opts.List.Depth-1))
		numID := numPr.CreateElement("w:numId")
		numID.CreateAttr("w:val", fmt.Sprintf("%d", opts.List.Identity))
	}
	if justify != "" {
		el := pPr.CreateElement("w:jc")
		el.CreateAttr("w:val", justify)
	}
	return nil
}

func (d *Document) CloseBlock() error {
	d.para = nil
	return nil
}

func (d *Document) EmitRun(text string, f compile.Format) error {
	if d.para == nil {
		return fmt.Errorf("text run outside of a paragraph")
	}
	parent := d.para
	if f.Hyperlink != "" {
		link := d.para.CreateElement("w:hyperlink")
		link.CreateAttr("r:id", d.hyperlinkID(f.Hyperlink))
		link.CreateAttr("w:history", "1")
		parent = link
	}
	run := parent.CreateElement("w:r")
	d.appendRunProperties(run, f)
	t := run.CreateElement("w:t")
	if strings.TrimSpace(text) != text {
		t.CreateAttr("xml:space", "preserve")
	}
	t.SetText(text)
	return nil
}

// appendRunProperties writes w:rPr for the format, element order follows
// the schema sequence.
func (d *Document) appendRunProperties(run *etree.Element, f compile.Format) {
	plain := f
	plain.Hyperlink = ""
	if plain == (compile.Format{}) && f.Hyperlink == "" {
		return
	}

	rPr := run.CreateElement("w:rPr")
	if f.Hyperlink != "" {
		rStyle := rPr.CreateElement("w:rStyle")
		rStyle.CreateAttr("w:val", "Hyperlink")
	}
	if f.Code {
		setRunFonts(rPr, d.cfg.MonoFont)
	}
	if f.Bold {
		rPr.CreateElement("w:b")
	}
	if f.Italic {
		rPr.CreateElement("w:i")
	}
	if f.Strike {
		rPr.CreateElement("w:strike")
	}
	if f.Color != "" {
		color := rPr.CreateElement("w:color")
		color.CreateAttr("w:val", f.Color)
	}
	if f.Highlight {
		hl := rPr.CreateElement("w:highlight")
		hl.CreateAttr("w:val", "yellow")
	}
	if f.Underline {
		u := rPr.CreateElement("w:u")
		u.CreateAttr("w:val", "single")
	}
	if f.Sub {
		va := rPr.CreateElement("w:vertAlign")
		va.CreateAttr("w:val", "subscript")
	} else if f.Sup {
		va := rPr.CreateElement("w:vertAlign")
		va.CreateAttr("w:val", "superscript")
	}
}

func (d *Document) LineBreak() error {
	if d.para == nil {
		return fmt.Errorf("line break outside of a paragraph")
	}
	d.para.CreateElement("w:r").CreateElement("w:br")
	return nil
}

func (d *Document) OpenTable(cols int) error {
	if cols <= 0 {
		return fmt.Errorf("table with %d columns", cols)
	}
	parent := d.container()
	// Word merges adjacent tables, keep an empty paragraph between them.
	if kids := parent.ChildElements(); len(kids) > 0 && kids[len(kids)-1].Tag == "tbl" {
		parent.CreateElement("w:p")
	}

	width := d.cfg.TableWidth
	if width <= 0 || width > contentWidth() {
		width = contentWidth()
	}

	tbl := parent.CreateElement("w:tbl")
	tblPr := tbl.CreateElement("w:tblPr")
	tblW := tblPr.CreateElement("w:tblW")
	tblW.CreateAttr("w:w", fmt.Sprintf("%d", width))
	tblW.CreateAttr("w:type", "dxa")
	appendTableBorders(tblPr)
	layout := tblPr.CreateElement("w:tblLayout")
	layout.CreateAttr("w:type", "fixed")

	colWidth := width / cols
	grid := tbl.CreateElement("w:tblGrid")
	for range cols {
		col := grid.CreateElement("w:gridCol")
		col.CreateAttr("w:w", fmt.Sprintf("%d", colWidth))
	}

	d.tables = append(d.tables, &tableState{tbl: tbl, colWidth: colWidth})
	return nil
}

func appendTableBorders(tblPr *etree.Element) {
	borders := tblPr.CreateElement("w:tblBorders")
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		b := borders.CreateElement("w:" + side)
		b.CreateAttr("w:val", "single")
		b.CreateAttr("w:sz", "4")
		b.CreateAttr("w:space", "0")
		b.CreateAttr("w:color", "auto")
	}
}

func (d *Document) table() *tableState {
	if len(d.tables) == 0 {
		return nil
	}
	return d.tables[len(d.tables)-1]
}

func (d *Document) OpenRow() error {
	ts := d.table()
	if ts == nil {
		return fmt.Errorf("table row outside of a table")
	}
	ts.row = ts.tbl.CreateElement("w:tr")
	return nil
}

func (d *Document) OpenCell(span compile.CellSpan) error {
	ts := d.table()
	if ts == nil || ts.row == nil {
		return fmt.Errorf("table cell outside of a row")
	}
	tc := d.appendCell(ts, span.Cols)
	if span.Rows > 1 {
		merge := tc.SelectElement("w:tcPr").CreateElement("w:vMerge")
		merge.CreateAttr("w:val", "restart")
	}
	d.containers = append(d.containers, tc)
	return nil
}

func (d *Document) CloseCell() error {
	if len(d.containers) < 2 {
		return fmt.Errorf("no open table cell")
	}
	tc := d.container()
	d.containers = d.containers[:len(d.containers)-1]
	// a cell must end with a paragraph
	if kids := tc.ChildElements(); len(kids) == 0 || kids[len(kids)-1].Tag != "p" {
		tc.CreateElement("w:p")
	}
	return nil
}

// CoveredCell emits what WordprocessingML needs for merged away slots. A
// slot under a row span becomes a merge continuation keeping the width of
// the covering cell, a slot to the right of a column span is absorbed by
// gridSpan and produces nothing.
func (d *Document) CoveredCell(span compile.CellSpan) error {
	ts := d.table()
	if ts == nil || ts.row == nil {
		return fmt.Errorf("table cell outside of a row")
	}
	if span.CoveredH {
		return nil
	}
	tc := d.appendCell(ts, span.Cols)
	tc.SelectElement("w:tcPr").CreateElement("w:vMerge")
	tc.CreateElement("w:p")
	return nil
}

// appendCell creates a w:tc with its width and grid span set.
func (d *Document) appendCell(ts *tableState, cols int) *etree.Element {
	if cols < 1 {
		cols = 1
	}
	tc := ts.row.CreateElement("w:tc")
	tcPr := tc.CreateElement("w:tcPr")
	tcW := tcPr.CreateElement("w:tcW")
	tcW.CreateAttr("w:w", fmt.Sprintf("%d", ts.colWidth*cols))
	tcW.CreateAttr("w:type", "dxa")
	if cols > 1 {
		gs := tcPr.CreateElement("w:gridSpan")
		gs.CreateAttr("w:val", fmt.Sprintf("%d", cols))
	}
	return tc
}

func (d *Document) CloseRow() error {
	ts := d.table()
	if ts == nil {
		return fmt.Errorf("no open table")
	}
	ts.row = nil
	return nil
}

func (d *Document) CloseTable() error {
	if len(d.tables) == 0 {
		return fmt.Errorf("no open table")
	}
	d.tables = d.tables[:len(d.tables)-1]
	return nil
}

// PlaceImage embeds the picture inline in the open paragraph, scaled down
// to the printable width when it would overflow.
func (d *Document) PlaceImage(img *evidence.Image) error {
	if d.para == nil {
		return fmt.Errorf("image outside of a paragraph")
	}

	name := fmt.Sprintf("media/image%d.%s", len(d.media)+1, img.Ext)
	d.media = append(d.media, mediaPart{name: name, data: img.Data})
	d.mediaExts[img.Ext] = true
	relID := d.addRelationship(relTypeImage, name, false)

	cx := img.Width * emuPerPixel
	cy := img.Height * emuPerPixel
	if maxCx := contentWidth() * emuPerTwip; cx > maxCx {
		cy = cy * maxCx / cx
		cx = maxCx
	}

	d.drawings++
	id := fmt.Sprintf("%d", d.drawings)
	label := img.Label
	if label == "" {
		label = fmt.Sprintf("image%d", d.drawings)
	}

	inline := d.para.CreateElement("w:r").CreateElement("w:drawing").CreateElement("wp:inline")
	for _, dist := range []string{"distT", "distB", "distL", "distR"} {
		inline.CreateAttr(dist, "0")
	}
	extent := inline.CreateElement("wp:extent")
	extent.CreateAttr("cx", fmt.Sprintf("%d", cx))
	extent.CreateAttr("cy", fmt.Sprintf("%d", cy))
	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", id)
	docPr.CreateAttr("name", label)
	framePr := inline.CreateElement("wp:cNvGraphicFramePr")
	locks := framePr.CreateElement("a:graphicFrameLocks")
	locks.CreateAttr("noChangeAspect", "1")

	graphic := inline.CreateElement("a:graphic")
	data := graphic.CreateElement("a:graphicData")
	data.CreateAttr("uri", nsPic)
	pic := data.CreateElement("pic:pic")

	nvPr := pic.CreateElement("pic:nvPicPr")
	cNvPr := nvPr.CreateElement("pic:cNvPr")
	cNvPr.CreateAttr("id", id)
	cNvPr.CreateAttr("name", label)
	nvPr.CreateElement("pic:cNvPicPr")

	fill := pic.CreateElement("pic:blipFill")
	blip := fill.CreateElement("a:blip")
	blip.CreateAttr("r:embed", relID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("pic:spPr")
	xfrm := spPr.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", fmt.Sprintf("%d", cx))
	ext.CreateAttr("cy", fmt.Sprintf("%d", cy))
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")

	return nil
}

func jc(a compile.Alignment) string {
	switch a {
	case compile.AlignLeft:
		return "left"
	case compile.AlignCenter:
		return "center"
	case compile.AlignRight:
		return "right"
	case compile.AlignJustify:
		return "both"
	}
	return ""
}
