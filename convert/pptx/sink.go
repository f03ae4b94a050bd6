package pptx

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"rptc/convert/compile"
	"rptc/evidence"
)

// ListBase returns 0, slides keep no numbering registry and only the list
// depth shows in the output.
func (d *Deck) ListBase() int {
	return 0
}

// OpenBlock buffers the block. A level one heading outside of a table
// starts the next slide and becomes its title.
func (d *Deck) OpenBlock(opts compile.BlockOptions) error {
	if opts.Heading == 1 && len(d.tables) == 0 {
		d.newSlide(true)
	} else {
		d.ensureSlide()
	}
	d.para = &paragraph{opts: opts}
	return nil
}

func (d *Deck) EmitRun(text string, f compile.Format) error {
	if d.para == nil {
		return fmt.Errorf("text run outside of a block")
	}
	d.para.segs = append(d.para.segs, runSeg{text: text, f: f})
	return nil
}

func (d *Deck) LineBreak() error {
	if d.para == nil {
		return fmt.Errorf("line break outside of a block")
	}
	d.para.segs = append(d.para.segs, runSeg{brk: true})
	return nil
}

// CloseBlock materializes the buffered block where it belongs: the open
// table cell, the pending slide title, a floating monospace box or the
// slide body.
func (d *Deck) CloseBlock() error {
	if d.para == nil {
		return fmt.Errorf("no open block")
	}
	para := d.para
	d.para = nil
	s := d.cur()

	if ts := d.table(); ts != nil && ts.cell != nil {
		d.appendParagraph(ts.cell, s, para.opts, para.segs, d.cfg.Slides.BodyFontSize*100)
		return nil
	}
	if s.titlePending {
		s.titlePending = false
		d.appendParagraph(s.title, s, para.opts, para.segs, d.cfg.Slides.TitleFontSize*100)
		return nil
	}
	if para.opts.Pre {
		lines := 1
		for _, seg := range para.segs {
			if seg.brk {
				lines++
			}
		}
		height := preBoxHeight(lines, d.cfg.Slides.BodyFontSize)
		box := s.addTextBox("Preformatted", frameX, s.claimY(height), bodyWidth, height)
		d.appendParagraph(box, s, para.opts, para.segs, d.cfg.Slides.BodyFontSize*100)
		return nil
	}

	body := s.ensureBody()
	sz := d.cfg.Slides.BodyFontSize * 100
	for _, group := range d.bullets(para) {
		d.appendParagraph(body, s, para.opts, group, sz)
	}
	return nil
}

// bullets splits a flowing body paragraph into one group per sentence when
// sentence bullets are enabled. Lists, headings and blocks with explicit
// line breaks stay whole.
func (d *Deck) bullets(p *paragraph) [][]runSeg {
	whole := [][]runSeg{p.segs}
	if d.splitter == nil || p.opts.List != nil || p.opts.Heading > 0 {
		return whole
	}
	var full strings.Builder
	for _, seg := range p.segs {
		if seg.brk {
			return whole
		}
		full.WriteString(seg.text)
	}
	sents := d.splitter.Split(full.String())
	if len(sents) < 2 {
		return whole
	}

	groups := make([][]runSeg, 0, len(sents))
	rest := append([]runSeg(nil), p.segs...)
	for _, sent := range sents {
		need := len(sent)
		var group []runSeg
		for need > 0 && len(rest) > 0 {
			seg := rest[0]
			if len(seg.text) <= need {
				group = append(group, seg)
				need -= len(seg.text)
				rest = rest[1:]
				continue
			}
			// sentence boundary falls inside the segment, split it
			group = append(group, runSeg{text: seg.text[:need], f: seg.f})
			rest[0].text = seg.text[need:]
			need = 0
		}
		groups = append(groups, group)
	}
	if len(rest) > 0 {
		groups[len(groups)-1] = append(groups[len(groups)-1], rest...)
	}
	return groups
}

// appendParagraph writes one a:p with the block's paragraph properties and
// buffered runs.
func (d *Deck) appendParagraph(txBody *etree.Element, s *slide, opts compile.BlockOptions, segs []runSeg, sz int) {
	p := txBody.CreateElement("a:p")
	pPr := p.CreateElement("a:pPr")
	if opts.List != nil {
		lvl := opts.List.Depth - 1
		if lvl > 8 {
			lvl = 8
		}
		if lvl > 0 {
			pPr.CreateAttr("lvl", fmt.Sprintf("%d", lvl))
		}
		pPr.CreateAttr("marL", fmt.Sprintf("%d", 342900*(lvl+1)))
		pPr.CreateAttr("indent", "-342900")
	} else if opts.Quote {
		pPr.CreateAttr("marL", "457200")
	}
	if a := algn(opts.Align); a != "" {
		pPr.CreateAttr("algn", a)
	}
	switch {
	case opts.List != nil && opts.List.Ordered:
		num := pPr.CreateElement("a:buAutoNum")
		num.CreateAttr("type", "arabicPeriod")
	case opts.List != nil:
		chr := pPr.CreateElement("a:buChar")
		chr.CreateAttr("char", "•")
	default:
		pPr.CreateElement("a:buNone")
	}

	for _, seg := range segs {
		if seg.brk {
			p.CreateElement("a:br")
			continue
		}
		r := p.CreateElement("a:r")
		rPr := r.CreateElement("a:rPr")
		rPr.CreateAttr("lang", "en-US")
		rPr.CreateAttr("sz", fmt.Sprintf("%d", sz))
		d.applyRunFormat(rPr, seg.f, opts.Pre, s)
		r.CreateElement("a:t").SetText(seg.text)
	}
}

func (d *Deck) applyRunFormat(rPr *etree.Element, f compile.Format, pre bool, s *slide) {
	if f.Bold {
		rPr.CreateAttr("b", "1")
	}
	if f.Italic {
		rPr.CreateAttr("i", "1")
	}
	if f.Underline {
		rPr.CreateAttr("u", "sng")
	}
	if f.Strike {
		rPr.CreateAttr("strike", "sngStrike")
	}
	if f.Sub {
		rPr.CreateAttr("baseline", "-25000")
	} else if f.Sup {
		rPr.CreateAttr("baseline", "30000")
	}

	if f.Color != "" {
		fill := rPr.CreateElement("a:solidFill")
		clr := fill.CreateElement("a:srgbClr")
		clr.CreateAttr("val", f.Color)
	}
	if f.Highlight {
		hl := rPr.CreateElement("a:highlight")
		clr := hl.CreateElement("a:srgbClr")
		clr.CreateAttr("val", "FFFF00")
	}
	if f.Code || pre {
		latin := rPr.CreateElement("a:latin")
		latin.CreateAttr("typeface", d.cfg.MonoFont)
	}
	if f.Hyperlink != "" {
		link := rPr.CreateElement("a:hlinkClick")
		link.CreateAttr("r:id", s.hyperlinkID(f.Hyperlink))
	}
}

// preBoxHeight estimates the box height for a verbatim block, clamped to
// the body area.
func preBoxHeight(lines, fontSize int) int {
	line := fontSize * 12700 * 5 / 4
	h := lines*line + 2*45720
	if h > bodyHeight {
		h = bodyHeight
	}
	return h
}

func (d *Deck) table() *tableFrame {
	if len(d.tables) == 0 {
		return nil
	}
	return d.tables[len(d.tables)-1]
}

func (d *Deck) OpenTable(cols int) error {
	if cols <= 0 {
		return fmt.Errorf("table with %d columns", cols)
	}
	s := d.ensureSlide()

	frame := s.spTree.CreateElement("p:graphicFrame")
	nv := frame.CreateElement("p:nvGraphicFramePr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", fmt.Sprintf("%d", s.nextShapeID()))
	cNvPr.CreateAttr("name", "Table")
	nv.CreateElement("p:cNvGraphicFramePr").CreateElement("a:graphicFrameLocks").CreateAttr("noGrp", "1")
	nv.CreateElement("p:nvPr")

	xfrm := frame.CreateElement("p:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", fmt.Sprintf("%d", frameX))
	off.CreateAttr("y", fmt.Sprintf("%d", s.cursorY))
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", fmt.Sprintf("%d", bodyWidth))

	graphic := frame.CreateElement("a:graphic")
	data := graphic.CreateElement("a:graphicData")
	data.CreateAttr("uri", nsTableData)

	tbl := data.CreateElement("a:tbl")
	tblPr := tbl.CreateElement("a:tblPr")
	tblPr.CreateAttr("firstRow", "1")
	tblPr.CreateAttr("bandRow", "1")
	colW := bodyWidth / cols
	grid := tbl.CreateElement("a:tblGrid")
	for range cols {
		col := grid.CreateElement("a:gridCol")
		col.CreateAttr("w", fmt.Sprintf("%d", colW))
	}

	d.tables = append(d.tables, &tableFrame{tbl: tbl, ext: ext, y: s.cursorY})
	return nil
}

func (d *Deck) OpenRow() error {
	ts := d.table()
	if ts == nil {
		return fmt.Errorf("table row outside of a table")
	}
	ts.row = ts.tbl.CreateElement("a:tr")
	ts.row.CreateAttr("h", fmt.Sprintf("%d", tableRowH))
	ts.rows++
	return nil
}

func (d *Deck) OpenCell(span compile.CellSpan) error {
	ts := d.table()
	if ts == nil || ts.row == nil {
		return fmt.Errorf("table cell outside of a row")
	}
	tc := ts.row.CreateElement("a:tc")
	if span.Cols > 1 {
		tc.CreateAttr("gridSpan", fmt.Sprintf("%d", span.Cols))
	}
	if span.Rows > 1 {
		tc.CreateAttr("rowSpan", fmt.Sprintf("%d", span.Rows))
	}
	ts.cell = createCellBody(tc)
	return nil
}

func createCellBody(tc *etree.Element) *etree.Element {
	txBody := tc.CreateElement("a:txBody")
	txBody.CreateElement("a:bodyPr")
	txBody.CreateElement("a:lstStyle")
	return txBody
}

func (d *Deck) CloseCell() error {
	ts := d.table()
	if ts == nil || ts.cell == nil {
		return fmt.Errorf("no open table cell")
	}
	if ts.cell.SelectElement("a:p") == nil {
		ts.cell.CreateElement("a:p")
	}
	ts.cell.Parent().CreateElement("a:tcPr")
	ts.cell = nil
	return nil
}

// CoveredCell emits the explicit merge placeholder, every row carries the
// full declared column count.
func (d *Deck) CoveredCell(span compile.CellSpan) error {
	ts := d.table()
	if ts == nil || ts.row == nil {
		return fmt.Errorf("table cell outside of a row")
	}
	tc := ts.row.CreateElement("a:tc")
	if span.CoveredH {
		tc.CreateAttr("hMerge", "1")
	}
	if span.CoveredV {
		tc.CreateAttr("vMerge", "1")
	}
	txBody := createCellBody(tc)
	txBody.CreateElement("a:p")
	tc.CreateElement("a:tcPr")
	return nil
}

func (d *Deck) CloseRow() error {
	ts := d.table()
	if ts == nil {
		return fmt.Errorf("no open table")
	}
	ts.row = nil
	return nil
}

func (d *Deck) CloseTable() error {
	ts := d.table()
	if ts == nil {
		return fmt.Errorf("no open table")
	}
	d.tables = d.tables[:len(d.tables)-1]

	height := ts.rows * tableRowH
	ts.ext.CreateAttr("cy", fmt.Sprintf("%d", height))
	if s := d.cur(); s != nil && s.cursorY < ts.y+height+boxGap {
		s.cursorY = ts.y + height + boxGap
	}
	return nil
}

// PlaceImage puts the picture on the slide as its own shape fitted into
// the evidence box. Slide tables cannot hold pictures, one placed from
// inside a cell lands below the table frame.
func (d *Deck) PlaceImage(img *evidence.Image) error {
	s := d.ensureSlide()

	name := d.registerMedia(img.Data, img.Ext)
	relID := s.addRelationship(relTypeImage, "../"+name, false)

	cx := img.Width * emuPerPixel
	cy := img.Height * emuPerPixel
	if cx > bodyWidth {
		cy = cy * bodyWidth / cx
		cx = bodyWidth
	}
	if cy > pictureH {
		cx = cx * pictureH / cy
		cy = pictureH
	}
	x := frameX + (bodyWidth-cx)/2
	y := s.claimY(cy)

	label := img.Label
	if label == "" {
		label = fmt.Sprintf("image%d", len(d.media))
	}

	pic := s.spTree.CreateElement("p:pic")
	nv := pic.CreateElement("p:nvPicPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", fmt.Sprintf("%d", s.nextShapeID()))
	cNvPr.CreateAttr("name", label)
	nv.CreateElement("p:cNvPicPr").CreateElement("a:picLocks").CreateAttr("noChangeAspect", "1")
	nv.CreateElement("p:nvPr")

	fill := pic.CreateElement("p:blipFill")
	blip := fill.CreateElement("a:blip")
	blip.CreateAttr("r:embed", relID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("p:spPr")
	appendTransform(spPr, x, y, cx, cy)
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")

	return nil
}

func algn(a compile.Alignment) string {
	switch a {
	case compile.AlignLeft:
		return "l"
	case compile.AlignCenter:
		return "ctr"
	case compile.AlignRight:
		return "r"
	case compile.AlignJustify:
		return "just"
	}
	return ""
}
