// Package pptx renders compiled markup into a PresentationML package. A
// Deck owns the slide parts, every h1 block opens a fresh slide with the
// heading as its title and everything that follows lands on that slide
// until the next h1.
package pptx

import (
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"rptc/config"
	"rptc/content/text"
	"rptc/convert/compile"
)

const (
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	nsPkgRels     = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsContentType = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsTableData   = "http://schemas.openxmlformats.org/drawingml/2006/table"

	relTypeDoc         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeCore        = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relTypeApp         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	relTypeSlide       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeSlideMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	relTypeSlideLayout = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relTypeTheme       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	relTypeHyperlink   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	relTypeImage       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// Slide geometry in EMU, 16:9.
const (
	slideWidth  = 12192000
	slideHeight = 6858000

	frameX      = 831850
	titleY      = 365125
	titleHeight = 1325563
	bodyY       = 1825625
	bodyWidth   = 10515600
	bodyHeight  = 4351338

	boxGap    = 228600  // between stacked floating frames
	tableRowH = 370840  // default table row height
	pictureH  = 3429000 // evidence picture box height limit

	emuPerPixel = 9525 // 96 dpi
)

// Deck is one PresentationML package under construction. It is owned by a
// single conversion and is not safe for concurrent use.
type Deck struct {
	cfg      *config.DocumentConfig
	log      *zap.Logger
	splitter *text.Splitter

	slides []*slide

	media     []mediaPart
	mediaExts map[string]bool

	// sink state
	para   *paragraph
	tables []*tableFrame
}

type mediaPart struct {
	name string // path inside the ppt/ directory
	data []byte
}

// paragraph buffers one open block until CloseBlock decides where and how
// its runs materialize.
type paragraph struct {
	opts compile.BlockOptions
	segs []runSeg
}

type runSeg struct {
	text string
	f    compile.Format
	brk  bool // line break marker, text is empty
}

type tableFrame struct {
	tbl  *etree.Element
	ext  *etree.Element // frame extent, height set when the table closes
	row  *etree.Element
	cell *etree.Element // open cell txBody
	rows int
	y    int // vertical offset the frame was placed at
}

type slide struct {
	doc    *etree.Document
	spTree *etree.Element

	rels     *etree.Document
	relsRoot *etree.Element
	relNext  int
	relHrefs map[string]string

	title        *etree.Element // title box txBody
	titlePending bool
	body         *etree.Element // body box txBody, created on first use
	shapeID      int
	cursorY      int // next free vertical position for floating frames
}

// NewDeck builds an empty deck. The splitter may be nil, body paragraphs
// are then kept whole.
func NewDeck(cfg *config.DocumentConfig, splitter *text.Splitter, log *zap.Logger) *Deck {
	if log == nil {
		log = zap.NewNop()
	}
	return &Deck{
		cfg:      cfg,
		log:      log,
		splitter: splitter,
		mediaExts: map[string]bool{
			"png": true,
		},
	}
}

// Slides reports how many slides the deck holds.
func (d *Deck) Slides() int {
	return len(d.slides)
}

func (d *Deck) cur() *slide {
	if len(d.slides) == 0 {
		return nil
	}
	return d.slides[len(d.slides)-1]
}

// ensureSlide makes sure content emitted before any h1 still has a slide
// to land on.
func (d *Deck) ensureSlide() *slide {
	if s := d.cur(); s != nil {
		return s
	}
	return d.newSlide(false)
}

func (d *Deck) newSlide(withTitle bool) *slide {
	s := &slide{
		relNext:  1,
		relHrefs: make(map[string]string),
		shapeID:  1, // 1 belongs to the group shape
		cursorY:  bodyY,
	}

	s.doc = etree.NewDocument()
	s.doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	sld := s.doc.CreateElement("p:sld")
	sld.CreateAttr("xmlns:a", nsA)
	sld.CreateAttr("xmlns:r", nsR)
	sld.CreateAttr("xmlns:p", nsP)
	cSld := sld.CreateElement("p:cSld")
	s.spTree = createShapeTree(cSld)
	sld.CreateElement("p:clrMapOvr").CreateElement("a:masterClrMapping")

	s.rels = etree.NewDocument()
	s.rels.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	s.relsRoot = s.rels.CreateElement("Relationships")
	s.relsRoot.CreateAttr("xmlns", nsPkgRels)
	s.addRelationship(relTypeSlideLayout, "../slideLayouts/slideLayout1.xml", false)

	if withTitle {
		s.title = s.addTextBox("Title", frameX, titleY, bodyWidth, titleHeight)
		s.titlePending = true
	}

	d.slides = append(d.slides, s)
	return s
}

// createShapeTree emits the fixed preamble every shape tree starts with.
func createShapeTree(cSld *etree.Element) *etree.Element {
	spTree := cSld.CreateElement("p:spTree")
	nv := spTree.CreateElement("p:nvGrpSpPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", "1")
	cNvPr.CreateAttr("name", "")
	nv.CreateElement("p:cNvGrpSpPr")
	nv.CreateElement("p:nvPr")
	grpSpPr := spTree.CreateElement("p:grpSpPr")
	xfrm := grpSpPr.CreateElement("a:xfrm")
	for _, tag := range []string{"a:off", "a:chOff"} {
		el := xfrm.CreateElement(tag)
		el.CreateAttr("x", "0")
		el.CreateAttr("y", "0")
	}
	for _, tag := range []string{"a:ext", "a:chExt"} {
		el := xfrm.CreateElement(tag)
		el.CreateAttr("cx", "0")
		el.CreateAttr("cy", "0")
	}
	return spTree
}

func (s *slide) nextShapeID() int {
	s.shapeID++
	return s.shapeID
}

func (s *slide) addRelationship(relType, target string, external bool) string {
	id := fmt.Sprintf("rId%d", s.relNext)
	s.relNext++
	rel := s.relsRoot.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	if external {
		rel.CreateAttr("TargetMode", "External")
	}
	return id
}

// hyperlinkID returns the slide relationship for a link target, one per
// distinct target.
func (s *slide) hyperlinkID(href string) string {
	if id, ok := s.relHrefs[href]; ok {
		return id
	}
	id := s.addRelationship(relTypeHyperlink, href, true)
	s.relHrefs[href] = id
	return id
}

// addTextBox appends an empty text box shape and returns its text body.
// The caller must append at least one paragraph to it.
func (s *slide) addTextBox(name string, x, y, cx, cy int) *etree.Element {
	sp := s.spTree.CreateElement("p:sp")
	nv := sp.CreateElement("p:nvSpPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", fmt.Sprintf("%d", s.nextShapeID()))
	cNvPr.CreateAttr("name", name)
	cNvSpPr := nv.CreateElement("p:cNvSpPr")
	cNvSpPr.CreateAttr("txBox", "1")
	nv.CreateElement("p:nvPr")

	spPr := sp.CreateElement("p:spPr")
	appendTransform(spPr, x, y, cx, cy)
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")

	txBody := sp.CreateElement("p:txBody")
	bodyPr := txBody.CreateElement("a:bodyPr")
	bodyPr.CreateAttr("wrap", "square")
	bodyPr.CreateAttr("rtlCol", "0")
	txBody.CreateElement("a:lstStyle")
	return txBody
}

// ensureBody returns the body box of the slide, creating it on first use.
func (s *slide) ensureBody() *etree.Element {
	if s.body == nil {
		s.body = s.addTextBox("Body", frameX, bodyY, bodyWidth, bodyHeight)
	}
	return s.body
}

// claimY reserves vertical space for a floating frame and returns its top
// position.
func (s *slide) claimY(height int) int {
	y := s.cursorY
	s.cursorY += height + boxGap
	return y
}

func appendTransform(parent *etree.Element, x, y, cx, cy int) *etree.Element {
	xfrm := parent.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", fmt.Sprintf("%d", x))
	off.CreateAttr("y", fmt.Sprintf("%d", y))
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", fmt.Sprintf("%d", cx))
	ext.CreateAttr("cy", fmt.Sprintf("%d", cy))
	return ext
}

// registerMedia stores the payload and returns its part name under ppt/.
func (d *Deck) registerMedia(data []byte, ext string) string {
	name := fmt.Sprintf("media/image%d.%s", len(d.media)+1, ext)
	d.media = append(d.media, mediaPart{name: name, data: data})
	d.mediaExts[ext] = true
	return name
}
