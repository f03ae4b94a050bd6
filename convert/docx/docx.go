// Package docx renders compiled markup into a WordprocessingML package.
// Document implements the compiler sink, paragraphs and runs land in the
// main document part while styles, numbering, relationships and media are
// collected on the side and written out together.
package docx

import (
	"fmt"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"rptc/config"
)

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	nsPkgRels     = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsContentType = "http://schemas.openxmlformats.org/package/2006/content-types"

	relTypeDoc       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeCore      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relTypeApp       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	relTypeStyles    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relTypeNumbering = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering"
	relTypeHyperlink = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	relTypeImage     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// Page geometry in twips: Letter with one inch margins.
const (
	pageWidth    = 12240
	pageHeight   = 15840
	pageMargin   = 1440
	headerMargin = 720
)

const (
	emuPerPixel = 9525 // 96 dpi
	emuPerTwip  = 635
)

// abstract numbering definitions referenced by allocated lists
const (
	abstractBullet  = 0
	abstractDecimal = 1
)

// Document is one WordprocessingML package under construction. It is owned
// by a single conversion and is not safe for concurrent use.
type Document struct {
	cfg *config.DocumentConfig
	log *zap.Logger

	doc  *etree.Document // word/document.xml
	body *etree.Element

	rels     *etree.Document // word/_rels/document.xml.rels
	relsRoot *etree.Element
	relNext  int
	relHrefs map[string]string // hyperlink target to relationship id

	numbering     *etree.Document // word/numbering.xml
	numberingRoot *etree.Element
	nums          map[int]bool // registered numbering identities

	media     []mediaPart
	mediaExts map[string]bool
	drawings  int

	// sink state
	para       *etree.Element
	containers []*etree.Element
	tables     []*tableState
}

type mediaPart struct {
	name string // path inside the word/ directory
	data []byte
}

type tableState struct {
	tbl      *etree.Element
	row      *etree.Element
	colWidth int
}

// NewDocument builds an empty package skeleton ready for compilation.
func NewDocument(cfg *config.DocumentConfig, log *zap.Logger) *Document {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Document{
		cfg:      cfg,
		log:      log,
		relNext:  1,
		relHrefs: make(map[string]string),
		nums:     make(map[int]bool),
		mediaExts: map[string]bool{
			"png": true, // not_found placeholders and png evidence are the common case
		},
	}

	d.doc = etree.NewDocument()
	d.doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := d.doc.CreateElement("w:document")
	root.CreateAttr("xmlns:w", nsW)
	root.CreateAttr("xmlns:r", nsR)
	root.CreateAttr("xmlns:wp", nsWP)
	root.CreateAttr("xmlns:a", nsA)
	root.CreateAttr("xmlns:pic", nsPic)
	d.body = root.CreateElement("w:body")
	d.containers = []*etree.Element{d.body}

	d.rels = etree.NewDocument()
	d.rels.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	d.relsRoot = d.rels.CreateElement("Relationships")
	d.relsRoot.CreateAttr("xmlns", nsPkgRels)
	d.addRelationship(relTypeStyles, "styles.xml", false)
	d.addRelationship(relTypeNumbering, "numbering.xml", false)

	d.numbering = etree.NewDocument()
	d.numbering.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	d.numberingRoot = d.numbering.CreateElement("w:numbering")
	d.numberingRoot.CreateAttr("xmlns:w", nsW)
	appendAbstractNum(d.numberingRoot, abstractBullet, false)
	appendAbstractNum(d.numberingRoot, abstractDecimal, true)

	return d
}

// addRelationship appends one relationship to the document part and returns
// its identifier.
func (d *Document) addRelationship(relType, target string, external bool) string {
	id := fmt.Sprintf("rId%d", d.relNext)
	d.relNext++
	rel := d.relsRoot.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	if external {
		rel.CreateAttr("TargetMode", "External")
	}
	return id
}

// hyperlinkID returns the relationship id for a link target, reusing one
// relationship per distinct target.
func (d *Document) hyperlinkID(href string) string {
	if id, ok := d.relHrefs[href]; ok {
		return id
	}
	id := d.addRelationship(relTypeHyperlink, href, true)
	d.relHrefs[href] = id
	return id
}

// registerList makes sure a numbering instance exists for the identity. The
// first registration decides whether the instance renders bullets or
// numbers, nested lists of the other kind keep their ancestor's instance.
func (d *Document) registerList(identity int, ordered bool) {
	if d.nums[identity] {
		return
	}
	d.nums[identity] = true
	num := d.numberingRoot.CreateElement("w:num")
	num.CreateAttr("w:numId", fmt.Sprintf("%d", identity))
	abstract := num.CreateElement("w:abstractNumId")
	if ordered {
		abstract.CreateAttr("w:val", fmt.Sprintf("%d", abstractDecimal))
	} else {
		abstract.CreateAttr("w:val", fmt.Sprintf("%d", abstractBullet))
	}
}

// appendAbstractNum emits one nine level abstract definition, bullets or
// decimal numbering with growing indents.
func appendAbstractNum(parent *etree.Element, id int, ordered bool) {
	abstract := parent.CreateElement("w:abstractNum")
	abstract.CreateAttr("w:abstractNumId", fmt.Sprintf("%d", id))
	mlt := abstract.CreateElement("w:multiLevelType")
	mlt.CreateAttr("w:val", "multilevel")
	for lvl := range 9 {
		level := abstract.CreateElement("w:lvl")
		level.CreateAttr("w:ilvl", fmt.Sprintf("%d", lvl))
		start := level.CreateElement("w:start")
		start.CreateAttr("w:val", "1")
		numFmt := level.CreateElement("w:numFmt")
		text := level.CreateElement("w:lvlText")
		if ordered {
			numFmt.CreateAttr("w:val", "decimal")
			text.CreateAttr("w:val", fmt.Sprintf("%%%d.", lvl+1))
		} else {
			numFmt.CreateAttr("w:val", "bullet")
			text.CreateAttr("w:val", "•")
		}
		just := level.CreateElement("w:lvlJc")
		just.CreateAttr("w:val", "left")
		pPr := level.CreateElement("w:pPr")
		ind := pPr.CreateElement("w:ind")
		ind.CreateAttr("w:left", fmt.Sprintf("%d", 720*(lvl+1)))
		ind.CreateAttr("w:hanging", "360")
		if !ordered {
			rPr := level.CreateElement("w:rPr")
			fonts := rPr.CreateElement("w:rFonts")
			fonts.CreateAttr("w:ascii", "Symbol")
			fonts.CreateAttr("w:hAnsi", "Symbol")
			fonts.CreateAttr("w:hint", "default")
		}
	}
}

// finalize appends the section properties and keeps the body well formed
// when content ends with a table.
func (d *Document) finalize() {
	if children := d.body.ChildElements(); len(children) > 0 && children[len(children)-1].Tag == "tbl" {
		d.body.CreateElement("w:p")
	}
	sect := d.body.CreateElement("w:sectPr")
	size := sect.CreateElement("w:pgSz")
	size.CreateAttr("w:w", fmt.Sprintf("%d", pageWidth))
	size.CreateAttr("w:h", fmt.Sprintf("%d", pageHeight))
	margins := sect.CreateElement("w:pgMar")
	margins.CreateAttr("w:top", fmt.Sprintf("%d", pageMargin))
	margins.CreateAttr("w:right", fmt.Sprintf("%d", pageMargin))
	margins.CreateAttr("w:bottom", fmt.Sprintf("%d", pageMargin))
	margins.CreateAttr("w:left", fmt.Sprintf("%d", pageMargin))
	margins.CreateAttr("w:header", fmt.Sprintf("%d", headerMargin))
	margins.CreateAttr("w:footer", fmt.Sprintf("%d", headerMargin))
	margins.CreateAttr("w:gutter", "0")
}

// contentWidth is the printable width available to pictures and tables.
func contentWidth() int {
	return pageWidth - 2*pageMargin
}
