package docx

import (
	"fmt"

	"github.com/beevik/etree"

	"rptc/config"
)

// Extra half points added on top of the body size per heading level.
var headingSizes = [6]int{14, 10, 6, 4, 2, 0}

// buildStyles produces word/styles.xml from the configured fonts. Style
// identifiers here are referenced from paragraph and run properties, keep
// them in sync with the sink.
func buildStyles(cfg *config.DocumentConfig) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("w:styles")
	root.CreateAttr("xmlns:w", nsW)

	bodySize := cfg.FontSize * 2 // half points

	defaults := root.CreateElement("w:docDefaults")
	rPrDefault := defaults.CreateElement("w:rPrDefault").CreateElement("w:rPr")
	setRunFonts(rPrDefault, cfg.BodyFont)
	setRunSize(rPrDefault, bodySize)
	defaults.CreateElement("w:pPrDefault")

	normal := appendStyle(root, "paragraph", "Normal", "Normal")
	normal.CreateAttr("w:default", "1")

	for lvl := 1; lvl <= 6; lvl++ {
		style := appendStyle(root, "paragraph", fmt.Sprintf("Heading%d", lvl), fmt.Sprintf("heading %d", lvl))
		basedOnNormal(style)
		pPr := style.CreateElement("w:pPr")
		pPr.CreateElement("w:keepNext")
		spacing := pPr.CreateElement("w:spacing")
		spacing.CreateAttr("w:before", "240")
		spacing.CreateAttr("w:after", "120")
		outline := pPr.CreateElement("w:outlineLvl")
		outline.CreateAttr("w:val", fmt.Sprintf("%d", lvl-1))
		rPr := style.CreateElement("w:rPr")
		rPr.CreateElement("w:b")
		setRunSize(rPr, bodySize+headingSizes[lvl-1])
	}

	list := appendStyle(root, "paragraph", "ListParagraph", "List Paragraph")
	basedOnNormal(list)
	listPPr := list.CreateElement("w:pPr")
	ind := listPPr.CreateElement("w:ind")
	ind.CreateAttr("w:left", "720")
	listPPr.CreateElement("w:contextualSpacing")

	quote := appendStyle(root, "paragraph", "Quote", "Quote")
	basedOnNormal(quote)
	quotePPr := quote.CreateElement("w:pPr")
	quoteInd := quotePPr.CreateElement("w:ind")
	quoteInd.CreateAttr("w:left", "720")
	quoteInd.CreateAttr("w:right", "720")
	quoteRPr := quote.CreateElement("w:rPr")
	quoteRPr.CreateElement("w:i")
	quoteColor := quoteRPr.CreateElement("w:color")
	quoteColor.CreateAttr("w:val", "404040")

	pre := appendStyle(root, "paragraph", "SourceCode", "Source Code")
	basedOnNormal(pre)
	prePPr := pre.CreateElement("w:pPr")
	shd := prePPr.CreateElement("w:shd")
	shd.CreateAttr("w:val", "clear")
	shd.CreateAttr("w:color", "auto")
	shd.CreateAttr("w:fill", "F2F2F2")
	preSpacing := prePPr.CreateElement("w:spacing")
	preSpacing.CreateAttr("w:after", "0")
	preRPr := pre.CreateElement("w:rPr")
	setRunFonts(preRPr, cfg.MonoFont)

	link := appendStyle(root, "character", "Hyperlink", "Hyperlink")
	linkRPr := link.CreateElement("w:rPr")
	linkColor := linkRPr.CreateElement("w:color")
	linkColor.CreateAttr("w:val", "0563C1")
	linkU := linkRPr.CreateElement("w:u")
	linkU.CreateAttr("w:val", "single")

	return doc
}

func appendStyle(parent *etree.Element, styleType, id, name string) *etree.Element {
	style := parent.CreateElement("w:style")
	style.CreateAttr("w:type", styleType)
	style.CreateAttr("w:styleId", id)
	nameEl := style.CreateElement("w:name")
	nameEl.CreateAttr("w:val", name)
	return style
}

func basedOnNormal(style *etree.Element) {
	based := style.CreateElement("w:basedOn")
	based.CreateAttr("w:val", "Normal")
	next := style.CreateElement("w:next")
	next.CreateAttr("w:val", "Normal")
}

func setRunFonts(rPr *etree.Element, font string) {
	fonts := rPr.CreateElement("w:rFonts")
	fonts.CreateAttr("w:ascii", font)
	fonts.CreateAttr("w:hAnsi", font)
	fonts.CreateAttr("w:cs", font)
}

func setRunSize(rPr *etree.Element, halfPoints int) {
	size := rPr.CreateElement("w:sz")
	size.CreateAttr("w:val", fmt.Sprintf("%d", halfPoints))
	sizeCs := rPr.CreateElement("w:szCs")
	sizeCs.CreateAttr("w:val", fmt.Sprintf("%d", halfPoints))
}
