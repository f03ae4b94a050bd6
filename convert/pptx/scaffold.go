package pptx

import (
	"fmt"

	"github.com/beevik/etree"

	"rptc/config"
)

// Fixed identifiers PowerPoint expects for the single master and layout.
const (
	masterID    = 2147483648
	layoutID    = 2147483649
	slideIDBase = 256
)

func newRelationships() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", nsPkgRels)
	return doc, root
}

func addRel(root *etree.Element, id, relType, target string) {
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
}

func buildPresentation(slideCount int) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	pres := doc.CreateElement("p:presentation")
	pres.CreateAttr("xmlns:a", nsA)
	pres.CreateAttr("xmlns:r", nsR)
	pres.CreateAttr("xmlns:p", nsP)

	masters := pres.CreateElement("p:sldMasterIdLst")
	master := masters.CreateElement("p:sldMasterId")
	master.CreateAttr("id", fmt.Sprintf("%d", masterID))
	master.CreateAttr("r:id", "rId1")

	slides := pres.CreateElement("p:sldIdLst")
	for i := range slideCount {
		sld := slides.CreateElement("p:sldId")
		sld.CreateAttr("id", fmt.Sprintf("%d", slideIDBase+i))
		sld.CreateAttr("r:id", fmt.Sprintf("rId%d", 2+i))
	}

	size := pres.CreateElement("p:sldSz")
	size.CreateAttr("cx", fmt.Sprintf("%d", slideWidth))
	size.CreateAttr("cy", fmt.Sprintf("%d", slideHeight))
	notes := pres.CreateElement("p:notesSz")
	notes.CreateAttr("cx", fmt.Sprintf("%d", slideHeight))
	notes.CreateAttr("cy", "9144000")
	return doc
}

func buildPresentationRels(slideCount int) *etree.Document {
	doc, root := newRelationships()
	addRel(root, "rId1", relTypeSlideMaster, "slideMasters/slideMaster1.xml")
	for i := range slideCount {
		addRel(root, fmt.Sprintf("rId%d", 2+i), relTypeSlide, fmt.Sprintf("slides/slide%d.xml", i+1))
	}
	return doc
}

func buildSlideMaster() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	master := doc.CreateElement("p:sldMaster")
	master.CreateAttr("xmlns:a", nsA)
	master.CreateAttr("xmlns:r", nsR)
	master.CreateAttr("xmlns:p", nsP)

	cSld := master.CreateElement("p:cSld")
	createShapeTree(cSld)

	clrMap := master.CreateElement("p:clrMap")
	for _, m := range [][2]string{
		{"bg1", "lt1"}, {"tx1", "dk1"}, {"bg2", "lt2"}, {"tx2", "dk2"},
		{"accent1", "accent1"}, {"accent2", "accent2"}, {"accent3", "accent3"},
		{"accent4", "accent4"}, {"accent5", "accent5"}, {"accent6", "accent6"},
		{"hlink", "hlink"}, {"folHlink", "folHlink"},
	} {
		clrMap.CreateAttr(m[0], m[1])
	}

	layouts := master.CreateElement("p:sldLayoutIdLst")
	layout := layouts.CreateElement("p:sldLayoutId")
	layout.CreateAttr("id", fmt.Sprintf("%d", layoutID))
	layout.CreateAttr("r:id", "rId1")

	styles := master.CreateElement("p:txStyles")
	styles.CreateElement("p:titleStyle")
	styles.CreateElement("p:bodyStyle")
	styles.CreateElement("p:otherStyle")
	return doc
}

func buildSlideMasterRels() *etree.Document {
	doc, root := newRelationships()
	addRel(root, "rId1", relTypeSlideLayout, "../slideLayouts/slideLayout1.xml")
	addRel(root, "rId2", relTypeTheme, "../theme/theme1.xml")
	return doc
}

func buildSlideLayout() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	layout := doc.CreateElement("p:sldLayout")
	layout.CreateAttr("xmlns:a", nsA)
	layout.CreateAttr("xmlns:r", nsR)
	layout.CreateAttr("xmlns:p", nsP)
	layout.CreateAttr("type", "blank")

	cSld := layout.CreateElement("p:cSld")
	createShapeTree(cSld)
	layout.CreateElement("p:clrMapOvr").CreateElement("a:masterClrMapping")
	return doc
}

func buildSlideLayoutRels() *etree.Document {
	doc, root := newRelationships()
	addRel(root, "rId1", relTypeSlideMaster, "../slideMasters/slideMaster1.xml")
	return doc
}

func buildTheme(cfg *config.DocumentConfig) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	theme := doc.CreateElement("a:theme")
	theme.CreateAttr("xmlns:a", nsA)
	theme.CreateAttr("name", "Office Theme")
	els := theme.CreateElement("a:themeElements")

	clrs := els.CreateElement("a:clrScheme")
	clrs.CreateAttr("name", "Office")
	dk1 := clrs.CreateElement("a:dk1").CreateElement("a:sysClr")
	dk1.CreateAttr("val", "windowText")
	dk1.CreateAttr("lastClr", "000000")
	lt1 := clrs.CreateElement("a:lt1").CreateElement("a:sysClr")
	lt1.CreateAttr("val", "window")
	lt1.CreateAttr("lastClr", "FFFFFF")
	for _, c := range [][2]string{
		{"dk2", "44546A"}, {"lt2", "E7E6E6"},
		{"accent1", "4472C4"}, {"accent2", "ED7D31"}, {"accent3", "A5A5A5"},
		{"accent4", "FFC000"}, {"accent5", "5B9BD5"}, {"accent6", "70AD47"},
		{"hlink", "0563C1"}, {"folHlink", "954F72"},
	} {
		clrs.CreateElement("a:" + c[0]).CreateElement("a:srgbClr").CreateAttr("val", c[1])
	}

	fonts := els.CreateElement("a:fontScheme")
	fonts.CreateAttr("name", "Office")
	major := fonts.CreateElement("a:majorFont")
	major.CreateElement("a:latin").CreateAttr("typeface", "Calibri Light")
	major.CreateElement("a:ea").CreateAttr("typeface", "")
	major.CreateElement("a:cs").CreateAttr("typeface", "")
	minor := fonts.CreateElement("a:minorFont")
	minor.CreateElement("a:latin").CreateAttr("typeface", cfg.BodyFont)
	minor.CreateElement("a:ea").CreateAttr("typeface", "")
	minor.CreateElement("a:cs").CreateAttr("typeface", "")

	scheme := els.CreateElement("a:fmtScheme")
	scheme.CreateAttr("name", "Office")
	fills := scheme.CreateElement("a:fillStyleLst")
	for range 3 {
		fills.CreateElement("a:solidFill").CreateElement("a:schemeClr").CreateAttr("val", "phClr")
	}
	lns := scheme.CreateElement("a:lnStyleLst")
	for _, w := range []string{"6350", "12700", "19050"} {
		ln := lns.CreateElement("a:ln")
		ln.CreateAttr("w", w)
		ln.CreateElement("a:solidFill").CreateElement("a:schemeClr").CreateAttr("val", "phClr")
	}
	effects := scheme.CreateElement("a:effectStyleLst")
	for range 3 {
		effects.CreateElement("a:effectStyle").CreateElement("a:effectLst")
	}
	bgs := scheme.CreateElement("a:bgFillStyleLst")
	for range 3 {
		bgs.CreateElement("a:solidFill").CreateElement("a:schemeClr").CreateAttr("val", "phClr")
	}
	return doc
}
