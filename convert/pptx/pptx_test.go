package pptx

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"rptc/config"
	"rptc/content"
	"rptc/content/text"
	"rptc/convert/compile"
	"rptc/evidence"
	"rptc/markup"
)

func setupTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))
}

func testConfig(t *testing.T) *config.DocumentConfig {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return &cfg.Document
}

func parseMarkup(t *testing.T, src string) *markup.Document {
	t.Helper()
	log := setupTestLogger(t)
	doc, err := markup.Parse(strings.NewReader(src), "test.html", log)
	if err != nil {
		t.Fatalf("parse markup: %v", err)
	}
	markup.Normalize(doc, log)
	return doc
}

func compileInto(t *testing.T, src string) *Deck {
	t.Helper()
	log := setupTestLogger(t)
	d := NewDeck(testConfig(t), nil, log)
	if _, err := compile.Compile(parseMarkup(t, src), d, nil, log); err != nil {
		t.Fatalf("compile: %v", err)
	}
	return d
}

func slideRunWithText(s *slide, text string) *etree.Element {
	for _, r := range s.doc.FindElements("//a:r") {
		if tt := r.SelectElement("a:t"); tt != nil && tt.Text() == text {
			return r
		}
	}
	return nil
}

func shapeNamed(s *slide, name string) *etree.Element {
	for _, sp := range s.doc.FindElements("//p:sp") {
		if pr := sp.FindElement("p:nvSpPr/p:cNvPr"); pr != nil && pr.SelectAttrValue("name", "") == name {
			return sp
		}
	}
	return nil
}

func paragraphTexts(el *etree.Element) []string {
	var out []string
	for _, p := range el.FindElements(".//a:p") {
		var b strings.Builder
		for _, tt := range p.FindElements(".//a:t") {
			b.WriteString(tt.Text())
		}
		out = append(out, b.String())
	}
	return out
}

func TestSlidePerHeading(t *testing.T) {
	d := compileInto(t, `<p>intro</p><h1>One</h1><p>alpha</p>`)

	if d.Slides() != 2 {
		t.Fatalf("Slides() = %d, want 2", d.Slides())
	}
	// content before the first heading lands on an untitled slide
	if shapeNamed(d.slides[0], "Title") != nil {
		t.Error("leading slide must not carry a title shape")
	}
	if slideRunWithText(d.slides[0], "intro") == nil {
		t.Error("leading content missing from the first slide")
	}

	title := shapeNamed(d.slides[1], "Title")
	if title == nil {
		t.Fatal("heading slide missing title shape")
	}
	r := slideRunWithText(d.slides[1], "One")
	if r == nil {
		t.Fatal("heading text missing from the second slide")
	}
	rPr := r.SelectElement("a:rPr")
	if rPr == nil || rPr.SelectAttrValue("sz", "") != "3200" {
		t.Error("title run does not use the title font size")
	}

	body := slideRunWithText(d.slides[1], "alpha")
	if body == nil {
		t.Fatal("body text missing from the second slide")
	}
	if rPr := body.SelectElement("a:rPr"); rPr == nil || rPr.SelectAttrValue("sz", "") != "1800" {
		t.Error("body run does not use the body font size")
	}
	if slideRunWithText(d.slides[0], "alpha") != nil {
		t.Error("second slide content leaked into the first")
	}
}

func TestSentenceBullets(t *testing.T) {
	log := setupTestLogger(t)
	d := NewDeck(testConfig(t), text.NewSplitter(log), log)
	src := "<p>First sentence ends <b>here. Bold</b> continues.</p>" +
		"<ul><li>One. Two.</li></ul>" +
		"<p>Alpha. Beta.<br/>tail</p>"
	if _, err := compile.Compile(parseMarkup(t, src), d, nil, log); err != nil {
		t.Fatalf("compile: %v", err)
	}

	body := shapeNamed(d.slides[0], "Body")
	if body == nil {
		t.Fatal("slide missing body shape")
	}
	texts := paragraphTexts(body)
	want := []string{"First sentence ends here. ", "Bold continues.", "One. Two.", "Alpha. Beta.tail"}
	if len(texts) != len(want) {
		t.Fatalf("paragraphs = %q, want %q", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, texts[i], want[i])
		}
	}

	// formatting survives a split inside a run
	r := slideRunWithText(d.slides[0], "Bold")
	if r == nil {
		t.Fatal("split run missing")
	}
	if rPr := r.SelectElement("a:rPr"); rPr == nil || rPr.SelectAttrValue("b", "") != "1" {
		t.Error("split run lost bold formatting")
	}

	// explicit line breaks keep the block whole
	ps := body.FindElements(".//a:p")
	if ps[3].FindElement(".//a:br") == nil {
		t.Error("line break paragraph missing a:br")
	}
}

func TestListBullets(t *testing.T) {
	d := compileInto(t, `<p>plain</p><ul><li>first<ol><li>inner</li></ol></li></ul>`)
	s := d.slides[0]

	first := slideRunWithText(s, "first")
	if first == nil {
		t.Fatal("list item text missing")
	}
	pPr := first.Parent().SelectElement("a:pPr")
	if pPr == nil {
		t.Fatal("list paragraph missing properties")
	}
	if chr := pPr.SelectElement("a:buChar"); chr == nil || chr.SelectAttrValue("char", "") != "•" {
		t.Error("unordered item missing bullet glyph")
	}
	if got := pPr.SelectAttrValue("lvl", ""); got != "" {
		t.Errorf("top level item has lvl = %s", got)
	}

	inner := slideRunWithText(s, "inner")
	if inner == nil {
		t.Fatal("nested item text missing")
	}
	pPr = inner.Parent().SelectElement("a:pPr")
	if pPr == nil {
		t.Fatal("nested paragraph missing properties")
	}
	if num := pPr.SelectElement("a:buAutoNum"); num == nil || num.SelectAttrValue("type", "") != "arabicPeriod" {
		t.Error("ordered item missing automatic numbering")
	}
	if got := pPr.SelectAttrValue("lvl", ""); got != "1" {
		t.Errorf("nested item lvl = %s, want 1", got)
	}

	plain := slideRunWithText(s, "plain")
	if plain == nil {
		t.Fatal("plain paragraph text missing")
	}
	if pPr := plain.Parent().SelectElement("a:pPr"); pPr == nil || pPr.SelectElement("a:buNone") == nil {
		t.Error("plain paragraph must suppress inherited bullets")
	}
}

func TestTableMergedCells(t *testing.T) {
	d := compileInto(t, `<table><tr><td colspan="2" rowspan="2">a</td><td>b</td></tr><tr><td>c</td></tr></table>`)
	s := d.slides[0]

	cols := s.doc.FindElements("//a:tblGrid/a:gridCol")
	if len(cols) != 3 {
		t.Fatalf("grid columns = %d, want 3", len(cols))
	}
	if got := cols[0].SelectAttrValue("w", ""); got != "3505200" {
		t.Errorf("grid column width = %s", got)
	}

	rows := s.doc.FindElements("//a:tr")
	if len(rows) != 2 {
		t.Fatalf("table rows = %d, want 2", len(rows))
	}
	// every row carries the full declared column count
	for i, row := range rows {
		if tcs := row.SelectElements("a:tc"); len(tcs) != 3 {
			t.Fatalf("row %d cells = %d, want 3", i, len(tcs))
		}
	}

	origin := rows[0].SelectElements("a:tc")[0]
	if origin.SelectAttrValue("gridSpan", "") != "2" || origin.SelectAttrValue("rowSpan", "") != "2" {
		t.Error("merge origin missing span attributes")
	}

	right := rows[0].SelectElements("a:tc")[1]
	if right.SelectAttrValue("hMerge", "") != "1" || right.SelectAttrValue("vMerge", "") != "" {
		t.Error("horizontally covered cell must carry hMerge only")
	}
	below := rows[1].SelectElements("a:tc")[0]
	if below.SelectAttrValue("vMerge", "") != "1" || below.SelectAttrValue("hMerge", "") != "" {
		t.Error("vertically covered cell must carry vMerge only")
	}
	corner := rows[1].SelectElements("a:tc")[1]
	if corner.SelectAttrValue("hMerge", "") != "1" || corner.SelectAttrValue("vMerge", "") != "1" {
		t.Error("doubly covered cell must carry both merge flags")
	}

	// covered cells still hold an empty paragraph and cell properties
	for _, tc := range []*etree.Element{right, below, corner} {
		if tc.FindElement("a:txBody/a:p") == nil {
			t.Error("covered cell missing placeholder paragraph")
		}
		if tc.SelectElement("a:tcPr") == nil {
			t.Error("covered cell missing cell properties")
		}
	}

	ext := s.doc.FindElement("//p:graphicFrame/p:xfrm/a:ext")
	if ext == nil {
		t.Fatal("table frame missing extent")
	}
	if got := ext.SelectAttrValue("cy", ""); got != "741680" {
		t.Errorf("frame height = %s, want two row heights", got)
	}
}

func TestTableFramesStack(t *testing.T) {
	d := compileInto(t, `<table><tr><td>a</td></tr></table><table><tr><td>b</td></tr></table>`)
	s := d.slides[0]

	offs := s.doc.FindElements("//p:graphicFrame/p:xfrm/a:off")
	if len(offs) != 2 {
		t.Fatalf("table frames = %d, want 2", len(offs))
	}
	if got := offs[0].SelectAttrValue("y", ""); got != "1825625" {
		t.Errorf("first frame y = %s", got)
	}
	if got := offs[1].SelectAttrValue("y", ""); got != "2425065" {
		t.Errorf("second frame y = %s, want below the first", got)
	}
}

func TestPreBox(t *testing.T) {
	d := compileInto(t, "<p>lead</p><pre>x := 1\ny := 2</pre>")
	s := d.slides[0]

	box := shapeNamed(s, "Preformatted")
	if box == nil {
		t.Fatal("verbatim block missing its own shape")
	}
	if box.FindElement(".//a:br") == nil {
		t.Error("verbatim block lost its line break")
	}
	r := slideRunWithText(s, "x := 1")
	if r == nil {
		t.Fatal("verbatim run missing")
	}
	latin := r.FindElement("a:rPr/a:latin")
	if latin == nil || latin.SelectAttrValue("typeface", "") != "Consolas" {
		t.Error("verbatim run does not use the monospace font")
	}
}

func TestHyperlinks(t *testing.T) {
	d := compileInto(t, `<p><a href="https://example.com/a">go</a> and <a href="https://example.com/a">again</a></p>`)
	s := d.slides[0]

	links := s.doc.FindElements("//a:hlinkClick")
	if len(links) != 2 {
		t.Fatalf("hyperlink runs = %d, want 2", len(links))
	}
	if links[0].SelectAttrValue("r:id", "") != links[1].SelectAttrValue("r:id", "") {
		t.Error("same target must reuse one relationship")
	}

	count := 0
	for _, rel := range s.rels.FindElements("//Relationship") {
		if rel.SelectAttrValue("Target", "") != "https://example.com/a" {
			continue
		}
		count++
		if rel.SelectAttrValue("TargetMode", "") != "External" {
			t.Error("hyperlink relationship must be external")
		}
	}
	if count != 1 {
		t.Errorf("hyperlink relationships = %d, want 1", count)
	}
}

func testImage(t *testing.T, w, h int) *evidence.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return &evidence.Image{Label: "shot", Data: buf.Bytes(), MimeType: "image/png", Ext: "png", Width: w, Height: h}
}

func TestPlaceImage(t *testing.T) {
	log := setupTestLogger(t)
	d := NewDeck(testConfig(t), nil, log)
	if err := d.PlaceImage(testImage(t, 120, 80)); err != nil {
		t.Fatalf("PlaceImage() error = %v", err)
	}
	s := d.slides[0]

	pic := s.doc.FindElement("//p:pic")
	if pic == nil {
		t.Fatal("slide missing picture shape")
	}
	ext := pic.FindElement("p:spPr/a:xfrm/a:ext")
	if ext == nil {
		t.Fatal("picture missing extent")
	}
	if got := ext.SelectAttrValue("cx", ""); got != "1143000" { // 120 px at 96 dpi
		t.Errorf("picture cx = %s", got)
	}
	if got := ext.SelectAttrValue("cy", ""); got != "762000" {
		t.Errorf("picture cy = %s", got)
	}
	off := pic.FindElement("p:spPr/a:xfrm/a:off")
	if got := off.SelectAttrValue("x", ""); got != "5518150" {
		t.Errorf("picture x = %s, want centered", got)
	}

	blip := pic.FindElement("p:blipFill/a:blip")
	if blip == nil {
		t.Fatal("picture missing blip")
	}
	embed := blip.SelectAttrValue("r:embed", "")
	found := false
	for _, rel := range s.rels.FindElements("//Relationship") {
		if rel.SelectAttrValue("Id", "") == embed {
			found = true
			if got := rel.SelectAttrValue("Target", ""); got != "../media/image1.png" {
				t.Errorf("image relationship target = %s", got)
			}
		}
	}
	if !found {
		t.Error("image relationship not registered")
	}
	if len(d.media) != 1 || d.media[0].name != "media/image1.png" {
		t.Errorf("media parts = %+v", d.media)
	}
}

func TestPlaceImageScalesDown(t *testing.T) {
	log := setupTestLogger(t)
	d := NewDeck(testConfig(t), nil, log)
	if err := d.PlaceImage(testImage(t, 3000, 1000)); err != nil {
		t.Fatalf("PlaceImage() error = %v", err)
	}

	ext := d.slides[0].doc.FindElement("//p:pic/p:spPr/a:xfrm/a:ext")
	if ext == nil {
		t.Fatal("picture missing extent")
	}
	if got := ext.SelectAttrValue("cy", ""); got != "3429000" {
		t.Errorf("picture cy = %s, want clamped to the picture box", got)
	}
	if got := ext.SelectAttrValue("cx", ""); got != "10287000" {
		t.Errorf("picture cx = %s, want scaled with the height", got)
	}
}

func TestGenerate(t *testing.T) {
	log := setupTestLogger(t)
	tmpDir := t.TempDir()

	c := &content.Content{
		SrcName: "update.html",
		Title:   "Quarterly Update",
		RefID:   uuid.Must(uuid.NewV7()),
		Doc:     parseMarkup(t, `<h1>Agenda</h1><p>Spoken body line.</p><ul><li>first</li></ul>`),
		WorkDir: tmpDir,
	}

	out := filepath.Join(tmpDir, "out", "update.pptx")
	if err := Generate(context.Background(), c, out, testConfig(t), log); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open generated package: %v", err)
	}
	defer zr.Close()

	parts := make(map[string]bool)
	for _, f := range zr.File {
		parts[f.Name] = true
	}
	for _, want := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"docProps/core.xml",
		"docProps/app.xml",
		"ppt/presentation.xml",
		"ppt/_rels/presentation.xml.rels",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideMasters/_rels/slideMaster1.xml.rels",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/slideLayouts/_rels/slideLayout1.xml.rels",
		"ppt/theme/theme1.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/_rels/slide1.xml.rels",
	} {
		if !parts[want] {
			t.Errorf("generated package missing %s", want)
		}
	}

	rc, err := zr.Open("ppt/presentation.xml")
	if err != nil {
		t.Fatalf("open presentation part: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read presentation part: %v", err)
	}
	pres := etree.NewDocument()
	if err := pres.ReadFromBytes(data); err != nil {
		t.Fatalf("parse presentation part: %v", err)
	}
	if el := pres.FindElement("//p:sldSz"); el == nil || el.SelectAttrValue("cx", "") != "12192000" {
		t.Error("presentation missing widescreen slide size")
	}
	if ids := pres.FindElements("//p:sldIdLst/p:sldId"); len(ids) != 1 {
		t.Errorf("slide id entries = %d, want 1", len(ids))
	}

	rc, err = zr.Open("ppt/slides/slide1.xml")
	if err != nil {
		t.Fatalf("open slide part: %v", err)
	}
	data, err = io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read slide part: %v", err)
	}
	sld := etree.NewDocument()
	if err := sld.ReadFromBytes(data); err != nil {
		t.Fatalf("parse slide part: %v", err)
	}
	found := false
	for _, tt := range sld.FindElements("//a:t") {
		if tt.Text() == "Spoken body line." {
			found = true
		}
	}
	if !found {
		t.Error("slide part missing compiled run")
	}

	rc, err = zr.Open("docProps/core.xml")
	if err != nil {
		t.Fatalf("open core properties: %v", err)
	}
	data, err = io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read core properties: %v", err)
	}
	core := etree.NewDocument()
	if err := core.ReadFromBytes(data); err != nil {
		t.Fatalf("parse core properties: %v", err)
	}
	if el := core.FindElement("//dc:title"); el == nil || el.Text() != "Quarterly Update" {
		t.Error("core properties missing presentation title")
	}
}

func TestGenerateCanceledContext(t *testing.T) {
	log := setupTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &content.Content{Doc: parseMarkup(t, `<p>x</p>`), WorkDir: t.TempDir()}
	err := Generate(ctx, c, filepath.Join(t.TempDir(), "x.pptx"), testConfig(t), log)
	if err == nil {
		t.Fatal("Generate() on canceled context must fail")
	}
}
