package pptx

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"

	"rptc/config"
	"rptc/content"
	"rptc/convert/compile"
	"rptc/misc"
)

const (
	ctPresentation = "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"
	ctSlide        = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctSlideMaster  = "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"
	ctSlideLayout  = "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"
	ctTheme        = "application/vnd.openxmlformats-officedocument.theme+xml"
	ctCoreProps    = "application/vnd.openxmlformats-package.core-properties+xml"
	ctExtProps     = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
	ctRels         = "application/vnd.openxmlformats-package.relationships+xml"
	ctXML          = "application/xml"
	nsExtProps     = "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"
	nsCoreProps    = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	nsDublinCore   = "http://purl.org/dc/elements/1.1/"
	nsDCTerms      = "http://purl.org/dc/terms/"
	nsXSI          = "http://www.w3.org/2001/XMLSchema-instance"
)

// Generate compiles the prepared content and writes the .pptx package.
func Generate(ctx context.Context, c *content.Content, outputPath string, cfg *config.DocumentConfig, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Info("Generating PPTX", zap.String("output", outputPath))

	d := NewDeck(cfg, c.Splitter, log)
	stats, err := compile.Compile(c.Doc, d, c.Evidence, log)
	if err != nil {
		return fmt.Errorf("unable to compile content: %w", err)
	}
	// a deck needs at least one slide to open
	if len(d.slides) == 0 {
		d.ensureSlide()
	}
	log.Debug("Compiled slide deck",
		zap.Int("slides", len(d.slides)),
		zap.Int("blocks", stats.Blocks),
		zap.Int("runs", stats.Runs),
		zap.Int("tables", stats.Tables),
		zap.Int("evidence", stats.Evidence))

	_, tmpName := filepath.Split(outputPath)
	tmpName = filepath.Join(c.WorkDir, tmpName)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	if err := writeXMLToZip(zw, "[Content_Types].xml", buildContentTypes(d)); err != nil {
		return fmt.Errorf("unable to write content types: %w", err)
	}
	if err := writeXMLToZip(zw, "_rels/.rels", buildPackageRels()); err != nil {
		return fmt.Errorf("unable to write package relationships: %w", err)
	}
	if err := writeXMLToZip(zw, "docProps/core.xml", buildCoreProps(c)); err != nil {
		return fmt.Errorf("unable to write core properties: %w", err)
	}
	if err := writeXMLToZip(zw, "docProps/app.xml", buildAppProps()); err != nil {
		return fmt.Errorf("unable to write application properties: %w", err)
	}
	if err := writeXMLToZip(zw, "ppt/presentation.xml", buildPresentation(len(d.slides))); err != nil {
		return fmt.Errorf("unable to write presentation: %w", err)
	}
	if err := writeXMLToZip(zw, "ppt/_rels/presentation.xml.rels", buildPresentationRels(len(d.slides))); err != nil {
		return fmt.Errorf("unable to write presentation relationships: %w", err)
	}
	if err := writeXMLToZip(zw, "ppt/slideMasters/slideMaster1.xml", buildSlideMaster()); err != nil {
		return fmt.Errorf("unable to write slide master: %w", err)
	}
	if err := writeXMLToZip(zw, "ppt/slideMasters/_rels/slideMaster1.xml.rels", buildSlideMasterRels()); err != nil {
		return fmt.Errorf("unable to write slide master relationships: %w", err)
	}
	if err := writeXMLToZip(zw, "ppt/slideLayouts/slideLayout1.xml", buildSlideLayout()); err != nil {
		return fmt.Errorf("unable to write slide layout: %w", err)
	}
	if err := writeXMLToZip(zw, "ppt/slideLayouts/_rels/slideLayout1.xml.rels", buildSlideLayoutRels()); err != nil {
		return fmt.Errorf("unable to write slide layout relationships: %w", err)
	}
	if err := writeXMLToZip(zw, "ppt/theme/theme1.xml", buildTheme(cfg)); err != nil {
		return fmt.Errorf("unable to write theme: %w", err)
	}
	for i, s := range d.slides {
		name := fmt.Sprintf("slide%d.xml", i+1)
		if err := writeXMLToZip(zw, path.Join("ppt/slides", name), s.doc); err != nil {
			return fmt.Errorf("unable to write slide %s: %w", name, err)
		}
		if err := writeXMLToZip(zw, path.Join("ppt/slides/_rels", name+".rels"), s.rels); err != nil {
			return fmt.Errorf("unable to write slide relationships %s: %w", name, err)
		}
	}
	for _, m := range d.media {
		if err := writeDataToZip(zw, path.Join("ppt", m.name), m.data); err != nil {
			return fmt.Errorf("unable to write media part %s: %w", m.name, err)
		}
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	// clean temporary file
	defer os.Remove(tmpName)

	if cfg.FixZip {
		return copyZipWithoutDataDescriptors(tmpName, outputPath)
	}
	return copyFile(tmpName, outputPath)
}

func buildContentTypes(d *Deck) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	types := doc.CreateElement("Types")
	types.CreateAttr("xmlns", nsContentType)

	addDefault := func(ext, ct string) {
		def := types.CreateElement("Default")
		def.CreateAttr("Extension", ext)
		def.CreateAttr("ContentType", ct)
	}
	addDefault("rels", ctRels)
	addDefault("xml", ctXML)

	exts := make([]string, 0, len(d.mediaExts))
	for ext := range d.mediaExts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		if ext == "xml" || ext == "rels" {
			continue
		}
		addDefault(ext, mediaContentType(ext))
	}

	addOverride := func(part, ct string) {
		ovr := types.CreateElement("Override")
		ovr.CreateAttr("PartName", part)
		ovr.CreateAttr("ContentType", ct)
	}
	addOverride("/ppt/presentation.xml", ctPresentation)
	addOverride("/ppt/slideMasters/slideMaster1.xml", ctSlideMaster)
	addOverride("/ppt/slideLayouts/slideLayout1.xml", ctSlideLayout)
	addOverride("/ppt/theme/theme1.xml", ctTheme)
	for i := range d.slides {
		addOverride(fmt.Sprintf("/ppt/slides/slide%d.xml", i+1), ctSlide)
	}
	addOverride("/docProps/core.xml", ctCoreProps)
	addOverride("/docProps/app.xml", ctExtProps)

	return doc
}

func mediaContentType(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tif", "tiff":
		return "image/tiff"
	}
	return "application/octet-stream"
}

func buildPackageRels() *etree.Document {
	doc, root := newRelationships()
	addRel(root, "rId1", relTypeDoc, "ppt/presentation.xml")
	addRel(root, "rId2", relTypeCore, "docProps/core.xml")
	addRel(root, "rId3", relTypeApp, "docProps/app.xml")
	return doc
}

func buildCoreProps(c *content.Content) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	props := doc.CreateElement("cp:coreProperties")
	props.CreateAttr("xmlns:cp", nsCoreProps)
	props.CreateAttr("xmlns:dc", nsDublinCore)
	props.CreateAttr("xmlns:dcterms", nsDCTerms)
	props.CreateAttr("xmlns:xsi", nsXSI)

	props.CreateElement("dc:title").SetText(c.Title)
	props.CreateElement("dc:identifier").SetText(c.RefID.String())
	props.CreateElement("dc:creator").SetText(misc.GetAppName())

	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	created := props.CreateElement("dcterms:created")
	created.CreateAttr("xsi:type", "dcterms:W3CDTF")
	created.SetText(now)
	modified := props.CreateElement("dcterms:modified")
	modified.CreateAttr("xsi:type", "dcterms:W3CDTF")
	modified.SetText(now)

	return doc
}

func buildAppProps() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	props := doc.CreateElement("Properties")
	props.CreateAttr("xmlns", nsExtProps)
	props.CreateElement("Application").SetText(misc.GetAppName() + " " + misc.GetVersion())
	return doc
}

func writeXMLToZip(zw *zip.Writer, name string, doc *etree.Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return writeDataToZip(zw, name, buf.Bytes())
}

func writeDataToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func copyZipWithoutDataDescriptors(from, to string) error {

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destinationFile.Close()

	if _, err = io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}
