package docx

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
	ctDocument   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ctStyles     = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
	ctNumbering  = "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"
	ctCoreProps  = "application/vnd.openxmlformats-package.core-properties+xml"
	ctExtProps   = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
	ctRels       = "application/vnd.openxmlformats-package.relationships+xml"
	ctXML        = "application/xml"
	nsExtProps   = "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"
	nsCoreProps  = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	nsDublinCore = "http://purl.org/dc/elements/1.1/"
	nsDCTerms    = "http://purl.org/dc/terms/"
	nsXSI        = "http://www.w3.org/2001/XMLSchema-instance"
)

// Generate compiles the prepared content and writes the .docx package.
func Generate(ctx context.Context, c *content.Content, outputPath string, cfg *config.DocumentConfig, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Info("Generating DOCX", zap.String("output", outputPath))

	d := NewDocument(cfg, log)
	stats, err := compile.Compile(c.Doc, d, c.Evidence, log)
	if err != nil {
		return fmt.Errorf("unable to compile content: %w", err)
	}
	d.finalize()
	log.Debug("Compiled document body",
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
	if err := writeXMLToZip(zw, "word/document.xml", d.doc); err != nil {
		return fmt.Errorf("unable to write document body: %w", err)
	}
	if err := writeXMLToZip(zw, "word/styles.xml", buildStyles(cfg)); err != nil {
		return fmt.Errorf("unable to write styles: %w", err)
	}
	if err := writeXMLToZip(zw, "word/numbering.xml", d.numbering); err != nil {
		return fmt.Errorf("unable to write numbering: %w", err)
	}
	if err := writeXMLToZip(zw, "word/_rels/document.xml.rels", d.rels); err != nil {
		return fmt.Errorf("unable to write document relationships: %w", err)
	}
	for _, m := range d.media {
		if err := writeDataToZip(zw, path.Join("word", m.name), m.data); err != nil {
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

func buildContentTypes(d *Document) *etree.Document {
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
	addOverride("/word/document.xml", ctDocument)
	addOverride("/word/styles.xml", ctStyles)
	addOverride("/word/numbering.xml", ctNumbering)
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
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	rels := doc.CreateElement("Relationships")
	rels.CreateAttr("xmlns", nsPkgRels)

	add := func(id, relType, target string) {
		rel := rels.CreateElement("Relationship")
		rel.CreateAttr("Id", id)
		rel.CreateAttr("Type", relType)
		rel.CreateAttr("Target", target)
	}
	add("rId1", relTypeDoc, "word/document.xml")
	add("rId2", relTypeCore, "docProps/core.xml")
	add("rId3", relTypeApp, "docProps/app.xml")

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
