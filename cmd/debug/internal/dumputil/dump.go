// Package dumputil provides shared output helpers for the partdump and
// markupdump debug tools. It knows how to take an OOXML package apart into
// readable text reports and media archives.
package dumputil

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/h2non/filetype"
)

// DumpParts pretty-prints every XML part of the package into <stem>-parts.txt.
func DumpParts(zr *zip.Reader, inPath, outDir string, overwrite bool) error {
	var b strings.Builder
	for _, f := range sortedEntries(zr) {
		if !isXMLPart(f.Name) {
			continue
		}

		data, err := readEntry(f)
		if err != nil {
			return fmt.Errorf("read part %s: %w", f.Name, err)
		}

		fmt.Fprintf(&b, "==== %s (%d bytes)\n", f.Name, f.UncompressedSize64)

		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(data); err != nil {
			fmt.Fprintf(&b, "!! part is not parseable XML: %v\n\n", err)
			continue
		}
		doc.Indent(2)
		text, err := doc.WriteToString()
		if err != nil {
			return fmt.Errorf("serialize part %s: %w", f.Name, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return WriteOutput(inPath, outDir, "-parts.txt", []byte(b.String()), overwrite)
}

// DumpTree lists package entries with sizes and declared content types into
// <stem>-tree.txt.
func DumpTree(zr *zip.Reader, inPath, outDir string, overwrite bool) error {
	types := readContentTypes(zr)

	var b strings.Builder
	for _, f := range sortedEntries(zr) {
		fmt.Fprintf(&b, "%10d  %-52s %s\n", f.UncompressedSize64, f.Name, types.lookup(f.Name))
	}
	return WriteOutput(inPath, outDir, "-tree.txt", []byte(b.String()), overwrite)
}

// DumpMedia extracts media parts into <stem>-media.zip. Extensions are
// checked against content magic, a mismatch usually means a bad content
// type mapping in the generator.
func DumpMedia(zr *zip.Reader, inPath, outDir string, overwrite bool) (retErr error) {
	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inPath)
	if outDir != "" {
		dir = outDir
	}
	outPath := filepath.Join(dir, stem+"-media.zip")
	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s (use -overwrite)", outPath)
		}
		if err := os.Remove(outPath); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer func() { retErr = errors.Join(retErr, f.Close()) }()

	zw := zip.NewWriter(f)
	defer func() { retErr = errors.Join(retErr, zw.Close()) }()

	written := 0
	for _, entry := range sortedEntries(zr) {
		if !strings.Contains(entry.Name, "/media/") {
			continue
		}

		data, err := readEntry(entry)
		if err != nil {
			return fmt.Errorf("read media part %s: %w", entry.Name, err)
		}

		name := SanitizeFileComponent(path.Base(entry.Name))
		if detected := ExtFromFiletype(data); detected != ".bin" && !strings.EqualFold(path.Ext(name), detected) {
			fmt.Fprintf(os.Stderr, "media part %s looks like %s\n", entry.Name, detected)
		}

		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		written++
	}

	_, _ = fmt.Fprintf(os.Stderr, "media: wrote %d file(s) into %s\n", written, outPath)
	return nil
}

// WriteOutput writes data to <stem><suffix> in either the input file's directory or outDir.
func WriteOutput(inPath, outDir, suffix string, data []byte, overwrite bool) error {
	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inPath)
	if outDir != "" {
		dir = outDir
	}
	outPath := filepath.Join(dir, stem+suffix)

	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s (use -overwrite)", outPath)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}

// ExtFromFiletype detects the file extension from magic bytes.
func ExtFromFiletype(b []byte) string {
	kind, err := filetype.Match(b)
	if err == nil && kind != filetype.Unknown && kind.Extension != "" {
		return "." + kind.Extension
	}
	return ".bin"
}

// SanitizeFileComponent cleans a string for use in a filename.
func SanitizeFileComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

func sortedEntries(zr *zip.Reader) []*zip.File {
	files := make([]*zip.File, len(zr.File))
	copy(files, zr.File)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isXMLPart(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xml", ".rels":
		return true
	}
	return false
}

// contentTypes maps part names to their declared content types following
// the package [Content_Types].xml defaults and overrides.
type contentTypes struct {
	defaults  map[string]string // by extension
	overrides map[string]string // by part name
}

func readContentTypes(zr *zip.Reader) *contentTypes {
	ct := &contentTypes{
		defaults:  make(map[string]string),
		overrides: make(map[string]string),
	}

	var data []byte
	for _, f := range zr.File {
		if f.Name == "[Content_Types].xml" {
			var err error
			if data, err = readEntry(f); err != nil {
				return ct
			}
			break
		}
	}
	if data == nil {
		return ct
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return ct
	}
	root := doc.Root()
	if root == nil {
		return ct
	}
	for _, el := range root.ChildElements() {
		switch el.Tag {
		case "Default":
			ct.defaults[strings.ToLower(el.SelectAttrValue("Extension", ""))] = el.SelectAttrValue("ContentType", "")
		case "Override":
			ct.overrides[el.SelectAttrValue("PartName", "")] = el.SelectAttrValue("ContentType", "")
		}
	}
	return ct
}

func (ct *contentTypes) lookup(name string) string {
	if t, ok := ct.overrides["/"+name]; ok {
		return t
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if t, ok := ct.defaults[ext]; ok {
		return t
	}
	return "-"
}
