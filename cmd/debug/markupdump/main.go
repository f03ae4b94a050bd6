// markupdump parses report markup exactly the way conversion does and
// writes the node tree plus the annotation index for inspection.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"rptc/cmd/debug/internal/dumputil"
	"rptc/markup"
)

func main() {
	raw := flag.Bool("raw", false, "dump the tree before normalization")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: markupdump [-raw] [-overwrite] <file.html> [outdir]\n\n")
		fmt.Fprintf(os.Stderr, "Parses report markup and writes the node tree into <file>-tree.txt.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}

	inPath := flag.Arg(0)
	outDir := ""
	if flag.NArg() == 2 {
		outDir = flag.Arg(1)
	}

	f, err := os.Open(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", inPath, err)
		os.Exit(1)
	}
	defer f.Close()

	log := zap.Must(zap.NewDevelopment())
	defer func() { _ = log.Sync() }()

	doc, err := markup.Parse(f, filepath.Base(inPath), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", inPath, err)
		os.Exit(1)
	}
	if !*raw {
		markup.Normalize(doc, log)
	}

	var b strings.Builder
	b.WriteString(doc.String())
	b.WriteString("\n")
	writeIndexSummary(&b, markup.BuildIndex(doc))

	if err := dumputil.WriteOutput(inPath, outDir, "-tree.txt", []byte(b.String()), *overwrite); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
}

func writeIndexSummary(b *strings.Builder, idx *markup.Index) {
	fmt.Fprintf(b, "evidence markers: %d\n", len(idx.Evidence))
	for _, ref := range idx.Evidence {
		if ref.Valid {
			fmt.Fprintf(b, "  [%d]\n", ref.Index)
		} else {
			fmt.Fprintf(b, "  malformed: %q\n", ref.Raw)
		}
	}

	fmt.Fprintf(b, "label references: %d\n", len(idx.Labels))
	for _, ref := range idx.Labels {
		fmt.Fprintf(b, "  %s=%q\n", ref.Attr, ref.Label)
	}

	fmt.Fprintf(b, "links: %d\n", len(idx.Links))
	for _, href := range idx.Links {
		fmt.Fprintf(b, "  %s\n", href)
	}

	if len(idx.Unknown) > 0 {
		names := make([]string, 0, len(idx.Unknown))
		for name := range idx.Unknown {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(b, "unknown tags: %d\n", len(names))
		for _, name := range names {
			fmt.Fprintf(b, "  %s x%d\n", name, idx.Unknown[name])
		}
	}
}
