// partdump opens generated OOXML packages (.docx/.pptx), pretty-prints
// their XML parts and extracts media so output problems can be inspected
// without office software.
package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"os"
	"time"

	"rptc/cmd/debug/internal/dumputil"
)

func main() {
	all := flag.Bool("all", false, "enable all dump flags (-parts, -media, -tree)")
	parts := flag.Bool("parts", false, "pretty-print all XML parts into <file>-parts.txt")
	media := flag.Bool("media", false, "extract media parts into <file>-media.zip")
	tree := flag.Bool("tree", false, "list package structure with content types into <file>-tree.txt")
	overwrite := flag.Bool("overwrite", false, "overwrite existing output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: partdump [-all] [-parts] [-media] [-tree] [-overwrite] <file.docx|file.pptx> [outdir]\n\n")
		fmt.Fprintf(os.Stderr, "Reads OOXML packages and produces readable dumps of their parts.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}

	if *all {
		*parts = true
		*media = true
		*tree = true
	}

	if !*parts && !*media && !*tree {
		flag.Usage()
		os.Exit(2)
	}

	defer func(startedAt time.Time) {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", time.Since(startedAt))
	}(time.Now())

	inPath := flag.Arg(0)
	outDir := ""
	if flag.NArg() == 2 {
		outDir = flag.Arg(1)
	}

	zr, err := zip.OpenReader(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", inPath, err)
		os.Exit(1)
	}
	defer zr.Close()

	if *tree {
		if err := dumputil.DumpTree(&zr.Reader, inPath, outDir, *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "tree: %v\n", err)
			os.Exit(1)
		}
	}
	if *parts {
		if err := dumputil.DumpParts(&zr.Reader, inPath, outDir, *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "parts: %v\n", err)
			os.Exit(1)
		}
	}
	if *media {
		if err := dumputil.DumpMedia(&zr.Reader, inPath, outDir, *overwrite); err != nil {
			fmt.Fprintf(os.Stderr, "media: %v\n", err)
			os.Exit(1)
		}
	}
}
