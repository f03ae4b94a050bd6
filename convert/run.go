package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"rptc/archive"
	"rptc/common"
	"rptc/content"
	"rptc/evidence"
	"rptc/misc"
	"rptc/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	format, err := common.ParseOutputFmt(cmd.String("to"))
	if err != nil {
		log.Warn("Unknown output format requested, switching to docx", zap.Error(err))
		format = common.OutputFmtDocx
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	if ev := cmd.String("evidence"); ev != "" {
		if env.EvidencePath, err = filepath.Abs(ev); err != nil {
			return err
		}
		if _, err := os.Stat(env.EvidencePath); err != nil {
			return fmt.Errorf("unable to access evidence manifest: %w", err)
		}
	}

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old bundles
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in bundles", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", format))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, format, log)
}

// process handles the core conversion logic independently of CLI framework. It
// determines the input type (directory, bundle, or single file) and processes
// accordingly.
func process(ctx context.Context, src, dst string, format common.OutputFmt, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in bundle
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, format, log); err != nil {
				return errors.New("unable to process directory")
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		bundle, err := isBundleFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check bundle type: %w", err)
		}
		if bundle {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processBundle(ctx, head, tail, "", dst, format, log); err != nil {
				return fmt.Errorf("unable to process bundle: %w", err)
			}
			break
		}

		if isSourceFile(head) && len(tail) == 0 {
			// we have a report source, it cannot have tail
			if err := processFile(ctx, head, filepath.Base(head), dst, format, log); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			}
			break
		}
		return fmt.Errorf("input was not recognized as report markup (%s)", head)

	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding report sources and bundles and
// processes them in natural order.
func processDir(ctx context.Context, dir, dst string, format common.OutputFmt, log *zap.Logger) error {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Sort(natural.StringSlice(files))

	count := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		bundle, err := isBundleFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if bundle {
			if err := processBundle(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, format, log); err != nil {
				log.Error("Unable to process bundle", zap.String("file", path), zap.Error(err))
			}
			continue
		}

		if !isSourceFile(path) {
			log.Debug("Skipping file, not recognized as report source or bundle", zap.String("file", path))
			continue
		}

		count++

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processFile(ctx, path, src, dst, format, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
	}
	if count == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return nil
}

// processBundle extracts the whole bundle into a scratch directory so that
// evidence manifests and their files resolve next to the sources, then
// processes every report source under "pathIn" in natural order.
func processBundle(ctx context.Context, path, pathIn, pathOut, dst string, format common.OutputFmt, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	tmpDir, err := os.MkdirTemp("", misc.GetAppName()+"-bundle-")
	if err != nil {
		return fmt.Errorf("unable to create bundle directory: %w", err)
	}
	env.Rpt.Store(fmt.Sprintf("%s-bundle-%s", misc.GetAppName(), filepath.Base(path)), tmpDir)

	type source struct {
		disk  string // extracted location
		label string // path used for output naming
	}
	var sources []source

	pattern := filepath.ToSlash(pathIn)
	err = archive.Walk(path, "", func(bundle string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		extracted, err := archive.Extract(tmpDir, f)
		if err != nil {
			return fmt.Errorf("unable to extract bundle entry %s: %w", f.FileHeader.Name, err)
		}
		if !strings.HasPrefix(f.FileHeader.Name, pattern) || !isSourceFile(extracted) {
			return nil
		}

		name := f.FileHeader.Name
		if cp := env.CodePage; cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(name); err == nil {
				name = n
			} else {
				cs, _ := ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert bundle entry name from specified encoding",
					zap.String("charset", cs), zap.String("path", name), zap.Error(err))
			}
		}
		sources = append(sources, source{disk: extracted, label: filepath.Join(pathOut, filepath.FromSlash(name))})
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(sources, func(i, j int) bool { return natural.Less(sources[i].disk, sources[j].disk) })

	for _, s := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := processFile(ctx, s.disk, s.label, dst, format, log); err != nil {
			log.Error("Unable to process file in bundle",
				zap.String("bundle", path), zap.String("file", s.label), zap.Error(err))
		}
	}
	if len(sources) == 0 {
		log.Debug("Nothing to process", zap.String("bundle", path))
	}
	return nil
}

// resolveManifest finds the evidence manifest for a source file: the
// explicitly requested one, or the configured name next to the source. A
// missing sibling manifest is not an error, the document simply has no
// evidence.
func resolveManifest(srcPath string, env *state.LocalEnv, log *zap.Logger) (*evidence.Manifest, error) {
	path := env.EvidencePath
	if path == "" {
		path = filepath.Join(filepath.Dir(srcPath), env.Cfg.Document.Evidence.Manifest)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
	}
	return evidence.LoadManifest(path, log)
}

// processFile converts a single report source on disk. "path" is the actual
// file location, "src" is the source path relative to the original input
// (always including file name) used for output naming.
func processFile(ctx context.Context, path, src, dst string, format common.OutputFmt, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	manifest, err := resolveManifest(path, env, log)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return processDocument(ctx, file, src, dst, format, manifest, log)
}

// processDocument runs one conversion end to end: prepare, name, generate.
func processDocument(ctx context.Context, r io.Reader, src, dst string, format common.OutputFmt, manifest *evidence.Manifest, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var refID, outputName string

	log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		// NOTE: some of golang graphic processing libraries are not mature
		// enough if multiple documents are being processed we do not want to stop.
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else {
			log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("ref_id", refID))
		}
	}(time.Now())

	c, err := content.Prepare(ctx, r, src, manifest, format, log)
	if err != nil {
		return fmt.Errorf("unable to prepare source (%s): %w", src, err)
	}

	refID = c.RefID.String()

	// Determine output file name and path based on input and configuration.
	outputName = buildOutputPath(c, src, dst, env)

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := Generate(ctx, c, outputName, &env.Cfg.Document, log); err != nil {
		return fmt.Errorf("unable to generate output: %w", err)
	}

	// Store conversion result for debugging
	if env.Rpt != nil {
		env.Rpt.Store(fmt.Sprintf("result-%s%s", refID, filepath.Ext(outputName)), outputName)
	}

	return nil
}
