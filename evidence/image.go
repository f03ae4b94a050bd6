package evidence

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"mime"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"rptc/config"
	"rptc/jpegquality"
	imgutil "rptc/utils/images"
)

// defaultJPEGQuality is used when no image configuration is supplied.
const defaultJPEGQuality = 85

// Image is evidence content prepared for embedding into a document
// container.
type Image struct {
	Label    string
	Path     string
	Data     []byte
	MimeType string
	Ext      string // canonical extension used for part naming
	Width    int    // pixels
	Height   int    // pixels
}

// LoadImage reads an image record and runs it through the configured
// processing pipeline. SVG content is rasterized, formats the office
// containers do not accept are converted to PNG, the rest is embedded
// untouched unless processing changed it. A read or decode failure is an
// error, evidence is expected to be present and valid once a record
// names it.
func (t *Table) LoadImage(rec Record) (*Image, error) {
	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to read evidence file: %w", err)
	}

	var (
		img     image.Image
		imgType string
	)
	if extOf(rec.Path) == "svg" {
		img, err = imgutil.RasterizeSVGToImage(data, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to rasterize evidence SVG %s: %w", rec.Path, err)
		}
		imgType = "svg"
	} else {
		if !filetype.IsImage(data) {
			return nil, fmt.Errorf("evidence file %s does not contain image data", rec.Path)
		}
		img, imgType, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unable to decode evidence image %s: %w", rec.Path, err)
		}
	}

	ei := &Image{
		Label:    rec.Label,
		Path:     rec.Path,
		Data:     data,
		MimeType: formatMime(imgType),
		Ext:      formatExt(imgType),
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}

	var (
		resize   config.ImageResizeMode
		maxWidth int
		flatten  bool
		quality  = defaultJPEGQuality
	)
	if t.imgCfg != nil {
		resize = t.imgCfg.Resize
		maxWidth = t.imgCfg.MaxWidth
		flatten = t.imgCfg.RemovePNGTransparency
		if t.imgCfg.JPEGQuality > 0 {
			quality = t.imgCfg.JPEGQuality
		}
	}

	imageChanged := false

	if !isEmbeddable(imgType) {
		t.log.Debug("Evidence image format is not embeddable, converting to PNG", zap.String("path", rec.Path), zap.String("type", imgType))
		imageChanged = true
	}

	// Scaling
	if maxWidth > 0 {
		switch resize {
		case config.ImageResizeModeNone:
		case config.ImageResizeModeKeepAR:
			if img.Bounds().Dx() > maxWidth {
				img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
				imageChanged = true
			}
		case config.ImageResizeModeStretch:
			if img.Bounds().Dx() != maxWidth {
				img = imaging.Resize(img, maxWidth, img.Bounds().Dy(), imaging.Lanczos)
				imageChanged = true
			}
		}
	}

	// PNG transparency
	if flatten && imgType == "png" {
		opaque := func(im image.Image) bool {
			if oimg, ok := im.(interface{ Opaque() bool }); ok {
				return oimg.Opaque()
			}
			return true
		}(img)

		if !opaque {
			t.log.Debug("Removing PNG transparency", zap.String("path", rec.Path))
			flat := image.NewRGBA(img.Bounds())
			draw.Draw(flat, img.Bounds(), &image.Uniform{color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)
			draw.Draw(flat, img.Bounds(), img, image.Point{}, draw.Over)
			img = flat
			imageChanged = true
		}
	}

	if !imageChanged {
		return ei, nil
	}

	if strings.EqualFold(imgType, "jpeg") {
		if jr, err := jpegquality.NewWithBytes(data); err != nil {
			t.log.Warn("Unable to detect JPEG quality level, skipping...", zap.String("path", rec.Path), zap.Error(err))
		} else if q := jr.Quality(); q < quality {
			t.log.Debug("Source JPEG quality level already lower than requested, keeping it",
				zap.String("path", rec.Path), zap.Int("detected", q), zap.Int("requested", quality))
			quality = q
		}
	}

	out, outType, err := encodeImage(img, imgType, quality)
	if err != nil {
		return nil, fmt.Errorf("unable to encode evidence image %s: %w", rec.Path, err)
	}

	ei.Data = out
	ei.MimeType = formatMime(outType)
	ei.Ext = formatExt(outType)
	ei.Width = img.Bounds().Dx()
	ei.Height = img.Bounds().Dy()
	return ei, nil
}

// encodeImage encodes a processed image. JPEG input stays JPEG at the
// configured quality with a JFIF density segment, everything else is
// written back as PNG since the office containers accept it and the
// exotic formats have no encoders.
func encodeImage(img image.Image, format string, quality int) ([]byte, string, error) {
	if strings.EqualFold(format, "jpeg") {
		out, err := imgutil.EncodeJPEGWithDPI(img, quality, imgutil.DpiPxPerInch, 96, 96)
		if err != nil {
			return nil, "", err
		}
		return out, "jpeg", nil
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "png", nil
}

// isEmbeddable returns true when office containers accept the format
// directly and the original bytes can be embedded untouched.
func isEmbeddable(format string) bool {
	for _, t := range [...]string{"png", "jpeg", "gif", "bmp", "tiff"} {
		if strings.EqualFold(t, format) {
			return true
		}
	}
	return false
}

// formatExt returns the part-naming extension for an image format name
// as reported by the decoder.
func formatExt(format string) string {
	if strings.EqualFold(format, "jpeg") {
		return "jpg"
	}
	return strings.ToLower(format)
}

// formatMime returns the content type for an image format name. Common
// types are handled directly to keep the values stable across platforms.
func formatMime(format string) string {
	switch strings.ToLower(format) {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	case "webp":
		return "image/webp"
	case "svg":
		return "image/svg+xml"
	}
	if mt := mime.TypeByExtension("." + strings.ToLower(format)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
