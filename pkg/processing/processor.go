package processing

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Output defaults
const (
	DefaultFormat   = "jpg"
	DefaultQuality  = 95
	DefaultMaxWidth = 1920
)

// Processor decodes frames from disk, scales them for output and encodes
// them for files or model requests
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage reads a frame file. EXIF orientation is applied for JPEGs.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// decode tries the registered decoders, then libwebp for WebP variants the
// pure Go decoder rejects
func decode(r io.ReadSeeker) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err == nil {
		return img, nil
	}
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}
	if img, werr := webp.Decode(r); werr == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format: %w", err)
}

// ScaleForOutput downsizes images wider than maxWidth, keeping the aspect
// ratio. Narrower images are returned untouched.
func (p *Processor) ScaleForOutput(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

// PrepareImageForModel fits img within maxDim on its long side and returns
// it base64 encoded as JPEG or PNG
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		}
	}

	// Models accept jpg and png only
	if NormalizeFormat(format) != "png" {
		format = "jpg"
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, format, quality, false); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SaveImage writes img to path as jpg, png or webp
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := encode(w, img, format, quality, lossless); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encode(w io.Writer, img image.Image, format string, quality int, lossless bool) error {
	switch NormalizeFormat(format) {
	case "png":
		return (&png.Encoder{CompressionLevel: png.BestSpeed}).Encode(w, img)
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}
}

// NormalizeFormat maps a user supplied format to one of jpg, png or webp
func NormalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png":
		return "png"
	case "webp":
		return "webp"
	default:
		return DefaultFormat
	}
}
