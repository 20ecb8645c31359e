package vision

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned when an image has no pixels to reduce
var ErrEmptyImage = errors.New("vision: empty image")

// Default comparison bounds
const (
	DefaultMaxWidth  = 640
	DefaultMaxHeight = 480
)

// ReduceConfig bounds the size of comparison frames
type ReduceConfig struct {
	MaxWidth  int
	MaxHeight int
}

// Reducer derives comparison frames from full resolution images
type Reducer struct {
	config ReduceConfig
}

// New creates a Reducer bounded to 640x480
func New() *Reducer {
	return &Reducer{
		config: ReduceConfig{
			MaxWidth:  DefaultMaxWidth,
			MaxHeight: DefaultMaxHeight,
		},
	}
}

// NewWithConfig creates a Reducer with custom bounds. Non-positive bounds
// fall back to the defaults.
func NewWithConfig(config ReduceConfig) *Reducer {
	if config.MaxWidth <= 0 {
		config.MaxWidth = DefaultMaxWidth
	}
	if config.MaxHeight <= 0 {
		config.MaxHeight = DefaultMaxHeight
	}
	return &Reducer{config: config}
}

// Config returns the active bounds
func (r *Reducer) Config() ReduceConfig {
	return r.config
}

// BrightnessProfile summarizes the brightness of a comparison frame
type BrightnessProfile struct {
	Mean   float64 `json:"mean_brightness"`
	StdDev float64 `json:"brightness_stddev"`
}

// ComparisonFrame is a reduced grayscale proxy of a frame. It is only used
// for scoring and is never persisted.
type ComparisonFrame struct {
	Gray    *image.Gray
	Profile BrightnessProfile
}

// Width returns the frame width in pixels
func (cf *ComparisonFrame) Width() int {
	if cf == nil || cf.Gray == nil {
		return 0
	}
	return cf.Gray.Bounds().Dx()
}

// Height returns the frame height in pixels
func (cf *ComparisonFrame) Height() int {
	if cf == nil || cf.Gray == nil {
		return 0
	}
	return cf.Gray.Bounds().Dy()
}

// Empty reports whether the frame carries no pixels
func (cf *ComparisonFrame) Empty() bool {
	return cf.Width() == 0 || cf.Height() == 0
}

// Reduce downsamples img with an area filter so that it fits the configured
// bounds, converts it to grayscale and measures its brightness profile.
func (r *Reducer) Reduce(img image.Image) (*ComparisonFrame, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	small := imaging.Fit(img, r.config.MaxWidth, r.config.MaxHeight, imaging.Box)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	var sum, sumSq float64
	for y := 0; y < h; y++ {
		src := small.Pix[y*small.Stride : y*small.Stride+w*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x := 0; x < w; x++ {
			cr, cg, cb := src[x*4], src[x*4+1], src[x*4+2]
			dst[x] = luma(cr, cg, cb)

			fr, fg, fb := float64(cr), float64(cg), float64(cb)
			sum += fr + fg + fb
			sumSq += fr*fr + fg*fg + fb*fb
		}
	}

	n := float64(w * h * 3)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	return &ComparisonFrame{
		Gray: gray,
		Profile: BrightnessProfile{
			Mean:   mean,
			StdDev: math.Sqrt(variance),
		},
	}, nil
}

// Resample returns the grayscale plane resized to w x h using an area
// filter. The plane itself is returned when it already has that size.
func (cf *ComparisonFrame) Resample(w, h int) *image.Gray {
	if cf.Width() == w && cf.Height() == h {
		return cf.Gray
	}
	resized := imaging.Resize(cf.Gray, w, h, imaging.Box)
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := resized.Pix[y*resized.Stride : y*resized.Stride+w*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := 0; x < w; x++ {
			dst[x] = src[x*4]
		}
	}
	return out
}

// luma converts an RGB sample to 8-bit gray using the BT.601 weights
func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}
