// Package similarity scores how alike two comparison frames are and decides
// whether a candidate frame duplicates the last kept one.
package similarity

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/video-slides/pkg/vision"
)

// ErrComparison signals that two frames could not be scored. Callers treat
// the pair as not similar.
var ErrComparison = errors.New("similarity: comparison failed")

// Score holds the metrics computed for one pair of comparison frames
type Score struct {
	HistogramCorrelation   float64 `json:"histogram_correlation"`
	MeanSquaredError       float64 `json:"mse"`
	MeanAbsoluteDifference float64 `json:"mad"`
}

// Metric compares comparison frames
type Metric struct {
	// SizeCap bounds the common size both frames are resampled to
	SizeCap int
}

// New creates a Metric capped at the default comparison width
func New() *Metric {
	return &Metric{SizeCap: vision.DefaultMaxWidth}
}

// Compare scores a against b. Frames of different sizes are both resampled
// to min(heights, cap) x min(widths, cap) before scoring.
func (m *Metric) Compare(a, b *vision.ComparisonFrame) (Score, error) {
	if a.Empty() || b.Empty() {
		return Score{}, fmt.Errorf("%w: empty frame", ErrComparison)
	}

	w := minInt(a.Width(), b.Width())
	h := minInt(a.Height(), b.Height())
	if m.SizeCap > 0 {
		w = minInt(w, m.SizeCap)
		h = minInt(h, m.SizeCap)
	}

	ga := a.Resample(w, h)
	gb := b.Resample(w, h)
	if ga.Bounds().Dx() != gb.Bounds().Dx() || ga.Bounds().Dy() != gb.Bounds().Dy() {
		return Score{}, fmt.Errorf("%w: size mismatch %v vs %v", ErrComparison, ga.Bounds(), gb.Bounds())
	}

	return Score{
		HistogramCorrelation:   HistogramCorrelation(Histogram(ga), Histogram(gb)),
		MeanSquaredError:       meanSquaredError(ga, gb),
		MeanAbsoluteDifference: meanAbsoluteDifference(ga, gb),
	}, nil
}

// Histogram counts the 256 gray levels of g
func Histogram(g *image.Gray) [256]float64 {
	var hist [256]float64
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// HistogramCorrelation returns the Pearson correlation of two histograms.
// Two flat histograms correlate at 1 when equal and 0 otherwise.
func HistogramCorrelation(h1, h2 [256]float64) float64 {
	var mean1, mean2 float64
	for i := range h1 {
		mean1 += h1[i]
		mean2 += h2[i]
	}
	mean1 /= 256
	mean2 /= 256

	var num, den1, den2 float64
	for i := range h1 {
		d1 := h1[i] - mean1
		d2 := h2[i] - mean2
		num += d1 * d2
		den1 += d1 * d1
		den2 += d2 * d2
	}

	den := math.Sqrt(den1 * den2)
	if den == 0 {
		if h1 == h2 {
			return 1
		}
		return 0
	}
	return num / den
}

// meanSquaredError expects both planes to share the same size
func meanSquaredError(a, b *image.Gray) float64 {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	var sum int64
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := 0; x < w; x++ {
			d := int64(ra[x]) - int64(rb[x])
			sum += d * d
		}
	}
	return float64(sum) / float64(w*h)
}

// meanAbsoluteDifference widens samples before subtracting so that uint8
// wraparound cannot corrupt the result.
func meanAbsoluteDifference(a, b *image.Gray) float64 {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	var sum int64
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := 0; x < w; x++ {
			d := int64(ra[x]) - int64(rb[x])
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return float64(sum) / float64(w*h)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
