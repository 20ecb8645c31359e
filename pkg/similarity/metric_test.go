package similarity

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/video-slides/pkg/vision"
)

func solidFrame(t testing.TB, width, height int, c color.RGBA) *vision.ComparisonFrame {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	cf, err := vision.New().Reduce(img)
	require.NoError(t, err)
	return cf
}

// stripedFrame alternates bands of two gray levels
func stripedFrame(t testing.TB, width, height, band int, a, b uint8) *vision.ComparisonFrame {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := a
			if (x/band)%2 == 1 {
				v = b
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	cf, err := vision.New().Reduce(img)
	require.NoError(t, err)
	return cf
}

func TestCompareIdentical(t *testing.T) {
	a := stripedFrame(t, 64, 48, 8, 30, 220)
	b := stripedFrame(t, 64, 48, 8, 30, 220)

	score, err := New().Compare(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score.HistogramCorrelation, 1e-9)
	assert.Zero(t, score.MeanSquaredError)
	assert.Zero(t, score.MeanAbsoluteDifference)
	assert.True(t, StreamDefaults().IsDuplicate(score))
}

func TestCompareRedAgainstBlue(t *testing.T) {
	red := solidFrame(t, 64, 48, color.RGBA{255, 0, 0, 255})
	blue := solidFrame(t, 64, 48, color.RGBA{0, 0, 255, 255})

	score, err := New().Compare(red, blue)
	require.NoError(t, err)
	assert.InDelta(t, -1.0/255.0, score.HistogramCorrelation, 1e-9)
	assert.InDelta(t, 47.0*47.0, score.MeanSquaredError, 1e-9)
	assert.InDelta(t, 47.0, score.MeanAbsoluteDifference, 1e-9)
	assert.False(t, StreamDefaults().IsDuplicate(score))
	assert.False(t, BatchDefaults().IsDuplicate(score))
}

func TestCompareAbsoluteDifferenceDoesNotWrap(t *testing.T) {
	dark := solidFrame(t, 16, 16, color.RGBA{10, 10, 10, 255})
	bright := solidFrame(t, 16, 16, color.RGBA{250, 250, 250, 255})

	forward, err := New().Compare(dark, bright)
	require.NoError(t, err)
	backward, err := New().Compare(bright, dark)
	require.NoError(t, err)

	assert.InDelta(t, 240.0, forward.MeanAbsoluteDifference, 1e-9)
	assert.Equal(t, forward, backward)
}

func TestCompareDifferentSizes(t *testing.T) {
	large := solidFrame(t, 100, 80, color.RGBA{128, 128, 128, 255})
	small := solidFrame(t, 50, 40, color.RGBA{128, 128, 128, 255})

	score, err := New().Compare(large, small)
	require.NoError(t, err)
	assert.Zero(t, score.MeanAbsoluteDifference)
	assert.InDelta(t, 1.0, score.HistogramCorrelation, 1e-9)
}

func TestCompareIsDeterministic(t *testing.T) {
	a := stripedFrame(t, 120, 90, 5, 40, 200)
	b := stripedFrame(t, 120, 90, 7, 60, 180)

	first, err := New().Compare(a, b)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := New().Compare(a, b)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompareEmptyFrame(t *testing.T) {
	a := solidFrame(t, 16, 16, color.RGBA{128, 128, 128, 255})

	_, err := New().Compare(a, nil)
	assert.ErrorIs(t, err, ErrComparison)

	_, err = New().Compare(&vision.ComparisonFrame{}, a)
	assert.ErrorIs(t, err, ErrComparison)
}

func TestHistogramCorrelationFlat(t *testing.T) {
	var flat [256]float64
	for i := range flat {
		flat[i] = 4
	}
	assert.Equal(t, 1.0, HistogramCorrelation(flat, flat))

	var other [256]float64
	for i := range other {
		other[i] = 8
	}
	assert.Equal(t, 0.0, HistogramCorrelation(flat, other))
}

func BenchmarkCompare(b *testing.B) {
	m := New()
	x := stripedFrame(b, 640, 360, 9, 20, 230)
	y := stripedFrame(b, 640, 360, 11, 35, 210)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Compare(x, y)
	}
}
