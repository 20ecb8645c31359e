package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createSolidImage creates a single-colour RGBA image
func createSolidImage(width, height int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestNew(t *testing.T) {
	r := New()
	require.NotNil(t, r)
	assert.Equal(t, DefaultMaxWidth, r.Config().MaxWidth)
	assert.Equal(t, DefaultMaxHeight, r.Config().MaxHeight)
}

func TestNewWithConfigFallsBackToDefaults(t *testing.T) {
	r := NewWithConfig(ReduceConfig{MaxWidth: 320})
	assert.Equal(t, 320, r.Config().MaxWidth)
	assert.Equal(t, DefaultMaxHeight, r.Config().MaxHeight)
}

func TestReduceBoundsLargeFrames(t *testing.T) {
	r := New()
	cf, err := r.Reduce(createSolidImage(1920, 1080, color.RGBA{200, 200, 200, 255}))
	require.NoError(t, err)

	assert.LessOrEqual(t, cf.Width(), DefaultMaxWidth)
	assert.LessOrEqual(t, cf.Height(), DefaultMaxHeight)
	assert.Equal(t, 640, cf.Width())
	assert.Equal(t, 360, cf.Height())
}

func TestReduceKeepsSmallFrames(t *testing.T) {
	cf, err := New().Reduce(createSolidImage(64, 48, color.RGBA{10, 20, 30, 255}))
	require.NoError(t, err)
	assert.Equal(t, 64, cf.Width())
	assert.Equal(t, 48, cf.Height())
}

func TestReduceProfile(t *testing.T) {
	tests := []struct {
		name   string
		c      color.RGBA
		mean   float64
		stddev float64
	}{
		{"black", color.RGBA{0, 0, 0, 255}, 0, 0},
		{"white", color.RGBA{255, 255, 255, 255}, 255, 0},
		{"red", color.RGBA{255, 0, 0, 255}, 85, 120.208},
		{"gray", color.RGBA{100, 100, 100, 255}, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf, err := New().Reduce(createSolidImage(32, 32, tt.c))
			require.NoError(t, err)
			assert.InDelta(t, tt.mean, cf.Profile.Mean, 0.01)
			assert.InDelta(t, tt.stddev, cf.Profile.StdDev, 0.01)
		})
	}
}

func TestReduceGrayscale(t *testing.T) {
	cf, err := New().Reduce(createSolidImage(8, 8, color.RGBA{255, 0, 0, 255}))
	require.NoError(t, err)
	assert.Equal(t, uint8(76), cf.Gray.GrayAt(3, 3).Y)

	cf, err = New().Reduce(createSolidImage(8, 8, color.RGBA{0, 0, 255, 255}))
	require.NoError(t, err)
	assert.Equal(t, uint8(29), cf.Gray.GrayAt(3, 3).Y)
}

func TestReduceEmpty(t *testing.T) {
	_, err := New().Reduce(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = New().Reduce(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrEmptyImage)

	var cf *ComparisonFrame
	assert.True(t, cf.Empty())
}

func TestResample(t *testing.T) {
	cf, err := New().Reduce(createSolidImage(100, 80, color.RGBA{120, 120, 120, 255}))
	require.NoError(t, err)

	same := cf.Resample(100, 80)
	assert.Same(t, cf.Gray, same)

	small := cf.Resample(50, 40)
	assert.Equal(t, 50, small.Bounds().Dx())
	assert.Equal(t, 40, small.Bounds().Dy())
	assert.Equal(t, uint8(120), small.GrayAt(10, 10).Y)
}

func BenchmarkReduce(b *testing.B) {
	r := New()
	img := createSolidImage(1920, 1080, color.RGBA{90, 140, 200, 255})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Reduce(img)
	}
}
