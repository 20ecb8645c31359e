package degeneracy

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menta2k/video-slides/pkg/vision"
)

func createSolidImage(width, height int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func frameWithProfile(mean, stddev float64) *vision.ComparisonFrame {
	return &vision.ComparisonFrame{
		Gray:    image.NewGray(image.Rect(0, 0, 4, 4)),
		Profile: vision.BrightnessProfile{Mean: mean, StdDev: stddev},
	}
}

func TestNew(t *testing.T) {
	c := New()
	assert.NotNil(t, c)
	assert.Equal(t, DefaultConfig(), c.Config())
}

func TestIsDegenerateHeuristics(t *testing.T) {
	c := New()

	tests := []struct {
		name   string
		mean   float64
		stddev float64
		want   bool
	}{
		{"pure black", 0, 0, true},
		{"near black flat", 45, 10, true},
		{"fade", 75, 22, true},
		{"mostly black with contrast", 55, 90, true},
		{"dark but contrasty", 70, 60, false},
		{"mid gray flat", 128, 0, false},
		{"bright", 200, 40, false},
		{"fade boundary", 80, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsDegenerate(frameWithProfile(tt.mean, tt.stddev)))
		})
	}
}

func TestBlackIsAlwaysDegenerate(t *testing.T) {
	configs := []Config{
		DefaultConfig(),
		{NearBlackMean: 1, NearBlackStdDev: 1, FadeMean: 1, FadeStdDev: 1, MostlyBlackMean: 1},
		{NearBlackMean: 10, NearBlackStdDev: 5},
	}
	for _, cfg := range configs {
		assert.True(t, NewWithConfig(cfg).IsDegenerate(frameWithProfile(0, 0)))
	}
}

func TestIsDegenerateImage(t *testing.T) {
	c := New()

	assert.True(t, c.IsDegenerateImage(createSolidImage(32, 32, color.RGBA{0, 0, 0, 255})))
	assert.True(t, c.IsDegenerateImage(createSolidImage(32, 32, color.RGBA{30, 30, 30, 255})))
	assert.False(t, c.IsDegenerateImage(createSolidImage(32, 32, color.RGBA{255, 255, 255, 255})))
	// saturated colours are measured across channels, not by luma
	assert.False(t, c.IsDegenerateImage(createSolidImage(32, 32, color.RGBA{0, 0, 255, 255})))
	assert.False(t, c.IsDegenerateImage(createSolidImage(32, 32, color.RGBA{255, 0, 0, 255})))
}

func TestUndecodableIsDegenerate(t *testing.T) {
	c := New()
	assert.True(t, c.IsDegenerateImage(nil))
	assert.True(t, c.IsDegenerate(nil))
	assert.True(t, c.IsDegenerate(&vision.ComparisonFrame{}))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.FadeMean = 300
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.NearBlackStdDev = -1
	assert.Error(t, bad.Validate())
}
