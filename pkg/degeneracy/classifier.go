// Package degeneracy flags black, faded and otherwise unusable frames.
package degeneracy

import (
	"fmt"
	"image"

	"github.com/menta2k/video-slides/pkg/vision"
)

// Config holds the brightness heuristics. A frame matching any one of them
// is degenerate.
type Config struct {
	// near-black and flat
	NearBlackMean   float64 `json:"near_black_mean" yaml:"near_black_mean"`
	NearBlackStdDev float64 `json:"near_black_stddev" yaml:"near_black_stddev"`
	// dark and low contrast, typical of fades
	FadeMean   float64 `json:"fade_mean" yaml:"fade_mean"`
	FadeStdDev float64 `json:"fade_stddev" yaml:"fade_stddev"`
	// mostly black regardless of contrast
	MostlyBlackMean float64 `json:"mostly_black_mean" yaml:"mostly_black_mean"`
}

// DefaultConfig returns the reference heuristics
func DefaultConfig() Config {
	return Config{
		NearBlackMean:   50,
		NearBlackStdDev: 20,
		FadeMean:        80,
		FadeStdDev:      25,
		MostlyBlackMean: 60,
	}
}

// Classifier judges single frames. It keeps no state between frames.
type Classifier struct {
	config  Config
	reducer *vision.Reducer
}

// New creates a Classifier with the reference heuristics
func New() *Classifier {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Classifier with custom heuristics
func NewWithConfig(config Config) *Classifier {
	return &Classifier{
		config:  config,
		reducer: vision.New(),
	}
}

// Config returns the active heuristics
func (c *Classifier) Config() Config {
	return c.config
}

// IsDegenerate reports whether a comparison frame is black, faded or empty
func (c *Classifier) IsDegenerate(cf *vision.ComparisonFrame) bool {
	if cf.Empty() {
		return true
	}
	return c.matches(cf.Profile)
}

// IsDegenerateImage reduces img and classifies it. An image that is missing
// or cannot be reduced counts as degenerate.
func (c *Classifier) IsDegenerateImage(img image.Image) bool {
	cf, err := c.reducer.Reduce(img)
	if err != nil {
		return true
	}
	return c.IsDegenerate(cf)
}

func (c *Classifier) matches(p vision.BrightnessProfile) bool {
	switch {
	case p.Mean < c.config.NearBlackMean && p.StdDev < c.config.NearBlackStdDev:
		return true
	case p.Mean < c.config.FadeMean && p.StdDev < c.config.FadeStdDev:
		return true
	case p.Mean < c.config.MostlyBlackMean:
		return true
	}
	return false
}

// Validate checks that thresholds are within the 8-bit brightness range
func (c Config) Validate() error {
	if c.NearBlackMean < 0 || c.NearBlackMean > 255 {
		return fmt.Errorf("near_black_mean must be between 0 and 255")
	}
	if c.FadeMean < 0 || c.FadeMean > 255 {
		return fmt.Errorf("fade_mean must be between 0 and 255")
	}
	if c.MostlyBlackMean < 0 || c.MostlyBlackMean > 255 {
		return fmt.Errorf("mostly_black_mean must be between 0 and 255")
	}
	if c.NearBlackStdDev < 0 || c.FadeStdDev < 0 {
		return fmt.Errorf("stddev thresholds must not be negative")
	}
	return nil
}
