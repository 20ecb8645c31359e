package selector

import (
	"fmt"
	"strings"

	"github.com/menta2k/video-slides/pkg/degeneracy"
	"github.com/menta2k/video-slides/pkg/similarity"
	"github.com/menta2k/video-slides/pkg/vision"
)

// Mode selects the sampling policy. It is chosen once before a pass starts.
type Mode string

const (
	ModeFixedInterval   Mode = "fixed-interval"
	ModeKeyFrames       Mode = "key-frames"
	ModeChangeDetection Mode = "change-detection"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFixedInterval, ModeKeyFrames, ModeChangeDetection:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %s, %s or %s)", s, ModeFixedInterval, ModeKeyFrames, ModeChangeDetection)
	}
}

// Pipeline distinguishes a live decode stream from a directory of images
// that were already extracted
type Pipeline string

const (
	// PipelineStream discards degenerate frames outright
	PipelineStream Pipeline = "stream"
	// PipelineBatch folds degenerate frames into the preceding kept frame
	PipelineBatch Pipeline = "batch"
)

// Config holds the selector settings
type Config struct {
	Mode            Mode
	Pipeline        Pipeline
	IntervalSeconds float64
	NumFrames       int
	// MaxFrames stops the pass once that many frames are kept. Zero means
	// no limit.
	MaxFrames        int
	ComparisonWidth  int
	ComparisonHeight int
	Thresholds       similarity.Thresholds
	Degeneracy       degeneracy.Config
}

// DefaultConfig returns change detection over a video stream
func DefaultConfig() Config {
	return Config{
		Mode:             ModeChangeDetection,
		Pipeline:         PipelineStream,
		IntervalSeconds:  5,
		NumFrames:        10,
		ComparisonWidth:  vision.DefaultMaxWidth,
		ComparisonHeight: vision.DefaultMaxHeight,
		Thresholds:       similarity.StreamDefaults(),
		Degeneracy:       degeneracy.DefaultConfig(),
	}
}

// BatchConfig returns change detection over an extracted image directory
func BatchConfig() Config {
	config := DefaultConfig()
	config.Pipeline = PipelineBatch
	config.Thresholds = similarity.BatchDefaults()
	return config
}

// Validate checks the configuration for the selected mode
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Pipeline != PipelineStream && c.Pipeline != PipelineBatch {
		return fmt.Errorf("unknown pipeline %q", c.Pipeline)
	}
	if c.Mode == ModeFixedInterval && c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval must be positive for %s mode", c.Mode)
	}
	if c.Mode == ModeKeyFrames && c.NumFrames <= 0 {
		return fmt.Errorf("num frames must be positive for %s mode", c.Mode)
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("max frames cannot be negative")
	}
	if c.ComparisonWidth < 0 || c.ComparisonHeight < 0 {
		return fmt.Errorf("comparison size cannot be negative")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if err := c.Degeneracy.Validate(); err != nil {
		return fmt.Errorf("degeneracy: %w", err)
	}
	return nil
}
