package similarity

import (
	"fmt"
	"sort"
	"strings"
)

// Thresholds configures the duplicate predicate
type Thresholds struct {
	// HistogramThreshold and MSEThreshold must both hold for the combined rule
	HistogramThreshold float64 `json:"histogram_threshold" yaml:"histogram_threshold" env:"HISTOGRAM_THRESHOLD"`
	MSEThreshold       float64 `json:"mse_threshold" yaml:"mse_threshold" env:"MSE_THRESHOLD"`
	// MADThreshold flags near pixel-identical frames on its own
	MADThreshold float64 `json:"mad_threshold" yaml:"mad_threshold" env:"MAD_THRESHOLD"`
	// NearIdenticalCorrelation flags identical distributions regardless of MSE
	NearIdenticalCorrelation float64 `json:"near_identical_correlation" yaml:"near_identical_correlation" env:"NEAR_IDENTICAL_CORRELATION"`
}

// Named threshold presets
const (
	PresetStream       = "stream"
	PresetAggressive   = "aggressive"
	PresetConservative = "conservative"
)

const (
	defaultMADThreshold             = 15
	defaultNearIdenticalCorrelation = 0.98
)

var presets = map[string]Thresholds{
	PresetStream: {
		HistogramThreshold:       0.95,
		MSEThreshold:             30,
		MADThreshold:             defaultMADThreshold,
		NearIdenticalCorrelation: defaultNearIdenticalCorrelation,
	},
	PresetAggressive: {
		HistogramThreshold:       0.92,
		MSEThreshold:             200,
		MADThreshold:             defaultMADThreshold,
		NearIdenticalCorrelation: defaultNearIdenticalCorrelation,
	},
	PresetConservative: {
		HistogramThreshold:       0.98,
		MSEThreshold:             100,
		MADThreshold:             defaultMADThreshold,
		NearIdenticalCorrelation: defaultNearIdenticalCorrelation,
	},
}

// StreamDefaults is used by change detection over a decoded video
func StreamDefaults() Thresholds {
	return presets[PresetStream]
}

// BatchDefaults is used by the post-hoc directory pass
func BatchDefaults() Thresholds {
	return presets[PresetAggressive]
}

// Preset looks up a named preset
func Preset(name string) (Thresholds, error) {
	t, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Thresholds{}, fmt.Errorf("unknown threshold preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return t, nil
}

// PresetNames lists the preset names in alphabetical order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsDuplicate reports whether a score marks the candidate as a duplicate
func (t Thresholds) IsDuplicate(s Score) bool {
	if s.HistogramCorrelation > t.HistogramThreshold && s.MeanSquaredError < t.MSEThreshold {
		return true
	}
	if s.MeanAbsoluteDifference < t.MADThreshold {
		return true
	}
	return s.HistogramCorrelation > t.NearIdenticalCorrelation
}

// Validate checks that every threshold is in range
func (t Thresholds) Validate() error {
	if t.HistogramThreshold < -1 || t.HistogramThreshold > 1 {
		return fmt.Errorf("histogram_threshold must be between -1 and 1")
	}
	if t.NearIdenticalCorrelation < -1 || t.NearIdenticalCorrelation > 1 {
		return fmt.Errorf("near_identical_correlation must be between -1 and 1")
	}
	if t.MSEThreshold < 0 {
		return fmt.Errorf("mse_threshold must not be negative")
	}
	if t.MADThreshold < 0 {
		return fmt.Errorf("mad_threshold must not be negative")
	}
	return nil
}
