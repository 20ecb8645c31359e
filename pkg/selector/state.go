package selector

import (
	"github.com/menta2k/video-slides/pkg/source"
	"github.com/menta2k/video-slides/pkg/vision"
)

// Decision is the outcome of examining one candidate
type Decision int

const (
	DecisionKept Decision = iota
	DecisionDuplicate
	DecisionDegenerate
)

func (d Decision) String() string {
	switch d {
	case DecisionKept:
		return "kept"
	case DecisionDuplicate:
		return "duplicate"
	case DecisionDegenerate:
		return "degenerate"
	default:
		return "unknown"
	}
}

// Stats are the per video diagnostics
type Stats struct {
	Processed         int `json:"processed"`
	Kept              int `json:"kept"`
	SkippedDuplicate  int `json:"skipped_duplicate"`
	SkippedDegenerate int `json:"skipped_degenerate"`
	// DecodeFailures counts frames dropped because they could not be decoded.
	// They are neither duplicates nor degenerate.
	DecodeFailures int `json:"decode_failures"`
}

// CompressionRatio is kept frames over processed frames
func (s Stats) CompressionRatio() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Kept) / float64(s.Processed)
}

// KeptFrame is one entry of the output sequence
type KeptFrame struct {
	source.Frame
	// Seq is the position in the output sequence
	Seq int `json:"seq"`
	// OutputPath is where the sink persisted the frame, if any
	OutputPath string `json:"output_path,omitempty"`
}

// State is the selection state of one video. It starts Empty and becomes
// Tracking once a frame is kept.
type State struct {
	last  *vision.ComparisonFrame
	Kept  []KeptFrame
	Stats Stats
}

// NewState returns an Empty state
func NewState() *State {
	return &State{}
}

// Tracking reports whether a frame has been kept
func (s *State) Tracking() bool {
	return s.last != nil
}

// LastKept returns the comparison frame of the most recently kept frame
func (s *State) LastKept() *vision.ComparisonFrame {
	return s.last
}

// KeptIndices returns the source indices of the kept frames
func (s *State) KeptIndices() []int {
	indices := make([]int, len(s.Kept))
	for i, k := range s.Kept {
		indices[i] = k.Index
	}
	return indices
}

func (s *State) keep(frame source.Frame, cf *vision.ComparisonFrame) {
	if cf != nil {
		s.last = cf
	}
	s.Kept = append(s.Kept, KeptFrame{Frame: frame, Seq: len(s.Kept)})
	s.Stats.Kept++
}
