// Package selector decides which frames of a source become slides.
//
// Change detection runs a two state machine over the candidates: Empty until
// the first non degenerate frame is kept, then Tracking, where every candidate
// is compared with the most recently kept frame only. Fixed interval and key
// frame sampling keep whatever they examine as long as it decodes.
package selector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/menta2k/video-slides/pkg/degeneracy"
	"github.com/menta2k/video-slides/pkg/similarity"
	"github.com/menta2k/video-slides/pkg/source"
	"github.com/menta2k/video-slides/pkg/vision"
)

// Sink persists kept frames as they are selected. When a sink is used the
// kept frame's image is released once it has been written.
type Sink interface {
	Keep(ctx context.Context, frame source.Frame, seq int) (string, error)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, frame source.Frame, seq int) (string, error)

// Keep calls f
func (f SinkFunc) Keep(ctx context.Context, frame source.Frame, seq int) (string, error) {
	return f(ctx, frame, seq)
}

// Result is the outcome of a pass over one source
type Result struct {
	Source source.Info `json:"source"`
	Mode   Mode        `json:"mode"`
	Kept   []KeptFrame `json:"kept"`
	Stats  Stats       `json:"stats"`
}

// Selector runs the selection policies
type Selector struct {
	config     Config
	reducer    *vision.Reducer
	metric     *similarity.Metric
	classifier *degeneracy.Classifier
	logger     *zap.Logger
}

// Option configures a Selector
type Option func(*Selector)

// WithLogger sets the logger used for progress and decisions
func WithLogger(logger *zap.Logger) Option {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Selector running change detection with stream defaults
func New(opts ...Option) *Selector {
	return NewWithConfig(DefaultConfig(), opts...)
}

// NewWithConfig creates a Selector with custom settings
func NewWithConfig(config Config, opts ...Option) *Selector {
	reducer := vision.NewWithConfig(vision.ReduceConfig{
		MaxWidth:  config.ComparisonWidth,
		MaxHeight: config.ComparisonHeight,
	})
	metric := similarity.New()
	if config.ComparisonWidth > 0 {
		metric.SizeCap = config.ComparisonWidth
	}

	s := &Selector{
		config:     config,
		reducer:    reducer,
		metric:     metric,
		classifier: degeneracy.NewWithConfig(config.Degeneracy),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the active settings
func (s *Selector) Config() Config {
	return s.config
}

// Step applies one change detection transition to state for a decoded frame
func (s *Selector) Step(state *State, frame source.Frame) Decision {
	state.Stats.Processed++

	cf, err := s.reducer.Reduce(frame.Image)
	if err != nil {
		cf = nil
	}
	return s.decide(state, frame, cf)
}

func (s *Selector) decide(state *State, frame source.Frame, cf *vision.ComparisonFrame) Decision {
	if s.classifier.IsDegenerate(cf) {
		// Batch passes treat a pair with a degenerate side as similar, which
		// folds the frame into the preceding kept one.
		if s.config.Pipeline == PipelineBatch && state.Tracking() {
			state.Stats.SkippedDuplicate++
			return DecisionDuplicate
		}
		state.Stats.SkippedDegenerate++
		return DecisionDegenerate
	}

	if !state.Tracking() {
		state.keep(frame, cf)
		return DecisionKept
	}

	score, err := s.metric.Compare(state.last, cf)
	if err != nil {
		s.logger.Debug("comparison failed, keeping frame",
			zap.Int("index", frame.Index),
			zap.Error(err),
		)
		state.keep(frame, cf)
		return DecisionKept
	}

	if s.config.Thresholds.IsDuplicate(score) {
		state.Stats.SkippedDuplicate++
		return DecisionDuplicate
	}

	s.logger.Debug("scene change",
		zap.Int("index", frame.Index),
		zap.Float64("timestamp", frame.Timestamp),
		zap.Float64("mse", score.MeanSquaredError),
		zap.Float64("histogram_correlation", score.HistogramCorrelation),
		zap.Float64("mad", score.MeanAbsoluteDifference),
	)
	state.keep(frame, cf)
	return DecisionKept
}

// Run selects frames from src with the configured mode. Each kept frame is
// handed to sink when one is given. src is not closed.
func (s *Selector) Run(ctx context.Context, src source.Source, sink Sink) (*Result, error) {
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selector config: %w", err)
	}

	info := src.Info()
	state := NewState()

	s.logger.Info("selecting frames",
		zap.String("source", info.Name),
		zap.String("mode", string(s.config.Mode)),
		zap.String("pipeline", string(s.config.Pipeline)),
		zap.Float64("fps", info.FPS),
		zap.Int("total_frames", info.TotalFrames),
	)

	var err error
	switch s.config.Mode {
	case ModeChangeDetection:
		err = s.runChangeDetection(ctx, src, sink, state)
	case ModeFixedInterval:
		err = s.runFixedInterval(ctx, src, sink, state)
	case ModeKeyFrames:
		err = s.runKeyFrames(ctx, src, sink, state)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("selection complete",
		zap.String("source", info.Name),
		zap.Int("processed", state.Stats.Processed),
		zap.Int("kept", state.Stats.Kept),
		zap.Int("skipped_duplicate", state.Stats.SkippedDuplicate),
		zap.Int("skipped_degenerate", state.Stats.SkippedDegenerate),
		zap.Int("decode_failures", state.Stats.DecodeFailures),
		zap.Float64("compression_ratio", state.Stats.CompressionRatio()),
	)

	return &Result{
		Source: info,
		Mode:   s.config.Mode,
		Kept:   state.Kept,
		Stats:  state.Stats,
	}, nil
}

func (s *Selector) runChangeDetection(ctx context.Context, src source.Source, sink Sink, state *State) error {
	progress := newProgress(s.logger, src.Info())

	for !s.full(state) {
		c, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		frame, err := c.Load()
		if err != nil {
			state.Stats.Processed++
			if s.config.Pipeline == PipelineBatch {
				// An unreadable image in a directory counts as degenerate
				s.decide(state, source.Frame{Index: c.Index}, nil)
			} else {
				state.Stats.DecodeFailures++
				s.logger.Debug("skipping undecodable frame", zap.Int("index", c.Index), zap.Error(err))
			}
			progress.update(c.Index+1, state)
			continue
		}

		if s.Step(state, frame) == DecisionKept {
			if err := s.persist(ctx, sink, state); err != nil {
				return err
			}
		}
		progress.update(c.Index+1, state)
	}
	return nil
}

func (s *Selector) runFixedInterval(ctx context.Context, src source.Source, sink Sink, state *State) error {
	step := IntervalStep(src.Info().FPS, s.config.IntervalSeconds)

	for !s.full(state) {
		c, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if c.Index%step != 0 {
			continue
		}
		if err := s.keepCandidate(ctx, c, sink, state); err != nil {
			return err
		}
	}
	return nil
}

func (s *Selector) runKeyFrames(ctx context.Context, src source.Source, sink Sink, state *State) error {
	indices := KeyFrameIndices(src.Info().TotalFrames, s.config.NumFrames)

	if seeker, ok := src.(source.Seeker); ok {
		for _, index := range indices {
			if s.full(state) {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := seeker.Seek(ctx, index)
			if err != nil {
				state.Stats.Processed++
				state.Stats.DecodeFailures++
				s.logger.Debug("skipping unseekable frame", zap.Int("index", index), zap.Error(err))
				continue
			}
			if err := s.keepCandidate(ctx, c, sink, state); err != nil {
				return err
			}
		}
		return nil
	}

	wanted := make(map[int]bool, len(indices))
	last := -1
	for _, index := range indices {
		wanted[index] = true
		last = index
	}
	for !s.full(state) {
		c, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if c.Index > last {
			return nil
		}
		if !wanted[c.Index] {
			continue
		}
		if err := s.keepCandidate(ctx, c, sink, state); err != nil {
			return err
		}
	}
	return nil
}

// keepCandidate keeps c unconditionally if it decodes
func (s *Selector) keepCandidate(ctx context.Context, c source.Candidate, sink Sink, state *State) error {
	state.Stats.Processed++
	frame, err := c.Load()
	if err != nil {
		state.Stats.DecodeFailures++
		s.logger.Debug("skipping undecodable frame", zap.Int("index", c.Index), zap.Error(err))
		return nil
	}
	state.keep(frame, nil)
	return s.persist(ctx, sink, state)
}

// persist hands the newest kept frame to sink
func (s *Selector) persist(ctx context.Context, sink Sink, state *State) error {
	if sink == nil {
		return nil
	}
	kept := &state.Kept[len(state.Kept)-1]
	path, err := sink.Keep(ctx, kept.Frame, kept.Seq)
	if err != nil {
		return fmt.Errorf("persist frame %d: %w", kept.Index, err)
	}
	kept.OutputPath = path
	kept.Image = nil
	return nil
}

func (s *Selector) full(state *State) bool {
	return s.config.MaxFrames > 0 && state.Stats.Kept >= s.config.MaxFrames
}

// IntervalStep is the frame distance between fixed interval samples
func IntervalStep(fps, intervalSeconds float64) int {
	step := int(math.Round(fps * intervalSeconds))
	if step < 1 {
		return 1
	}
	return step
}

// KeyFrameIndices spreads n indices evenly over total frames. Indices that
// would not increase are dropped.
func KeyFrameIndices(total, n int) []int {
	if total <= 0 || n <= 0 {
		return nil
	}
	step := total / (n + 1)
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		index := step * (i + 1)
		if index >= total {
			break
		}
		if len(indices) > 0 && index <= indices[len(indices)-1] {
			continue
		}
		indices = append(indices, index)
	}
	return indices
}

// progress logs every 10% of the source
type progress struct {
	logger *zap.Logger
	name   string
	total  int
	last   int
}

func newProgress(logger *zap.Logger, info source.Info) *progress {
	return &progress{logger: logger, name: info.Name, total: info.TotalFrames}
}

func (p *progress) update(done int, state *State) {
	if p.total <= 0 {
		return
	}
	percent := done * 100 / p.total
	if percent < p.last+10 {
		return
	}
	p.last = percent
	p.logger.Info("progress",
		zap.String("source", p.name),
		zap.Int("percent", percent),
		zap.Int("processed", done),
		zap.Int("total", p.total),
		zap.Int("kept", state.Stats.Kept),
	)
}
