// Package videoslides turns recorded talks into slide decks.
//
// Each video is decoded with ffmpeg and walked frame by frame. Frames that
// are black or faded are dropped, frames that look like the previously kept
// slide are skipped, and the remaining frames are written as images that a
// reveal.js markdown deck points at.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		videoslides "github.com/menta2k/video-slides"
//		"github.com/menta2k/video-slides/pkg/slides"
//	)
//
//	func main() {
//		ctx := context.Background()
//		extractor := videoslides.New()
//
//		batch, err := extractor.ExtractVideos(ctx, "talks/", "frames")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("%d videos, %d slides", len(batch.Videos), batch.TotalKept())
//
//		if _, err := extractor.WriteDeck(ctx, batch.Slides(), "slides.md", slides.DefaultOptions(), nil); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// Selection modes:
//
//   - change-detection keeps a frame when it differs from the last kept one
//   - fixed-interval keeps one frame every N seconds
//   - key-frames keeps N frames spread evenly over the video
//
// A directory of frames that were extracted earlier can be deduplicated with
// DedupeDirectory, which applies the same rules and additionally folds black
// frames into the preceding slide.
package videoslides

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/video-slides/internal/metrics"
	"github.com/menta2k/video-slides/internal/utils"
	"github.com/menta2k/video-slides/pkg/annotate"
	"github.com/menta2k/video-slides/pkg/ffmpeg"
	"github.com/menta2k/video-slides/pkg/processing"
	"github.com/menta2k/video-slides/pkg/selector"
	"github.com/menta2k/video-slides/pkg/slides"
	"github.com/menta2k/video-slides/pkg/source"
)

// Version of the video slides library
const Version = "1.0.0"

// Opener opens a video as a frame source
type Opener func(ctx context.Context, path string) (source.Source, error)

// Config holds the extractor settings
type Config struct {
	Selector selector.Config
	Dedupe   selector.Config

	OutputFormat   string
	OutputQuality  int
	OutputLossless bool
	// OutputMaxWidth downscales wider frames before they are written. It
	// never affects comparison.
	OutputMaxWidth int

	// Workers bounds how many videos are processed at once
	Workers int
	FFmpeg  ffmpeg.Config
}

// DefaultConfig returns change detection with stream thresholds and JPEG
// output at quality 95
func DefaultConfig() Config {
	return Config{
		Selector:       selector.DefaultConfig(),
		Dedupe:         selector.BatchConfig(),
		OutputFormat:   processing.DefaultFormat,
		OutputQuality:  processing.DefaultQuality,
		OutputMaxWidth: processing.DefaultMaxWidth,
		Workers:        1,
		FFmpeg:         ffmpeg.DefaultConfig(),
	}
}

// Extractor runs the extraction pipeline
type Extractor struct {
	config    Config
	processor *processing.Processor
	opener    Opener
	logger    *zap.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithOpener replaces the ffmpeg video opener
func WithOpener(opener Opener) Option {
	return func(e *Extractor) {
		if opener != nil {
			e.opener = opener
		}
	}
}

// New creates an Extractor with default configuration
func New(opts ...Option) *Extractor {
	return NewWithConfig(DefaultConfig(), opts...)
}

// NewWithConfig creates an Extractor with custom configuration
func NewWithConfig(config Config, opts ...Option) *Extractor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.OutputQuality <= 0 {
		config.OutputQuality = processing.DefaultQuality
	}
	config.OutputFormat = processing.NormalizeFormat(config.OutputFormat)

	e := &Extractor{
		config:    config,
		processor: processing.NewProcessor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.opener == nil {
		e.opener = func(ctx context.Context, path string) (source.Source, error) {
			src, err := ffmpeg.Open(ctx, path, e.config.FFmpeg, e.logger)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
	}
	return e
}

// Config returns the active configuration
func (e *Extractor) Config() Config {
	return e.config
}

// VideoResult is the outcome for one video
type VideoResult struct {
	Video     string           `json:"video"`
	OutputDir string           `json:"output_dir"`
	Result    *selector.Result `json:"result,omitempty"`
	Err       error            `json:"-"`
}

// Frames returns the written frame paths in order
func (r *VideoResult) Frames() []string {
	if r.Result == nil {
		return nil
	}
	paths := make([]string, 0, len(r.Result.Kept))
	for _, k := range r.Result.Kept {
		if k.OutputPath != "" {
			paths = append(paths, k.OutputPath)
		}
	}
	return paths
}

// BatchResult collects the outcome of a multi video run
type BatchResult struct {
	RunID  string         `json:"run_id"`
	Videos []*VideoResult `json:"videos"`
}

// TotalKept counts the frames written for all videos
func (b *BatchResult) TotalKept() int {
	total := 0
	for _, v := range b.Videos {
		if v.Result != nil {
			total += v.Result.Stats.Kept
		}
	}
	return total
}

// Failed returns the videos that could not be processed
func (b *BatchResult) Failed() []*VideoResult {
	var failed []*VideoResult
	for _, v := range b.Videos {
		if v.Err != nil {
			failed = append(failed, v)
		}
	}
	return failed
}

// Slides lists every written frame in video order
func (b *BatchResult) Slides() []slides.Slide {
	var deck []slides.Slide
	for _, v := range b.Videos {
		for _, path := range v.Frames() {
			deck = append(deck, slides.Slide{ImagePath: path})
		}
	}
	return deck
}

// ExtractVideo selects frames from one video and writes them to
// outDir/<video name>/
func (e *Extractor) ExtractVideo(ctx context.Context, videoPath, outDir string) (*VideoResult, error) {
	return e.extract(ctx, videoPath, outDir, e.logger)
}

func (e *Extractor) extract(ctx context.Context, videoPath, outDir string, logger *zap.Logger) (res *VideoResult, err error) {
	res = &VideoResult{
		Video:     videoPath,
		OutputDir: filepath.Join(outDir, utils.Stem(videoPath)),
	}
	defer func() {
		res.Err = err
		metrics.RecordVideo(err)
	}()

	src, err := e.opener(ctx, videoPath)
	if err != nil {
		return res, fmt.Errorf("failed to open %s: %w", videoPath, err)
	}
	defer src.Close()

	// Frames from an earlier run of the same video would mix into the deck
	if err := os.RemoveAll(res.OutputDir); err != nil {
		return res, fmt.Errorf("failed to clear output directory: %w", err)
	}
	if err := utils.EnsureDir(res.OutputDir); err != nil {
		return res, fmt.Errorf("failed to create output directory: %w", err)
	}

	info := src.Info()
	logger.Info("processing video",
		zap.String("video", videoPath),
		zap.Float64("fps", info.FPS),
		zap.Float64("duration", info.Duration),
		zap.Int("total_frames", info.TotalFrames),
	)

	start := time.Now()
	sel := selector.NewWithConfig(e.config.Selector, selector.WithLogger(logger))
	result, err := sel.Run(ctx, src, e.frameSink(res.OutputDir))
	if err != nil {
		if rerr := os.RemoveAll(res.OutputDir); rerr != nil {
			logger.Warn("failed to remove partial output", zap.String("dir", res.OutputDir), zap.Error(rerr))
		}
		return res, fmt.Errorf("failed to select frames from %s: %w", videoPath, err)
	}
	res.Result = result
	metrics.RecordSelection(e.config.Selector.Mode, result.Stats, time.Since(start))

	return res, nil
}

// frameSink writes kept frames as frame_NNNN_tS.SSs.<ext>
func (e *Extractor) frameSink(dir string) selector.Sink {
	return selector.SinkFunc(func(ctx context.Context, frame source.Frame, seq int) (string, error) {
		img := e.processor.ScaleForOutput(frame.Image, e.config.OutputMaxWidth)
		path := filepath.Join(dir, utils.FrameFilename(seq, frame.Timestamp, e.config.OutputFormat))
		if err := e.processor.SaveImage(img, path, e.config.OutputFormat, e.config.OutputQuality, e.config.OutputLossless); err != nil {
			return "", fmt.Errorf("failed to save %s: %w", path, err)
		}
		return path, nil
	})
}

// ExtractVideos processes a video file or every video in a directory, in
// case-insensitive name order. A video that fails is recorded in the result
// and does not stop the others.
func (e *Extractor) ExtractVideos(ctx context.Context, inputPath, outDir string) (*BatchResult, error) {
	videos, err := utils.ListVideoFiles(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", source.ErrSourceNotFound, inputPath)
		}
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w: no video files in %s", source.ErrSourceNotFound, inputPath)
	}

	batch := &BatchResult{
		RunID:  uuid.New().String(),
		Videos: make([]*VideoResult, len(videos)),
	}
	logger := e.logger.With(zap.String("run_id", batch.RunID))
	logger.Info("starting batch",
		zap.Int("videos", len(videos)),
		zap.Int("workers", e.config.Workers),
		zap.String("mode", string(e.config.Selector.Mode)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	var mu sync.Mutex

	for i, video := range videos {
		i, video := i, video
		g.Go(func() error {
			metrics.ActiveWorkers.Inc()
			defer metrics.ActiveWorkers.Dec()

			res, err := e.extract(gctx, video, outDir, logger)
			if err != nil {
				logger.Error("video failed", zap.String("video", video), zap.Error(err))
			}
			mu.Lock()
			batch.Videos[i] = res
			mu.Unlock()

			// Only cancellation stops the batch
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return batch, err
	}

	logger.Info("batch complete",
		zap.Int("videos", len(videos)),
		zap.Int("failed", len(batch.Failed())),
		zap.Int("frames", batch.TotalKept()),
	)
	return batch, nil
}

// DedupeDirectory runs the batch pass over frames already on disk. When
// outDir is set the kept images are copied there under their original names.
func (e *Extractor) DedupeDirectory(ctx context.Context, dir, outDir string) (*selector.Result, error) {
	src, err := source.OpenDir(dir)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var sink selector.Sink
	if outDir != "" {
		if err := utils.EnsureDir(outDir); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		same, err := sameDir(dir, outDir)
		if err != nil {
			return nil, err
		}
		if same {
			return nil, fmt.Errorf("dedupe output %s is the input directory", outDir)
		}
		sink = selector.SinkFunc(func(ctx context.Context, frame source.Frame, seq int) (string, error) {
			dst := filepath.Join(outDir, filepath.Base(frame.Path))
			if err := copyFile(frame.Path, dst); err != nil {
				return "", err
			}
			return dst, nil
		})
	}

	config := e.config.Dedupe
	config.Pipeline = selector.PipelineBatch
	config.Mode = selector.ModeChangeDetection

	start := time.Now()
	result, err := selector.NewWithConfig(config, selector.WithLogger(e.logger)).Run(ctx, src, sink)
	if err != nil {
		return nil, err
	}
	metrics.RecordSelection(config.Mode, result.Stats, time.Since(start))
	return result, nil
}

// GenerateSlides rebuilds a reveal.js deck from every frame under
// framesDir. Speaker notes are added when an annotator is given.
func (e *Extractor) GenerateSlides(ctx context.Context, framesDir, outputFile string, opts slides.Options, annotator *annotate.Annotator) (int, error) {
	if annotator == nil {
		n, err := slides.Generate(framesDir, outputFile, opts)
		if err != nil {
			return 0, err
		}
		e.logger.Info("deck written", zap.String("file", outputFile), zap.Int("slides", n))
		return n, nil
	}

	deck, err := slides.FromDirectory(framesDir)
	if err != nil {
		return 0, err
	}
	return e.WriteDeck(ctx, deck, outputFile, opts, annotator)
}

// WriteDeck writes a reveal.js deck for the given slides, typically
// BatchResult.Slides of the current run. Speaker notes are added when an
// annotator is given.
func (e *Extractor) WriteDeck(ctx context.Context, deck []slides.Slide, outputFile string, opts slides.Options, annotator *annotate.Annotator) (int, error) {
	if len(deck) == 0 {
		return 0, slides.ErrNoFrames
	}
	if annotator != nil {
		var err error
		deck, err = annotator.Annotate(ctx, deck)
		if err != nil {
			return 0, fmt.Errorf("failed to annotate slides: %w", err)
		}
	}
	if err := slides.WriteFile(outputFile, deck, opts); err != nil {
		return 0, err
	}
	e.logger.Info("deck written", zap.String("file", outputFile), zap.Int("slides", len(deck)))
	return len(deck), nil
}

// sameDir reports whether a and b name the same directory
func sameDir(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	// Creating dst would truncate src
	if srcInfo, err := in.Stat(); err == nil {
		if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
			return nil
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
