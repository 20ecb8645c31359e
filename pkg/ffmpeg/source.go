// Package ffmpeg decodes videos into frame sources by piping raw RGB frames
// out of the ffmpeg binary.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/menta2k/video-slides/pkg/source"
)

// Config locates the ffmpeg binaries
type Config struct {
	FFmpegPath  string
	FFprobePath string
}

// DefaultConfig resolves both binaries from PATH
func DefaultConfig() Config {
	return Config{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// Source streams decoded frames of one video
type Source struct {
	config Config
	path   string
	info   source.Info
	probe  *Probe
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	next   int
	done   bool
}

// Open probes path and prepares it for decoding. The decoder process starts
// on the first call to Next and lives until Close or ctx is cancelled.
func Open(ctx context.Context, path string, config Config, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", source.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", source.ErrSourceUnreadable, err)
	}

	probe, err := ProbeVideo(ctx, config.FFprobePath, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", source.ErrSourceUnreadable, path, err)
	}
	if probe.FPS <= 0 {
		return nil, fmt.Errorf("%w: %s: unknown frame rate", source.ErrSourceUnreadable, path)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Source{
		config: config,
		path:   path,
		probe:  probe,
		logger: logger,
		ctx:    runCtx,
		cancel: cancel,
		info: source.Info{
			Name:        filepath.Base(path),
			FPS:         probe.FPS,
			TotalFrames: probe.TotalFrames,
			Duration:    probe.Duration,
		},
	}

	logger.Debug("video opened",
		zap.String("path", path),
		zap.Float64("fps", probe.FPS),
		zap.Int("total_frames", probe.TotalFrames),
		zap.Float64("duration", probe.Duration),
		zap.Int("width", probe.Width),
		zap.Int("height", probe.Height),
		zap.Int("rotation", probe.Rotation),
	)
	return s, nil
}

// Info describes the video
func (s *Source) Info() source.Info {
	return s.info
}

// Probe returns the ffprobe results
func (s *Source) Probe() Probe {
	return *s.probe
}

func (s *Source) frameSize() int {
	return s.probe.Width * s.probe.Height * 3
}

func (s *Source) start() error {
	cmd := exec.CommandContext(s.ctx, s.config.FFmpegPath,
		"-v", "error",
		"-i", s.path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", source.ErrSourceUnreadable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", source.ErrSourceUnreadable, err)
	}
	s.cmd = cmd
	s.stdout = stdout
	s.reader = bufio.NewReaderSize(stdout, s.frameSize())
	return nil
}

// Next reads the next frame from the decoder. Pixels are copied eagerly but
// converted to an image only when the candidate is loaded.
func (s *Source) Next(ctx context.Context) (source.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return source.Candidate{}, err
	}
	if s.done {
		return source.Candidate{}, io.EOF
	}
	if s.cmd == nil {
		if err := s.start(); err != nil {
			return source.Candidate{}, err
		}
	}

	buf := make([]byte, s.frameSize())
	_, err := io.ReadFull(s.reader, buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Debug("dropping truncated trailing frame", zap.String("path", s.path), zap.Int("index", s.next))
		}
		s.finish()
		return source.Candidate{}, io.EOF
	default:
		s.finish()
		return source.Candidate{}, fmt.Errorf("%w: read frame %d: %v", source.ErrSourceUnreadable, s.next, err)
	}

	index := s.next
	s.next++
	return s.candidate(index, buf), nil
}

// Seek decodes the single frame at index using input seeking
func (s *Source) Seek(ctx context.Context, index int) (source.Candidate, error) {
	if index < 0 {
		return source.Candidate{}, fmt.Errorf("%w: negative index %d", source.ErrFrameDecode, index)
	}
	ts := source.Timestamp(index, s.info.FPS)
	cmd := exec.CommandContext(ctx, s.config.FFmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 6, 64),
		"-i", s.path,
		"-map", "0:v:0",
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	output, err := cmd.Output()
	if err != nil {
		return source.Candidate{}, fmt.Errorf("%w: seek to frame %d: %v", source.ErrFrameDecode, index, err)
	}
	return s.candidate(index, output), nil
}

// Close stops the decoder process
func (s *Source) Close() error {
	s.finish()
	return nil
}

func (s *Source) finish() {
	if s.done {
		return
	}
	s.done = true
	s.cancel()
	if s.cmd != nil {
		_ = s.stdout.Close()
		_ = s.cmd.Wait()
	}
}

func (s *Source) candidate(index int, raw []byte) source.Candidate {
	w, h := s.probe.Width, s.probe.Height
	return source.NewCandidate(index, source.Timestamp(index, s.info.FPS), s.info.Name, s.path, func() (image.Image, error) {
		return rgbToImage(raw, w, h)
	})
}

// rgbToImage converts packed rgb24 pixels to an opaque NRGBA image
func rgbToImage(raw []byte, w, h int) (image.Image, error) {
	if len(raw) != w*h*3 {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", source.ErrFrameDecode, len(raw), w*h*3)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(raw); i, j = i+3, j+4 {
		img.Pix[j] = raw[i]
		img.Pix[j+1] = raw[i+1]
		img.Pix[j+2] = raw[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}
