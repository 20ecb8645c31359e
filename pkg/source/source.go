// Package source defines the frame sequence consumed by the selector and
// provides in-memory and directory backed implementations.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Error taxonomy shared by every source implementation
var (
	// ErrSourceNotFound means the input path does not exist
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceUnreadable means the container or codec could not be opened
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrFrameDecode means a single frame could not be decoded
	ErrFrameDecode = errors.New("frame decode failure")
)

// Info describes a source
type Info struct {
	Name        string  `json:"name"`
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"total_frames"`
	Duration    float64 `json:"duration"`
}

// Frame is a decoded raster image with its provenance. Frames are never
// mutated after creation.
type Frame struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Origin    string  `json:"origin"`
	// Path is set when the frame was read from a file
	Path  string      `json:"path,omitempty"`
	Image image.Image `json:"-"`
}

// Candidate is a frame position whose pixels are decoded only on Load
type Candidate struct {
	Index     int
	Timestamp float64
	Origin    string
	Path      string
	load      func() (image.Image, error)
}

// NewCandidate builds a candidate with a lazy decoder
func NewCandidate(index int, timestamp float64, origin, path string, load func() (image.Image, error)) Candidate {
	return Candidate{
		Index:     index,
		Timestamp: timestamp,
		Origin:    origin,
		Path:      path,
		load:      load,
	}
}

// Load decodes the candidate. Failures wrap ErrFrameDecode.
func (c Candidate) Load() (Frame, error) {
	if c.load == nil {
		return Frame{}, fmt.Errorf("%w: frame %d has no decoder", ErrFrameDecode, c.Index)
	}
	img, err := c.load()
	if err != nil {
		if errors.Is(err, ErrFrameDecode) {
			return Frame{}, err
		}
		return Frame{}, fmt.Errorf("%w: frame %d: %v", ErrFrameDecode, c.Index, err)
	}
	if img == nil || img.Bounds().Empty() {
		return Frame{}, fmt.Errorf("%w: frame %d is empty", ErrFrameDecode, c.Index)
	}
	return Frame{
		Index:     c.Index,
		Timestamp: c.Timestamp,
		Origin:    c.Origin,
		Path:      c.Path,
		Image:     img,
	}, nil
}

// Source yields candidates in increasing index order. Next returns io.EOF
// once the sequence is exhausted.
type Source interface {
	Info() Info
	Next(ctx context.Context) (Candidate, error)
	Close() error
}

// Seeker is implemented by sources that can jump to a frame index
type Seeker interface {
	Seek(ctx context.Context, index int) (Candidate, error)
}

// Timestamp converts a frame index to seconds
func Timestamp(index int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(index) / fps
}
