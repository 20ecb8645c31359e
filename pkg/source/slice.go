package source

import (
	"context"
	"fmt"
	"image"
	"io"
)

// Slice serves frames from memory. A nil entry behaves like a frame that
// fails to decode.
type Slice struct {
	info   Info
	images []image.Image
	pos    int
}

// NewSlice creates an in-memory source sampled at fps
func NewSlice(name string, fps float64, images []image.Image) *Slice {
	return &Slice{
		info: Info{
			Name:        name,
			FPS:         fps,
			TotalFrames: len(images),
			Duration:    Timestamp(len(images), fps),
		},
		images: images,
	}
}

// Info describes the source
func (s *Slice) Info() Info {
	return s.info
}

// Next returns the next candidate or io.EOF
func (s *Slice) Next(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	if s.pos >= len(s.images) {
		return Candidate{}, io.EOF
	}
	c := s.candidate(s.pos)
	s.pos++
	return c, nil
}

// Seek positions the source at index and returns that candidate. The
// following Next call continues after it.
func (s *Slice) Seek(ctx context.Context, index int) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	if index < 0 || index >= len(s.images) {
		return Candidate{}, fmt.Errorf("%w: seek to %d beyond %d frames", ErrFrameDecode, index, len(s.images))
	}
	s.pos = index + 1
	return s.candidate(index), nil
}

// Close is a no-op
func (s *Slice) Close() error {
	return nil
}

func (s *Slice) candidate(index int) Candidate {
	img := s.images[index]
	return NewCandidate(index, Timestamp(index, s.info.FPS), s.info.Name, "", func() (image.Image, error) {
		if img == nil {
			return nil, fmt.Errorf("%w: frame %d missing", ErrFrameDecode, index)
		}
		return img, nil
	})
}
