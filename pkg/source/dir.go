package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/menta2k/video-slides/internal/utils"
	"github.com/menta2k/video-slides/pkg/processing"
)

// timestampPattern matches the _t12.50s suffix written by the extractor
var timestampPattern = regexp.MustCompile(`_t(\d+(?:\.\d+)?)s`)

// Dir serves already extracted images from one directory in alphabetical
// file name order
type Dir struct {
	info      Info
	paths     []string
	pos       int
	processor *processing.Processor
}

// OpenDir lists the images inside dir
func OpenDir(dir string) (*Dir, error) {
	st, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, dir)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceUnreadable, dir)
	}

	paths, err := utils.ListImageFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	return &Dir{
		info: Info{
			Name:        filepath.Base(filepath.Clean(dir)),
			TotalFrames: len(paths),
		},
		paths:     paths,
		processor: processing.NewProcessor(),
	}, nil
}

// Info describes the directory
func (d *Dir) Info() Info {
	return d.info
}

// Next returns the next image or io.EOF
func (d *Dir) Next(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	if d.pos >= len(d.paths) {
		return Candidate{}, io.EOF
	}
	c := d.candidate(d.pos)
	d.pos++
	return c, nil
}

// Seek positions the directory at index
func (d *Dir) Seek(ctx context.Context, index int) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	if index < 0 || index >= len(d.paths) {
		return Candidate{}, fmt.Errorf("%w: seek to %d beyond %d images", ErrFrameDecode, index, len(d.paths))
	}
	d.pos = index + 1
	return d.candidate(index), nil
}

// Close is a no-op
func (d *Dir) Close() error {
	return nil
}

func (d *Dir) candidate(index int) Candidate {
	path := d.paths[index]
	return NewCandidate(index, TimestampFromName(path, float64(index)), d.info.Name, path, func() (image.Image, error) {
		return d.processor.LoadImage(path)
	})
}

// TimestampFromName extracts the timestamp encoded in a frame file name,
// returning fallback when the name carries none
func TimestampFromName(path string, fallback float64) float64 {
	m := timestampPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return fallback
	}
	ts, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fallback
	}
	return ts
}
