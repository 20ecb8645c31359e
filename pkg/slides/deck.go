// Package slides renders kept frames as a reveal.js markdown deck with one
// full screen background image per slide.
package slides

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/video-slides/internal/utils"
)

// ErrNoFrames is returned when a frames directory holds no slide images
var ErrNoFrames = errors.New("no frame images found")

// Defaults for the optional front matter
const (
	DefaultTitle = "Presentation"
	DefaultTheme = "white"
)

// slideExts are the image types reveal.js backgrounds are built from
var slideExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}

// Slide is one deck entry
type Slide struct {
	// ImagePath is the frame image on disk
	ImagePath string
	// Notes become the reveal.js speaker notes when set
	Notes string
}

// Options controls rendering
type Options struct {
	Title string `yaml:"title"`
	Theme string `yaml:"theme"`
	// FrontMatter writes title and theme as a YAML header
	FrontMatter bool `yaml:"-"`
}

// DefaultOptions renders the bare deck
func DefaultOptions() Options {
	return Options{Title: DefaultTitle, Theme: DefaultTheme}
}

// Render writes the deck to w. Image paths are made relative to baseDir and
// always use forward slashes.
func Render(w io.Writer, slides []Slide, baseDir string, opts Options) error {
	var buf bytes.Buffer

	if opts.FrontMatter {
		header, err := yaml.Marshal(frontMatter(opts))
		if err != nil {
			return fmt.Errorf("failed to encode front matter: %w", err)
		}
		buf.WriteString("---\n")
		buf.Write(header)
		buf.WriteString("---\n\n")
	}

	for i, slide := range slides {
		rel, err := relativePath(baseDir, slide.ImagePath)
		if err != nil {
			return err
		}
		if i > 0 {
			buf.WriteString("---\n\n")
		}
		fmt.Fprintf(&buf, "<!-- .slide: data-background=\"%s\" data-background-size=\"contain\" data-background-color=\"black\" -->\n\n", rel)
		buf.WriteString("<!-- Add your slide content here -->\n\n")
		if notes := strings.TrimSpace(slide.Notes); notes != "" {
			buf.WriteString("Note:\n")
			buf.WriteString(notes)
			buf.WriteString("\n\n")
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile renders the deck to outputFile, creating its directory. Image
// paths are relative to the directory of outputFile.
func WriteFile(outputFile string, slides []Slide, opts Options) error {
	dir := filepath.Dir(outputFile)
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, slides, dir, opts); err != nil {
		return err
	}
	if err := os.WriteFile(outputFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write deck: %w", err)
	}
	return nil
}

// FromDirectory collects slides from a frames directory. Frames grouped into
// per-video subdirectories are ordered by subdirectory name, ignoring case;
// otherwise the images directly inside framesDir are used.
func FromDirectory(framesDir string) ([]Slide, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory: %w", err)
	}

	var groups []string
	for _, entry := range entries {
		if entry.IsDir() {
			groups = append(groups, filepath.Join(framesDir, entry.Name()))
		}
	}

	var slides []Slide
	if len(groups) > 0 {
		utils.SortCaseInsensitive(groups)
		for _, group := range groups {
			images, err := listSlideImages(group)
			if err != nil {
				return nil, err
			}
			slides = append(slides, images...)
		}
	} else {
		slides, err = listSlideImages(framesDir)
		if err != nil {
			return nil, err
		}
	}

	if len(slides) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, framesDir)
	}
	return slides, nil
}

// Generate builds a deck from framesDir and writes it to outputFile. It
// returns the number of slides.
func Generate(framesDir, outputFile string, opts Options) (int, error) {
	slides, err := FromDirectory(framesDir)
	if err != nil {
		return 0, err
	}
	if err := WriteFile(outputFile, slides, opts); err != nil {
		return 0, err
	}
	return len(slides), nil
}

func listSlideImages(dir string) ([]Slide, error) {
	files, err := utils.ListImageFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var slides []Slide
	for _, f := range files {
		if slideExts[utils.GetFileExtension(f)] {
			slides = append(slides, Slide{ImagePath: f})
		}
	}
	return slides, nil
}

func relativePath(baseDir, path string) (string, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", baseDir, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

func frontMatter(opts Options) Options {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Theme == "" {
		opts.Theme = DefaultTheme
	}
	return opts
}
