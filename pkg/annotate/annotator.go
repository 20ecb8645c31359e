// Package annotate writes speaker notes for slides with a vision model.
package annotate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/video-slides/pkg/client"
	"github.com/menta2k/video-slides/pkg/processing"
	"github.com/menta2k/video-slides/pkg/slides"
	"github.com/menta2k/video-slides/pkg/types"
)

// SimpleTestPrompt checks that the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for structured notes about a presentation slide
const DefaultPrompt = `You are writing speaker notes for a presentation slide captured from a video.

Return JSON only:
{
  "title": "slide heading or a short topic (<= 8 words)",
  "summary": "one neutral sentence describing what the slide shows",
  "points": ["key point 1", "key point 2", "key point 3"],
  "tags": ["tag1", "tag2", "tag3"]
}

RULES
- Transcribe visible headings exactly when present.
- At most 5 points; each under 15 words.
- If the slide is a photo or a speaker shot, describe it in the summary and leave points empty.
- Tags: lowercase, concise, no punctuation or duplicates.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Config holds annotator settings
type Config struct {
	Model string
	// Prompt overrides DefaultPrompt
	Prompt string
	// MaxDimension bounds the image sent to the model
	MaxDimension int
	Quality      int
}

// DefaultConfig returns the annotator defaults
func DefaultConfig() Config {
	return Config{
		Model:        "minicpm-v",
		Prompt:       DefaultPrompt,
		MaxDimension: 1280,
		Quality:      90,
	}
}

// Annotator produces slide notes
type Annotator struct {
	client    client.VisionClient
	config    Config
	processor *processing.Processor
	logger    *zap.Logger
}

// New creates an annotator using c
func New(c client.VisionClient, config Config, logger *zap.Logger) *Annotator {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.MaxDimension <= 0 {
		config.MaxDimension = DefaultConfig().MaxDimension
	}
	if config.Quality <= 0 {
		config.Quality = DefaultConfig().Quality
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{
		client:    c,
		config:    config,
		processor: processing.NewProcessor(),
		logger:    logger,
	}
}

// Describe produces notes for the image at path
func (a *Annotator) Describe(ctx context.Context, path string) (*types.SlideNote, error) {
	img, err := a.processor.LoadImage(path)
	if err != nil {
		return nil, err
	}
	imgB64, err := a.processor.PrepareImageForModel(img, "jpg", a.config.MaxDimension, a.config.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	note, err := a.client.DescribeSlide(ctx, a.config.Model, a.config.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", path, err)
	}
	note.Tags = normalizeTags(note.Tags)
	if len(note.Points) > 5 {
		note.Points = note.Points[:5]
	}
	return note, nil
}

// TestVision asks a plain question to check the model sees the image
func (a *Annotator) TestVision(ctx context.Context, path string) (string, error) {
	img, err := a.processor.LoadImage(path)
	if err != nil {
		return "", err
	}
	imgB64, err := a.processor.PrepareImageForModel(img, "jpg", a.config.MaxDimension, a.config.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}
	return a.client.SimpleQuery(ctx, a.config.Model, SimpleTestPrompt, imgB64)
}

// Annotate fills the notes of every slide. A slide the model cannot describe
// keeps empty notes; only context cancellation stops the pass.
func (a *Annotator) Annotate(ctx context.Context, deck []slides.Slide) ([]slides.Slide, error) {
	out := make([]slides.Slide, len(deck))
	copy(out, deck)

	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		note, err := a.Describe(ctx, out[i].ImagePath)
		if err != nil {
			a.logger.Warn("slide annotation failed",
				zap.String("image", out[i].ImagePath),
				zap.Error(err),
			)
			continue
		}
		out[i].Notes = note.Markdown()
		a.logger.Debug("slide annotated",
			zap.String("image", out[i].ImagePath),
			zap.String("title", note.Title),
			zap.Strings("tags", note.Tags),
		)
	}
	return out, nil
}

// normalizeTags lowercases, dedupes and limits tags to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
