package annotate

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/video-slides/pkg/processing"
	"github.com/menta2k/video-slides/pkg/slides"
	"github.com/menta2k/video-slides/pkg/types"
)

type fakeClient struct {
	notes   map[string]*types.SlideNote
	prompts []string
	calls   int
}

func (f *fakeClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return "a slide", nil
}

func (f *fakeClient) DescribeSlide(ctx context.Context, model, prompt, imgB64 string) (*types.SlideNote, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.calls == 2 {
		return nil, errors.New("model overloaded")
	}
	return &types.SlideNote{
		Title:  "Slide",
		Points: []string{"a", "b", "c", "d", "e", "f"},
		Tags:   []string{" Chart", "chart", "", "Q3"},
	}, nil
}

func createTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 128, 255})
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, processing.NewProcessor().SaveImage(img, path, "jpg", 90, false))
	return path
}

func TestDescribeNormalizes(t *testing.T) {
	fc := &fakeClient{}
	a := New(fc, Config{Model: "llava"}, nil)

	note, err := a.Describe(context.Background(), createTestImage(t, t.TempDir(), "a.jpg"))
	require.NoError(t, err)

	assert.Equal(t, []string{"chart", "q3"}, note.Tags)
	assert.Len(t, note.Points, 5)
	assert.Equal(t, []string{DefaultPrompt}, fc.prompts)
}

func TestDescribeMissingImage(t *testing.T) {
	a := New(&fakeClient{}, DefaultConfig(), nil)
	_, err := a.Describe(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestAnnotateSkipsFailures(t *testing.T) {
	dir := t.TempDir()
	deck := []slides.Slide{
		{ImagePath: createTestImage(t, dir, "a.jpg")},
		{ImagePath: createTestImage(t, dir, "b.jpg")},
		{ImagePath: createTestImage(t, dir, "c.jpg")},
	}

	out, err := New(&fakeClient{}, DefaultConfig(), nil).Annotate(context.Background(), deck)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Contains(t, out[0].Notes, "**Slide**")
	assert.Empty(t, out[1].Notes)
	assert.NotEmpty(t, out[2].Notes)
	assert.Empty(t, deck[0].Notes)
}

func TestAnnotateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeClient{}, DefaultConfig(), nil).Annotate(ctx, []slides.Slide{{ImagePath: "x.jpg"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTestVision(t *testing.T) {
	fc := &fakeClient{}
	out, err := New(fc, DefaultConfig(), nil).TestVision(context.Background(), createTestImage(t, t.TempDir(), "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "a slide", out)
	assert.Equal(t, []string{SimpleTestPrompt}, fc.prompts)
}
