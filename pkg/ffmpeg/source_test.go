package ffmpeg

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/video-slides/pkg/source"
)

const sampleProbe = `{
  "streams": [
    {"codec_type": "audio", "r_frame_rate": "0/0"},
    {"codec_type": "video", "width": 1280, "height": 720,
     "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "nb_frames": "450"}
  ],
  "format": {"duration": "15.015000"}
}`

func TestParseProbe(t *testing.T) {
	p, err := parseProbe([]byte(sampleProbe))
	require.NoError(t, err)

	assert.Equal(t, 1280, p.Width)
	assert.Equal(t, 720, p.Height)
	assert.InDelta(t, 29.97, p.FPS, 0.001)
	assert.Equal(t, 450, p.TotalFrames)
	assert.InDelta(t, 15.015, p.Duration, 1e-9)
}

func TestParseProbeEstimatesFrameCount(t *testing.T) {
	data := `{"streams":[{"codec_type":"video","width":64,"height":48,"r_frame_rate":"0/0","avg_frame_rate":"25/1"}],"format":{"duration":"4.0"}}`
	p, err := parseProbe([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, 25.0, p.FPS)
	assert.Equal(t, 100, p.TotalFrames)
}

func TestParseProbeErrors(t *testing.T) {
	_, err := parseProbe([]byte(`not json`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`{"streams":[{"codec_type":"audio"}]}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`{"streams":[{"codec_type":"video","width":0,"height":0}]}`))
	assert.Error(t, err)
}

func TestParseProbeRotation(t *testing.T) {
	tests := []struct {
		name     string
		stream   string
		width    int
		height   int
		rotation int
	}{
		{"display matrix", `"side_data_list":[{"side_data_type":"Display Matrix","rotation":-90}]`, 1080, 1920, 270},
		{"rotate tag", `"tags":{"rotate":"90"}`, 1080, 1920, 90},
		{"side data wins", `"tags":{"rotate":"90"},"side_data_list":[{"side_data_type":"Display Matrix","rotation":180}]`, 1920, 1080, 180},
		{"upside down", `"tags":{"rotate":"180"}`, 1920, 1080, 180},
		{"none", `"side_data_list":[{"side_data_type":"CPB properties"}]`, 1920, 1080, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := `{"streams":[{"codec_type":"video","width":1920,"height":1080,"r_frame_rate":"30/1","nb_frames":"30",` +
				tt.stream + `}],"format":{"duration":"1.0"}}`
			p, err := parseProbe([]byte(data))
			require.NoError(t, err)

			assert.Equal(t, tt.width, p.Width)
			assert.Equal(t, tt.height, p.Height)
			assert.Equal(t, tt.rotation, p.Rotation)
		})
	}
}

func TestNormalizeRotation(t *testing.T) {
	assert.Equal(t, 0, normalizeRotation(0))
	assert.Equal(t, 270, normalizeRotation(-90))
	assert.Equal(t, 90, normalizeRotation(450))
	assert.Equal(t, 90, normalizeRotation(89.6))
	assert.Equal(t, 0, normalizeRotation(-360))
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
		{"24000/1001", 24000.0 / 1001.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, parseFrameRate(tt.in), 1e-9, tt.in)
	}
}

func TestRGBToImage(t *testing.T) {
	raw := []byte{255, 0, 0, 0, 0, 255}
	img, err := rgbToImage(raw, 2, 1)
	require.NoError(t, err)

	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a})
	r, g, b, _ = img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0, 0, 0xffff}, []uint32{r, g, b})

	_, err = rgbToImage(raw[:5], 2, 1)
	assert.ErrorIs(t, err, source.ErrFrameDecode)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), DefaultConfig(), nil)
	assert.ErrorIs(t, err, source.ErrSourceNotFound)
}

// requireFFmpeg skips tests that need the ffmpeg binaries
func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
}

func TestOpenUnreadableFile(t *testing.T) {
	requireFFmpeg(t)

	path := filepath.Join(t.TempDir(), "broken.mp4")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a video"), 0o644))

	_, err := Open(context.Background(), path, DefaultConfig(), nil)
	assert.ErrorIs(t, err, source.ErrSourceUnreadable)
}

func TestDecodeGeneratedClip(t *testing.T) {
	requireFFmpeg(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "clip.mkv")
	cmd := exec.Command("ffmpeg", "-v", "error",
		"-f", "lavfi", "-i", "color=c=red:s=64x48:r=10:d=2",
		"-c:v", "ffv1", path)
	require.NoError(t, cmd.Run())

	src, err := Open(ctx, path, DefaultConfig(), nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 10.0, src.Info().FPS)
	assert.Equal(t, 64, src.Probe().Width)

	count := 0
	for {
		c, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, count, c.Index)

		f, err := c.Load()
		require.NoError(t, err)
		assert.Equal(t, 64, f.Image.Bounds().Dx())
		count++
	}
	assert.Equal(t, 20, count)

	c, err := src.Seek(ctx, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.Timestamp, 1e-9)
	f, err := c.Load()
	require.NoError(t, err)
	r, _, _, _ := f.Image.At(10, 10).RGBA()
	assert.Greater(t, r>>8, uint32(200))
}
