package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Probe holds the stream properties needed to decode raw frames. Width and
// Height are the displayed size: ffmpeg applies the rotation on output, so a
// quarter turn swaps the coded dimensions.
type Probe struct {
	FPS         float64 `json:"fps"`
	Duration    float64 `json:"duration"`
	TotalFrames int     `json:"total_frames"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	// Rotation in degrees, normalized to [0, 360)
	Rotation int `json:"rotation"`
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
		Tags         struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

// ProbeVideo runs ffprobe against path and reports its first video stream
func ProbeVideo(ctx context.Context, ffprobePath, path string) (*Probe, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(data []byte) (*Probe, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, stream := range out.Streams {
		if stream.CodecType != "video" {
			continue
		}

		p := &Probe{
			Width:  stream.Width,
			Height: stream.Height,
			FPS:    parseFrameRate(stream.RFrameRate),
		}
		if p.FPS <= 0 {
			p.FPS = parseFrameRate(stream.AvgFrameRate)
		}

		p.Duration = parseFloat(out.Format.Duration)
		if p.Duration <= 0 {
			p.Duration = parseFloat(stream.Duration)
		}

		if n, err := strconv.Atoi(strings.TrimSpace(stream.NbFrames)); err == nil && n > 0 {
			p.TotalFrames = n
		} else if p.FPS > 0 {
			p.TotalFrames = int(math.Round(p.Duration * p.FPS))
		}

		if p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("video stream has invalid dimensions %dx%d", p.Width, p.Height)
		}

		// Display matrix side data wins over the legacy rotate tag
		rotation := parseFloat(stream.Tags.Rotate)
		for _, sd := range stream.SideDataList {
			if sd.Rotation != nil {
				rotation = *sd.Rotation
				break
			}
		}
		p.Rotation = normalizeRotation(rotation)
		if p.Rotation == 90 || p.Rotation == 270 {
			p.Width, p.Height = p.Height, p.Width
		}
		return p, nil
	}

	return nil, fmt.Errorf("no video stream found")
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25"
func parseFrameRate(rate string) float64 {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return 0
	}
	parts := strings.Split(rate, "/")
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil || den <= 0 {
			return 0
		}
		return num / den
	}
	return parseFloat(rate)
}

// normalizeRotation snaps degrees to the nearest quarter turn in [0, 360)
func normalizeRotation(deg float64) int {
	r := int(math.Round(deg/90)) * 90 % 360
	if r < 0 {
		r += 360
	}
	return r
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
