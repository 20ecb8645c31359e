package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/video-slides/pkg/degeneracy"
	"github.com/menta2k/video-slides/pkg/processing"
	"github.com/menta2k/video-slides/pkg/selector"
	"github.com/menta2k/video-slides/pkg/similarity"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "VIDEOSLIDES_"

// Config holds the application configuration
type Config struct {
	Selection SelectionConfig `json:"selection" yaml:"selection" envPrefix:"SELECTION_"`
	Dedupe    DedupeConfig    `json:"dedupe" yaml:"dedupe" envPrefix:"DEDUPE_"`
	Output    OutputConfig    `json:"output" yaml:"output" envPrefix:"OUTPUT_"`
	Slides    SlidesConfig    `json:"slides" yaml:"slides" envPrefix:"SLIDES_"`
	Notes     NotesConfig     `json:"notes" yaml:"notes" envPrefix:"NOTES_"`
	Publish   PublishConfig   `json:"publish" yaml:"publish" envPrefix:"PUBLISH_"`
	FFmpeg    FFmpegConfig    `json:"ffmpeg" yaml:"ffmpeg" envPrefix:"FFMPEG_"`

	Workers     int    `json:"workers" yaml:"workers" env:"WORKERS"`
	LogLevel    string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr" env:"METRICS_ADDR"`
}

// SelectionConfig configures frame selection over videos
type SelectionConfig struct {
	Mode             string                `json:"mode" yaml:"mode" env:"MODE"`
	IntervalSeconds  float64               `json:"interval_seconds" yaml:"interval_seconds" env:"INTERVAL_SECONDS"`
	NumFrames        int                   `json:"num_frames" yaml:"num_frames" env:"NUM_FRAMES"`
	MaxFrames        int                   `json:"max_frames" yaml:"max_frames" env:"MAX_FRAMES"`
	ComparisonWidth  int                   `json:"comparison_width" yaml:"comparison_width" env:"COMPARISON_WIDTH"`
	ComparisonHeight int                   `json:"comparison_height" yaml:"comparison_height" env:"COMPARISON_HEIGHT"`
	Preset           string                `json:"preset" yaml:"preset" env:"PRESET"`
	Thresholds       similarity.Thresholds `json:"thresholds" yaml:"thresholds"`
	Degeneracy       degeneracy.Config     `json:"degeneracy" yaml:"degeneracy"`
}

// DedupeConfig configures the pass over an extracted frames directory
type DedupeConfig struct {
	Preset     string                `json:"preset" yaml:"preset" env:"PRESET"`
	Thresholds similarity.Thresholds `json:"thresholds" yaml:"thresholds"`
}

// OutputConfig configures persisted frames
type OutputConfig struct {
	Dir      string `json:"dir" yaml:"dir" env:"DIR"`
	Format   string `json:"format" yaml:"format" env:"FORMAT"`
	Quality  int    `json:"quality" yaml:"quality" env:"QUALITY"`
	Lossless bool   `json:"lossless" yaml:"lossless" env:"LOSSLESS"`
	MaxWidth int    `json:"max_width" yaml:"max_width" env:"MAX_WIDTH"`
}

// SlidesConfig configures the reveal.js deck
type SlidesConfig struct {
	File        string `json:"file" yaml:"file" env:"FILE"`
	Title       string `json:"title" yaml:"title" env:"TITLE"`
	Theme       string `json:"theme" yaml:"theme" env:"THEME"`
	FrontMatter bool   `json:"front_matter" yaml:"front_matter" env:"FRONT_MATTER"`
}

// NotesConfig configures optional speaker notes from a vision model
type NotesConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Backend string `json:"backend" yaml:"backend" env:"BACKEND"`
	URL     string `json:"url" yaml:"url" env:"URL"`
	Model   string `json:"model" yaml:"model" env:"MODEL"`
}

// PublishConfig configures uploading the deck to S3 compatible storage
type PublishConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Endpoint  string `json:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `json:"access_key" yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `json:"-" yaml:"-" env:"SECRET_KEY"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl" env:"USE_SSL"`
	Bucket    string `json:"bucket" yaml:"bucket" env:"BUCKET"`
}

// FFmpegConfig locates the ffmpeg binaries
type FFmpegConfig struct {
	FFmpegPath  string `json:"ffmpeg_path" yaml:"ffmpeg_path" env:"PATH"`
	FFprobePath string `json:"ffprobe_path" yaml:"ffprobe_path" env:"PROBE_PATH"`
}

// Default returns a configuration with default values
func Default() *Config {
	sel := selector.DefaultConfig()
	return &Config{
		Selection: SelectionConfig{
			Mode:             string(sel.Mode),
			IntervalSeconds:  sel.IntervalSeconds,
			NumFrames:        sel.NumFrames,
			ComparisonWidth:  sel.ComparisonWidth,
			ComparisonHeight: sel.ComparisonHeight,
			Preset:           similarity.PresetStream,
			Thresholds:       similarity.StreamDefaults(),
			Degeneracy:       degeneracy.DefaultConfig(),
		},
		Dedupe: DedupeConfig{
			Preset:     similarity.PresetAggressive,
			Thresholds: similarity.BatchDefaults(),
		},
		Output: OutputConfig{
			Dir:      "frames",
			Format:   processing.DefaultFormat,
			Quality:  processing.DefaultQuality,
			MaxWidth: processing.DefaultMaxWidth,
		},
		Slides: SlidesConfig{
			File:  "slides.md",
			Title: "Presentation",
			Theme: "white",
		},
		Notes: NotesConfig{
			Backend: "ollama",
			URL:     "http://localhost:11434",
			Model:   "minicpm-v",
		},
		Publish: PublishConfig{
			Endpoint: "localhost:9000",
			Bucket:   "slides",
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		Workers:  1,
		LogLevel: "info",
	}
}

// presetNames holds just the preset fields so they can be resolved before
// explicit thresholds from the same source are applied
type presetNames struct {
	Selection namedPreset `json:"selection" yaml:"selection" envPrefix:"SELECTION_"`
	Dedupe    namedPreset `json:"dedupe" yaml:"dedupe" envPrefix:"DEDUPE_"`
}

type namedPreset struct {
	Preset string `json:"preset" yaml:"preset" env:"PRESET"`
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the
// defaults. The format follows the file extension. A named preset sets the
// thresholds first; thresholds written in the file override it.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var presets presetNames
	if err := unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config := Default()
	if err := config.applyPresets(presets); err != nil {
		return nil, err
	}
	if err := unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from VIDEOSLIDES_* environment variables. A
// preset variable replaces the thresholds before threshold variables apply.
func (c *Config) ApplyEnv() error {
	opts := env.Options{Prefix: EnvPrefix}

	var presets presetNames
	if err := env.ParseWithOptions(&presets, opts); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := c.applyPresets(presets); err != nil {
		return err
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

func (c *Config) applyPresets(p presetNames) error {
	if p.Selection.Preset != "" {
		if err := c.ApplySelectionPreset(p.Selection.Preset); err != nil {
			return fmt.Errorf("selection: %w", err)
		}
	}
	if p.Dedupe.Preset != "" {
		if err := c.ApplyDedupePreset(p.Dedupe.Preset); err != nil {
			return fmt.Errorf("dedupe: %w", err)
		}
	}
	return nil
}

// ApplySelectionPreset replaces the selection thresholds with a named preset
func (c *Config) ApplySelectionPreset(name string) error {
	t, err := similarity.Preset(name)
	if err != nil {
		return err
	}
	c.Selection.Preset = name
	c.Selection.Thresholds = t
	return nil
}

// ApplyDedupePreset replaces the dedupe thresholds with a named preset
func (c *Config) ApplyDedupePreset(name string) error {
	t, err := similarity.Preset(name)
	if err != nil {
		return err
	}
	c.Dedupe.Preset = name
	c.Dedupe.Thresholds = t
	return nil
}

// SaveToFile saves configuration to a JSON or YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SelectorConfig builds the selector settings for video extraction
func (c *Config) SelectorConfig() (selector.Config, error) {
	mode, err := selector.ParseMode(c.Selection.Mode)
	if err != nil {
		return selector.Config{}, err
	}
	return selector.Config{
		Mode:             mode,
		Pipeline:         selector.PipelineStream,
		IntervalSeconds:  c.Selection.IntervalSeconds,
		NumFrames:        c.Selection.NumFrames,
		MaxFrames:        c.Selection.MaxFrames,
		ComparisonWidth:  c.Selection.ComparisonWidth,
		ComparisonHeight: c.Selection.ComparisonHeight,
		Thresholds:       c.Selection.Thresholds,
		Degeneracy:       c.Selection.Degeneracy,
	}, nil
}

// DedupeSelectorConfig builds the selector settings for a frames directory
func (c *Config) DedupeSelectorConfig() selector.Config {
	sel := selector.BatchConfig()
	sel.ComparisonWidth = c.Selection.ComparisonWidth
	sel.ComparisonHeight = c.Selection.ComparisonHeight
	sel.Thresholds = c.Dedupe.Thresholds
	sel.Degeneracy = c.Selection.Degeneracy
	return sel
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	sel, err := c.SelectorConfig()
	if err != nil {
		return fmt.Errorf("selection: %w", err)
	}
	if err := sel.Validate(); err != nil {
		return fmt.Errorf("selection: %w", err)
	}

	if err := c.Dedupe.Thresholds.Validate(); err != nil {
		return fmt.Errorf("dedupe: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Output.MaxWidth < 0 {
		return fmt.Errorf("output.max_width cannot be negative")
	}

	switch strings.ToLower(strings.TrimPrefix(c.Output.Format, ".")) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format %q is not supported", c.Output.Format)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.Notes.Enabled {
		switch c.Notes.Backend {
		case "ollama", "llamacpp":
		default:
			return fmt.Errorf("notes.backend must be ollama or llamacpp")
		}
		if c.Notes.Model == "" {
			return fmt.Errorf("notes.model cannot be empty")
		}
	}

	if c.Publish.Enabled && (c.Publish.Endpoint == "" || c.Publish.Bucket == "") {
		return fmt.Errorf("publish.endpoint and publish.bucket are required")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "video-slides", "config.json")
}
