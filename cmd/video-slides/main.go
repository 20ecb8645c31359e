package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	videoslides "github.com/menta2k/video-slides"
	"github.com/menta2k/video-slides/internal/config"
	"github.com/menta2k/video-slides/internal/logger"
	"github.com/menta2k/video-slides/internal/metrics"
	"github.com/menta2k/video-slides/internal/publish"
	"github.com/menta2k/video-slides/internal/utils"
	"github.com/menta2k/video-slides/pkg/annotate"
	"github.com/menta2k/video-slides/pkg/client"
	"github.com/menta2k/video-slides/pkg/ffmpeg"
	"github.com/menta2k/video-slides/pkg/llamacpp"
	"github.com/menta2k/video-slides/pkg/ollama"
	"github.com/menta2k/video-slides/pkg/slides"
	"github.com/menta2k/video-slides/pkg/similarity"
)

func main() {
	var configPath, saveConfig string
	var in, dedupeDir, dedupeOut, testVision string
	var report string

	def := config.Default()
	cfg := config.Default()

	flag.StringVar(&configPath, "config", "", "config file (json|yaml), defaults to "+config.GetConfigPath()+" when present")
	flag.StringVar(&saveConfig, "save-config", "", "write the effective configuration to this file and exit")

	flag.StringVar(&in, "in", "", "input video file or directory of videos")
	flag.StringVar(&cfg.Output.Dir, "out", def.Output.Dir, "output directory for extracted frames")
	flag.StringVar(&report, "report", "", "write a JSON run report to this file")

	flag.StringVar(&cfg.Selection.Mode, "mode", def.Selection.Mode, "selection mode: change-detection|fixed-interval|key-frames")
	flag.Float64Var(&cfg.Selection.IntervalSeconds, "interval", def.Selection.IntervalSeconds, "seconds between frames in fixed-interval mode")
	flag.IntVar(&cfg.Selection.NumFrames, "num-frames", def.Selection.NumFrames, "frames to take in key-frames mode")
	flag.IntVar(&cfg.Selection.MaxFrames, "max-frames", def.Selection.MaxFrames, "maximum frames kept per video, 0=unlimited")
	preset := flag.String("preset", "", "threshold preset: "+strings.Join(similarity.PresetNames(), "|"))
	flag.Float64Var(&cfg.Selection.Thresholds.HistogramThreshold, "hist-threshold", def.Selection.Thresholds.HistogramThreshold, "histogram correlation above which frames may be duplicates")
	flag.Float64Var(&cfg.Selection.Thresholds.MSEThreshold, "mse-threshold", def.Selection.Thresholds.MSEThreshold, "mean squared error below which frames may be duplicates")
	flag.Float64Var(&cfg.Selection.Thresholds.MADThreshold, "mad-threshold", def.Selection.Thresholds.MADThreshold, "mean absolute difference below which frames are duplicates")

	flag.StringVar(&cfg.Output.Format, "format", def.Output.Format, "frame format: jpg|png|webp")
	flag.IntVar(&cfg.Output.Quality, "quality", def.Output.Quality, "JPEG/WebP frame quality (1-100)")
	flag.BoolVar(&cfg.Output.Lossless, "lossless", def.Output.Lossless, "WebP lossless mode")
	flag.IntVar(&cfg.Output.MaxWidth, "max-width", def.Output.MaxWidth, "downscale frames wider than this (px), 0=original")
	flag.IntVar(&cfg.Workers, "workers", def.Workers, "videos processed in parallel")

	flag.StringVar(&dedupeDir, "dedupe", "", "deduplicate an existing frames directory instead of extracting")
	flag.StringVar(&dedupeOut, "dedupe-out", "", "copy frames kept by -dedupe into this directory")
	dedupePreset := flag.String("dedupe-preset", "", "threshold preset for -dedupe")

	flag.BoolVar(&cfg.Slides.FrontMatter, "front-matter", def.Slides.FrontMatter, "emit YAML front matter in the deck")
	flag.StringVar(&cfg.Slides.File, "slides", def.Slides.File, "reveal.js markdown deck file, empty to skip the deck")
	flag.StringVar(&cfg.Slides.Title, "title", def.Slides.Title, "deck title")
	flag.StringVar(&cfg.Slides.Theme, "theme", def.Slides.Theme, "reveal.js theme")

	flag.BoolVar(&cfg.Notes.Enabled, "notes", def.Notes.Enabled, "generate speaker notes with a vision model")
	flag.StringVar(&cfg.Notes.Backend, "backend", def.Notes.Backend, "notes backend: ollama or llamacpp")
	flag.StringVar(&cfg.Notes.URL, "url", def.Notes.URL, "notes server URL")
	flag.StringVar(&cfg.Notes.Model, "model", def.Notes.Model, "notes model name")
	flag.StringVar(&testVision, "test-vision", "", "ask the notes model to describe this image and exit")

	flag.BoolVar(&cfg.Publish.Enabled, "publish", def.Publish.Enabled, "upload the deck and its frames as a zip")
	flag.StringVar(&cfg.Publish.Endpoint, "endpoint", def.Publish.Endpoint, "S3 endpoint")
	flag.StringVar(&cfg.Publish.Bucket, "bucket", def.Publish.Bucket, "S3 bucket")
	flag.BoolVar(&cfg.Publish.UseSSL, "ssl", def.Publish.UseSSL, "use TLS for the S3 endpoint")

	flag.StringVar(&cfg.FFmpeg.FFmpegPath, "ffmpeg", def.FFmpeg.FFmpegPath, "ffmpeg binary")
	flag.StringVar(&cfg.FFmpeg.FFprobePath, "ffprobe", def.FFmpeg.FFprobePath, "ffprobe binary")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", def.MetricsAddr, "serve Prometheus metrics on this address")
	flag.StringVar(&cfg.LogLevel, "log-level", def.LogLevel, "log level: debug|info|warn|error")

	flag.Parse()

	// Flags win over presets, the environment and the config file
	cfg = loadConfig(configPath, cfg, *preset, *dedupePreset)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if saveConfig != "" {
		if err := cfg.SaveToFile(saveConfig); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", saveConfig)
		return
	}

	if in == "" && dedupeDir == "" && testVision == "" {
		log.Fatalf("usage: %s -in video.mp4|dir [-mode change-detection|fixed-interval|key-frames] [-out frames] [-slides slides.md] [-notes] [-publish]\n       %s -dedupe frames_dir [-dedupe-out dir]", filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := metrics.StartMetricsServer(cfg.MetricsAddr, zl)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sel, err := cfg.SelectorConfig()
	if err != nil {
		log.Fatal(err)
	}
	extractor := videoslides.NewWithConfig(videoslides.Config{
		Selector:       sel,
		Dedupe:         cfg.DedupeSelectorConfig(),
		OutputFormat:   cfg.Output.Format,
		OutputQuality:  cfg.Output.Quality,
		OutputLossless: cfg.Output.Lossless,
		OutputMaxWidth: cfg.Output.MaxWidth,
		Workers:        cfg.Workers,
		FFmpeg: ffmpeg.Config{
			FFmpegPath:  cfg.FFmpeg.FFmpegPath,
			FFprobePath: cfg.FFmpeg.FFprobePath,
		},
	}, videoslides.WithLogger(zl))

	if testVision != "" {
		annotator, err := newAnnotator(cfg, zl)
		if err != nil {
			log.Fatal(err)
		}
		answer, err := annotator.TestVision(ctx, testVision)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(answer)
		return
	}

	if dedupeDir != "" {
		result, err := extractor.DedupeDirectory(ctx, dedupeDir, dedupeOut)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("processed=%d kept=%d duplicates=%d degenerate=%d ratio=%.1f",
			result.Stats.Processed, result.Stats.Kept, result.Stats.SkippedDuplicate,
			result.Stats.SkippedDegenerate, result.Stats.CompressionRatio())
		writeReport(report, result)
		return
	}

	batch, err := extractor.ExtractVideos(ctx, in, cfg.Output.Dir)
	if err != nil {
		log.Fatal(err)
	}
	for _, v := range batch.Videos {
		if v.Err != nil {
			log.Printf("%s: failed: %v", v.Video, v.Err)
			continue
		}
		s := v.Result.Stats
		log.Printf("%s: kept %d of %d frames (duplicates=%d degenerate=%d) -> %s",
			v.Video, s.Kept, s.Processed, s.SkippedDuplicate, s.SkippedDegenerate, v.OutputDir)
	}
	writeReport(report, batch)

	if cfg.Slides.File == "" {
		if len(batch.Failed()) > 0 {
			os.Exit(1)
		}
		return
	}

	var annotator *annotate.Annotator
	if cfg.Notes.Enabled {
		if annotator, err = newAnnotator(cfg, zl); err != nil {
			log.Fatal(err)
		}
	}
	deck := batch.Slides()
	n, err := extractor.WriteDeck(ctx, deck, cfg.Slides.File, slides.Options{
		Title:       cfg.Slides.Title,
		Theme:       cfg.Slides.Theme,
		FrontMatter: cfg.Slides.FrontMatter,
	}, annotator)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s with %d slides", cfg.Slides.File, n)

	if cfg.Publish.Enabled {
		key, err := publishDeck(ctx, cfg, deck, zl)
		if err != nil {
			log.Fatalf("publish failed: %v", err)
		}
		log.Printf("published s3://%s/%s", cfg.Publish.Bucket, key)
	}

	if len(batch.Failed()) > 0 {
		os.Exit(1)
	}
}

// loadConfig layers the config file, environment and presets under the
// flags the user set explicitly
func loadConfig(path string, flags *config.Config, preset, dedupePreset string) *config.Config {
	cfg := config.Default()
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal(err)
	}
	if preset != "" {
		if err := cfg.ApplySelectionPreset(preset); err != nil {
			log.Fatal(err)
		}
	}
	if dedupePreset != "" {
		if err := cfg.ApplyDedupePreset(dedupePreset); err != nil {
			log.Fatal(err)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.Dir = flags.Output.Dir
		case "mode":
			cfg.Selection.Mode = flags.Selection.Mode
		case "interval":
			cfg.Selection.IntervalSeconds = flags.Selection.IntervalSeconds
		case "num-frames":
			cfg.Selection.NumFrames = flags.Selection.NumFrames
		case "max-frames":
			cfg.Selection.MaxFrames = flags.Selection.MaxFrames
		case "hist-threshold":
			cfg.Selection.Thresholds.HistogramThreshold = flags.Selection.Thresholds.HistogramThreshold
		case "mse-threshold":
			cfg.Selection.Thresholds.MSEThreshold = flags.Selection.Thresholds.MSEThreshold
		case "mad-threshold":
			cfg.Selection.Thresholds.MADThreshold = flags.Selection.Thresholds.MADThreshold
		case "format":
			cfg.Output.Format = flags.Output.Format
		case "quality":
			cfg.Output.Quality = flags.Output.Quality
		case "lossless":
			cfg.Output.Lossless = flags.Output.Lossless
		case "max-width":
			cfg.Output.MaxWidth = flags.Output.MaxWidth
		case "workers":
			cfg.Workers = flags.Workers
		case "front-matter":
			cfg.Slides.FrontMatter = flags.Slides.FrontMatter
		case "slides":
			cfg.Slides.File = flags.Slides.File
		case "title":
			cfg.Slides.Title = flags.Slides.Title
		case "theme":
			cfg.Slides.Theme = flags.Slides.Theme
		case "notes":
			cfg.Notes.Enabled = flags.Notes.Enabled
		case "backend":
			cfg.Notes.Backend = flags.Notes.Backend
		case "url":
			cfg.Notes.URL = flags.Notes.URL
		case "model":
			cfg.Notes.Model = flags.Notes.Model
		case "publish":
			cfg.Publish.Enabled = flags.Publish.Enabled
		case "endpoint":
			cfg.Publish.Endpoint = flags.Publish.Endpoint
		case "bucket":
			cfg.Publish.Bucket = flags.Publish.Bucket
		case "ssl":
			cfg.Publish.UseSSL = flags.Publish.UseSSL
		case "ffmpeg":
			cfg.FFmpeg.FFmpegPath = flags.FFmpeg.FFmpegPath
		case "ffprobe":
			cfg.FFmpeg.FFprobePath = flags.FFmpeg.FFprobePath
		case "metrics-addr":
			cfg.MetricsAddr = flags.MetricsAddr
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		}
	})
	return cfg
}

func newAnnotator(cfg *config.Config, zl *zap.Logger) (*annotate.Annotator, error) {
	var visionClient client.VisionClient
	var err error

	switch cfg.Notes.Backend {
	case "ollama":
		visionClient, err = ollama.NewClient(cfg.Notes.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case "llamacpp":
		visionClient, err = llamacpp.NewClient(cfg.Notes.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", cfg.Notes.Backend)
	}

	ac := annotate.DefaultConfig()
	ac.Model = cfg.Notes.Model
	return annotate.New(visionClient, ac, zl), nil
}

func publishDeck(ctx context.Context, cfg *config.Config, deck []slides.Slide, zl *zap.Logger) (string, error) {
	storage, err := publish.NewStorage(publish.StorageConfig{
		Endpoint:  cfg.Publish.Endpoint,
		AccessKey: cfg.Publish.AccessKey,
		SecretKey: cfg.Publish.SecretKey,
		UseSSL:    cfg.Publish.UseSSL,
		Bucket:    cfg.Publish.Bucket,
	})
	if err != nil {
		return "", err
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return "", err
	}
	frames := make([]string, 0, len(deck))
	for _, s := range deck {
		frames = append(frames, s.ImagePath)
	}
	return publish.NewPublisher(storage, zl).Publish(ctx, cfg.Slides.File, frames)
}

func writeReport(path string, v any) {
	if path == "" {
		return
	}
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("report failed: %v", err)
		return
	}
	if err := os.WriteFile(path, js, 0o644); err != nil {
		log.Printf("report failed: %v", err)
		return
	}
	log.Printf("wrote %s", path)
}
