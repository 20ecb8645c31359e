package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/menta2k/video-slides/pkg/selector"
)

var (
	VideosProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videoslides_videos_processed_total",
		Help: "Total number of videos processed, by status",
	}, []string{"status"})

	VideoProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "videoslides_processing_duration_seconds",
		Help:    "Duration of a selection pass",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"mode"})

	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videoslides_frames_processed_total",
		Help: "Total number of candidate frames examined",
	})

	FramesKeptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videoslides_frames_kept_total",
		Help: "Total number of frames kept as slides",
	})

	FramesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videoslides_frames_skipped_total",
		Help: "Total number of frames skipped, by reason",
	}, []string{"reason"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "videoslides_active_workers",
		Help: "Number of videos currently being processed",
	})
)

// Skip reasons
const (
	ReasonDuplicate    = "duplicate"
	ReasonDegenerate   = "degenerate"
	ReasonDecodeFailed = "decode_failure"
)

// Video statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// RecordSelection adds the diagnostics of one pass to the counters
func RecordSelection(mode selector.Mode, stats selector.Stats, elapsed time.Duration) {
	FramesProcessedTotal.Add(float64(stats.Processed))
	FramesKeptTotal.Add(float64(stats.Kept))
	FramesSkippedTotal.WithLabelValues(ReasonDuplicate).Add(float64(stats.SkippedDuplicate))
	FramesSkippedTotal.WithLabelValues(ReasonDegenerate).Add(float64(stats.SkippedDegenerate))
	FramesSkippedTotal.WithLabelValues(ReasonDecodeFailed).Add(float64(stats.DecodeFailures))
	VideoProcessingDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

// RecordVideo counts a finished video
func RecordVideo(err error) {
	if err != nil {
		VideosProcessedTotal.WithLabelValues(StatusFailed).Inc()
		return
	}
	VideosProcessedTotal.WithLabelValues(StatusSuccess).Inc()
}
