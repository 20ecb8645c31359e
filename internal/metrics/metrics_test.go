package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/video-slides/pkg/selector"
)

func TestRecordSelection(t *testing.T) {
	kept := testutil.ToFloat64(FramesKeptTotal)
	dups := testutil.ToFloat64(FramesSkippedTotal.WithLabelValues(ReasonDuplicate))
	processed := testutil.ToFloat64(FramesProcessedTotal)

	RecordSelection(selector.ModeChangeDetection, selector.Stats{
		Processed:        300,
		Kept:             2,
		SkippedDuplicate: 298,
	}, 3*time.Second)

	assert.Equal(t, kept+2, testutil.ToFloat64(FramesKeptTotal))
	assert.Equal(t, dups+298, testutil.ToFloat64(FramesSkippedTotal.WithLabelValues(ReasonDuplicate)))
	assert.Equal(t, processed+300, testutil.ToFloat64(FramesProcessedTotal))
}

func TestRecordVideo(t *testing.T) {
	ok := testutil.ToFloat64(VideosProcessedTotal.WithLabelValues(StatusSuccess))
	failed := testutil.ToFloat64(VideosProcessedTotal.WithLabelValues(StatusFailed))

	RecordVideo(nil)
	RecordVideo(errors.New("unreadable"))

	assert.Equal(t, ok+1, testutil.ToFloat64(VideosProcessedTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, failed+1, testutil.ToFloat64(VideosProcessedTotal.WithLabelValues(StatusFailed)))
}

func TestHandler(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	FramesKeptTotal.Add(0)
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "videoslides_frames_kept_total"))
}
