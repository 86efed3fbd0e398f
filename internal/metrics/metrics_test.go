package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDetection(t *testing.T) {
	detections.Reset()

	RecordDetection("gunshot", "left")
	RecordDetection("gunshot", "left")
	RecordDetection("glass", "right")

	assert.Equal(t, 2.0, testutil.ToFloat64(detections.WithLabelValues("gunshot", "left")))
	assert.Equal(t, 1.0, testutil.ToFloat64(detections.WithLabelValues("glass", "right")))
}

func TestRecordWindowSetsGauges(t *testing.T) {
	RecordWindow(0.001, 0.2, 0.3, 0.01, 0.1)

	assert.Equal(t, 0.2, testutil.ToFloat64(loudness.WithLabelValues("left")))
	assert.Equal(t, 0.3, testutil.ToFloat64(loudness.WithLabelValues("right")))
	assert.Equal(t, 0.01, testutil.ToFloat64(noiseFloor))
	assert.Equal(t, 0.1, testutil.ToFloat64(threshold))
}

func TestRecordNotificationStatus(t *testing.T) {
	notifications.Reset()

	RecordNotification("webhook", nil)
	RecordNotification("webhook", errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(notifications.WithLabelValues("webhook", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(notifications.WithLabelValues("webhook", StatusError)))
}

func TestSetCaptureRunning(t *testing.T) {
	SetCaptureRunning(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(captureRunning))
	SetCaptureRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(captureRunning))
}

func TestExporterHandler(t *testing.T) {
	e := NewExporter()
	RecordChannelActive("left")

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "hearingai_channel_activations_total")
	assert.Contains(t, string(body), "go_goroutines")
}
