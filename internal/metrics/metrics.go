// Package metrics provides the Prometheus collectors for the analysis engine
// and its notification channels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hearingai"

// Notification outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// windowsProcessed is a counter of analysis windows evaluated.
	windowsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_processed_total",
			Help:      "Total number of analysis windows evaluated",
		},
	)

	// windowDuration is a histogram of per-window processing time.
	windowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_duration_seconds",
			Help:      "Time spent analyzing one window in seconds",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		},
	)

	// processingErrors is a counter of decode failures and recovered panics.
	processingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_errors_total",
			Help:      "Total number of transient processing errors in the capture callback",
		},
		[]string{"reason"}, // reason: decode, panic
	)

	// channelActivations is a counter of channel activity events.
	channelActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_activations_total",
			Help:      "Total number of channel activity events",
		},
		[]string{"channel"},
	)

	// detections is a counter of classified sound events.
	detections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of classified sound events",
		},
		[]string{"kind", "channel"},
	)

	// loudness is a gauge of the latest effective loudness per channel.
	loudness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loudness",
			Help:      "Latest effective loudness per channel",
		},
		[]string{"channel"},
	)

	// noiseFloor is a gauge of the adaptive noise floor estimate.
	noiseFloor = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "noise_floor",
			Help:      "Current noise floor estimate",
		},
	)

	// threshold is a gauge of the effective detection threshold.
	threshold = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold",
			Help:      "Effective detection threshold of the latest window",
		},
	)

	// captureRunning is 1 while audio capture is running.
	captureRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_running",
			Help:      "Whether audio capture is running (1) or stopped (0)",
		},
	)

	// captureErrors is a counter of capture start failures and device losses.
	captureErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of capture failures",
		},
		[]string{"reason"}, // reason: start, device_lost
	)

	// observerDrops is a counter of events dropped by full observer queues.
	observerDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_dropped_total",
			Help:      "Total number of events dropped because an observer queue was full",
		},
		[]string{"observer"},
	)

	// notifications is a counter of outbound notification attempts.
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notification deliveries",
		},
		[]string{"channel", "status"}, // status: success, error
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		windowsProcessed,
		windowDuration,
		processingErrors,
		channelActivations,
		detections,
		loudness,
		noiseFloor,
		threshold,
		captureRunning,
		captureErrors,
		observerDrops,
		notifications,
	}
)

// RecordWindow records one evaluated window and its measurements.
func RecordWindow(durationSeconds, left, right, floor, thresh float64) {
	windowsProcessed.Inc()
	windowDuration.Observe(durationSeconds)
	loudness.WithLabelValues("left").Set(left)
	loudness.WithLabelValues("right").Set(right)
	noiseFloor.Set(floor)
	threshold.Set(thresh)
}

// RecordProcessingError records a transient processing error.
func RecordProcessingError(reason string) {
	processingErrors.WithLabelValues(reason).Inc()
}

// RecordChannelActive records a channel activity event.
func RecordChannelActive(channel string) {
	channelActivations.WithLabelValues(channel).Inc()
}

// RecordDetection records a classified event.
func RecordDetection(kind, channel string) {
	detections.WithLabelValues(kind, channel).Inc()
}

// SetCaptureRunning records the capture state.
func SetCaptureRunning(running bool) {
	if running {
		captureRunning.Set(1)
		return
	}
	captureRunning.Set(0)
}

// RecordCaptureError records a capture failure.
func RecordCaptureError(reason string) {
	captureErrors.WithLabelValues(reason).Inc()
}

// RecordObserverDrop records an event dropped by a full observer queue.
func RecordObserverDrop(observer string) {
	observerDrops.WithLabelValues(observer).Inc()
}

// RecordNotification records a notification delivery attempt.
func RecordNotification(channel string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	notifications.WithLabelValues(channel, status).Inc()
}
