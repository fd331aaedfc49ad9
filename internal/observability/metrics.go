package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oledview",
			Subsystem: "mirror",
			Name:      "frames_total",
			Help:      "Frames decoded and handed to the display sink.",
		},
		[]string{"target", "stale"},
	)
	frameDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oledview",
			Subsystem: "mirror",
			Name:      "frame_duration_seconds",
			Help:      "Read-decode-render duration per tick in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target"},
	)
	memoryReadBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oledview",
			Subsystem: "target",
			Name:      "memory_read_bytes_total",
			Help:      "Raw bytes returned by target memory reads.",
		},
		[]string{"target"},
	)
	readErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oledview",
			Subsystem: "target",
			Name:      "read_errors_total",
			Help:      "Fatal protocol errors observed by the mirror loop.",
		},
		[]string{"target", "kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesRendered, frameDuration, memoryReadBytes, readErrors)
	})
}

func RecordFrame(target string, stale bool, duration time.Duration) {
	RegisterMetrics()
	framesRendered.WithLabelValues(target, strconv.FormatBool(stale)).Inc()
	frameDuration.WithLabelValues(target).Observe(duration.Seconds())
}

func RecordMemoryRead(target string, n int) {
	RegisterMetrics()
	memoryReadBytes.WithLabelValues(target).Add(float64(n))
}

func RecordReadError(target, kind string) {
	RegisterMetrics()
	readErrors.WithLabelValues(target, kind).Inc()
}
