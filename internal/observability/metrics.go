package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grail",
			Subsystem: "solver",
			Name:      "frames_total",
			Help:      "Protocol messages sent and received, by role and tag.",
		},
		[]string{"role", "direction", "tag"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grail",
			Subsystem: "solver",
			Name:      "frame_bytes_total",
			Help:      "Payload bytes sent and received, by role.",
		},
		[]string{"role", "direction"},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grail",
			Subsystem: "solver",
			Name:      "handshakes_total",
			Help:      "Version handshakes by role and result.",
		},
		[]string{"role", "success"},
	)
	stateChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grail",
			Subsystem: "solver",
			Name:      "state_transitions_total",
			Help:      "Connection state transitions by role and target state.",
		},
		[]string{"role", "state"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grail",
			Subsystem: "solver",
			Name:      "decode_errors_total",
			Help:      "Messages rejected as protocol violations, by role and tag.",
		},
		[]string{"role", "tag"},
	)
	samples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grail",
			Subsystem: "aggregator",
			Name:      "samples_total",
			Help:      "Sensor samples decoded, by physical layer.",
		},
		[]string{"phy"},
	)
	subscribeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "grail",
			Subsystem: "aggregator",
			Name:      "subscribe_duration_seconds",
			Help:      "Time from subscription request to response.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grail",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grail",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(frames, frameBytes, handshakes, stateChanges, decodeErrors,
			samples, subscribeDuration, httpRequests, httpDuration)
	})
}

func RecordFrame(role, direction, tag string, payloadLen int) {
	RegisterMetrics()
	frames.WithLabelValues(role, direction, tag).Inc()
	frameBytes.WithLabelValues(role, direction).Add(float64(payloadLen))
}

func RecordHandshake(role string, success bool) {
	RegisterMetrics()
	handshakes.WithLabelValues(role, strconv.FormatBool(success)).Inc()
}

func RecordState(role, state string) {
	RegisterMetrics()
	stateChanges.WithLabelValues(role, state).Inc()
}

func RecordDecodeError(role, tag string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(role, tag).Inc()
}

func RecordSample(phy uint8) {
	RegisterMetrics()
	samples.WithLabelValues(strconv.Itoa(int(phy))).Inc()
}

func RecordSubscribe(duration time.Duration) {
	RegisterMetrics()
	subscribeDuration.Observe(duration.Seconds())
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
