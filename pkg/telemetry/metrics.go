package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for a session. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesTotal      prometheus.Counter
	decodesTotal     prometheus.Counter
	staleTotal       prometheus.Counter
	decodeInterval   prometheus.Histogram
	filtered         *prometheus.GaugeVec // by channel
	gateHigh         *prometheus.GaugeVec // by channel, 1 when latched
	actionsTotal     *prometheus.CounterVec
	boundsErrors     prometheus.Counter
	subscribers      prometheus.Gauge
	droppedMessages  prometheus.Counter
	navigationRow    prometheus.Gauge
	navigationColumn prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		framesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "emgkb_frames_total",
			Help: "Raw frames read from the sensor",
		}),
		decodesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "emgkb_decodes_total",
			Help: "Channel values decoded and filtered",
		}),
		staleTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "emgkb_stale_snapshots_total",
			Help: "Decode rounds that reused a frame already seen",
		}),
		decodeInterval: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emgkb_decode_interval_seconds",
			Help:    "Measured time between decode ticks",
			Buckets: []float64{0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 1},
		}),
		filtered: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "emgkb_filtered_value",
			Help: "Most recent filtered value per channel",
		}, []string{"channel"}),
		gateHigh: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "emgkb_gate_high",
			Help: "1 if the channel crossed the threshold since the last tick",
		}, []string{"channel"}),
		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emgkb_navigation_actions_total",
			Help: "Navigation actions executed",
		}, []string{"action"}),
		boundsErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "emgkb_navigation_bounds_errors_total",
			Help: "Grid lookups outside the configured layout",
		}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "emgkb_stream_subscribers",
			Help: "Connected websocket observers",
		}),
		droppedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "emgkb_stream_dropped_messages_total",
			Help: "Stream messages dropped for slow observers",
		}),
		navigationRow: factory.NewGauge(prometheus.GaugeOpts{
			Name: "emgkb_navigation_row",
			Help: "Current keyboard row",
		}),
		navigationColumn: factory.NewGauge(prometheus.GaugeOpts{
			Name: "emgkb_navigation_column",
			Help: "Current keyboard column",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) FrameRead() {
	if m == nil {
		return
	}
	m.framesTotal.Inc()
}

func (m *Metrics) DecodeTick(interval time.Duration) {
	if m == nil || interval <= 0 {
		return
	}
	m.decodeInterval.Observe(interval.Seconds())
}

func (m *Metrics) StaleSnapshot() {
	if m == nil {
		return
	}
	m.staleTotal.Inc()
}

func (m *Metrics) Filtered(channel int, v float64) {
	if m == nil {
		return
	}
	m.decodesTotal.Inc()
	m.filtered.WithLabelValues(strconv.Itoa(channel)).Set(v)
}

func (m *Metrics) GateHigh(channel int, high bool) {
	if m == nil {
		return
	}
	v := 0.0
	if high {
		v = 1
	}
	m.gateHigh.WithLabelValues(strconv.Itoa(channel)).Set(v)
}

func (m *Metrics) NavAction(action string, row, col int) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action).Inc()
	m.navigationRow.Set(float64(row))
	m.navigationColumn.Set(float64(col))
}

func (m *Metrics) BoundsError() {
	if m == nil {
		return
	}
	m.boundsErrors.Inc()
}

func (m *Metrics) SubscriberJoined() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *Metrics) SubscriberLeft() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}

func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.droppedMessages.Inc()
}
