package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCalls       prometheus.Gauge
	CallsEnded        *prometheus.CounterVec
	ProviderEvents    *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	DroppedFrames     *prometheus.CounterVec
	BargeIns          prometheus.Counter
	Nudges            prometheus.Counter
	DuplicateDrops    prometheus.Counter
	GreetingCacheHits *prometheus.CounterVec
	FirstAudioLatency prometheus.Histogram

	turnWindow *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of live telephony calls.",
		}),
		CallsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Finished calls by end reason.",
		}, []string{"reason"}),
		ProviderEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_events_total",
			Help:      "Normalized backend events by backend and type.",
		}, []string{"backend", "type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Backend errors by backend and code.",
		}, []string{"backend", "code"}),
		DroppedFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Discarded audio frames by category.",
		}, []string{"category"}),
		BargeIns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barge_ins_total",
			Help:      "Response cancellations triggered by user speech.",
		}),
		Nudges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_nudges_total",
			Help:      "Re-prompts sent to silent callers.",
		}),
		DuplicateDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_utterances_total",
			Help:      "User utterances suppressed as duplicate deliveries.",
		}),
		GreetingCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "greeting_cache_lookups_total",
			Help:      "Greeting cache lookups by result.",
		}, []string{"result"}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency from response request to first audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
		turnWindow: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
	m.ObserveTurnStage("request_to_first_audio", d)
}

// ObserveTurnStage feeds the rolling per-stage latency window.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	m.turnWindow.Observe(stage, float64(d.Milliseconds()))
}

// ObserveTurnIndicator bumps a named quality indicator in the window.
func (m *Metrics) ObserveTurnIndicator(name string) {
	m.turnWindow.ObserveIndicator(name)
}

// TurnSnapshot returns percentile stats for the rolling window, served on
// the admin API.
func (m *Metrics) TurnSnapshot() TurnStageSnapshot {
	return m.turnWindow.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
