package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the Prometheus collectors shared by the store, the generation pipeline and the
// HTTP service.
type Metrics struct {
	StoreWrites     *prometheus.CounterVec
	StoreBytes      prometheus.Gauge
	ChannelsPruned  prometheus.Counter
	ColdStartCards  *prometheus.CounterVec
	ColdStartRuns   *prometheus.CounterVec
	Generation      *prometheus.CounterVec
	GenerationTime  *prometheus.HistogramVec
	JobsProcessed   *prometheus.CounterVec
	RateLimited     prometheus.Counter
	ChatSubscribers prometheus.Gauge
}

// Default returns the process-wide metrics, registering them on first use.
//
// Metrics:
//   - quotecards_store_writes_total{outcome} - ok, media_dropped, failed
//   - quotecards_store_document_bytes - size of the last persisted document
//   - quotecards_channels_pruned_total - user channels dropped by retention
//   - quotecards_coldstart_cards_total{result} - generated, skipped
//   - quotecards_coldstart_runs_total{mode,outcome} - pipeline or mock runs
//   - quotecards_generation_requests_total{surface,outcome} - upstream model calls
//   - quotecards_generation_duration_seconds{surface} - upstream latency
//   - quotecards_jobs_processed_total{outcome} - async cold start jobs
//   - quotecards_rate_limited_total - generation requests rejected by the limiter
//   - quotecards_chat_subscribers - open chat websocket streams
func Default() *Metrics {
	once.Do(func() {
		global = &Metrics{
			StoreWrites: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "quotecards_store_writes_total",
				Help: "Document writes by outcome",
			}, []string{"outcome"}),
			StoreBytes: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "quotecards_store_document_bytes",
				Help: "Serialized size of the last persisted document",
			}),
			ChannelsPruned: promauto.NewCounter(prometheus.CounterOpts{
				Name: "quotecards_channels_pruned_total",
				Help: "User channels removed by the retention cap",
			}),
			ColdStartCards: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "quotecards_coldstart_cards_total",
				Help: "Cold start cards by result",
			}, []string{"result"}),
			ColdStartRuns: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "quotecards_coldstart_runs_total",
				Help: "Cold start runs by generator mode and outcome",
			}, []string{"mode", "outcome"}),
			Generation: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "quotecards_generation_requests_total",
				Help: "Upstream generation requests by surface and outcome",
			}, []string{"surface", "outcome"}),
			GenerationTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "quotecards_generation_duration_seconds",
				Help:    "Upstream generation latency",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			}, []string{"surface"}),
			JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "quotecards_jobs_processed_total",
				Help: "Asynchronous cold start jobs by outcome",
			}, []string{"outcome"}),
			RateLimited: promauto.NewCounter(prometheus.CounterOpts{
				Name: "quotecards_rate_limited_total",
				Help: "Generation requests rejected by the per-user limiter",
			}),
			ChatSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "quotecards_chat_subscribers",
				Help: "Open chat stream connections",
			}),
		}
	})
	return global
}
