package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// --- Engine ---
	EventsApplied  *prometheus.CounterVec
	EventsRejected *prometheus.CounterVec
	EventDuration  *prometheus.HistogramVec
	EngineSequence prometheus.Gauge
	UpsertsEmitted prometheus.Counter

	// --- Idempotency & Ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	SequenceOutOfOrder    *prometheus.CounterVec
	SequenceGaps          *prometheus.CounterVec

	// --- Conversion & chain lookups ---
	ConversionFailures prometheus.Counter
	StateLookupDur     *prometheus.HistogramVec

	// --- Channels & Backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	ProjectionDrops    prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistBatchDur    prometheus.Histogram
	PersistBatchSize   prometheus.Histogram
	PersistRowsWritten prometheus.Counter
	PersistErrors      *prometheus.CounterVec
	PersistRetry       prometheus.Counter
	PersistLastSeq     prometheus.Gauge

	// --- Ingestion ---
	IngestParseErrors *prometheus.CounterVec
	IngestReceived    *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "optx_events_applied_total",
			Help: "Events successfully applied by the engine",
		}, []string{"event_type"}),

		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "optx_events_rejected_total",
			Help: "Events rejected (duplicate, unregistered, out_of_order, handler_error)",
		}, []string{"event_type", "reason"}),

		EventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "optx_event_apply_duration_seconds",
			Help:    "Time to apply a single event",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "optx_engine_sequence",
			Help: "Current global sequence number",
		}),

		UpsertsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "optx_upserts_emitted_total",
			Help: "Aggregate records emitted for persistence",
		}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "optx_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"event_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "optx_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		SequenceOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "optx_event_out_of_order_total",
			Help: "Out-of-order rejections per contract partition",
		}, []string{"partition"}),

		SequenceGaps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "optx_event_ordinal_gap_total",
			Help: "Accepted ordinal gaps per contract partition",
		}, []string{"partition"}),

		ConversionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "optx_conversion_failures_total",
			Help: "Currency conversions that failed (oracle errors, zero denominators)",
		}),

		StateLookupDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "optx_state_lookup_duration_seconds",
			Help:    "Chain state lookup latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"kind"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optx_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optx_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optx_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "optx_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "optx_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "optx_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "optx_persist_batch_size",
			Help:    "Upsert rows per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "optx_persist_rows_written_total",
			Help: "Aggregate rows written to Postgres",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "optx_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "optx_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "optx_persist_last_sequence",
			Help: "Last persisted engine sequence",
		}),

		IngestParseErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "optx_ingest_parse_errors_total",
			Help: "Wire payloads that failed to parse",
		}, []string{"subject"}),

		IngestReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "optx_ingest_received_total",
			Help: "Messages received per subject",
		}, []string{"subject"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
