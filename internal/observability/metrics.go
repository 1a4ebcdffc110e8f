// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	TicksReceived  *prometheus.CounterVec
	TicksDropped   prometheus.Counter
	FeedReconnects prometheus.Counter
	FeedErrors     *prometheus.CounterVec

	// Aggregation metrics
	BarsFlushed   *prometheus.CounterVec
	PendingBars   prometheus.Gauge
	BarsPublished prometheus.Counter
	PublishErrors prometheus.Counter

	// Analysis metrics
	StatesClassified  *prometheus.CounterVec
	PatternsDetected  *prometheus.CounterVec
	AnalysesComputed  prometheus.Counter
	AnalysisLatency   prometheus.Histogram
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Backtest metrics
	BacktestsRun    *prometheus.CounterVec
	TradesRecorded  prometheus.Counter
	SignalsRejected prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFlush    prometheus.Gauge
	LastSuccessfulAnalysis prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "drummond_lab"
	}

	return &Metrics{
		// Feed metrics
		TicksReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_received_total",
			Help:      "Total number of ticks received by symbol",
		}, []string{"symbol"}),
		TicksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_dropped_total",
			Help:      "Total number of ticks dropped on backpressure",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnections",
		}),
		FeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of feed errors by type",
		}, []string{"error_type"}),

		// Aggregation metrics
		BarsFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "bars_flushed_total",
			Help:      "Total number of bars flushed by interval",
		}, []string{"interval"}),
		PendingBars: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "pending_bars",
			Help:      "Current number of unflushed bars",
		}),
		BarsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "bars_published_total",
			Help:      "Total number of bars published downstream",
		}),
		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "publish_errors_total",
			Help:      "Total number of bar publish failures",
		}),

		// Analysis metrics
		StatesClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "states_classified_total",
			Help:      "Total number of market states classified by regime",
		}, []string{"regime"}),
		PatternsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "patterns_detected_total",
			Help:      "Total number of bar patterns detected by type",
		}, []string{"pattern"}),
		AnalysesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "analyses_computed_total",
			Help:      "Total number of multi-timeframe analyses computed",
		}),
		AnalysisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "latency_seconds",
			Help:      "Latency of one full analysis pass",
			Buckets:   prometheus.DefBuckets,
		}),
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Duration of pipeline runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),

		// Backtest metrics
		BacktestsRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by strategy type",
		}, []string{"strategy_type"}),
		TradesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_recorded_total",
			Help:      "Total number of trades recorded across runs",
		}),
		SignalsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "signals_rejected_total",
			Help:      "Total number of strategy signals rejected",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulFlush: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_flush_timestamp",
			Help:      "Unix timestamp of the last successful bar flush",
		}),
		LastSuccessfulAnalysis: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_analysis_timestamp",
			Help:      "Unix timestamp of the last successful analysis pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick increments the received-ticks counter for a symbol.
func RecordTick(symbol string) {
	DefaultMetrics.TicksReceived.WithLabelValues(symbol).Inc()
}

// RecordTickDropped increments the dropped-ticks counter.
func RecordTickDropped() {
	DefaultMetrics.TicksDropped.Inc()
}

// RecordReconnect increments the feed reconnect counter.
func RecordReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordFeedError records a feed error by type.
func RecordFeedError(errorType string) {
	DefaultMetrics.FeedErrors.WithLabelValues(errorType).Inc()
}

// RecordBarsFlushed records flushed bars and the remaining pending count.
func RecordBarsFlushed(interval string, flushed, pending int) {
	DefaultMetrics.BarsFlushed.WithLabelValues(interval).Add(float64(flushed))
	DefaultMetrics.PendingBars.Set(float64(pending))
}

// RecordStateClassified increments the classified-states counter for a regime.
func RecordStateClassified(regime string) {
	DefaultMetrics.StatesClassified.WithLabelValues(regime).Inc()
}

// RecordPattern increments the detected-patterns counter for a pattern type.
func RecordPattern(pattern string) {
	DefaultMetrics.PatternsDetected.WithLabelValues(pattern).Inc()
}

// RecordBacktest records a finished backtest run.
func RecordBacktest(strategyType string, trades, rejected int) {
	DefaultMetrics.BacktestsRun.WithLabelValues(strategyType).Inc()
	DefaultMetrics.TradesRecorded.Add(float64(trades))
	DefaultMetrics.SignalsRejected.Add(float64(rejected))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(stage, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(stage).Observe(durationSeconds)
}
