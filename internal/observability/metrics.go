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
	TicksAccepted   prometheus.Counter
	TicksIgnored    prometheus.Counter
	FeedReconnects  prometheus.Counter
	TicksArchived   prometheus.Counter
	ArchiveFailures prometheus.Counter

	// Detector metrics
	SignalsEmitted   *prometheus.CounterVec
	DetectorSkips    *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	CooldownRejects  prometheus.Counter

	// Trade metrics
	TradesCreated prometheus.Counter
	TradesOpened  prometheus.Counter
	TradesClosed  *prometheus.CounterVec
	OpenTrades    prometheus.Gauge
	TickDuration  prometheus.Histogram

	// Collaborator metrics
	StorageErrors *prometheus.CounterVec
	NotifySent    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "momentum_lab"
	}

	return &Metrics{
		TicksAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_accepted_total",
			Help:      "Total number of ticks recorded for monitored symbols",
		}),
		TicksIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_ignored_total",
			Help:      "Total number of ticks for symbols outside the monitored universe",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		}),
		TicksArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ticks_archived_total",
			Help:      "Total number of ticks flushed to the archive store",
		}),
		ArchiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "archive_failures_total",
			Help:      "Total number of failed archive flushes",
		}),

		SignalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "signals_emitted_total",
			Help:      "Total number of momentum signals emitted by direction",
		}, []string{"direction"}),
		DetectorSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "skips_total",
			Help:      "Total number of per-symbol skips by reason",
		}, []string{"reason"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "scan_duration_seconds",
			Help:      "Duration of one full detector scan over all symbols",
			Buckets:   prometheus.DefBuckets,
		}),
		CooldownRejects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "cooldown_rejects_total",
			Help:      "Total number of momentum crossings suppressed by cooldown",
		}),

		TradesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "created_total",
			Help:      "Total number of pending trades created from signals",
		}),
		TradesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "opened_total",
			Help:      "Total number of trades entered",
		}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "closed_total",
			Help:      "Total number of trades closed by exit reason",
		}, []string{"reason"}),
		OpenTrades: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "open",
			Help:      "Number of currently open trades",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one trade engine pass",
			Buckets:   prometheus.DefBuckets,
		}),

		StorageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of storage call failures by operation",
		}, []string{"operation"}),
		NotifySent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of notifications handed to the notifier",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTickAccepted increments the accepted ticks counter.
func RecordTickAccepted() {
	DefaultMetrics.TicksAccepted.Inc()
}

// RecordTickIgnored increments the ignored ticks counter.
func RecordTickIgnored() {
	DefaultMetrics.TicksIgnored.Inc()
}

// RecordFeedReconnect increments the reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordArchiveFlush records an archive flush of n ticks.
func RecordArchiveFlush(n int, err error) {
	if err != nil {
		DefaultMetrics.ArchiveFailures.Inc()
		return
	}
	DefaultMetrics.TicksArchived.Add(float64(n))
}

// RecordSignal increments the emitted signals counter for a direction.
func RecordSignal(direction string) {
	DefaultMetrics.SignalsEmitted.WithLabelValues(direction).Inc()
}

// RecordDetectorSkip increments the per-symbol skip counter for a reason.
func RecordDetectorSkip(reason string) {
	DefaultMetrics.DetectorSkips.WithLabelValues(reason).Inc()
}

// RecordScanDuration records one detector scan duration.
func RecordScanDuration(seconds float64) {
	DefaultMetrics.ScanDuration.Observe(seconds)
}

// RecordCooldownReject increments the cooldown suppression counter.
func RecordCooldownReject() {
	DefaultMetrics.CooldownRejects.Inc()
}

// RecordTradeCreated increments the created trades counter.
func RecordTradeCreated() {
	DefaultMetrics.TradesCreated.Inc()
}

// RecordTradeOpened increments the opened trades counter and the open gauge.
func RecordTradeOpened() {
	DefaultMetrics.TradesOpened.Inc()
	DefaultMetrics.OpenTrades.Inc()
}

// RecordTradeClosed increments the closed trades counter and drops the gauge.
func RecordTradeClosed(reason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(reason).Inc()
	DefaultMetrics.OpenTrades.Dec()
}

// RecordEngineTick records one trade engine pass duration.
func RecordEngineTick(seconds float64) {
	DefaultMetrics.TickDuration.Observe(seconds)
}

// RecordStorageError increments the storage error counter for an operation.
func RecordStorageError(operation string) {
	DefaultMetrics.StorageErrors.WithLabelValues(operation).Inc()
}

// RecordNotification increments the notifications counter.
func RecordNotification() {
	DefaultMetrics.NotifySent.Inc()
}
