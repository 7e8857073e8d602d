// Package metrics provides Prometheus metrics for the delay collector.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Round outcomes used as the "outcome" label.
const (
	OutcomeSuccess      = "success"
	OutcomeFetchFailed  = "fetch_failed"
	OutcomePersistError = "persist_failed"
	OutcomeCancelled    = "cancelled"
)

// Metrics holds all Prometheus metrics for the collector.
type Metrics struct {
	Registry *prometheus.Registry

	// Round metrics
	RoundsTotal          *prometheus.CounterVec
	RoundDuration        prometheus.Histogram
	LastSuccessTimestamp prometheus.Gauge
	FeedFetchFailures    prometheus.Counter

	// Matching metrics
	ObservationsTotal prometheus.Counter
	RecordsTotal      prometheus.Counter
	RejectionsTotal   *prometheus.CounterVec
	DatasetRows       prometheus.Gauge

	// Database metrics for the sqlite mirror
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates and registers all metrics with a new registry.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		RoundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adherence_rounds_total",
			Help: "Polling rounds by outcome",
		}, []string{"outcome"}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adherence_round_duration_seconds",
			Help:    "Wall time of a polling round from fetch to persist",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adherence_last_success_timestamp_seconds",
			Help: "Unix time of the last round that persisted successfully",
		}),
		FeedFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adherence_feed_fetch_failures_total",
			Help: "Realtime feed fetches that failed and skipped a round",
		}),
		ObservationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adherence_observations_total",
			Help: "Vehicle observations read from the realtime feed",
		}),
		RecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adherence_delay_records_total",
			Help: "Delay records accepted by the estimator",
		}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adherence_rejections_total",
			Help: "Observations that produced no delay record, by reason",
		}, []string{"reason"}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adherence_dataset_rows",
			Help: "Rows in the merged delay dataset after the last persist",
		}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adherence_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adherence_db_connections_in_use",
			Help: "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adherence_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adherence_db_wait_seconds_total",
			Help: "Total time blocked waiting for a database connection",
		}),
		logger: logger,
	}

	registry.MustRegister(
		m.RoundsTotal,
		m.RoundDuration,
		m.LastSuccessTimestamp,
		m.FeedFetchFailures,
		m.ObservationsTotal,
		m.RecordsTotal,
		m.RejectionsTotal,
		m.DatasetRows,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
	)
	return m
}

// ObserveRound records the outcome and duration of one round.
func (m *Metrics) ObserveRound(outcome string, started, finished time.Time) {
	m.RoundsTotal.WithLabelValues(outcome).Inc()
	m.RoundDuration.Observe(finished.Sub(started).Seconds())
	if outcome == OutcomeSuccess {
		m.LastSuccessTimestamp.Set(float64(finished.Unix()))
	}
}

// Reject counts one observation dropped for reason.
func (m *Metrics) Reject(reason string) {
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// StartDBStatsCollector periodically copies db pool statistics into the
// database gauges. Calls after the first are no-ops. Stop it with Shutdown.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var lastWaitDuration time.Duration

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil && m.logger != nil {
				m.logger.Error("panic in DB stats collector", "error", r)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.collectDBStats(db.Stats(), &lastWaitDuration)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Metrics) collectDBStats(stats sql.DBStats, lastWait *time.Duration) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	if delta := stats.WaitDuration - *lastWait; delta > 0 {
		m.DBWaitSecondsTotal.Add(delta.Seconds())
	}
	*lastWait = stats.WaitDuration
}

// Shutdown stops the DB stats collector and waits for it to exit. Safe to call more than once.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
