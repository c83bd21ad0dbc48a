package observability

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	metricsNamespace         = "shadowtrace"
	metricsReadHeaderTimeout = 5 * time.Second
)

// Outcome labels for ScanMetrics.Submissions.
const (
	OutcomeComplete   = "complete"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// Rejection reasons for ScanMetrics.Rejected.
const (
	RejectInvalidInput = "invalid_input"
	RejectInProgress   = "in_progress"
)

// ScanMetrics holds the session counters. Each instance owns its registry,
// so tests and multiple sessions never collide on registration.
type ScanMetrics struct {
	Registry *prometheus.Registry

	Submissions    *prometheus.CounterVec
	Rejected       *prometheus.CounterVec
	StaleDiscarded prometheus.Counter
	DroppedRecords prometheus.Counter
	Duration       *prometheus.HistogramVec
	HistoryEntries prometheus.Gauge
}

// NewScanMetrics registers a fresh set of collectors on a private registry.
func NewScanMetrics() *ScanMetrics {
	reg := prometheus.NewRegistry()
	m := &ScanMetrics{
		Registry: reg,
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "scans_total",
			Help:      "Scans that reached a final state, by outcome.",
		}, []string{"outcome"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "rejected_submissions_total",
			Help:      "Submissions refused before reaching the backend, by reason.",
		}, []string{"reason"}),
		StaleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "stale_responses_discarded_total",
			Help:      "Backend responses discarded because their submission was superseded.",
		}),
		DroppedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "discovery",
			Name:      "dropped_records_total",
			Help:      "Malformed exposure records rejected on ingest.",
		}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "discovery",
			Name:      "scan_duration_seconds",
			Help:      "Backend round trip time per scan.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		HistoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "entries",
			Help:      "Entries currently held in the history ledger.",
		}),
	}

	reg.MustRegister(
		m.Submissions,
		m.Rejected,
		m.StaleDiscarded,
		m.DroppedRecords,
		m.Duration,
		m.HistoryEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *ScanMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Serve runs a /metrics endpoint until ctx is cancelled. An empty or "off" address disables it.
func (m *ScanMetrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	addr = strings.TrimSpace(addr)
	switch strings.ToLower(addr) {
	case "", "off", "disabled", "false":
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics endpoint listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	}
}
