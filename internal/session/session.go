// Package session implements the scan session: a single mutable slot holding the
// status, result and error of the most recent submission, plus the history ledger
// of completed scans.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
	"github.com/shadowtrace/shadowtrace-cli/internal/correlation"
	"github.com/shadowtrace/shadowtrace-cli/internal/discovery"
	"github.com/shadowtrace/shadowtrace-cli/internal/history"
	"github.com/shadowtrace/shadowtrace-cli/internal/observability"
	"github.com/shadowtrace/shadowtrace-cli/internal/risk"
)

var (
	// ErrInvalidInput is returned by Submit for a blank token.
	ErrInvalidInput = discovery.ErrInvalidInput
	// ErrScanInProgress is returned by Submit while another scan is running.
	ErrScanInProgress = errors.New("a scan is already in progress")
	// ErrSuperseded is reported by a Scan whose response arrived after Reset.
	ErrSuperseded = errors.New("scan superseded")
)

// Session is safe for concurrent use. At most one scan is in flight at a time.
type Session struct {
	backend discovery.Backend
	ledger  *history.Ledger
	policy  risk.Policy
	engine  *correlation.Engine
	metrics *observability.ScanMetrics
	clock   func() time.Time
	logger  *zap.Logger

	mu         sync.Mutex
	status     schemas.SessionStatus
	result     *schemas.ScanResult
	err        error
	current    *Scan
	generation uint64

	inflight sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLedger shares an existing history ledger.
func WithLedger(ledger *history.Ledger) Option {
	return func(s *Session) {
		if ledger != nil {
			s.ledger = ledger
		}
	}
}

// WithRiskPolicy overrides the aggregator policy.
func WithRiskPolicy(p risk.Policy) Option {
	return func(s *Session) { s.policy = p }
}

// WithLayoutEngine overrides the graph layout engine.
func WithLayoutEngine(engine *correlation.Engine) Option {
	return func(s *Session) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithMetrics records session activity on m.
func WithMetrics(m *observability.ScanMetrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides time.Now, used for history timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates an Idle session bound to backend.
func New(backend discovery.Backend, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		policy:  risk.DefaultPolicy(),
		engine:  correlation.NewEngine(correlation.DefaultConfig()),
		clock:   time.Now,
		logger:  zap.NewNop(),
		status:  schemas.StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledger == nil {
		s.ledger = history.NewLedger(history.DefaultCapacity, s.logger)
	}
	s.logger = s.logger.Named("session")
	return s
}

// Submit starts a scan for token. It returns ErrInvalidInput for a blank token and
// ErrScanInProgress while a scan is running; in both cases the session is unchanged.
// The backend call runs in its own goroutine under a context derived from ctx.
func (s *Session) Submit(ctx context.Context, token string) (*Scan, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.reject(observability.RejectInvalidInput)
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == schemas.StatusRunning {
		s.reject(observability.RejectInProgress)
		s.logger.Debug("Submission rejected, scan in progress", zap.String("token", token))
		return nil, ErrScanInProgress
	}

	s.generation++
	scanCtx, cancel := context.WithCancel(ctx)
	scan := &Scan{
		id:         uuid.New().String(),
		token:      token,
		generation: s.generation,
		started:    s.clock(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	s.status = schemas.StatusRunning
	s.result = nil
	s.err = nil
	s.current = scan

	s.logger.Info("Scan submitted", zap.String("scan_id", scan.id), zap.String("token", token))

	s.inflight.Add(1)
	go s.execute(scanCtx, scan)
	return scan, nil
}

// Run submits token and blocks until the scan finishes.
func (s *Session) Run(ctx context.Context, token string) (schemas.ScanResult, error) {
	scan, err := s.Submit(ctx, token)
	if err != nil {
		return schemas.ScanResult{}, err
	}
	<-scan.Done()
	return scan.Result(), scan.Err()
}

// Rerun resubmits the query of a history entry.
func (s *Session) Rerun(ctx context.Context, id int64) (*Scan, error) {
	query, err := s.ledger.Rerun(id)
	if err != nil {
		return nil, fmt.Errorf("rerun %d: %w", id, err)
	}
	return s.Submit(ctx, query)
}

func (s *Session) execute(ctx context.Context, scan *Scan) {
	defer s.inflight.Done()

	result, err := s.backend.Discover(ctx, scan.token)
	elapsed := s.clock().Sub(scan.started)
	scan.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != scan || s.generation != scan.generation {
		s.logger.Info("Discarding stale scan response", zap.String("scan_id", scan.id))
		if s.metrics != nil {
			s.metrics.StaleDiscarded.Inc()
			s.metrics.Submissions.WithLabelValues(observability.OutcomeSuperseded).Inc()
		}
		scan.finish(schemas.StatusIdle, nil, ErrSuperseded)
		return
	}

	if err != nil {
		s.status = schemas.StatusFailed
		s.err = fmt.Errorf("scan of %q failed: %w", scan.token, err)
		s.logger.Warn("Scan failed", zap.String("scan_id", scan.id), zap.Error(err))
		if s.metrics != nil {
			s.metrics.Submissions.WithLabelValues(observability.OutcomeFailed).Inc()
			s.metrics.Duration.WithLabelValues(observability.OutcomeFailed).Observe(elapsed.Seconds())
		}
		scan.finish(schemas.StatusFailed, nil, s.err)
		return
	}

	stored := result.Clone()
	s.status = schemas.StatusComplete
	s.result = &stored
	entry := s.ledger.Record(scan.token, stored.RiskScore, stored.TotalLeaks, s.clock())

	s.logger.Info("Scan complete",
		zap.String("scan_id", scan.id),
		zap.Int64("history_id", entry.ID),
		zap.Int("exposures", len(stored.Exposures)),
		zap.Int("risk_score", stored.RiskScore),
		zap.Int("dropped_records", stored.DroppedRecords))
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(observability.OutcomeComplete).Inc()
		s.metrics.Duration.WithLabelValues(observability.OutcomeComplete).Observe(elapsed.Seconds())
		s.metrics.DroppedRecords.Add(float64(stored.DroppedRecords))
		s.metrics.HistoryEntries.Set(float64(s.ledger.Len()))
	}
	out := stored.Clone()
	scan.finish(schemas.StatusComplete, &out, nil)
}

func (s *Session) reject(reason string) {
	if s.metrics != nil {
		s.metrics.Rejected.WithLabelValues(reason).Inc()
	}
}

// Reset returns the session to Idle from any state, discarding the result and error.
// An in-flight backend call is cancelled and its response will be ignored. History is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.status == schemas.StatusRunning {
		s.logger.Info("Cancelling in-flight scan", zap.String("scan_id", s.current.id))
		s.current.cancel()
	}
	s.generation++
	s.current = nil
	s.status = schemas.StatusIdle
	s.result = nil
	s.err = nil
}

// ClearHistory empties the history ledger.
func (s *Session) ClearHistory() {
	s.ledger.Clear()
	if s.metrics != nil {
		s.metrics.HistoryEntries.Set(0)
	}
}

// Wait blocks until every backend call started by the session has returned.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// -- Presentation accessors --

// Status returns the current lifecycle state.
func (s *Session) Status() schemas.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns a copy of the current result. The boolean is false unless the session is Complete.
func (s *Session) Result() (schemas.ScanResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return schemas.ScanResult{}, false
	}
	return s.result.Clone(), true
}

// Err returns the error descriptor of a Failed session, nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Metrics summarizes the current result.
func (s *Session) Metrics() schemas.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return risk.Summarize(s.result, s.policy)
}

// History returns the ledger, newest first.
func (s *Session) History() []schemas.HistoryEntry {
	return s.ledger.Entries()
}

// Layout computes the correlation graph of the current result around rootLabel.
func (s *Session) Layout(rootLabel string) schemas.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	var exposures []schemas.ExposureRecord
	if s.result != nil {
		exposures = s.result.Exposures
	}
	return s.engine.Layout(exposures, rootLabel)
}

// Snapshot is a consistent view of everything the presentation layer renders.
type Snapshot struct {
	Status  schemas.SessionStatus
	Token   string // Token of the current or last applied submission.
	ScanID  string
	Result  *schemas.ScanResult
	Err     error
	Metrics schemas.Metrics
	History []schemas.HistoryEntry
	Layout  schemas.Layout
}

// Snapshot captures the session state under a single lock acquisition.
func (s *Session) Snapshot(rootLabel string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:  s.status,
		Err:     s.err,
		Metrics: risk.Summarize(s.result, s.policy),
		History: s.ledger.Entries(),
	}
	var exposures []schemas.ExposureRecord
	if s.result != nil {
		r := s.result.Clone()
		snap.Result = &r
		exposures = r.Exposures
	}
	if s.current != nil {
		snap.Token = s.current.token
		snap.ScanID = s.current.id
	}
	snap.Layout = s.engine.Layout(exposures, rootLabel)
	return snap
}

// Policy returns the risk policy in use.
func (s *Session) Policy() risk.Policy {
	return s.policy
}
