package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScanMetrics_IndependentRegistries(t *testing.T) {
	a := NewScanMetrics()
	b := NewScanMetrics()

	a.Submissions.WithLabelValues(OutcomeComplete).Inc()
	a.Rejected.WithLabelValues(RejectInProgress).Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Submissions.WithLabelValues(OutcomeComplete)))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.Rejected.WithLabelValues(RejectInProgress)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Submissions.WithLabelValues(OutcomeComplete)))
}

func TestScanMetrics_Handler(t *testing.T) {
	m := NewScanMetrics()
	m.StaleDiscarded.Inc()
	m.HistoryEntries.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "shadowtrace_session_stale_responses_discarded_total 1")
	assert.Contains(t, body, "shadowtrace_history_entries 3")
}

func TestScanMetrics_Serve(t *testing.T) {
	t.Run("disabled address returns immediately", func(t *testing.T) {
		m := NewScanMetrics()
		for _, addr := range []string{"", "off", " disabled "} {
			assert.NoError(t, m.Serve(context.Background(), addr, nil))
		}
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		m := NewScanMetrics()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.Serve(ctx, "127.0.0.1:0", nil) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Serve did not return after cancellation")
		}
	})

	t.Run("listen failure is reported", func(t *testing.T) {
		m := NewScanMetrics()
		err := m.Serve(context.Background(), "256.0.0.1:bad", nil)
		assert.Error(t, err)
	})
}

func TestScanMetrics_HandlerServesOverHTTP(t *testing.T) {
	m := NewScanMetrics()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
