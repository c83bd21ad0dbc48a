package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowtrace/shadowtrace-cli/internal/config"
)

func TestScanCmd_JSONToStdout(t *testing.T) {
	isolate(t)
	endpoint := newDemoEndpoint(t)

	out, _, err := executeCommand(t, context.Background(), "",
		"scan", "demo@tracepoint.com", "--endpoint", endpoint, "--format", "json")
	require.NoError(t, err)

	var doc struct {
		Tool    string `json:"tool"`
		Reports []struct {
			Query  string `json:"query"`
			Result struct {
				Target     string            `json:"target"`
				TotalLeaks int               `json:"total_leaks"`
				RiskScore  int               `json:"risk_score"`
				Exposures  []json.RawMessage `json:"exposures"`
			} `json:"result"`
			Violations []json.RawMessage `json:"violations"`
			History    []json.RawMessage `json:"history"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "ShadowTrace", doc.Tool)
	require.Len(t, doc.Reports, 1)
	r := doc.Reports[0]
	assert.Equal(t, "demo@tracepoint.com", r.Query)
	assert.Equal(t, "demo@tracepoint.com", r.Result.Target)
	assert.Equal(t, 4, r.Result.TotalLeaks)
	assert.Equal(t, 100, r.Result.RiskScore)
	assert.Len(t, r.Result.Exposures, 4)
	assert.NotEmpty(t, r.Violations)
	assert.Len(t, r.History, 1)
}

func TestScanCmd_TextAndSARIFFile(t *testing.T) {
	isolate(t)
	endpoint := newDemoEndpoint(t)

	out, _, err := executeCommand(t, context.Background(), "", "scan", "demo_user", "--endpoint", endpoint)
	require.NoError(t, err)
	assert.Contains(t, out, `ShadowTrace report for "demo_user"`)
	assert.Contains(t, out, "DPDP COMPLIANCE")

	path := filepath.Join(t.TempDir(), "out.sarif")
	_, _, err = executeCommand(t, context.Background(), "", "scan", "demo_user", "--endpoint", endpoint, "-f", "sarif", "-o", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SHADOWTRACE-PASTEBIN")
}

func TestScanCmd_Errors(t *testing.T) {
	isolate(t)
	endpoint := newDemoEndpoint(t)

	t.Run("missing token", func(t *testing.T) {
		_, _, err := executeCommand(t, context.Background(), "", "scan")
		assert.Error(t, err)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, _, err := executeCommand(t, context.Background(), "", "scan", "x", "--endpoint", endpoint, "-f", "pdf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported output format")
	})

	t.Run("backend unreachable", func(t *testing.T) {
		_, _, err := executeCommand(t, context.Background(), "", "scan", "x", "--endpoint", "http://127.0.0.1:1/api/v1/scan/")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := executeCommand(t, ctx, "", "scan", "x", "--endpoint", endpoint)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConsoleCmd(t *testing.T) {
	isolate(t)
	endpoint := newDemoEndpoint(t)

	stdin := "scan demo_user\nlogin analyst@example.com -p pass\nscan demo_user\nhistory\ncompliance\nexit\n"
	out, errOut, err := executeCommand(t, context.Background(), stdin, "console", "--endpoint", endpoint)
	require.NoError(t, err)

	assert.Contains(t, errOut, "not logged in")
	assert.Contains(t, out, "Logged in as analyst@example.com")
	assert.Contains(t, out, "Exposures for demo_user")
	assert.Contains(t, out, "u/demo_user")
	assert.Contains(t, out, "Mapped violations")
	assert.Contains(t, out, "Exiting shadowtrace.")
}

func TestConsoleCmd_MetricsEndpointStopsWithShell(t *testing.T) {
	isolate(t)

	done := make(chan error, 1)
	go func() {
		_, _, err := executeCommand(t, context.Background(), "exit\n", "console", "--metrics-addr", "127.0.0.1:0")
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("console did not stop the metrics endpoint")
	}
}

func TestDemoBackendCmd(t *testing.T) {
	isolate(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, _, err := executeCommand(t, ctx, "", "demo-backend", "--listen", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Demo backend listening")

	_, _, err = executeCommand(t, context.Background(), "", "demo-backend", "--listen", "256.0.0.1:bad")
	assert.Error(t, err)
}

func TestInitializeSessionComponents(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.DiscoveryCfg.ProxyURL = "http://proxy.example:3128"

	components, err := initializeSessionComponents(cfg, nil, zaptestLogger(t))
	require.NoError(t, err)
	require.NotNil(t, components.Backend)
	assert.Equal(t, cfg.DiscoveryCfg.Endpoint, components.Backend.Endpoint())
	assert.Equal(t, 12, components.Session.Policy().FanOut)
	assert.NotNil(t, components.Metrics)

	cfg.DiscoveryCfg.ProxyURL = "://bad"
	_, err = initializeSessionComponents(cfg, nil, zaptestLogger(t))
	assert.Error(t, err)
}
