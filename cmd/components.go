package cmd

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/internal/config"
	"github.com/shadowtrace/shadowtrace-cli/internal/correlation"
	"github.com/shadowtrace/shadowtrace-cli/internal/discovery"
	"github.com/shadowtrace/shadowtrace-cli/internal/history"
	"github.com/shadowtrace/shadowtrace-cli/internal/network"
	"github.com/shadowtrace/shadowtrace-cli/internal/observability"
	"github.com/shadowtrace/shadowtrace-cli/internal/risk"
	"github.com/shadowtrace/shadowtrace-cli/internal/session"
)

// sessionComponents holds the initialized services behind a session.
type sessionComponents struct {
	Session *session.Session
	Backend *discovery.HTTPBackend
	Metrics *observability.ScanMetrics
}

// initializeSessionComponents wires the configured transport, backend and
// session. Passing a nil backend builds the HTTP backend from cfg.
func initializeSessionComponents(cfg config.Interface, backend discovery.Backend, logger *zap.Logger) (*sessionComponents, error) {
	components := &sessionComponents{Metrics: observability.NewScanMetrics()}

	if backend == nil {
		httpBackend, err := newHTTPBackend(cfg.Discovery(), logger)
		if err != nil {
			return nil, err
		}
		components.Backend = httpBackend
		backend = httpBackend
	}

	riskCfg := cfg.Risk()
	graphCfg := cfg.Graph()
	components.Session = session.New(backend,
		session.WithLogger(logger),
		session.WithLedger(history.NewLedger(cfg.Session().HistoryCapacity, logger)),
		session.WithRiskPolicy(risk.Policy{
			FanOut:            riskCfg.FanOut,
			CriticalThreshold: riskCfg.CriticalThreshold,
			HighThreshold:     riskCfg.HighThreshold,
		}),
		session.WithLayoutEngine(correlation.NewEngine(correlation.Config{
			AngularStep: graphCfg.AngularStep,
			RadiusX:     graphCfg.RadiusX,
			RadiusY:     graphCfg.RadiusY,
			EvenSpacing: graphCfg.EvenSpacing,
			Fallback:    graphCfg.Fallback,
		})),
		session.WithMetrics(components.Metrics),
	)
	return components, nil
}

func newHTTPBackend(dc config.DiscoveryConfig, logger *zap.Logger) (*discovery.HTTPBackend, error) {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.IgnoreTLSErrors = dc.IgnoreTLSErrors
	clientCfg.ForceHTTP2 = dc.HTTP2
	clientCfg.Logger = logger.Named("httpclient")
	if dc.Timeout > 0 {
		clientCfg.RequestTimeout = dc.Timeout
	}
	if dc.ProxyURL != "" {
		proxy, err := url.Parse(dc.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", dc.ProxyURL, err)
		}
		clientCfg.ProxyURL = proxy
	}

	client := network.NewClient(clientCfg)
	return discovery.NewHTTPBackend(discovery.Config{
		Endpoint:  dc.Endpoint,
		UserAgent: dc.UserAgent,
		Timeout:   dc.Timeout,
		RateLimit: dc.RateLimit,
		Burst:     dc.Burst,
	}, client, logger), nil
}
