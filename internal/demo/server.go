// Package demo implements a self-contained discovery backend that answers the
// scan API with canned data. It backs `shadowtrace demo-backend` and the
// end-to-end tests.
package demo

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/internal/config"
	"github.com/shadowtrace/shadowtrace-cli/internal/discovery"
)

//go:embed fixtures/demo_scan.json
var fixtureFS embed.FS

// Identifiers that trigger the demo fixture.
const (
	DemoEmail    = "demo@tracepoint.com"
	DemoUsername = "demo_user"
)

// NoReportStatus is returned by the report route for unknown targets.
const NoReportStatus = "No previous scans found. Please initiate a new scan."

// Server answers scan requests from fixtures and remembers the last response per target.
type Server struct {
	logger   *zap.Logger
	latency  time.Duration
	fixtures map[string]discovery.Response

	mu      sync.RWMutex
	reports map[string]discovery.Response
}

// Option configures a Server.
type Option func(*Server)

// WithFixture answers scans of identifier with resp.
func WithFixture(identifier string, resp discovery.Response) Option {
	return func(s *Server) {
		s.fixtures[normalizeIdentifier(identifier)] = resp
	}
}

// New creates a demo server. The demo identities always map to the bundled fixture.
func New(cfg config.DemoConfig, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fixture, err := loadFixture()
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:  logger.Named("demo_backend"),
		latency: cfg.Latency,
		fixtures: map[string]discovery.Response{
			DemoEmail:    fixture,
			DemoUsername: fixture,
		},
		reports: make(map[string]discovery.Response),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func loadFixture() (discovery.Response, error) {
	var resp discovery.Response
	data, err := fixtureFS.ReadFile("fixtures/demo_scan.json")
	if err != nil {
		return resp, fmt.Errorf("failed to read demo fixture: %w", err)
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, fmt.Errorf("failed to parse demo fixture: %w", err)
	}
	return resp, nil
}

func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Routes returns the router serving the scan API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Route("/api/v1/scan", func(r chi.Router) {
		r.Post("/", s.handleScan)
	})
	r.Route("/report/{target}", func(r chi.Router) {
		r.Get("/", s.handleReport)
		r.Get("/download", s.handleDownload)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		defer close(idleConnsClosed)
		<-ctx.Done()
		s.logger.Info("Shutting down demo backend")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Demo backend shutdown error", zap.Error(err))
		}
	}()

	s.logger.Info("Demo backend listening", zap.String("address", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("demo backend stopped: %w", err)
	}
	<-idleConnsClosed
	return nil
}

// Report returns the last response served for target.
func (s *Server) Report(target string) (discovery.Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.reports[normalizeIdentifier(target)]
	return resp, ok
}

func (s *Server) respond(identifier string) discovery.Response {
	if fixture, ok := s.fixtures[identifier]; ok {
		fixture.Target = identifier
		return fixture
	}
	return discovery.Response{Target: identifier, Exposures: []discovery.RawExposure{}}
}

func (s *Server) store(identifier string, resp discovery.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[identifier] = resp
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
