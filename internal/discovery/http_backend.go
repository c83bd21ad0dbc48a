package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// HTTPDoer is the subset of *http.Client the backend needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPBackend talks to the discovery service over HTTP.
type HTTPBackend struct {
	cfg     Config
	client  HTTPDoer
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a backend. A nil client uses a plain http.Client with the configured timeout.
func NewHTTPBackend(cfg Config, client HTTPDoer, logger *zap.Logger) *HTTPBackend {
	cfg.SetDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &HTTPBackend{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger.Named("discovery"),
	}
}

// Endpoint returns the configured scan URL.
func (b *HTTPBackend) Endpoint() string {
	return b.cfg.Endpoint
}

// Discover POSTs the token to the backend and returns the validated result.
func (b *HTTPBackend) Discover(ctx context.Context, token string) (schemas.ScanResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return schemas.ScanResult{}, ErrInvalidInput
	}

	if err := b.limiter.Wait(ctx); err != nil {
		b.logger.Debug("Context cancelled while waiting for rate limiter", zap.Error(err))
		if ctx.Err() != nil {
			return schemas.ScanResult{}, ctx.Err()
		}
		return schemas.ScanResult{}, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	payload, err := json.Marshal(schemas.NewScanRequest(token))
	if err != nil {
		return schemas.ScanResult{}, fmt.Errorf("failed to encode scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return schemas.ScanResult{}, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", b.cfg.UserAgent)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return schemas.ScanResult{}, ctx.Err()
		}
		b.logger.Warn("Discovery request failed", zap.String("endpoint", b.cfg.Endpoint), zap.Error(err))
		return schemas.ScanResult{}, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return schemas.ScanResult{}, ctx.Err()
		}
		return schemas.ScanResult{}, fmt.Errorf("%w: reading body: %v", ErrBackendUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.logger.Warn("Discovery backend returned an error status",
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)))
		return schemas.ScanResult{}, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       snippet(body),
		}
	}

	if !json.Valid(body) {
		return schemas.ScanResult{}, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	var raw *Response
	if err := json.Unmarshal(body, &raw); err != nil {
		return schemas.ScanResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw == nil {
		return schemas.ScanResult{}, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	result := Normalize(*raw, token)
	if result.DroppedRecords > 0 {
		b.logger.Warn("Dropped malformed exposure records",
			zap.String("token", token),
			zap.Int("dropped", result.DroppedRecords))
	}
	b.logger.Debug("Discovery complete",
		zap.String("token", token),
		zap.Int("exposures", len(result.Exposures)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
