package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

var (
	// ErrInvalidInput is returned for a blank token. No request is made.
	ErrInvalidInput = errors.New("invalid input: token is empty")
	// ErrBackendUnreachable covers transport failures and non-2xx responses.
	ErrBackendUnreachable = errors.New("discovery backend unreachable")
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded into a scan result.
	ErrMalformedResponse = errors.New("malformed discovery response")
)

// Backend resolves a token into exposure records. Implementations must honour ctx cancellation.
type Backend interface {
	Discover(ctx context.Context, token string) (schemas.ScanResult, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, token string) (schemas.ScanResult, error)

// Discover calls f.
func (f BackendFunc) Discover(ctx context.Context, token string) (schemas.ScanResult, error) {
	return f(ctx, token)
}

// StatusError is a non-2xx answer from the backend. It matches ErrBackendUnreachable.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string // First bytes of the response body, for diagnostics.
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("discovery backend returned %s", e.Status)
	}
	return fmt.Sprintf("discovery backend returned %s: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrBackendUnreachable }
