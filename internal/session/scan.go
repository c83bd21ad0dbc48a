package session

import (
	"context"
	"time"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// Scan is the handle of one submission.
type Scan struct {
	id         string
	token      string
	generation uint64
	started    time.Time
	cancel     context.CancelFunc
	done       chan struct{}

	// Written once before done is closed.
	status schemas.SessionStatus
	result *schemas.ScanResult
	err    error
}

// ID is the unique submission id.
func (sc *Scan) ID() string { return sc.id }

// Token is the submitted query, trimmed.
func (sc *Scan) Token() string { return sc.token }

// Done is closed once the submission has been applied or discarded.
func (sc *Scan) Done() <-chan struct{} { return sc.done }

// Wait blocks until the scan finishes or ctx is done. A superseded scan reports
// StatusIdle with ErrSuperseded.
func (sc *Scan) Wait(ctx context.Context) (schemas.SessionStatus, error) {
	select {
	case <-sc.done:
		return sc.status, sc.err
	case <-ctx.Done():
		return schemas.StatusRunning, ctx.Err()
	}
}

// Result returns the result the scan produced. It is empty until Done is closed
// and for scans that did not complete.
func (sc *Scan) Result() schemas.ScanResult {
	select {
	case <-sc.done:
	default:
		return schemas.ScanResult{}
	}
	if sc.result == nil {
		return schemas.ScanResult{}
	}
	return sc.result.Clone()
}

// Err returns the final error, nil while running or after success.
func (sc *Scan) Err() error {
	select {
	case <-sc.done:
		return sc.err
	default:
		return nil
	}
}

func (sc *Scan) finish(status schemas.SessionStatus, result *schemas.ScanResult, err error) {
	sc.status = status
	sc.result = result
	sc.err = err
	close(sc.done)
}
