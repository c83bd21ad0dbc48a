package history

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// DefaultCapacity is the number of entries the ledger keeps when none is configured.
const DefaultCapacity = 10

// TimestampLayout is the display format of HistoryEntry.Timestamp.
const TimestampLayout = "15:04:05"

// ErrNotFound is returned when a history id is not (or no longer) in the ledger.
var ErrNotFound = errors.New("history entry not found")

// Ledger is a bounded, newest-first list of completed scans.
// Entries are values and are never modified once appended.
type Ledger struct {
	mu       sync.RWMutex
	entries  []schemas.HistoryEntry
	capacity int
	nextID   int64
	log      *zap.Logger
}

// NewLedger creates an empty ledger. A capacity below 1 falls back to DefaultCapacity.
func NewLedger(capacity int, logger *zap.Logger) *Ledger {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		entries:  make([]schemas.HistoryEntry, 0, capacity),
		capacity: capacity,
		log:      logger.Named("history"),
	}
}

// Capacity returns the maximum number of retained entries.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Record builds an entry for a completed scan and appends it.
// Ids are strictly increasing for the lifetime of the ledger, even across Clear.
func (l *Ledger) Record(query string, score, findings int, at time.Time) schemas.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	entry := schemas.HistoryEntry{
		ID:        l.nextID,
		Query:     query,
		Timestamp: at.Format(TimestampLayout),
		Score:     score,
		Findings:  findings,
		CreatedAt: at,
	}
	l.appendLocked(entry)
	return entry
}

// Append inserts an externally built entry at the head and evicts the oldest past capacity.
func (l *Ledger) Append(entry schemas.HistoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID > l.nextID {
		l.nextID = entry.ID
	}
	l.appendLocked(entry)
}

// appendLocked assumes the caller holds the write lock.
func (l *Ledger) appendLocked(entry schemas.HistoryEntry) {
	next := make([]schemas.HistoryEntry, 0, l.capacity)
	next = append(next, entry)
	for _, e := range l.entries {
		if len(next) == l.capacity {
			l.log.Debug("Evicting history entry", zap.Int64("id", e.ID), zap.String("query", e.Query))
			break
		}
		next = append(next, e)
	}
	l.entries = next
	l.log.Debug("History entry recorded", zap.Int64("id", entry.ID), zap.Int("size", len(l.entries)))
}

// Entries returns a copy of the ledger, newest first.
func (l *Ledger) Entries() []schemas.HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]schemas.HistoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Rerun resolves the query of a retained entry so it can be submitted again.
func (l *Ledger) Rerun(id int64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.ID == id {
			return e.Query, nil
		}
	}
	return "", ErrNotFound
}

// Clear drops every entry. Id allocation continues where it left off.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]schemas.HistoryEntry, 0, l.capacity)
	l.log.Info("History cleared")
}
