package schemas

import "time"

// SessionStatus is the lifecycle state of a scan session.
type SessionStatus int

const (
	StatusIdle SessionStatus = iota
	StatusRunning
	StatusComplete
	StatusFailed
)

func (s SessionStatus) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusComplete:
		return "Complete"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status ends a submission.
func (s SessionStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// HistoryEntry is an immutable snapshot taken when a session reaches Complete.
// All fields are values, so an entry never shares state with the live result.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Query     string    `json:"query"`
	Timestamp string    `json:"timestamp"` // Display-formatted creation time.
	Score     int       `json:"score"`
	Findings  int       `json:"findings"`
	CreatedAt time.Time `json:"created_at"`
}

// Metrics are the summary figures derived from a scan result.
type Metrics struct {
	// Ready is true while no result exists yet.
	Ready bool `json:"ready"`

	// DiscoveredPoints is a display estimate (exposures x fan-out), not a precise count.
	DiscoveredPoints int    `json:"discovered_points"`
	RiskScore        int    `json:"risk_score"`
	Band             string `json:"band"`
	CriticalLeaks    int    `json:"critical_leaks"`
	Exposures        int    `json:"exposures"`
	DroppedRecords   int    `json:"dropped_records,omitempty"`

	ByRiskLevel   map[RiskLevel]int `json:"by_risk_level"`
	ByPIICategory map[string]int    `json:"by_pii_category"`
	ByPlatform    map[string]int    `json:"by_platform"`
}
