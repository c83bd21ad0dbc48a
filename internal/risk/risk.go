// Package risk derives summary metrics from a discovery result.
package risk

import (
	"strings"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// Band labels.
const (
	BandReady    = "Ready"
	BandCritical = "Critical band"
	BandHigh     = "High band"
	BandModerate = "Moderate band"
)

// Policy holds the tunables of the aggregator.
type Policy struct {
	// FanOut is the nominal number of data points each exposure is assumed to reveal.
	FanOut            int
	CriticalThreshold int
	HighThreshold     int
}

// DefaultPolicy returns the policy used by the console out of the box.
func DefaultPolicy() Policy {
	return Policy{
		FanOut:            12,
		CriticalThreshold: 70,
		HighThreshold:     40,
	}
}

// EstimateDiscoveredPoints is a display estimate of the data points behind a set of
// exposures. It is not a precise count of anything the backend returned.
func EstimateDiscoveredPoints(exposures int, p Policy) int {
	if exposures < 0 || p.FanOut < 0 {
		return 0
	}
	return exposures * p.FanOut
}

// BandFor labels a backend risk score.
func BandFor(score int, p Policy) string {
	switch {
	case score >= p.CriticalThreshold:
		return BandCritical
	case score >= p.HighThreshold:
		return BandHigh
	default:
		return BandModerate
	}
}

// Summarize computes metrics for a result. A nil result yields the "Ready" placeholder.
// The backend's risk score and leak count are passed through as reported.
func Summarize(result *schemas.ScanResult, p Policy) schemas.Metrics {
	m := schemas.Metrics{
		ByRiskLevel:   make(map[schemas.RiskLevel]int),
		ByPIICategory: make(map[string]int),
		ByPlatform:    make(map[string]int),
	}
	if result == nil {
		m.Ready = true
		m.Band = BandReady
		return m
	}

	m.Exposures = len(result.Exposures)
	m.DiscoveredPoints = EstimateDiscoveredPoints(m.Exposures, p)
	m.RiskScore = result.RiskScore
	m.Band = BandFor(result.RiskScore, p)
	m.CriticalLeaks = result.TotalLeaks
	m.DroppedRecords = result.DroppedRecords

	for _, e := range result.Exposures {
		m.ByRiskLevel[e.RiskLevel]++
		m.ByPlatform[e.Platform]++
		for _, pii := range e.PIIFound {
			// Labels may carry the matched value as "CATEGORY: match".
			category, _, _ := strings.Cut(pii, ":")
			if category = strings.TrimSpace(category); category != "" {
				m.ByPIICategory[category]++
			}
		}
	}
	return m
}
