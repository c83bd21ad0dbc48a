package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
	"github.com/shadowtrace/shadowtrace-cli/internal/risk"
)

func TestSummarize_NoResult(t *testing.T) {
	m := risk.Summarize(nil, risk.DefaultPolicy())

	assert.True(t, m.Ready)
	assert.Equal(t, risk.BandReady, m.Band)
	assert.Zero(t, m.DiscoveredPoints)
	assert.Zero(t, m.CriticalLeaks)
	assert.Zero(t, m.RiskScore)
}

func TestSummarize_Result(t *testing.T) {
	result := &schemas.ScanResult{
		Target:     "alice@example.com",
		TotalLeaks: 2,
		RiskScore:  85,
		Exposures: []schemas.ExposureRecord{
			{Platform: "GitHub", Match: "alice-dev", PIIFound: []string{"EMAIL"}, RiskLevel: schemas.RiskHigh},
			{Platform: "Pastebin", Match: "alice@example.com", PIIFound: []string{"EMAIL", "PHONE"}, RiskLevel: schemas.RiskCritical},
		},
		DroppedRecords: 1,
	}

	m := risk.Summarize(result, risk.DefaultPolicy())

	assert.False(t, m.Ready)
	assert.Equal(t, 24, m.DiscoveredPoints)
	assert.Equal(t, 85, m.RiskScore)
	assert.Equal(t, risk.BandCritical, m.Band)
	assert.Equal(t, 2, m.CriticalLeaks)
	assert.Equal(t, 2, m.Exposures)
	assert.Equal(t, 1, m.DroppedRecords)
	assert.Equal(t, map[schemas.RiskLevel]int{schemas.RiskHigh: 1, schemas.RiskCritical: 1}, m.ByRiskLevel)
	assert.Equal(t, map[string]int{"EMAIL": 2, "PHONE": 1}, m.ByPIICategory)
	assert.Equal(t, map[string]int{"GitHub": 1, "Pastebin": 1}, m.ByPlatform)
}

func TestSummarize_PassesBackendFiguresThrough(t *testing.T) {
	// The backend is authoritative even when its figures disagree with the records.
	result := &schemas.ScanResult{TotalLeaks: 7, RiskScore: 250}

	m := risk.Summarize(result, risk.DefaultPolicy())

	assert.Equal(t, 7, m.CriticalLeaks)
	assert.Equal(t, 250, m.RiskScore)
	assert.Zero(t, m.DiscoveredPoints)
	assert.False(t, m.Ready)
}

func TestBandFor(t *testing.T) {
	p := risk.DefaultPolicy()
	testCases := []struct {
		name  string
		score int
		want  string
	}{
		{"zero", 0, risk.BandModerate},
		{"just below high", 39, risk.BandModerate},
		{"high threshold", 40, risk.BandHigh},
		{"just below critical", 69, risk.BandHigh},
		{"critical threshold", 70, risk.BandCritical},
		{"maximum", 100, risk.BandCritical},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, risk.BandFor(tc.score, p))
		})
	}
}

func TestEstimateDiscoveredPoints(t *testing.T) {
	p := risk.DefaultPolicy()
	assert.Equal(t, 0, risk.EstimateDiscoveredPoints(0, p))
	assert.Equal(t, 36, risk.EstimateDiscoveredPoints(3, p))
	assert.Equal(t, 0, risk.EstimateDiscoveredPoints(-1, p))

	p.FanOut = 5
	assert.Equal(t, 15, risk.EstimateDiscoveredPoints(3, p))
}

func TestSummarize_GroupsLabelledFindingsByCategory(t *testing.T) {
	result := &schemas.ScanResult{
		Exposures: []schemas.ExposureRecord{
			{Platform: "Pastebin", Match: "demo", RiskLevel: schemas.RiskCritical,
				PIIFound: []string{"PAN_CARD: ABCDE1234F", "PAN_CARD: ZZZZZ9999Z", "EMAIL"}},
		},
	}

	m := risk.Summarize(result, risk.DefaultPolicy())
	assert.Equal(t, map[string]int{"PAN_CARD": 2, "EMAIL": 1}, m.ByPIICategory)
}
