package compliance

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

func statuses(checks []Check) map[string]string {
	out := make(map[string]string, len(checks))
	for _, c := range checks {
		out[c.Section] = c.Status
	}
	return out
}

func TestEvaluate(t *testing.T) {
	t.Run("before any scan everything is verified", func(t *testing.T) {
		checks := Evaluate(nil)
		require.Len(t, checks, 4)
		assert.Equal(t, map[string]string{
			"Section 8(5)": StatusVerified,
			"Section 6":    StatusVerified,
			"Section 12":   StatusReady,
			"Section 13":   StatusVerified,
		}, statuses(checks))
	})

	tests := []struct {
		name       string
		leaks      int
		safeguards string
		consent    string
	}{
		{"clean result", 0, StatusVerified, StatusVerified},
		{"one leak fails safeguards", 1, StatusFailing, StatusVerified},
		{"two leaks stay within consent threshold", 2, StatusFailing, StatusVerified},
		{"three leaks violate consent", 3, StatusFailing, StatusViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statuses(Evaluate(&schemas.ScanResult{TotalLeaks: tt.leaks}))
			assert.Equal(t, tt.safeguards, got["Section 8(5)"])
			assert.Equal(t, tt.consent, got["Section 6"])
			assert.Equal(t, StatusReady, got["Section 12"])
			assert.Equal(t, StatusVerified, got["Section 13"])
		})
	}
}

func TestCheck_Failed(t *testing.T) {
	assert.True(t, Check{Status: StatusFailing}.Failed())
	assert.True(t, Check{Status: StatusViolation}.Failed())
	assert.False(t, Check{Status: StatusVerified}.Failed())
	assert.False(t, Check{Status: StatusReady}.Failed())
}

func TestParseFinding(t *testing.T) {
	category, match := ParseFinding("PAN_CARD: ABCDE1234F")
	assert.Equal(t, "PAN_CARD", category)
	assert.Equal(t, "ABCDE1234F", match)

	category, match = ParseFinding("EMAIL")
	assert.Equal(t, "EMAIL", category)
	assert.Empty(t, match)

	category, match = ParseFinding("PRIVATE_KEY: -----BEGIN: RSA")
	assert.Equal(t, "PRIVATE_KEY", category)
	assert.Equal(t, "-----BEGIN: RSA", match, "only the first colon separates")
}

func TestObligationFor(t *testing.T) {
	assert.Equal(t, "Section 8(5)", ObligationFor("AADHAAR_ID").Section)
	assert.Equal(t, "Section 8(5)", ObligationFor("aadhaar").Section)
	assert.Equal(t, "Section 11", ObligationFor("PAN_CARD").Section)
	assert.Equal(t, "Section 8(1)", ObligationFor("PRIVATE_KEY").Section)
	assert.Equal(t, "Section 12", ObligationFor("EMAIL").Section)
	assert.Equal(t, "Right to Correction and Erasure", ObligationFor("").Violation)
}

func TestMapFindings(t *testing.T) {
	exposures := []schemas.ExposureRecord{
		{Platform: "GitHub", Match: "demo-dev", PIIFound: []string{"EMAIL: demo@tracepoint.com", "PRIVATE_KEY: AKIA****"}},
		{Platform: "Pastebin", Match: "demo_user", PIIFound: []string{"PAN_CARD: ABCDE1234F", "PHONE: 98xxxxxx10", "AADHAAR: 1234 5678 9012"}},
		{Platform: "Reddit", Match: "demo_user", PIIFound: []string{"AADHAAR_ID: 9999 8888 7777"}},
		{Platform: "Forum", Match: "demo", PIIFound: nil},
	}

	violations := MapFindings(exposures)
	require.Len(t, violations, 4)

	sections := make([]string, 0, len(violations))
	for _, v := range violations {
		sections = append(sections, v.Section)
	}
	assert.Equal(t, []string{"Section 12", "Section 8(1)", "Section 11", "Section 8(5)"}, sections)

	assert.Equal(t, "EMAIL", violations[0].DataType, "first finding wins for a section")
	assert.Equal(t, "demo@tracepoint.com", violations[0].Match)
	assert.Equal(t, "GitHub", violations[0].Platform)

	assert.Equal(t, "AADHAAR", violations[3].DataType)
	assert.Equal(t, "Pastebin", violations[3].Platform)
	assert.Equal(t, "Up to ₹250 Crores", violations[3].Penalty)
}

func TestMapFindings_Empty(t *testing.T) {
	assert.Empty(t, MapFindings(nil))
	assert.Empty(t, MapFindings([]schemas.ExposureRecord{{Platform: "GitHub", Match: "x", PIIFound: []string{" "}}}))
}

func TestRemovalRequest_Render(t *testing.T) {
	req := RemovalRequest{
		Principal: "Demo User",
		Company:   "Pastebin",
		Date:      time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
		Exposures: []schemas.ExposureRecord{
			{Platform: "Pastebin", Match: "demo_user", PIIFound: []string{"PAN_CARD: ABCDE1234F", "EMAIL"}},
			{Platform: "Pastebin", Match: "demo-paste"},
		},
	}

	letter, err := req.Render()
	require.NoError(t, err)

	assert.Contains(t, letter, "Date: 04 March 2026")
	assert.Contains(t, letter, "\nPastebin\n")
	assert.Contains(t, letter, "- PAN_CARD: ABCDE1234F\n")
	assert.Contains(t, letter, "- EMAIL: demo_user\n", "bare labels use the exposure match")
	assert.Contains(t, letter, "- PROFILE: demo-paste\n")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(letter), "Demo User"))
}

func TestRemovalRequest_NoFindings(t *testing.T) {
	_, err := RemovalRequest{Company: "GitHub"}.Render()
	assert.ErrorIs(t, err, ErrNoFindings)
}

func TestRemovalRequestsByPlatform(t *testing.T) {
	at := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	exposures := []schemas.ExposureRecord{
		{Platform: "GitHub", Match: "a"},
		{Platform: "Pastebin", Match: "b"},
		{Platform: "GitHub", Match: "c"},
	}

	requests := RemovalRequestsByPlatform("alice", exposures, at)
	require.Len(t, requests, 2)
	assert.Equal(t, "GitHub", requests[0].Company)
	assert.Len(t, requests[0].Exposures, 2)
	assert.Equal(t, "Pastebin", requests[1].Company)
	assert.Equal(t, "alice", requests[1].Principal)
	assert.Equal(t, at, requests[1].Date)
}
