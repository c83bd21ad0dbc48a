package schemas_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// -- Test Cases --

func TestParseRiskLevel(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		raw      string
		expected schemas.RiskLevel
		wantErr  bool
	}{
		{"Low", schemas.RiskLow, false},
		{"medium", schemas.RiskMedium, false},
		{"HIGH", schemas.RiskHigh, false},
		{"  Critical ", schemas.RiskCritical, false},
		{"severe", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := schemas.ParseRiskLevel(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, schemas.ErrUnknownRiskLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRiskLevelRank(t *testing.T) {
	levels := schemas.RiskLevels()
	for i := 1; i < len(levels); i++ {
		assert.Greater(t, levels[i].Rank(), levels[i-1].Rank(), "%s should outrank %s", levels[i], levels[i-1])
	}
	assert.Zero(t, schemas.RiskLevel("bogus").Rank())
}

func TestNewScanRequest(t *testing.T) {
	t.Run("email token fills the email slot", func(t *testing.T) {
		req := schemas.NewScanRequest("alice@example.com")
		assert.Equal(t, "alice@example.com", req.TargetEmail)
		assert.Empty(t, req.TargetUsername)
		assert.Equal(t, "alice@example.com", req.Token())
	})

	t.Run("handle token fills the username slot", func(t *testing.T) {
		req := schemas.NewScanRequest("bob_ops")
		assert.Empty(t, req.TargetEmail)
		assert.Equal(t, "bob_ops", req.TargetUsername)
		assert.Equal(t, "bob_ops", req.Token())
	})

	t.Run("both keys are always serialized", func(t *testing.T) {
		data, err := json.Marshal(schemas.NewScanRequest("bob_ops"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"target_email":"","target_username":"bob_ops"}`, string(data))
	})
}

func TestScanResultClone(t *testing.T) {
	original := schemas.ScanResult{
		Target:     "alice@example.com",
		TotalLeaks: 2,
		RiskScore:  85,
		Exposures: []schemas.ExposureRecord{
			{Platform: "GitHub", Match: "alice-dev", PIIFound: []string{"EMAIL"}, RiskLevel: schemas.RiskHigh},
		},
	}

	clone := original.Clone()
	clone.Exposures[0].PIIFound[0] = "PHONE"
	clone.Exposures[0].Match = "mallory"

	assert.Equal(t, "EMAIL", original.Exposures[0].PIIFound[0], "clone must not share PII slices")
	assert.Equal(t, "alice-dev", original.Exposures[0].Match)
}

func TestScanResultWireFormat(t *testing.T) {
	payload := `{
		"target": "alice@example.com",
		"total_leaks": 2,
		"risk_score": 85,
		"exposures": [
			{"platform": "GitHub", "match": "alice-dev", "pii_found": ["EMAIL"], "risk_level": "High",
			 "description": "Public profile", "url": "https://github.com/alice-dev"}
		]
	}`

	var result schemas.ScanResult
	require.NoError(t, json.Unmarshal([]byte(payload), &result))
	require.Len(t, result.Exposures, 1)
	assert.Equal(t, "Public profile", result.Exposures[0].Description)
	assert.Equal(t, schemas.RiskHigh, result.Exposures[0].RiskLevel)

	result.DroppedRecords = 3
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Dropped", "dropped record count is not part of the wire format")
}

// TestStructJSONTags pins the wire names the discovery backend depends on.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "ExposureRecord",
			structRef: schemas.ExposureRecord{},
			expectedTags: map[string]string{
				"Platform":  "platform",
				"Match":     "match",
				"PIIFound":  "pii_found",
				"RiskLevel": "risk_level",
			},
		},
		{
			name:      "ScanResult",
			structRef: schemas.ScanResult{},
			expectedTags: map[string]string{
				"TotalLeaks":     "total_leaks",
				"RiskScore":      "risk_score",
				"Exposures":      "exposures",
				"DroppedRecords": "-",
			},
		},
		{
			name:      "HistoryEntry",
			structRef: schemas.HistoryEntry{},
			expectedTags: map[string]string{
				"ID":       "id",
				"Query":    "query",
				"Score":    "score",
				"Findings": "findings",
			},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			typ := reflect.TypeOf(tt.structRef)
			for field, want := range tt.expectedTags {
				f, ok := typ.FieldByName(field)
				require.True(t, ok, "field %s missing", field)
				tag := strings.Split(f.Tag.Get("json"), ",")[0]
				assert.Equal(t, want, tag, "json tag for %s.%s", tt.name, field)
			}
		})
	}
}

func TestSessionStatus(t *testing.T) {
	assert.Equal(t, "Idle", schemas.StatusIdle.String())
	assert.Equal(t, "Running", schemas.StatusRunning.String())
	assert.Equal(t, "Complete", schemas.StatusComplete.String())
	assert.Equal(t, "Failed", schemas.StatusFailed.String())
	assert.Equal(t, "Unknown", schemas.SessionStatus(42).String())

	assert.True(t, schemas.StatusComplete.Terminal())
	assert.True(t, schemas.StatusFailed.Terminal())
	assert.False(t, schemas.StatusRunning.Terminal())
}

func TestLayoutNodeByID(t *testing.T) {
	layout := schemas.Layout{
		Root:  schemas.GraphNode{ID: schemas.RootNodeID, Label: "alice", Category: schemas.RootCategory},
		Nodes: []schemas.GraphNode{{ID: 1, Label: "alice-dev", Category: "GitHub"}},
	}

	root, ok := layout.NodeByID(0)
	require.True(t, ok)
	assert.Equal(t, "alice", root.Label)

	node, ok := layout.NodeByID(1)
	require.True(t, ok)
	assert.Equal(t, "GitHub", node.Category)

	_, ok = layout.NodeByID(7)
	assert.False(t, ok)
}
