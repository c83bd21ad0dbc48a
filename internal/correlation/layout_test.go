package correlation_test

import (
	"math"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
	"github.com/shadowtrace/shadowtrace-cli/internal/correlation"
)

const epsilon = 1e-9

var approx = cmpopts.EquateApprox(0, epsilon)

func twoExposures() []schemas.ExposureRecord {
	return []schemas.ExposureRecord{
		{Platform: "GitHub", Match: "alice-dev", PIIFound: []string{"EMAIL"}, RiskLevel: schemas.RiskHigh},
		{Platform: "Pastebin", Match: "alice@example.com", PIIFound: []string{"EMAIL", "PHONE"}, RiskLevel: schemas.RiskCritical},
	}
}

func TestLayout_TwoExposures(t *testing.T) {
	engine := correlation.NewEngine(correlation.DefaultConfig())

	got := engine.Layout(twoExposures(), "alice@example.com")

	want := schemas.Layout{
		Root: schemas.GraphNode{ID: 0, Label: "alice@example.com", Category: "Root"},
		Nodes: []schemas.GraphNode{
			{ID: 1, Label: "alice-dev", Category: "GitHub", Position: schemas.Point{X: 200, Y: 0}, Angle: 0},
			{
				ID: 2, Label: "alice@example.com", Category: "Pastebin",
				Position: schemas.Point{X: 200 * math.Cos(1.5), Y: 150 * math.Sin(1.5)},
				Angle:    1.5,
			},
		},
		Edges: []schemas.GraphEdge{
			{From: 0, To: 1, Length: 200, Angle: 0},
			{
				From: 0, To: 2,
				Length: math.Hypot(200*math.Cos(1.5), 150*math.Sin(1.5)),
				Angle:  math.Atan2(150*math.Sin(1.5), 200*math.Cos(1.5)),
			},
		},
	}

	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("Layout mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 14.147, got.Nodes[1].Position.X, 0.001)
	assert.InDelta(t, 149.624, got.Nodes[1].Position.Y, 0.001)
}

func TestLayout_LabelFallsBackToPlatform(t *testing.T) {
	engine := correlation.NewEngine(correlation.DefaultConfig())

	got := engine.Layout([]schemas.ExposureRecord{{Platform: "Reddit"}}, "root")

	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "Reddit", got.Nodes[0].Label)
	assert.Equal(t, "Reddit", got.Nodes[0].Category)
}

func TestLayout_FallbackGraph(t *testing.T) {
	engine := correlation.NewEngine(correlation.DefaultConfig())

	t.Run("uses the root label for the email node", func(t *testing.T) {
		got := engine.Layout(nil, "analyst@corp.example")

		assert.True(t, got.Fallback)
		want := []schemas.GraphNode{
			{ID: 1, Label: "md-rasheed-dev", Category: "GitHub", Position: schemas.Point{X: -160, Y: -80}, Angle: math.Atan2(-80, -160)},
			{ID: 2, Label: "analyst@corp.example", Category: "Email", Position: schemas.Point{X: 180, Y: -120}, Angle: math.Atan2(-120, 180)},
			{ID: 3, Label: "+91 98XXX XXX01", Category: "Phone", Position: schemas.Point{X: 200, Y: 100}, Angle: math.Atan2(100, 200)},
			{ID: 4, Label: "u/rasheed_aiml", Category: "Reddit", Position: schemas.Point{X: -180, Y: 120}, Angle: math.Atan2(120, -180)},
		}
		if diff := cmp.Diff(want, got.Nodes, approx); diff != "" {
			t.Errorf("fallback nodes mismatch (-want +got):\n%s", diff)
		}
		assert.Len(t, got.Edges, 4)
	})

	t.Run("defaults the email node without an operator", func(t *testing.T) {
		got := engine.Layout(nil, "")
		assert.Equal(t, correlation.DefaultRootLabel, got.Nodes[1].Label)
	})

	t.Run("can be disabled", func(t *testing.T) {
		cfg := correlation.DefaultConfig()
		cfg.Fallback = false

		got := correlation.NewEngine(cfg).Layout([]schemas.ExposureRecord{}, "alice")

		assert.False(t, got.Fallback)
		assert.Empty(t, got.Nodes)
		assert.Empty(t, got.Edges)
		assert.Equal(t, "alice", got.Root.Label)
	})
}

func TestLayout_EvenSpacing(t *testing.T) {
	cfg := correlation.DefaultConfig()
	cfg.EvenSpacing = true
	engine := correlation.NewEngine(cfg)

	exposures := make([]schemas.ExposureRecord, 4)
	for i := range exposures {
		exposures[i] = schemas.ExposureRecord{Platform: "P", Match: "m"}
	}

	got := engine.Layout(exposures, "root")

	require.Len(t, got.Nodes, 4)
	for i, n := range got.Nodes {
		assert.InDelta(t, float64(i)*math.Pi/2, n.Angle, epsilon)
	}
	assert.InDelta(t, 0, got.Nodes[1].Position.X, epsilon)
	assert.InDelta(t, 150, got.Nodes[1].Position.Y, epsilon)
}

func TestLayout_Deterministic(t *testing.T) {
	engine := correlation.NewEngine(correlation.DefaultConfig())

	a := engine.Layout(twoExposures(), "alice")
	b := engine.Layout(twoExposures(), "alice")

	assert.True(t, cmp.Equal(a, b), "identical inputs must produce identical layouts")
}

func TestNewEngine_FillsZeroValues(t *testing.T) {
	cfg := correlation.NewEngine(correlation.Config{}).Config()
	assert.Equal(t, 200.0, cfg.RadiusX)
	assert.Equal(t, 150.0, cfg.RadiusY)
	assert.Equal(t, 1.5, cfg.AngularStep)
}

// FuzzLayout checks the star invariants hold for arbitrary exposure sets.
func FuzzLayout(f *testing.F) {
	type input struct {
		Exposures []schemas.ExposureRecord
		Root      string
		Even      bool
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		in := &input{}
		if err := fuzz.NewConsumer(data).GenerateStruct(in); err != nil {
			return
		}

		cfg := correlation.DefaultConfig()
		cfg.EvenSpacing = in.Even
		layout := correlation.NewEngine(cfg).Layout(in.Exposures, in.Root)

		assert.Equal(t, schemas.RootNodeID, layout.Root.ID)
		assert.Equal(t, in.Root, layout.Root.Label)
		require.Equal(t, len(layout.Nodes), len(layout.Edges))
		if len(in.Exposures) > 0 {
			require.Len(t, layout.Nodes, len(in.Exposures))
			assert.False(t, layout.Fallback)
		}

		for i, n := range layout.Nodes {
			assert.Equal(t, i+1, n.ID)
			assert.LessOrEqual(t, math.Abs(n.Position.X), 200+epsilon)
			assert.LessOrEqual(t, math.Abs(n.Position.Y), 200+epsilon)

			e := layout.Edges[i]
			assert.Equal(t, schemas.RootNodeID, e.From, "edges always start at the root")
			assert.Equal(t, n.ID, e.To)
		}
	})
}
