// Package correlation computes the radial star layout of the identity correlation graph.
package correlation

import (
	"math"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// DefaultRootLabel is used when the caller has no operator identity to place at the centre.
const DefaultRootLabel = "operator@shadowtrace.io"

// Config controls the placement of discovered nodes around the root.
type Config struct {
	// AngularStep is the angle in radians between consecutive nodes.
	// It is ignored when EvenSpacing is set.
	AngularStep float64
	RadiusX     float64
	RadiusY     float64
	// EvenSpacing spreads N nodes at 2π/N instead of a fixed step.
	EvenSpacing bool
	// Fallback renders the fixed demonstration graph when there are no exposures.
	Fallback bool
}

// DefaultConfig reproduces the dashboard geometry.
func DefaultConfig() Config {
	return Config{
		AngularStep: 1.5,
		RadiusX:     200,
		RadiusY:     150,
		EvenSpacing: false,
		Fallback:    true,
	}
}

// Engine lays out graphs. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine. Zero radii are replaced with the defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.RadiusX == 0 {
		cfg.RadiusX = def.RadiusX
	}
	if cfg.RadiusY == 0 {
		cfg.RadiusY = def.RadiusY
	}
	if cfg.AngularStep == 0 && !cfg.EvenSpacing {
		cfg.AngularStep = def.AngularStep
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

type fixedNode struct {
	label    string
	category string
	x, y     float64
}

// demonstrationNodes is the graph shown before any scan has produced exposures.
// The Email node takes the root label at layout time.
var demonstrationNodes = []fixedNode{
	{label: "md-rasheed-dev", category: "GitHub", x: -160, y: -80},
	{label: "", category: "Email", x: 180, y: -120},
	{label: "+91 98XXX XXX01", category: "Phone", x: 200, y: 100},
	{label: "u/rasheed_aiml", category: "Reddit", x: -180, y: 120},
}

// Layout positions one node per exposure around a root labelled rootLabel.
// Node i gets id i+1. The result depends only on its inputs.
func (e *Engine) Layout(exposures []schemas.ExposureRecord, rootLabel string) schemas.Layout {
	layout := schemas.Layout{
		Root: schemas.GraphNode{
			ID:       schemas.RootNodeID,
			Label:    rootLabel,
			Category: schemas.RootCategory,
		},
		Nodes: []schemas.GraphNode{},
		Edges: []schemas.GraphEdge{},
	}

	if len(exposures) == 0 {
		if e.cfg.Fallback {
			e.fallback(&layout, rootLabel)
		}
		return layout
	}

	step := e.step(len(exposures))
	for i, exp := range exposures {
		theta := float64(i) * step
		label := exp.Match
		if label == "" {
			label = exp.Platform
		}
		layout.Nodes = append(layout.Nodes, schemas.GraphNode{
			ID:       i + 1,
			Label:    label,
			Category: exp.Platform,
			Position: schemas.Point{
				X: e.cfg.RadiusX * math.Cos(theta),
				Y: e.cfg.RadiusY * math.Sin(theta),
			},
			Angle: theta,
		})
	}
	layout.Edges = spokes(layout.Nodes)
	return layout
}

func (e *Engine) step(n int) float64 {
	if e.cfg.EvenSpacing {
		return 2 * math.Pi / float64(n)
	}
	return e.cfg.AngularStep
}

func (e *Engine) fallback(layout *schemas.Layout, rootLabel string) {
	for i, fn := range demonstrationNodes {
		label := fn.label
		if fn.category == "Email" {
			label = rootLabel
			if label == "" {
				label = DefaultRootLabel
			}
		}
		layout.Nodes = append(layout.Nodes, schemas.GraphNode{
			ID:       i + 1,
			Label:    label,
			Category: fn.category,
			Position: schemas.Point{X: fn.x, Y: fn.y},
			Angle:    math.Atan2(fn.y, fn.x),
		})
	}
	layout.Edges = spokes(layout.Nodes)
	layout.Fallback = true
}

// spokes links the root to every node. There are never node-to-node edges.
func spokes(nodes []schemas.GraphNode) []schemas.GraphEdge {
	edges := make([]schemas.GraphEdge, 0, len(nodes))
	for _, n := range nodes {
		edges = append(edges, schemas.GraphEdge{
			From:   schemas.RootNodeID,
			To:     n.ID,
			Length: math.Hypot(n.Position.X, n.Position.Y),
			Angle:  math.Atan2(n.Position.Y, n.Position.X),
		})
	}
	return edges
}
