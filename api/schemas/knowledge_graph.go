package schemas

// -- Correlation Graph Schemas --

// RootNodeID is the reserved id of the identity at the centre of every layout.
const RootNodeID = 0

// RootCategory is the category assigned to the root node.
const RootCategory = "Root"

// Point is a position in layout space, relative to the fixed centre (0,0).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is a positioned entity in the correlation view.
type GraphNode struct {
	ID       int     `json:"id"`
	Label    string  `json:"label"`
	Category string  `json:"category"`
	Position Point   `json:"position"`
	Angle    float64 `json:"angle"` // Polar angle used to place the node, in radians.
}

// GraphEdge links the root to a discovered node. Layouts never contain node-to-node edges.
type GraphEdge struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Length float64 `json:"length"`
	Angle  float64 `json:"angle"` // atan2(y, x) of the destination, for drawing the spoke.
}

// Layout is the renderable geometry of a star graph.
type Layout struct {
	Root  GraphNode   `json:"root"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`

	// Fallback marks the fixed demonstration graph shown when no exposures exist.
	Fallback bool `json:"fallback"`
}

// NodeByID finds a node, including the root.
func (l Layout) NodeByID(id int) (GraphNode, bool) {
	if id == l.Root.ID {
		return l.Root, true
	}
	for _, n := range l.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return GraphNode{}, false
}
