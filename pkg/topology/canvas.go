package topology

import (
	"math"

	"github.com/dd0wney/crclink/pkg/validation"
)

// Canvas enforces the viewport policy for node centers and derives the
// drawable geometry of a topology.
type Canvas struct {
	Bounds Bounds
}

// NewCanvas creates a canvas with the given bounds
func NewCanvas(b Bounds) Canvas {
	return Canvas{Bounds: b}
}

// Clamp pulls a proposed center into [radius, dimension-radius] on each axis
// independently. NaN clamps to the lower bound.
func (c Canvas) Clamp(x, y float64) Position {
	return Position{
		X: validation.ClampFloat(x, c.Bounds.MinX(), c.Bounds.MaxX()),
		Y: validation.ClampFloat(y, c.Bounds.MinY(), c.Bounds.MaxY()),
	}
}

// Segment is a straight line between two node centers
type Segment struct {
	Connection Connection
	From       Position
	To         Position
}

// Segments returns one segment per connection whose endpoints are both in the
// registry. override, when non-nil, supplies live positions (an in-progress
// drag) that take precedence over committed ones.
func (c Canvas) Segments(r Registry, conns []Connection, override func(NodeID) (Position, bool)) []Segment {
	position := func(id NodeID) (Position, bool) {
		node, ok := r.Get(id)
		if !ok {
			return Position{}, false
		}
		if override != nil {
			if p, ok := override(id); ok {
				return p, true
			}
		}
		return node.Position, true
	}

	segments := make([]Segment, 0, len(conns))
	for _, conn := range conns {
		from, ok := position(conn.Source)
		if !ok {
			continue
		}
		to, ok := position(conn.Target)
		if !ok {
			continue
		}
		segments = append(segments, Segment{Connection: conn, From: from, To: to})
	}
	return segments
}

// HitTest returns the node whose glyph contains p. When glyphs overlap the
// node drawn last (highest id) wins.
func (c Canvas) HitTest(r Registry, p Position) (NodeID, bool) {
	nodes := r.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if math.Hypot(n.Position.X-p.X, n.Position.Y-p.Y) <= c.Bounds.Radius {
			return n.ID, true
		}
	}
	return 0, false
}
