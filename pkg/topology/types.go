// Package topology holds the locally known node set, its reconciliation
// against collaborator snapshots, and the bounded 2-D canvas the nodes live on.
package topology

import "fmt"

// NodeID identifies a node. Ids are assigned by the collaborator and are the
// only join key between snapshots.
type NodeID int64

func (id NodeID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// Status is the collaborator-reported node state. Values other than the
// known constants are kept verbatim.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Position represents a 2D coordinate in canvas units
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a simulated network endpoint
type Node struct {
	ID       NodeID
	Status   Status
	Position Position
}

// NodeStatus is one entry of a collaborator node listing
type NodeStatus struct {
	ID     NodeID
	Status Status
}

// Connection links two nodes. It is stored directed in creation order and
// rendered undirected.
type Connection struct {
	Source NodeID
	Target NodeID
}

// Bounds is the fixed viewport policy: canvas extent and node glyph radius
type Bounds struct {
	Width  float64
	Height float64
	Radius float64
}

// DefaultBounds matches the observed 800x300 viewport with 30-unit glyphs
var DefaultBounds = Bounds{Width: 800, Height: 300, Radius: 30}

// MinX returns the smallest x a node center may take
func (b Bounds) MinX() float64 { return b.Radius }

// MaxX returns the largest x a node center may take
func (b Bounds) MaxX() float64 { return b.Width - b.Radius }

// MinY returns the smallest y a node center may take
func (b Bounds) MinY() float64 { return b.Radius }

// MaxY returns the largest y a node center may take
func (b Bounds) MaxY() float64 { return b.Height - b.Radius }

// Contains reports whether p is a legal node center
func (b Bounds) Contains(p Position) bool {
	return p.X >= b.MinX() && p.X <= b.MaxX() && p.Y >= b.MinY() && p.Y <= b.MaxY()
}
