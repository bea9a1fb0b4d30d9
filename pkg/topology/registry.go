package topology

import (
	"slices"
)

// Registry is the locally known node set. It is a value: every mutating
// method returns a new Registry and leaves the receiver untouched.
type Registry struct {
	nodes map[NodeID]Node
	order []NodeID // ascending
}

// RefreshDiff describes what a Refresh changed
type RefreshDiff struct {
	Added   []NodeID
	Removed []NodeID
	Changed []NodeID // status changed
}

// Empty reports whether the refresh changed nothing
func (d RefreshDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// NewRegistry creates an empty registry
func NewRegistry() Registry {
	return Registry{nodes: map[NodeID]Node{}}
}

// Refresh reconciles the registry with an authoritative snapshot. New ids are
// placed by placer inside bounds, missing ids are dropped, and persisting ids
// keep their position. Duplicate ids in the snapshot collapse to the last entry.
// New ids are placed in ascending order, so a seeded placer is reproducible.
func (r Registry) Refresh(snapshot []NodeStatus, b Bounds, placer Placer) (Registry, RefreshDiff) {
	var diff RefreshDiff

	seen := make(map[NodeID]Status, len(snapshot))
	for _, ns := range snapshot {
		seen[ns.ID] = ns.Status
	}

	var order []NodeID
	for id := range seen {
		order = append(order, id)
	}
	slices.Sort(order)

	next := Registry{
		nodes: make(map[NodeID]Node, len(seen)),
		order: order,
	}

	for _, id := range next.order {
		status := seen[id]
		node, known := r.nodes[id]
		switch {
		case !known:
			node = Node{ID: id, Status: status, Position: placer.Place(id, b)}
			diff.Added = append(diff.Added, id)
		case node.Status != status:
			node.Status = status
			diff.Changed = append(diff.Changed, id)
		}
		next.nodes[id] = node
	}

	for _, id := range r.order {
		if _, ok := seen[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}

	return next, diff
}

// WithPosition returns a registry with id moved to pos. The second result is
// false when id is unknown, in which case the receiver is returned unchanged.
func (r Registry) WithPosition(id NodeID, pos Position) (Registry, bool) {
	node, ok := r.nodes[id]
	if !ok {
		return r, false
	}

	next := Registry{
		nodes: make(map[NodeID]Node, len(r.nodes)),
		order: r.order,
	}
	for k, v := range r.nodes {
		next.nodes[k] = v
	}
	node.Position = pos
	next.nodes[id] = node
	return next, true
}

// Get returns the node with the given id
func (r Registry) Get(id NodeID) (Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// Has reports whether id is known
func (r Registry) Has(id NodeID) bool {
	_, ok := r.nodes[id]
	return ok
}

// Len returns the number of known nodes
func (r Registry) Len() int {
	return len(r.order)
}

// IDs returns the known ids in ascending order
func (r Registry) IDs() []NodeID {
	return slices.Clone(r.order)
}

// Nodes returns the known nodes ordered by id
func (r Registry) Nodes() []Node {
	nodes := make([]Node, 0, len(r.order))
	for _, id := range r.order {
		nodes = append(nodes, r.nodes[id])
	}
	return nodes
}
