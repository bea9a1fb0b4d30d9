package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedPlacer(x, y float64) Placer {
	return PlacerFunc(func(NodeID, Bounds) Position { return Position{X: x, Y: y} })
}

func snapshot(ids ...NodeID) []NodeStatus {
	out := make([]NodeStatus, len(ids))
	for i, id := range ids {
		out[i] = NodeStatus{ID: id, Status: StatusIdle}
	}
	return out
}

func TestRegistry_RefreshAddsAndRemoves(t *testing.T) {
	r, diff := NewRegistry().Refresh(snapshot(3, 1, 2), DefaultBounds, fixedPlacer(100, 100))

	assert.Equal(t, []NodeID{1, 2, 3}, r.IDs())
	assert.Equal(t, []NodeID{1, 2, 3}, diff.Added)
	assert.Empty(t, diff.Removed)

	r2, diff := r.Refresh(snapshot(2, 3, 4), DefaultBounds, fixedPlacer(200, 200))
	assert.Equal(t, []NodeID{2, 3, 4}, r2.IDs())
	assert.Equal(t, []NodeID{4}, diff.Added)
	assert.Equal(t, []NodeID{1}, diff.Removed)

	// The receiver is untouched
	assert.Equal(t, []NodeID{1, 2, 3}, r.IDs())
}

func TestRegistry_RefreshPreservesPositions(t *testing.T) {
	r, _ := NewRegistry().Refresh(snapshot(1, 2), DefaultBounds, fixedPlacer(100, 100))
	r, ok := r.WithPosition(1, Position{X: 500, Y: 250})
	require.True(t, ok)

	r, diff := r.Refresh([]NodeStatus{{ID: 1, Status: StatusOffline}, {ID: 2, Status: StatusIdle}}, DefaultBounds, fixedPlacer(0, 0))

	n1, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, Position{X: 500, Y: 250}, n1.Position)
	assert.Equal(t, StatusOffline, n1.Status)
	assert.Equal(t, []NodeID{1}, diff.Changed)

	n2, _ := r.Get(2)
	assert.Equal(t, Position{X: 100, Y: 100}, n2.Position)
}

func TestRegistry_RefreshDuplicateIDs(t *testing.T) {
	r, diff := NewRegistry().Refresh([]NodeStatus{
		{ID: 5, Status: StatusIdle},
		{ID: 5, Status: StatusOnline},
	}, DefaultBounds, fixedPlacer(50, 50))

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []NodeID{5}, diff.Added)
	n, _ := r.Get(5)
	assert.Equal(t, StatusOnline, n.Status)
}

func TestRegistry_RefreshEmptySnapshot(t *testing.T) {
	r, _ := NewRegistry().Refresh(snapshot(1, 2), DefaultBounds, fixedPlacer(50, 50))
	r, diff := r.Refresh(nil, DefaultBounds, fixedPlacer(50, 50))

	assert.Zero(t, r.Len())
	assert.Equal(t, []NodeID{1, 2}, diff.Removed)
}

func TestRegistry_WithPositionUnknown(t *testing.T) {
	r := NewRegistry()
	r2, ok := r.WithPosition(9, Position{X: 1, Y: 1})
	assert.False(t, ok)
	assert.Zero(t, r2.Len())
}

func TestRegistry_WithPositionIsCopy(t *testing.T) {
	r, _ := NewRegistry().Refresh(snapshot(1), DefaultBounds, fixedPlacer(100, 100))
	moved, _ := r.WithPosition(1, Position{X: 300, Y: 120})

	before, _ := r.Get(1)
	after, _ := moved.Get(1)
	assert.Equal(t, Position{X: 100, Y: 100}, before.Position)
	assert.Equal(t, Position{X: 300, Y: 120}, after.Position)
}

func TestRandomPlacer_WithinBounds(t *testing.T) {
	p := NewRandomPlacer(42)
	for i := 0; i < 1000; i++ {
		pos := p.Place(NodeID(i), DefaultBounds)
		if !DefaultBounds.Contains(pos) {
			t.Fatalf("placement %d out of bounds: %+v", i, pos)
		}
	}
}

func TestRegistry_RefreshPlacesInIDOrder(t *testing.T) {
	var placed []NodeID
	recorder := PlacerFunc(func(id NodeID, _ Bounds) Position {
		placed = append(placed, id)
		return Position{X: 100, Y: 100}
	})

	NewRegistry().Refresh(snapshot(9, 4, 7, 1, 12, 3), DefaultBounds, recorder)
	assert.Equal(t, []NodeID{1, 3, 4, 7, 9, 12}, placed)
}

func TestRegistry_RefreshSeededPlacementIsReproducible(t *testing.T) {
	ids := snapshot(5, 2, 8, 11, 3, 14, 6)
	for i := 0; i < 20; i++ {
		a, _ := NewRegistry().Refresh(ids, DefaultBounds, NewRandomPlacer(7))
		b, _ := NewRegistry().Refresh(ids, DefaultBounds, NewRandomPlacer(7))
		for _, id := range a.IDs() {
			na, _ := a.Get(id)
			nb, _ := b.Get(id)
			require.Equal(t, na.Position, nb.Position, "node %d", id)
		}
	}
}
