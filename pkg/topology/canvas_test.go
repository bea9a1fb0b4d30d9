package topology

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestCanvas_Clamp(t *testing.T) {
	c := NewCanvas(DefaultBounds)

	tests := []struct {
		name   string
		x, y   float64
		expect Position
	}{
		{"inside", 400, 150, Position{X: 400, Y: 150}},
		{"left top", -100, -100, Position{X: 30, Y: 30}},
		{"right bottom", 5000, 5000, Position{X: 770, Y: 270}},
		{"axes independent", 10, 200, Position{X: 30, Y: 200}},
		{"exact edge", 770, 30, Position{X: 770, Y: 30}},
		{"nan", math.NaN(), math.NaN(), Position{X: 30, Y: 30}},
		{"infinities", math.Inf(1), math.Inf(-1), Position{X: 770, Y: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, c.Clamp(tt.x, tt.y))
		})
	}
}

// TestCanvas_ClampProperty checks that any proposed center, in or out of
// range, is pulled inside [radius, dimension-radius] on both axes.
func TestCanvas_ClampProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	c := NewCanvas(DefaultBounds)

	properties.Property("clamped position is within bounds", prop.ForAll(
		func(x, y float64) bool {
			return DefaultBounds.Contains(c.Clamp(x, y))
		},
		gen.Float64(),
		gen.Float64(),
	))

	properties.Property("in-range positions are unchanged", prop.ForAll(
		func(x, y float64) bool {
			p := c.Clamp(x, y)
			return p.X == x && p.Y == y
		},
		gen.Float64Range(30, 770),
		gen.Float64Range(30, 270),
	))

	properties.TestingRun(t)
}

func TestCanvas_SegmentsOmitMissingEndpoints(t *testing.T) {
	r, _ := NewRegistry().Refresh(snapshot(1, 2, 3), DefaultBounds, PlacerFunc(func(id NodeID, _ Bounds) Position {
		return Position{X: float64(id) * 100, Y: 100}
	}))
	c := NewCanvas(DefaultBounds)

	conns := []Connection{{Source: 1, Target: 2}, {Source: 2, Target: 9}, {Source: 3, Target: 1}}
	segs := c.Segments(r, conns, nil)

	if assert.Len(t, segs, 2) {
		assert.Equal(t, Position{X: 100, Y: 100}, segs[0].From)
		assert.Equal(t, Position{X: 200, Y: 100}, segs[0].To)
		assert.Equal(t, Connection{Source: 3, Target: 1}, segs[1].Connection)
	}
}

func TestCanvas_SegmentsUseOverride(t *testing.T) {
	r, _ := NewRegistry().Refresh(snapshot(1, 2), DefaultBounds, fixedPlacer(100, 100))
	c := NewCanvas(DefaultBounds)

	override := func(id NodeID) (Position, bool) {
		if id == 2 {
			return Position{X: 700, Y: 250}, true
		}
		return Position{}, false
	}

	segs := c.Segments(r, []Connection{{Source: 1, Target: 2}}, override)
	if assert.Len(t, segs, 1) {
		assert.Equal(t, Position{X: 700, Y: 250}, segs[0].To)
	}
}

func TestCanvas_HitTest(t *testing.T) {
	r, _ := NewRegistry().Refresh(snapshot(1, 2), DefaultBounds, PlacerFunc(func(id NodeID, _ Bounds) Position {
		if id == 1 {
			return Position{X: 100, Y: 100}
		}
		return Position{X: 120, Y: 100}
	}))
	c := NewCanvas(DefaultBounds)

	id, ok := c.HitTest(r, Position{X: 110, Y: 100})
	assert.True(t, ok)
	assert.Equal(t, NodeID(2), id, "overlapping glyphs resolve to the topmost node")

	id, ok = c.HitTest(r, Position{X: 75, Y: 100})
	assert.True(t, ok)
	assert.Equal(t, NodeID(1), id)

	_, ok = c.HitTest(r, Position{X: 600, Y: 250})
	assert.False(t, ok)
}
