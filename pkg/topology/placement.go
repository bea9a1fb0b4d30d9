package topology

import (
	"math/rand"
	"sync"
	"time"
)

// Placer chooses an initial position for a node first seen in a snapshot
type Placer interface {
	Place(id NodeID, b Bounds) Position
}

// RandomPlacer scatters nodes uniformly inside the legal center area
type RandomPlacer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPlacer creates a placer; seed 0 uses the clock
func NewRandomPlacer(seed int64) *RandomPlacer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomPlacer{rng: rand.New(rand.NewSource(seed))}
}

// Place returns a uniformly random legal position
func (p *RandomPlacer) Place(_ NodeID, b Bounds) Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Position{
		X: b.MinX() + p.rng.Float64()*(b.MaxX()-b.MinX()),
		Y: b.MinY() + p.rng.Float64()*(b.MaxY()-b.MinY()),
	}
}

// PlacerFunc adapts a function to Placer
type PlacerFunc func(id NodeID, b Bounds) Position

// Place calls f(id, b)
func (f PlacerFunc) Place(id NodeID, b Bounds) Position {
	return f(id, b)
}
