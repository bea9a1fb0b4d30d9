// Package session is the operator console core. All state lives in one
// State value that only Core.Update replaces; blocking work is described as
// Effects, executed by a Runner and fed back as Msgs.
package session

import (
	"slices"
	"time"

	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/selection"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
)

// LogLine is one operator log entry
type LogLine struct {
	At    time.Time
	Level logging.Level
	Text  string
}

func (l LogLine) String() string {
	return "[" + l.At.Format("15:04:05") + "] " + l.Text
}

// Drag is an in-progress repositioning gesture
type Drag struct {
	ID       topology.NodeID
	Position topology.Position
}

// State is the whole session. Fields holding pointers or slices are
// replaced, never mutated, by Update.
type State struct {
	Registry  topology.Registry
	Canvas    topology.Canvas
	Selection selection.Machine
	// Drag is set while a node is being moved and not yet committed
	Drag *Drag

	LastRequest  *simulation.Request
	LatestResult *simulation.Result

	// Log is oldest first; use Lines for display order
	Log []LogLine

	FailureMode    bool
	LastRefresh    time.Time
	LastRefreshErr error

	refreshIssued, refreshApplied, refreshSettled uint64
	simIssued, simApplied, simSettled             uint64
}

// NewState returns an empty session on the given canvas
func NewState(canvas topology.Canvas) State {
	return State{
		Registry:  topology.NewRegistry(),
		Canvas:    canvas,
		Selection: selection.New(),
	}
}

// Lines returns the operator log newest first
func (s State) Lines() []LogLine {
	lines := slices.Clone(s.Log)
	slices.Reverse(lines)
	return lines
}

// Position returns where id is drawn, honouring an uncommitted drag
func (s State) Position(id topology.NodeID) (topology.Position, bool) {
	if s.Drag != nil && s.Drag.ID == id {
		return s.Drag.Position, s.Registry.Has(id)
	}
	n, ok := s.Registry.Get(id)
	return n.Position, ok
}

// Segments returns the connection segments to draw
func (s State) Segments() []topology.Segment {
	return s.Canvas.Segments(s.Registry, s.Selection.Connections(), s.dragOverride)
}

func (s State) dragOverride(id topology.NodeID) (topology.Position, bool) {
	if s.Drag != nil && s.Drag.ID == id {
		return s.Drag.Position, true
	}
	return topology.Position{}, false
}

// SimulationPending reports whether the newest simulation has not resolved
func (s State) SimulationPending() bool {
	return s.simIssued > s.simSettled
}

// RefreshPending reports whether a node list request is outstanding
func (s State) RefreshPending() bool {
	return s.refreshIssued > s.refreshSettled
}
