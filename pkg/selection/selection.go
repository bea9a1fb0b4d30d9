// Package selection implements the source/destination pick cycle and the
// connection list derived from it.
//
// Policy: clicking a node while a pair is complete starts a new cycle with
// that node as source and wipes all connections. Re-clicking the source
// before a destination is picked deselects it. A background click resets
// everything. The older per-field toggle policy is not supported.
package selection

import (
	"slices"

	"github.com/dd0wney/crclink/pkg/topology"
)

// State is the phase of the selection cycle
type State int

const (
	Empty State = iota
	SourceChosen
	PairComplete
	// DestinationOnly is reached only when a refresh removes the source of a
	// complete pair. It behaves like PairComplete on the next click.
	DestinationOnly
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case SourceChosen:
		return "source-chosen"
	case PairComplete:
		return "pair-complete"
	case DestinationOnly:
		return "destination-only"
	default:
		return "unknown"
	}
}

// Selection holds at most one source and one destination id
type Selection struct {
	source, destination       topology.NodeID
	hasSource, hasDestination bool
}

// Source returns the selected source, if any
func (s Selection) Source() (topology.NodeID, bool) {
	return s.source, s.hasSource
}

// Destination returns the selected destination, if any
func (s Selection) Destination() (topology.NodeID, bool) {
	return s.destination, s.hasDestination
}

// Pair returns both ids when the selection is complete
func (s Selection) Pair() (src, dst topology.NodeID, ok bool) {
	return s.source, s.destination, s.hasSource && s.hasDestination
}

// State derives the cycle phase from the set fields
func (s Selection) State() State {
	switch {
	case s.hasSource && s.hasDestination:
		return PairComplete
	case s.hasSource:
		return SourceChosen
	case s.hasDestination:
		return DestinationOnly
	default:
		return Empty
	}
}

// Event names what a transition did
type Event int

const (
	EventNone Event = iota
	EventSourceSelected
	EventSourceCleared
	EventPairCompleted
	EventCycleRestarted
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventSourceSelected:
		return "source-selected"
	case EventSourceCleared:
		return "source-cleared"
	case EventPairCompleted:
		return "pair-completed"
	case EventCycleRestarted:
		return "cycle-restarted"
	case EventReset:
		return "reset"
	default:
		return "none"
	}
}

// Transition describes the effect of one gesture
type Transition struct {
	From, To State
	Event    Event
	// Connection is set when the transition created one
	Connection *topology.Connection
	// Dropped is the number of connections the transition cleared
	Dropped int
}

// Machine is the selection state machine. Like topology.Registry it is a
// value; every gesture returns a new Machine.
type Machine struct {
	sel         Selection
	connections []topology.Connection
}

// New returns a machine in the Empty state
func New() Machine {
	return Machine{}
}

// Selection returns the current selection
func (m Machine) Selection() Selection {
	return m.sel
}

// State returns the current phase
func (m Machine) State() State {
	return m.sel.State()
}

// Connections returns a copy of the connection list in creation order
func (m Machine) Connections() []topology.Connection {
	return slices.Clone(m.connections)
}

// ClickNode applies a node click. Callers must only pass ids present in the
// current registry so that connection endpoints exist at creation time.
func (m Machine) ClickNode(id topology.NodeID) (Machine, Transition) {
	from := m.State()
	next := Machine{sel: m.sel, connections: m.connections}
	tr := Transition{From: from}

	switch from {
	case Empty:
		next.sel = Selection{source: id, hasSource: true}
		tr.Event = EventSourceSelected

	case SourceChosen:
		if id == m.sel.source {
			next.sel = Selection{}
			tr.Event = EventSourceCleared
			break
		}
		conn := topology.Connection{Source: m.sel.source, Target: id}
		next.sel = Selection{source: m.sel.source, hasSource: true, destination: id, hasDestination: true}
		next.connections = append(slices.Clip(m.connections), conn)
		tr.Event = EventPairCompleted
		tr.Connection = &conn

	case PairComplete, DestinationOnly:
		next.sel = Selection{source: id, hasSource: true}
		next.connections = nil
		tr.Event = EventCycleRestarted
		tr.Dropped = len(m.connections)
	}

	tr.To = next.State()
	return next, tr
}

// ClickBackground clears the selection and every connection
func (m Machine) ClickBackground() (Machine, Transition) {
	return Machine{}, Transition{
		From:    m.State(),
		To:      Empty,
		Event:   EventReset,
		Dropped: len(m.connections),
	}
}

// Role identifies a selection field
type Role int

const (
	RoleSource Role = iota
	RoleDestination
)

func (r Role) String() string {
	if r == RoleSource {
		return "source"
	}
	return "destination"
}

// Cleared reports a selection field dropped because its node disappeared
type Cleared struct {
	Role Role
	ID   topology.NodeID
}

// Prune clears selection fields whose ids fail present. Connections are kept;
// rendering omits segments with missing endpoints.
func (m Machine) Prune(present func(topology.NodeID) bool) (Machine, []Cleared) {
	var cleared []Cleared
	next := Machine{sel: m.sel, connections: m.connections}

	if next.sel.hasSource && !present(next.sel.source) {
		cleared = append(cleared, Cleared{Role: RoleSource, ID: next.sel.source})
		next.sel.source, next.sel.hasSource = 0, false
	}
	if next.sel.hasDestination && !present(next.sel.destination) {
		cleared = append(cleared, Cleared{Role: RoleDestination, ID: next.sel.destination})
		next.sel.destination, next.sel.hasDestination = 0, false
	}
	return next, cleared
}
