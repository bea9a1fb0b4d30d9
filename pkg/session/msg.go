package session

import (
	"time"

	"github.com/dd0wney/crclink/pkg/console"
	"github.com/dd0wney/crclink/pkg/remote"
	"github.com/dd0wney/crclink/pkg/selection"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
	"github.com/google/uuid"
)

// Msg is an input to Core.Update: an operator gesture or a resolved Effect
type Msg interface {
	isMsg()
}

// Operator gestures

type ClickNode struct{ ID topology.NodeID }

// ClickAt resolves a canvas click to ClickNode or ClickBackground
type ClickAt struct{ Position topology.Position }

type ClickBackground struct{}

// MoveNode updates the drag position; nothing is persisted until
// CommitPosition
type MoveNode struct {
	ID   topology.NodeID
	X, Y float64
}

type CommitPosition struct{ ID topology.NodeID }

type RequestRefresh struct{}

type StartSimulation struct{ Form simulation.Form }

// FormRejected reports a form field the driver could not parse
type FormRejected struct {
	Field string
	Err   error
}

type RequestEnsureNodes struct{}

type RequestToggleFailure struct{}

// RequestShutdown shuts down the node currently selected in Role
type RequestShutdown struct{ Role selection.Role }

type SendConsoleCommand struct {
	Command string
	Target  string
}

// Resolved effects

type RefreshCompleted struct {
	Seq   uint64
	Nodes []topology.NodeStatus
	At    time.Time
}

type RefreshFailed struct {
	Seq uint64
	Err error
}

type SimulationCompleted struct {
	Seq     uint64
	Request simulation.Request
	Result  simulation.Result
}

type SimulationFailed struct {
	Seq     uint64
	Request simulation.Request
	Err     error
}

type EnsureNodesCompleted struct{ Message string }

type FailureToggled struct{ On bool }

type ShutdownCompleted struct{ Result remote.ShutdownResult }

// AdminFailed reports a failed ensure, toggle, shutdown or console call
type AdminFailed struct {
	Op  string
	Err error
}

type HistoryRecorded struct{ ID uuid.UUID }

type HistoryFailed struct{ Err error }

// ConsoleMessage is a frame received from the master console
type ConsoleMessage struct{ Frame console.Frame }

func (ClickNode) isMsg()            {}
func (ClickAt) isMsg()              {}
func (ClickBackground) isMsg()      {}
func (MoveNode) isMsg()             {}
func (CommitPosition) isMsg()       {}
func (RequestRefresh) isMsg()       {}
func (StartSimulation) isMsg()      {}
func (FormRejected) isMsg()         {}
func (RequestEnsureNodes) isMsg()   {}
func (RequestToggleFailure) isMsg() {}
func (RequestShutdown) isMsg()      {}
func (SendConsoleCommand) isMsg()   {}
func (RefreshCompleted) isMsg()     {}
func (RefreshFailed) isMsg()        {}
func (SimulationCompleted) isMsg()  {}
func (SimulationFailed) isMsg()     {}
func (EnsureNodesCompleted) isMsg() {}
func (FailureToggled) isMsg()       {}
func (ShutdownCompleted) isMsg()    {}
func (AdminFailed) isMsg()          {}
func (HistoryRecorded) isMsg()      {}
func (HistoryFailed) isMsg()        {}
func (ConsoleMessage) isMsg()       {}
