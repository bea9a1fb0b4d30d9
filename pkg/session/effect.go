package session

import (
	"time"

	"github.com/dd0wney/crclink/pkg/remote"
	"github.com/dd0wney/crclink/pkg/simulation"
)

// Effect is blocking work requested by Update
type Effect interface {
	isEffect()
}

// FetchNodes lists nodes; Seq orders the response against other refreshes
type FetchNodes struct{ Seq uint64 }

// DispatchSimulation sends a prepared request; Seq orders the response
type DispatchSimulation struct {
	Seq     uint64
	Request simulation.Request
}

type EnsureNodes struct{}

type ToggleFailure struct{}

type ShutdownNode struct{ Target remote.ShutdownTarget }

type RecordHistory struct {
	Request simulation.Request
	Result  simulation.Result
	At      time.Time
}

type SendConsole struct {
	Command string
	Target  string
}

func (FetchNodes) isEffect()         {}
func (DispatchSimulation) isEffect() {}
func (EnsureNodes) isEffect()        {}
func (ToggleFailure) isEffect()      {}
func (ShutdownNode) isEffect()       {}
func (RecordHistory) isEffect()      {}
func (SendConsole) isEffect()        {}
