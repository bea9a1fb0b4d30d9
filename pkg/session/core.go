package session

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/remote"
	"github.com/dd0wney/crclink/pkg/selection"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
)

// DefaultMaxLogLines caps the operator log when no limit is configured
const DefaultMaxLogLines = 500

// Outcome labels for simulations that never produced a verdict
const (
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics receives session observations
type Metrics interface {
	RecordSimulation(outcome string)
	RecordStaleResponse(kind string)
	RecordSelectionTransition(event string)
	RecordHistoryFailure()
	UpdateTopology(nodes, connections int)
	SetFailureMode(on bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordSimulation(string)          {}
func (nopMetrics) RecordStaleResponse(string)       {}
func (nopMetrics) RecordSelectionTransition(string) {}
func (nopMetrics) RecordHistoryFailure()            {}
func (nopMetrics) UpdateTopology(int, int)          {}
func (nopMetrics) SetFailureMode(bool)              {}

// Core owns the transition function. It holds configuration only; every
// call to Update is pure apart from logging and metrics.
type Core struct {
	orchestrator *simulation.Orchestrator
	placer       topology.Placer
	logger       logging.Logger
	metrics      Metrics
	maxLog       int
	now          func() time.Time
}

// Option configures a Core
type Option func(*Core)

func WithPlacer(p topology.Placer) Option {
	return func(c *Core) { c.placer = p }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Core) { c.logger = l }
}

func WithMetrics(m Metrics) Option {
	return func(c *Core) { c.metrics = m }
}

// WithMaxLogLines caps the operator log; non-positive values are ignored
func WithMaxLogLines(n int) Option {
	return func(c *Core) {
		if n > 0 {
			c.maxLog = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Core) { c.now = now }
}

// NewCore creates a Core around orch
func NewCore(orch *simulation.Orchestrator, opts ...Option) *Core {
	c := &Core{
		orchestrator: orch,
		placer:       topology.NewRandomPlacer(0),
		logger:       logging.NewNopLogger(),
		metrics:      nopMetrics{},
		maxLog:       DefaultMaxLogLines,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.Component("session"))
	return c
}

// Update applies msg to s and returns the next state with any effects to run
func (c *Core) Update(s State, msg Msg) (State, []Effect) {
	switch m := msg.(type) {
	case ClickNode:
		return c.clickNode(s, m.ID), nil
	case ClickAt:
		if id, ok := s.Canvas.HitTest(s.Registry, m.Position); ok {
			return c.clickNode(s, id), nil
		}
		return c.clickBackground(s), nil
	case ClickBackground:
		return c.clickBackground(s), nil
	case MoveNode:
		return c.moveNode(s, m), nil
	case CommitPosition:
		return c.commitPosition(s, m.ID), nil
	case RequestRefresh:
		return c.issueRefresh(s)
	case RefreshCompleted:
		return c.refreshCompleted(s, m), nil
	case RefreshFailed:
		return c.refreshFailed(s, m), nil
	case StartSimulation:
		return c.startSimulation(s, m.Form)
	case FormRejected:
		c.metrics.RecordSimulation(OutcomeRejected)
		return c.appendLog(s, logging.WarnLevel, fmt.Sprintf("simulation not started: %s: %v", m.Field, m.Err),
			logging.String("field", m.Field), logging.Error(m.Err)), nil
	case SimulationCompleted:
		return c.simulationCompleted(s, m)
	case SimulationFailed:
		return c.simulationFailed(s, m), nil
	case RequestEnsureNodes:
		return s, []Effect{EnsureNodes{}}
	case EnsureNodesCompleted:
		s = c.appendLog(s, logging.InfoLevel, m.Message, logging.Operation(remote.OpEnsureNodes))
		return c.issueRefresh(s)
	case RequestToggleFailure:
		return s, []Effect{ToggleFailure{}}
	case FailureToggled:
		return c.failureToggled(s, m.On), nil
	case RequestShutdown:
		return c.requestShutdown(s, m.Role)
	case ShutdownCompleted:
		s = c.appendLog(s, logging.InfoLevel, m.Result.String(), logging.Operation(remote.OpShutdownNode))
		return c.issueRefresh(s)
	case AdminFailed:
		return c.adminFailed(s, m), nil
	case SendConsoleCommand:
		if m.Command == "" {
			return c.appendLog(s, logging.WarnLevel, "console command is empty"), nil
		}
		return s, []Effect{SendConsole{Command: m.Command, Target: m.Target}}
	case ConsoleMessage:
		return c.appendLog(s, m.Frame.Level(), m.Frame.String(), logging.Component("console")), nil
	case HistoryRecorded:
		c.logger.Debug("transmission recorded", logging.String("id", m.ID.String()))
		return s, nil
	case HistoryFailed:
		c.metrics.RecordHistoryFailure()
		c.logger.Warn("failed to record transmission", logging.Error(m.Err))
		return s, nil
	default:
		c.logger.Warn("unhandled message", logging.String("type", fmt.Sprintf("%T", msg)))
		return s, nil
	}
}

func (c *Core) appendLog(s State, level logging.Level, text string, fields ...logging.Field) State {
	c.logger.Log(level, text, fields...)

	lines := append(slices.Clip(s.Log), LogLine{At: c.now(), Level: level, Text: text})
	if over := len(lines) - c.maxLog; over > 0 {
		lines = lines[over:]
	}
	s.Log = lines
	return s
}

func (c *Core) observeTopology(s State) {
	c.metrics.UpdateTopology(s.Registry.Len(), len(s.Selection.Connections()))
}

func (c *Core) clickNode(s State, id topology.NodeID) State {
	if !s.Registry.Has(id) {
		return c.appendLog(s, logging.WarnLevel, fmt.Sprintf("node %d is not in the topology", id), logging.NodeID(int64(id)))
	}

	next, tr := s.Selection.ClickNode(id)
	s.Selection = next
	c.metrics.RecordSelectionTransition(tr.Event.String())
	c.observeTopology(s)

	field := logging.NodeID(int64(id))
	switch tr.Event {
	case selection.EventSourceSelected:
		return c.appendLog(s, logging.InfoLevel, fmt.Sprintf("source selected: %d", id), field)
	case selection.EventSourceCleared:
		return c.appendLog(s, logging.InfoLevel, fmt.Sprintf("source deselected: %d", id), field)
	case selection.EventPairCompleted:
		return c.appendLog(s, logging.InfoLevel,
			fmt.Sprintf("destination selected: %d (connection %d -> %d)", id, tr.Connection.Source, tr.Connection.Target),
			logging.SourceID(int64(tr.Connection.Source)), logging.DestinationID(int64(id)))
	case selection.EventCycleRestarted:
		return c.appendLog(s, logging.InfoLevel,
			fmt.Sprintf("source selected: %d (previous selection and %d connection(s) cleared)", id, tr.Dropped),
			field, logging.Count(tr.Dropped))
	}
	return s
}

func (c *Core) clickBackground(s State) State {
	next, tr := s.Selection.ClickBackground()
	s.Selection = next
	c.metrics.RecordSelectionTransition(tr.Event.String())
	c.observeTopology(s)

	if tr.From == selection.Empty && tr.Dropped == 0 {
		return s
	}
	return c.appendLog(s, logging.InfoLevel,
		fmt.Sprintf("selection cleared (%d connection(s) removed)", tr.Dropped), logging.Count(tr.Dropped))
}

func (c *Core) moveNode(s State, m MoveNode) State {
	if !s.Registry.Has(m.ID) {
		c.logger.Debug("move ignored for unknown node", logging.NodeID(int64(m.ID)))
		return s
	}
	s.Drag = &Drag{ID: m.ID, Position: s.Canvas.Clamp(m.X, m.Y)}
	return s
}

func (c *Core) commitPosition(s State, id topology.NodeID) State {
	if s.Drag == nil || s.Drag.ID != id {
		c.logger.Debug("commit without matching drag", logging.NodeID(int64(id)))
		return s
	}
	if reg, ok := s.Registry.WithPosition(id, s.Drag.Position); ok {
		s.Registry = reg
	}
	s.Drag = nil
	return s
}

func (c *Core) issueRefresh(s State) (State, []Effect) {
	s.refreshIssued++
	return s, []Effect{FetchNodes{Seq: s.refreshIssued}}
}

func (c *Core) refreshCompleted(s State, m RefreshCompleted) State {
	if m.Seq <= s.refreshApplied {
		c.metrics.RecordStaleResponse("refresh")
		c.logger.Debug("stale node list discarded", logging.Seq(m.Seq), logging.Uint64("applied", s.refreshApplied))
		return s
	}
	s.refreshApplied = m.Seq
	s.refreshSettled = max(s.refreshSettled, m.Seq)

	reg, diff := s.Registry.Refresh(m.Nodes, s.Canvas.Bounds, c.placer)
	s.Registry = reg
	s.LastRefresh = m.At
	if s.LastRefresh.IsZero() {
		s.LastRefresh = c.now()
	}
	s.LastRefreshErr = nil

	if !diff.Empty() {
		c.logger.Debug("node list reconciled",
			logging.Seq(m.Seq),
			logging.Any("added", diff.Added),
			logging.Any("removed", diff.Removed),
			logging.Any("changed", diff.Changed),
		)
	}

	machine, cleared := s.Selection.Prune(reg.Has)
	s.Selection = machine
	for _, cl := range cleared {
		s = c.appendLog(s, logging.WarnLevel,
			fmt.Sprintf("selected node removed: %s %d", cl.Role, cl.ID),
			logging.NodeID(int64(cl.ID)), logging.String("role", cl.Role.String()))
	}

	if s.Drag != nil && !reg.Has(s.Drag.ID) {
		c.logger.Debug("drag cancelled, node removed", logging.NodeID(int64(s.Drag.ID)))
		s.Drag = nil
	}

	c.observeTopology(s)
	return s
}

func (c *Core) refreshFailed(s State, m RefreshFailed) State {
	if m.Seq > s.refreshApplied {
		s.LastRefreshErr = m.Err
		s.refreshSettled = max(s.refreshSettled, m.Seq)
	}
	s = c.noteUnavailable(s, m.Err)
	return c.appendLog(s, logging.ErrorLevel, "node refresh failed: "+m.Err.Error(),
		logging.Operation(remote.OpListNodes), logging.Seq(m.Seq), logging.Error(m.Err))
}

func (c *Core) startSimulation(s State, form simulation.Form) (State, []Effect) {
	req, err := c.orchestrator.Prepare(s.Selection.Selection(), form)
	if err != nil {
		c.metrics.RecordSimulation(OutcomeRejected)
		return c.appendLog(s, logging.WarnLevel, "simulation not started: "+err.Error(), logging.Error(err)), nil
	}

	s.simIssued++
	s = c.appendLog(s, logging.InfoLevel,
		fmt.Sprintf("starting simulation: %d -> %d, error type %s", req.SourceID, req.DestinationID, req.ErrorParams.ErrorType),
		logging.SourceID(int64(req.SourceID)),
		logging.DestinationID(int64(req.DestinationID)),
		logging.Seq(s.simIssued),
	)
	return s, []Effect{DispatchSimulation{Seq: s.simIssued, Request: req}}
}

func (c *Core) simulationCompleted(s State, m SimulationCompleted) (State, []Effect) {
	if m.Seq <= s.simApplied {
		c.metrics.RecordStaleResponse("simulate")
		c.logger.Debug("stale simulation result discarded", logging.Seq(m.Seq), logging.Uint64("applied", s.simApplied))
		return s, nil
	}
	s.simApplied = m.Seq
	s.simSettled = max(s.simSettled, m.Seq)

	req, res := m.Request, m.Result
	s.LastRequest = &req
	s.LatestResult = &res

	verdict := simulation.Interpret(res)
	c.metrics.RecordSimulation(string(verdict))

	text := simulation.Summary(req, res)
	if res.Error != "" {
		text += " (" + res.Error + ")"
	}
	s = c.appendLog(s, logging.InfoLevel, text,
		logging.SourceID(int64(req.SourceID)),
		logging.DestinationID(int64(req.DestinationID)),
		logging.String("verdict", string(verdict)),
	)
	return s, []Effect{RecordHistory{Request: req, Result: res, At: c.now()}}
}

func (c *Core) simulationFailed(s State, m SimulationFailed) State {
	if m.Seq > s.simApplied {
		s.simSettled = max(s.simSettled, m.Seq)
	}
	c.metrics.RecordSimulation(OutcomeFailed)
	s = c.noteUnavailable(s, m.Err)
	return c.appendLog(s, logging.ErrorLevel, "simulation failed: "+m.Err.Error(),
		logging.Operation(remote.OpSimulate), logging.Seq(m.Seq), logging.Error(m.Err))
}

func (c *Core) failureToggled(s State, on bool) State {
	s.FailureMode = on
	c.metrics.SetFailureMode(on)

	state := "off"
	if on {
		state = "on"
	}
	return c.appendLog(s, logging.InfoLevel, "simulated failure mode "+state, logging.Operation(remote.OpToggleFailure))
}

func (c *Core) requestShutdown(s State, role selection.Role) (State, []Effect) {
	sel := s.Selection.Selection()
	id, ok := sel.Source()
	if role == selection.RoleDestination {
		id, ok = sel.Destination()
	}
	if !ok {
		return c.appendLog(s, logging.WarnLevel, fmt.Sprintf("no %s selected to shut down", role)), nil
	}
	return s, []Effect{ShutdownNode{Target: remote.ShutdownTarget{Role: role, ID: id}}}
}

func (c *Core) adminFailed(s State, m AdminFailed) State {
	s = c.noteUnavailable(s, m.Err)
	return c.appendLog(s, logging.ErrorLevel, fmt.Sprintf("%s failed: %v", m.Op, m.Err),
		logging.Operation(m.Op), logging.Error(m.Err))
}

// noteUnavailable flips FailureMode on when the collaborator answers 503
func (c *Core) noteUnavailable(s State, err error) State {
	var re *remote.RemoteError
	if errors.As(err, &re) && re.Unavailable() && !s.FailureMode {
		s.FailureMode = true
		c.metrics.SetFailureMode(true)
	}
	return s
}
