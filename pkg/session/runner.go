package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/crclink/pkg/audit"
	"github.com/dd0wney/crclink/pkg/history"
	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/remote"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
)

// OpConsole labels console failures in AdminFailed
const OpConsole = "console"

// ErrNoConsole is reported when a console command is issued without a
// connected master console
var ErrNoConsole = errors.New("master console not connected")

// Collaborator is the remote simulation service
type Collaborator interface {
	simulation.Simulator
	ListNodes(ctx context.Context) ([]topology.NodeStatus, error)
	EnsureNodes(ctx context.Context) (string, error)
	ToggleFailure(ctx context.Context) (bool, error)
	ShutdownNode(ctx context.Context, target remote.ShutdownTarget) (remote.ShutdownResult, error)
}

// ConsoleSender issues master console commands
type ConsoleSender interface {
	Send(command, target string) error
}

// Runner executes effects against the collaborator and stores
type Runner struct {
	collaborator Collaborator
	orchestrator *simulation.Orchestrator
	history      history.Store
	console      ConsoleSender
	audit        audit.Logger
	auditMetrics AuditRecorder
	logger       logging.Logger
}

// AuditRecorder counts audited actions
type AuditRecorder interface {
	RecordAuditEvent(action, status string)
	RecordAuditFailure()
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

func WithHistory(store history.Store) RunnerOption {
	return func(r *Runner) { r.history = store }
}

func WithConsole(sender ConsoleSender) RunnerOption {
	return func(r *Runner) { r.console = sender }
}

// WithAudit records every collaborator-facing action in l
func WithAudit(l audit.Logger) RunnerOption {
	return func(r *Runner) { r.audit = l }
}

func WithAuditRecorder(m AuditRecorder) RunnerOption {
	return func(r *Runner) { r.auditMetrics = m }
}

func WithRunnerLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner dispatching through collaborator
func NewRunner(collaborator Collaborator, orch *simulation.Orchestrator, opts ...RunnerOption) *Runner {
	r := &Runner{
		collaborator: collaborator,
		orchestrator: orch,
		logger:       logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.Component("runner"))
	return r
}

// Run executes e and returns the Msg describing its outcome. A nil Msg
// means there is nothing to feed back.
func (r *Runner) Run(ctx context.Context, e Effect) Msg {
	switch e := e.(type) {
	case FetchNodes:
		nodes, err := r.collaborator.ListNodes(ctx)
		if err != nil {
			return RefreshFailed{Seq: e.Seq, Err: err}
		}
		return RefreshCompleted{Seq: e.Seq, Nodes: nodes, At: time.Now()}

	case DispatchSimulation:
		res, err := r.orchestrator.Run(ctx, r.collaborator, e.Request)
		r.record(audit.ActionSimulate, routeOf(e.Request), err, map[string]any{
			"data":       e.Request.Data,
			"key":        e.Request.Key,
			"error_type": string(e.Request.ErrorParams.ErrorType),
		})
		if err != nil {
			return SimulationFailed{Seq: e.Seq, Request: e.Request, Err: err}
		}
		return SimulationCompleted{Seq: e.Seq, Request: e.Request, Result: res}

	case EnsureNodes:
		msg, err := r.collaborator.EnsureNodes(ctx)
		r.record(audit.ActionEnsureNodes, "", err, nil)
		if err != nil {
			return AdminFailed{Op: remote.OpEnsureNodes, Err: err}
		}
		return EnsureNodesCompleted{Message: msg}

	case ToggleFailure:
		on, err := r.collaborator.ToggleFailure(ctx)
		r.record(audit.ActionToggleFailure, "", err, map[string]any{"failure_mode": on})
		if err != nil {
			return AdminFailed{Op: remote.OpToggleFailure, Err: err}
		}
		return FailureToggled{On: on}

	case ShutdownNode:
		res, err := r.collaborator.ShutdownNode(ctx, e.Target)
		r.record(audit.ActionShutdownNode, fmt.Sprint(e.Target.ID), err, map[string]any{"role": e.Target.Role.String()})
		if err != nil {
			return AdminFailed{Op: remote.OpShutdownNode, Err: err}
		}
		return ShutdownCompleted{Result: res}

	case RecordHistory:
		if r.history == nil {
			return nil
		}
		entry := history.NewEntry(e.Request, e.Result, e.At)
		if err := r.history.Record(ctx, entry); err != nil {
			return HistoryFailed{Err: err}
		}
		return HistoryRecorded{ID: entry.ID}

	case SendConsole:
		if r.console == nil {
			return AdminFailed{Op: OpConsole, Err: ErrNoConsole}
		}
		err := r.console.Send(e.Command, e.Target)
		r.record(audit.ActionConsole, e.Target, err, map[string]any{"command": e.Command})
		if err != nil {
			return AdminFailed{Op: OpConsole, Err: err}
		}
		return nil

	default:
		r.logger.Warn("unknown effect", logging.Any("effect", e))
		return nil
	}
}

// record writes an audit event. Audit failures never reach the session.
func (r *Runner) record(action audit.Action, target string, err error, meta map[string]any) {
	if r.audit == nil {
		return
	}

	var event *audit.Event
	if err != nil {
		event = audit.NewFailedEvent(action, target, err)
	} else {
		event = audit.NewEvent(action, target)
	}
	event.Metadata = meta

	if r.auditMetrics != nil {
		r.auditMetrics.RecordAuditEvent(string(action), string(event.Status))
	}
	if werr := r.audit.Log(event); werr != nil {
		r.logger.Warn("audit write failed",
			logging.String("action", string(action)),
			logging.Error(werr))
		if r.auditMetrics != nil {
			r.auditMetrics.RecordAuditFailure()
		}
	}
}

func routeOf(req simulation.Request) string {
	return fmt.Sprintf("%d->%d", req.SourceID, req.DestinationID)
}

// Settle applies msg and then runs every resulting effect in order, feeding
// each outcome back into core until nothing is left. Drivers without an
// event loop use it to process one gesture synchronously.
func (r *Runner) Settle(ctx context.Context, core *Core, s State, msg Msg) State {
	queue := []Msg{msg}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		var effects []Effect
		s, effects = core.Update(s, next)
		for _, e := range effects {
			if out := r.Run(ctx, e); out != nil {
				queue = append(queue, out)
			}
		}
	}
	return s
}
