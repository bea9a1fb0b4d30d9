package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/crclink/pkg/audit"
	"github.com/dd0wney/crclink/pkg/history"
	"github.com/dd0wney/crclink/pkg/remote"
	"github.com/dd0wney/crclink/pkg/selection"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollaborator struct {
	nodes     []topology.NodeStatus
	listErr   error
	result    simulation.Result
	simErr    error
	ensureMsg string
	failure   bool
	adminErr  error
	shutdown  remote.ShutdownResult

	mu        sync.Mutex
	simulated []simulation.Request
	shutdowns []remote.ShutdownTarget
}

func (f *fakeCollaborator) ListNodes(context.Context) ([]topology.NodeStatus, error) {
	return f.nodes, f.listErr
}

func (f *fakeCollaborator) Simulate(_ context.Context, req simulation.Request) (simulation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulated = append(f.simulated, req)
	return f.result, f.simErr
}

func (f *fakeCollaborator) EnsureNodes(context.Context) (string, error) {
	return f.ensureMsg, f.adminErr
}

func (f *fakeCollaborator) ToggleFailure(context.Context) (bool, error) {
	f.failure = !f.failure
	return f.failure, f.adminErr
}

func (f *fakeCollaborator) ShutdownNode(_ context.Context, target remote.ShutdownTarget) (remote.ShutdownResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns = append(f.shutdowns, target)
	return f.shutdown, f.adminErr
}

type fakeConsole struct {
	sent []SendConsole
	err  error
}

func (c *fakeConsole) Send(command, target string) error {
	c.sent = append(c.sent, SendConsole{Command: command, Target: target})
	return c.err
}

type failingStore struct{}

func (failingStore) Record(context.Context, history.Entry) error        { return errors.New("db down") }
func (failingStore) List(context.Context, int) ([]history.Entry, error) { return nil, nil }
func (failingStore) Ping(context.Context) error                         { return nil }
func (failingStore) Close() error                                       { return nil }

func newOrch() *simulation.Orchestrator {
	return simulation.NewOrchestrator(simulation.Defaults{Key: "1101", ErrorType: simulation.ErrorNone})
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	id := topology.NodeID(3)
	collab := &fakeCollaborator{
		nodes:     statuses(1, 2),
		result:    simulation.Result{OriginalCodeword: "1011100", CRCVerification: true},
		ensureMsg: "Ensured 5 nodes are online",
		shutdown:  remote.ShutdownResult{NodeID: &id, State: "offline"},
	}
	store := history.NewMemoryStore(4)
	cons := &fakeConsole{}
	r := NewRunner(collab, newOrch(), WithHistory(store), WithConsole(cons))

	msg := r.Run(ctx, FetchNodes{Seq: 7})
	done, ok := msg.(RefreshCompleted)
	require.True(t, ok)
	assert.Equal(t, uint64(7), done.Seq)
	assert.Equal(t, statuses(1, 2), done.Nodes)
	assert.False(t, done.At.IsZero())

	req := simulation.Request{SourceID: 1, DestinationID: 2, Data: "1011", Key: "1101"}
	msg = r.Run(ctx, DispatchSimulation{Seq: 2, Request: req})
	assert.Equal(t, SimulationCompleted{Seq: 2, Request: req, Result: collab.result}, msg)

	assert.Equal(t, EnsureNodesCompleted{Message: "Ensured 5 nodes are online"}, r.Run(ctx, EnsureNodes{}))
	assert.Equal(t, FailureToggled{On: true}, r.Run(ctx, ToggleFailure{}))

	target := remote.ShutdownTarget{Role: selection.RoleSource, ID: 3}
	assert.Equal(t, ShutdownCompleted{Result: collab.shutdown}, r.Run(ctx, ShutdownNode{Target: target}))
	assert.Equal(t, []remote.ShutdownTarget{target}, collab.shutdowns)

	msg = r.Run(ctx, RecordHistory{Request: req, Result: collab.result, At: testClock})
	recorded, ok := msg.(HistoryRecorded)
	require.True(t, ok)
	entries, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, recorded.ID, entries[0].ID)
	assert.Equal(t, simulation.VerdictClean, entries[0].Verdict)

	assert.Nil(t, r.Run(ctx, SendConsole{Command: "ping", Target: "all"}))
	assert.Equal(t, []SendConsole{{Command: "ping", Target: "all"}}, cons.sent)
}

func TestRunner_Failures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	collab := &fakeCollaborator{listErr: boom, simErr: boom, adminErr: boom}
	r := NewRunner(collab, newOrch(), WithHistory(failingStore{}), WithConsole(&fakeConsole{err: boom}))

	failed, ok := r.Run(ctx, FetchNodes{Seq: 1}).(RefreshFailed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, boom)

	simFailed, ok := r.Run(ctx, DispatchSimulation{Seq: 4, Request: simulation.Request{SourceID: 1, DestinationID: 2}}).(SimulationFailed)
	require.True(t, ok)
	assert.Equal(t, uint64(4), simFailed.Seq)
	assert.ErrorIs(t, simFailed.Err, boom)
	assert.Contains(t, simFailed.Err.Error(), "simulate 1->2")

	for effect, op := range map[Effect]string{
		EnsureNodes{}:   remote.OpEnsureNodes,
		ToggleFailure{}: remote.OpToggleFailure,
		ShutdownNode{}:  remote.OpShutdownNode,
		SendConsole{}:   OpConsole,
	} {
		admin, ok := r.Run(ctx, effect).(AdminFailed)
		require.True(t, ok, "%T", effect)
		assert.Equal(t, op, admin.Op)
		assert.ErrorIs(t, admin.Err, boom)
	}

	hf, ok := r.Run(ctx, RecordHistory{}).(HistoryFailed)
	require.True(t, ok)
	assert.EqualError(t, hf.Err, "db down")
}

type brokenAudit struct{}

func (brokenAudit) Log(*audit.Event) error { return errors.New("audit disk full") }
func (brokenAudit) GetEventCount() int64   { return 0 }

func TestRunner_Audit(t *testing.T) {
	ctx := context.Background()
	collab := &fakeCollaborator{result: simulation.Result{CRCVerification: true}}
	trail := audit.NewAuditLogger(16)
	r := NewRunner(collab, newOrch(), WithAudit(trail), WithConsole(&fakeConsole{}))

	r.Run(ctx, FetchNodes{Seq: 1})
	r.Run(ctx, DispatchSimulation{Seq: 1, Request: simulation.Request{SourceID: 1, DestinationID: 2, Data: "1011"}})
	r.Run(ctx, ToggleFailure{})
	r.Run(ctx, ShutdownNode{Target: remote.ShutdownTarget{Role: selection.RoleDestination, ID: 2}})
	r.Run(ctx, SendConsole{Command: "ping", Target: "all"})

	events := trail.GetRecentEvents(10, nil)
	require.Len(t, events, 4, "refreshes are not audited")
	assert.Equal(t, audit.ActionConsole, events[0].Action)
	assert.Equal(t, "all", events[0].Target)
	assert.Equal(t, audit.ActionShutdownNode, events[1].Action)
	assert.Equal(t, "2", events[1].Target)
	assert.Equal(t, audit.ActionToggleFailure, events[2].Action)
	assert.Equal(t, true, events[2].Metadata["failure_mode"])
	assert.Equal(t, audit.ActionSimulate, events[3].Action)
	assert.Equal(t, "1->2", events[3].Target)
	assert.Equal(t, "1011", events[3].Metadata["data"])

	collab.adminErr = errors.New("refused")
	r.Run(ctx, EnsureNodes{})
	failed := trail.GetRecentEvents(10, &audit.Filter{Status: audit.StatusFailure})
	require.Len(t, failed, 1)
	assert.Equal(t, audit.ActionEnsureNodes, failed[0].Action)
	assert.Equal(t, "refused", failed[0].ErrorMessage)
}

type auditCounts struct {
	events   map[string]int
	failures int
}

func (a *auditCounts) RecordAuditEvent(action, status string) { a.events[action+"/"+status]++ }
func (a *auditCounts) RecordAuditFailure()                    { a.failures++ }

func TestRunner_AuditFailureDoesNotChangeOutcome(t *testing.T) {
	collab := &fakeCollaborator{ensureMsg: "ok"}
	counts := &auditCounts{events: map[string]int{}}
	r := NewRunner(collab, newOrch(), WithAudit(brokenAudit{}), WithAuditRecorder(counts))

	assert.Equal(t, EnsureNodesCompleted{Message: "ok"}, r.Run(context.Background(), EnsureNodes{}))
	assert.Equal(t, map[string]int{"ensure_nodes/success": 1}, counts.events)
	assert.Equal(t, 1, counts.failures)
}

func TestRunner_OptionalCollaborators(t *testing.T) {
	r := NewRunner(&fakeCollaborator{}, newOrch())

	assert.Nil(t, r.Run(context.Background(), RecordHistory{}), "no store, nothing to report")

	admin, ok := r.Run(context.Background(), SendConsole{Command: "ping"}).(AdminFailed)
	require.True(t, ok)
	assert.ErrorIs(t, admin.Err, ErrNoConsole)
}

func TestRunner_Settle(t *testing.T) {
	f := newFixture(t)
	collab := &fakeCollaborator{
		nodes:  statuses(1, 2, 3),
		result: simulation.Result{OriginalCodeword: "1011100", CRCRemainder: "100", CRCVerification: true},
	}
	store := history.NewMemoryStore(4)
	r := NewRunner(collab, newOrch(), WithHistory(store))
	ctx := context.Background()

	s := r.Settle(ctx, f.core, f.start(), RequestRefresh{})
	assert.Equal(t, 3, s.Registry.Len())

	s = r.Settle(ctx, f.core, s, ClickNode{ID: 1})
	s = r.Settle(ctx, f.core, s, ClickNode{ID: 2})
	s = r.Settle(ctx, f.core, s, StartSimulation{Form: simulation.Form{Data: "1011"}})

	require.NotNil(t, s.LatestResult)
	assert.Equal(t, "1011100", s.LatestResult.OriginalCodeword)
	require.Len(t, collab.simulated, 1)
	assert.Equal(t, "1011", collab.simulated[0].Data)

	entries, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunner_SettleEmptyDataNeverCallsCollaborator(t *testing.T) {
	f := newFixture(t)
	collab := &fakeCollaborator{nodes: statuses(1, 2)}
	r := NewRunner(collab, newOrch())
	ctx := context.Background()

	s := r.Settle(ctx, f.core, f.start(), RequestRefresh{})
	s = r.Settle(ctx, f.core, s, ClickNode{ID: 1})
	s = r.Settle(ctx, f.core, s, ClickNode{ID: 2})
	s = r.Settle(ctx, f.core, s, StartSimulation{Form: simulation.Form{}})

	assert.Empty(t, collab.simulated)
	assert.Nil(t, s.LatestResult)
	assert.Contains(t, s.Log[len(s.Log)-1].Text, simulation.ErrEmptyData.Error())
}

// TestRunner_AgainstHTTPCollaborator drives the session through the real
// HTTP client against a fake collaborator.
func TestRunner_AgainstHTTPCollaborator(t *testing.T) {
	var (
		mu    sync.Mutex
		nodes = []map[string]any{{"id": 1, "status": "online"}, {"id": 2, "status": "online"}, {"id": 3, "status": "idle"}}
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/simulation/nodes/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
	})
	mux.HandleFunc("/simulation/simulate/", func(w http.ResponseWriter, r *http.Request) {
		var req simulation.Request
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"delay":                   req.Delay,
			"packet_lost":             false,
			"original_codeword":       req.Data + "100",
			"crc_remainder":           "100",
			"error_type":              req.ErrorParams.ErrorType,
			"error_count":             req.ErrorParams.ErrorCount,
			"error_injected_codeword": req.Data + "100",
			"crc_verification":        true,
		})
	})
	mux.HandleFunc("/simulation/nodes/shutdown/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		nodes = nodes[1:]
		json.NewEncoder(w).Encode(map[string]any{"nodeid": 1, "state": "offline"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newFixture(t)
	client := remote.NewClient(srv.URL+"/simulation", 2*time.Second)
	r := NewRunner(client, newOrch(), WithHistory(history.NewMemoryStore(4)))
	ctx := context.Background()

	s := r.Settle(ctx, f.core, f.start(), RequestRefresh{})
	require.Equal(t, []topology.NodeID{1, 2, 3}, s.Registry.IDs())

	s = r.Settle(ctx, f.core, s, ClickNode{ID: 1})
	s = r.Settle(ctx, f.core, s, ClickNode{ID: 2})
	s = r.Settle(ctx, f.core, s, StartSimulation{Form: simulation.Form{Data: "1011"}})
	require.NotNil(t, s.LatestResult)
	assert.Equal(t, "1011100", s.LatestResult.OriginalCodeword)
	assert.Equal(t, simulation.VerdictClean, simulation.Interpret(*s.LatestResult))

	s = r.Settle(ctx, f.core, s, RequestShutdown{Role: selection.RoleSource})
	assert.Equal(t, []topology.NodeID{2, 3}, s.Registry.IDs())
	_, hasSource := s.Selection.Selection().Source()
	assert.False(t, hasSource)
	assert.Contains(t, s.Lines()[0].Text, "selected node removed: source 1")
}
