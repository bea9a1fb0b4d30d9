package session

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
	"github.com/stretchr/testify/require"
)

var testClock = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type recordingMetrics struct {
	mu          sync.Mutex
	simulations map[string]int
	stale       map[string]int
	transitions map[string]int
	historyFail int
	nodes       int
	connections int
	failureMode bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		simulations: map[string]int{},
		stale:       map[string]int{},
		transitions: map[string]int{},
	}
}

func (m *recordingMetrics) RecordSimulation(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulations[outcome]++
}

func (m *recordingMetrics) RecordStaleResponse(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale[kind]++
}

func (m *recordingMetrics) RecordSelectionTransition(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[event]++
}

func (m *recordingMetrics) RecordHistoryFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyFail++
}

func (m *recordingMetrics) UpdateTopology(nodes, connections int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes, m.connections = nodes, connections
}

func (m *recordingMetrics) SetFailureMode(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureMode = on
}

// gridPlacer puts node n at (40n, 100) so hit tests are predictable
var gridPlacer = topology.PlacerFunc(func(id topology.NodeID, b topology.Bounds) topology.Position {
	return topology.Position{X: 40 * float64(id), Y: 100}
})

type fixture struct {
	core    *Core
	metrics *recordingMetrics
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	metrics := newRecordingMetrics()
	logs := &bytes.Buffer{}
	orch := simulation.NewOrchestrator(simulation.Defaults{Key: "1101", ErrorType: simulation.ErrorNone})
	core := NewCore(orch,
		WithPlacer(gridPlacer),
		WithMetrics(metrics),
		WithLogger(logging.NewJSONLogger(logs, logging.DebugLevel)),
		WithClock(func() time.Time { return testClock }),
	)
	return fixture{core: core, metrics: metrics, logs: logs}
}

func statuses(ids ...topology.NodeID) []topology.NodeStatus {
	out := make([]topology.NodeStatus, len(ids))
	for i, id := range ids {
		out[i] = topology.NodeStatus{ID: id, Status: topology.StatusOnline}
	}
	return out
}

// refresh issues a refresh and applies its response
func (f fixture) refresh(t *testing.T, s State, ids ...topology.NodeID) State {
	t.Helper()
	s, effects := f.core.Update(s, RequestRefresh{})
	require.Len(t, effects, 1)
	fetch, ok := effects[0].(FetchNodes)
	require.True(t, ok)
	s, effects = f.core.Update(s, RefreshCompleted{Seq: fetch.Seq, Nodes: statuses(ids...), At: testClock})
	require.Empty(t, effects)
	return s
}

func (f fixture) start() State {
	return NewState(topology.NewCanvas(topology.DefaultBounds))
}

func (f fixture) click(s State, ids ...topology.NodeID) State {
	for _, id := range ids {
		s, _ = f.core.Update(s, ClickNode{ID: id})
	}
	return s
}

func texts(s State) []string {
	out := make([]string, len(s.Log))
	for i, l := range s.Log {
		out[i] = l.Text
	}
	return out
}
