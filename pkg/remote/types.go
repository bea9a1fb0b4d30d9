package remote

import (
	"time"

	"github.com/dd0wney/crclink/pkg/selection"
	"github.com/dd0wney/crclink/pkg/topology"
)

// Operation names, used for metrics labels, spans and error prefixes
const (
	OpListNodes     = "list_nodes"
	OpEnsureNodes   = "ensure_nodes"
	OpToggleFailure = "toggle_failure"
	OpShutdownNode  = "shutdown_node"
	OpSimulate      = "simulate"
)

const (
	pathNodes         = "/nodes/"
	pathEnsureNodes   = "/nodes/ensure/"
	pathToggleFailure = "/toggle-simulate-failure/"
	pathShutdownNode  = "/nodes/shutdown/"
	pathSimulate      = "/simulate/"

	maxBodyBytes = 1 << 20
)

// Recorder receives one observation per collaborator call
type Recorder interface {
	RecordRemoteCall(operation, status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRemoteCall(string, string, time.Duration) {}

type wireNode struct {
	ID     topology.NodeID `json:"id"`
	Status string          `json:"status"`
}

type listNodesResponse struct {
	Nodes []wireNode `json:"nodes"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type toggleFailureResponse struct {
	SimulateFailure bool `json:"simulate_failure"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ShutdownTarget names the node to shut down by its selection role
type ShutdownTarget struct {
	Role selection.Role
	ID   topology.NodeID
}

func (t ShutdownTarget) body() map[string]topology.NodeID {
	if t.Role == selection.RoleSource {
		return map[string]topology.NodeID{"source_id": t.ID}
	}
	return map[string]topology.NodeID{"destination_id": t.ID}
}

// ShutdownResult is either a node state change or a plain message
type ShutdownResult struct {
	NodeID  *topology.NodeID `json:"nodeid,omitempty"`
	State   string           `json:"state,omitempty"`
	Message string           `json:"message,omitempty"`
}

// String renders the result for the operator log
func (r ShutdownResult) String() string {
	if r.NodeID != nil {
		return "node " + r.NodeID.String() + " is now " + r.State
	}
	return r.Message
}
