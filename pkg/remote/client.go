// Package remote talks to the simulation collaborator over HTTP/JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dd0wney/crclink/pkg/remote"

// Client is the collaborator client
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	recorder   Recorder
	tracer     trace.Tracer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a client for the collaborator rooted at baseURL, e.g.
// http://127.0.0.1:8000/simulation. timeout bounds each call.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNopLogger(),
		recorder:   nopRecorder{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.Component("remote"))
	return c
}

// BaseURL returns the collaborator root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListNodes fetches the authoritative node list
func (c *Client) ListNodes(ctx context.Context) ([]topology.NodeStatus, error) {
	var resp listNodesResponse
	if err := c.do(ctx, OpListNodes, http.MethodGet, pathNodes, nil, &resp); err != nil {
		return nil, err
	}

	nodes := make([]topology.NodeStatus, 0, len(resp.Nodes))
	for _, n := range resp.Nodes {
		nodes = append(nodes, topology.NodeStatus{
			ID:     n.ID,
			Status: topology.Status(strings.ToLower(n.Status)),
		})
	}
	return nodes, nil
}

// EnsureNodes asks the collaborator to bring its configured node count online
func (c *Client) EnsureNodes(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, OpEnsureNodes, http.MethodPost, pathEnsureNodes, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ToggleFailure flips the collaborator's global failure mode and returns the new value
func (c *Client) ToggleFailure(ctx context.Context) (bool, error) {
	var resp toggleFailureResponse
	if err := c.do(ctx, OpToggleFailure, http.MethodPost, pathToggleFailure, nil, &resp); err != nil {
		return false, err
	}
	return resp.SimulateFailure, nil
}

// ShutdownNode shuts down the selected source or destination node
func (c *Client) ShutdownNode(ctx context.Context, target ShutdownTarget) (ShutdownResult, error) {
	var resp ShutdownResult
	if err := c.do(ctx, OpShutdownNode, http.MethodPost, pathShutdownNode, target.body(), &resp); err != nil {
		return ShutdownResult{}, err
	}
	return resp, nil
}

// Simulate runs one transmission on the collaborator
func (c *Client) Simulate(ctx context.Context, req simulation.Request) (simulation.Result, error) {
	var resp *simulation.Result
	if err := c.do(ctx, OpSimulate, http.MethodPost, pathSimulate, req, &resp); err != nil {
		return simulation.Result{}, err
	}
	if resp == nil {
		return simulation.Result{}, &RemoteError{Op: OpSimulate, StatusCode: http.StatusOK, Message: "malformed response: empty result"}
	}
	// The collaborator reports internal failures inside a 200 body
	if resp.Error != "" && !resp.PacketLost {
		return simulation.Result{}, &RemoteError{Op: OpSimulate, StatusCode: http.StatusOK, Message: resp.Error}
	}
	return *resp, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "remote."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("crclink.request_id", requestID),
		),
	)
	timer := logging.StartTimer(c.logger, "collaborator call", logging.Operation(op), logging.RequestID(requestID))
	status := "transport_error"

	defer func() {
		c.recorder.RecordRemoteCall(op, status, timer.Elapsed())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			timer.EndError(err)
		} else {
			timer.End()
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("%s: encode request: %w", op, merr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failure body, falling back to
// the raw text or the status line
func errorMessage(data []byte, statusLine string) string {
	var er errorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		return er.Error
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		return text
	}
	return statusLine
}
