// Package audit keeps a trail of the actions the console sends to the
// simulation collaborator.
package audit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action types for audit events
type Action string

const (
	ActionSimulate      Action = "simulate"
	ActionEnsureNodes   Action = "ensure_nodes"
	ActionToggleFailure Action = "toggle_failure"
	ActionShutdownNode  Action = "shutdown_node"
	ActionConsole       Action = "console_command"
)

// Status represents the outcome of an action
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Event represents a single audit log entry
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Action       Action         `json:"action"`
	Target       string         `json:"target,omitempty"`
	Status       Status         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Filter represents filtering criteria for audit events
type Filter struct {
	Action    Action
	Target    string
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
}

func (f *Filter) matches(e *Event) bool {
	if f == nil {
		return true
	}
	switch {
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.Target != "" && e.Target != f.Target:
		return false
	case f.Status != "" && e.Status != f.Status:
		return false
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	}
	return true
}

// Logger is the interface for audit logging implementations.
// Both in-memory AuditLogger and PersistentAuditLogger implement this interface.
type Logger interface {
	// Log records an audit event
	Log(event *Event) error

	// GetEventCount returns the number of events logged
	GetEventCount() int64
}

// AuditLogger manages audit log events with a circular buffer
type AuditLogger struct {
	events     []*Event
	bufferSize int
	index      int
	count      int
	mu         sync.RWMutex
}

// NewAuditLogger creates a new audit logger with specified buffer size
func NewAuditLogger(bufferSize int) *AuditLogger {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &AuditLogger{
		events:     make([]*Event, bufferSize),
		bufferSize: bufferSize,
	}
}

// Log records an audit event
func (l *AuditLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamp(event)

	l.events[l.index] = event
	l.index = (l.index + 1) % l.bufferSize
	if l.count < l.bufferSize {
		l.count++
	}
	return nil
}

// GetRecentEvents returns up to n of the most recent events matching filter,
// newest first
func (l *AuditLogger) GetRecentEvents(n int, filter *Filter) []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*Event, 0, min(n, l.count))
	for i := 0; i < l.count && len(result) < n; i++ {
		idx := (l.index - 1 - i + l.bufferSize) % l.bufferSize
		if e := l.events[idx]; e != nil && filter.matches(e) {
			result = append(result, e)
		}
	}
	return result
}

// GetEventCount returns the total number of events currently stored
func (l *AuditLogger) GetEventCount() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(l.count)
}

// NewEvent creates a successful event
func NewEvent(action Action, target string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Action:    action,
		Target:    target,
		Status:    StatusSuccess,
	}
}

// NewFailedEvent creates a failed event carrying err
func NewFailedEvent(action Action, target string, err error) *Event {
	e := NewEvent(action, target)
	e.Status = StatusFailure
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// String returns a human-readable representation of an event
func (e *Event) String() string {
	s := fmt.Sprintf("[%s] %s %s %s",
		e.Timestamp.Format(time.RFC3339),
		e.Action,
		e.Target,
		e.Status,
	)
	if e.ErrorMessage != "" {
		s += ": " + e.ErrorMessage
	}
	return s
}

func stamp(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
}

type multi []Logger

// Multi returns a Logger writing each event to every logger. All loggers are
// attempted; their errors are joined.
func Multi(loggers ...Logger) Logger {
	return multi(loggers)
}

func (m multi) Log(event *Event) error {
	stamp(event)
	var errs []error
	for _, l := range m {
		if err := l.Log(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) GetEventCount() int64 {
	if len(m) == 0 {
		return 0
	}
	return m[0].GetEventCount()
}
