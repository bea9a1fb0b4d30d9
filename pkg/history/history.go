// Package history keeps a record of completed transmissions, mirroring the
// collaborator's own transmission and event log.
package history

import (
	"context"
	"time"

	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/google/uuid"
)

// DefaultLimit caps List when the caller passes a non-positive limit
const DefaultLimit = 50

// Entry is one completed simulation
type Entry struct {
	ID         uuid.UUID
	RecordedAt time.Time
	Request    simulation.Request
	Result     simulation.Result
	Verdict    simulation.Verdict
}

// NewEntry stamps a request/result pair with a fresh id
func NewEntry(req simulation.Request, res simulation.Result, at time.Time) Entry {
	return Entry{
		ID:         uuid.New(),
		RecordedAt: at.UTC(),
		Request:    req,
		Result:     res,
		Verdict:    simulation.Interpret(res),
	}
}

// Store persists entries
type Store interface {
	Record(ctx context.Context, e Entry) error
	// List returns up to limit entries, newest first
	List(ctx context.Context, limit int) ([]Entry, error)
	Ping(ctx context.Context) error
	Close() error
}
