package audit

import (
	"time"
)

// Severity levels for audit events
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SeverityOf grades an event: failures are warnings, node shutdowns critical
func SeverityOf(e *Event) Severity {
	switch {
	case e.Status == StatusFailure:
		return SeverityWarning
	case e.Action == ActionShutdownNode:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// PersistentEvent is an event as written to disk, chained to its predecessor
type PersistentEvent struct {
	*Event
	Severity     Severity `json:"severity"`
	PreviousHash string   `json:"previous_hash,omitempty"`
	EventHash    string   `json:"event_hash"`
}

// PersistentAuditConfig holds configuration for persistent audit logging
type PersistentAuditConfig struct {
	LogDir       string // Directory to store audit logs
	RotationSize int64  // Start a new file when the current one exceeds this size (bytes)
}

// DefaultPersistentConfig returns default configuration
func DefaultPersistentConfig() *PersistentAuditConfig {
	return &PersistentAuditConfig{
		LogDir:       "./data/audit",
		RotationSize: 10 * 1024 * 1024, // 10MB
	}
}

// AuditStatistics holds statistics about the audit logger
type AuditStatistics struct {
	TotalEvents  int64     `json:"total_events"`
	TotalFiles   int       `json:"total_files"`
	TotalSize    int64     `json:"total_size_bytes"`
	BytesWritten int64     `json:"bytes_written"`
	CurrentFile  string    `json:"current_file"`
	LastRotation time.Time `json:"last_rotation"`
}
