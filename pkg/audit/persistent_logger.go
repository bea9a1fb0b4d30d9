package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	filePrefix = "audit-"
	fileSuffix = ".jsonl"
)

// PersistentAuditLogger writes audit logs to disk with tamper detection.
// Each file carries its own hash chain.
type PersistentAuditLogger struct {
	logDir       string
	currentFile  *os.File
	writer       *bufio.Writer
	lastHash     string
	eventCount   int64
	bytesWritten int64
	rotationSize int64
	lastRotation time.Time
	mu           sync.Mutex
}

// NewPersistentAuditLogger creates a new persistent audit logger. It resumes
// the newest file in the directory while that file is below the rotation size.
func NewPersistentAuditLogger(config *PersistentAuditConfig) (*PersistentAuditLogger, error) {
	if err := os.MkdirAll(config.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logger := &PersistentAuditLogger{
		logDir:       config.LogDir,
		rotationSize: config.RotationSize,
		lastRotation: time.Now(),
	}

	name, err := logger.resumableFile()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = newLogFilename()
	} else if err := logger.loadLastHash(name); err != nil {
		return nil, err
	}

	if err := logger.openLogFile(name); err != nil {
		return nil, err
	}
	return logger, nil
}

// LogPersistent writes a persistent audit event to disk
func (l *PersistentAuditLogger) LogPersistent(event *Event, severity Severity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamp(event)

	persistentEvent := &PersistentEvent{
		Event:        event,
		Severity:     severity,
		PreviousHash: l.lastHash,
	}

	hash, err := hashEvent(persistentEvent)
	if err != nil {
		return err
	}
	persistentEvent.EventHash = hash

	eventData, err := json.Marshal(persistentEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal event with hash: %w", err)
	}

	n, err := l.writer.Write(append(eventData, '\n'))
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	if err := l.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log to disk: %w", err)
	}

	l.lastHash = hash
	l.eventCount++
	l.bytesWritten += int64(n)

	if l.shouldRotate() {
		return l.rotate()
	}
	return nil
}

// Log writes an event graded by SeverityOf
func (l *PersistentAuditLogger) Log(event *Event) error {
	return l.LogPersistent(event, SeverityOf(event))
}

// hashEvent hashes the event with its EventHash cleared
func hashEvent(e *PersistentEvent) (string, error) {
	c := *e
	c.EventHash = ""
	data, err := json.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (l *PersistentAuditLogger) shouldRotate() bool {
	return l.rotationSize > 0 && l.bytesWritten >= l.rotationSize
}

// rotate closes the current log file and starts a new chain in a new one
func (l *PersistentAuditLogger) rotate() error {
	if err := l.closeFile(); err != nil {
		return err
	}

	l.lastHash = ""
	l.eventCount = 0
	l.lastRotation = time.Now()

	name := newLogFilename()
	for l.exists(name) {
		name = newLogFilename()
	}
	return l.openLogFile(name)
}

func (l *PersistentAuditLogger) exists(name string) bool {
	_, err := os.Stat(filepath.Join(l.logDir, name))
	return err == nil
}

func (l *PersistentAuditLogger) openLogFile(name string) error {
	file, err := os.OpenFile(filepath.Join(l.logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	l.currentFile = file
	l.writer = bufio.NewWriter(file)
	l.bytesWritten = stat.Size()
	return nil
}

func (l *PersistentAuditLogger) closeFile() error {
	var flushErr error
	if l.writer != nil {
		flushErr = l.writer.Flush()
	}
	if l.currentFile == nil {
		return flushErr
	}

	closeErr := l.currentFile.Close()
	l.currentFile = nil
	if flushErr != nil {
		return fmt.Errorf("failed to flush log file: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close log file: %w", closeErr)
	}
	return nil
}

// newLogFilename sorts lexically in creation order
func newLogFilename() string {
	return filePrefix + time.Now().UTC().Format("20060102T150405.000000000") + fileSuffix
}

// logFiles lists the audit files in the directory, oldest first
func (l *PersistentAuditLogger) logFiles() ([]string, error) {
	entries, err := os.ReadDir(l.logDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), fileSuffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// resumableFile returns the newest file if it still has room
func (l *PersistentAuditLogger) resumableFile() (string, error) {
	names, err := l.logFiles()
	if err != nil || len(names) == 0 {
		return "", err
	}

	newest := names[len(names)-1]
	info, err := os.Stat(filepath.Join(l.logDir, newest))
	if err != nil {
		return "", err
	}
	if l.rotationSize > 0 && info.Size() >= l.rotationSize {
		return "", nil
	}
	return newest, nil
}

// loadLastHash continues the chain of an existing file
func (l *PersistentAuditLogger) loadLastHash(name string) error {
	file, err := os.Open(filepath.Join(l.logDir, name))
	if err != nil {
		return err
	}
	defer file.Close()

	var lastLine []byte
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			lastLine = slices.Clone(scanner.Bytes())
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if lastLine == nil {
		return nil
	}

	var event PersistentEvent
	if err := json.Unmarshal(lastLine, &event); err != nil {
		return fmt.Errorf("audit file %s: unreadable last event: %w", name, err)
	}
	l.lastHash = event.EventHash
	return nil
}

// CurrentFile returns the path being written
func (l *PersistentAuditLogger) CurrentFile() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentFile == nil {
		return ""
	}
	return l.currentFile.Name()
}

// GetEventCount returns the number of events logged in the current file
// by this logger
func (l *PersistentAuditLogger) GetEventCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eventCount
}

// Close closes the audit logger
func (l *PersistentAuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeFile()
}
