package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// VerifyIntegrity checks the hash chain of one audit file
func VerifyIntegrity(filename string) (_ bool, retErr error) {
	file, err := os.Open(filename)
	if err != nil {
		return false, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("failed to close audit log file: %w", closeErr)
		}
	}()

	scanner := bufio.NewScanner(file)
	var previousHash string

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var event PersistentEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return false, fmt.Errorf("line %d: failed to parse event: %w", lineNum, err)
		}

		if event.PreviousHash != previousHash {
			return false, fmt.Errorf("line %d: hash chain broken (expected previous hash: %s, got: %s)",
				lineNum, previousHash, event.PreviousHash)
		}

		calculated, err := hashEvent(&event)
		if err != nil {
			return false, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if calculated != event.EventHash {
			return false, fmt.Errorf("line %d: event hash mismatch (expected: %s, got: %s)",
				lineNum, calculated, event.EventHash)
		}

		previousHash = event.EventHash
	}

	if err := scanner.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// GetStatistics returns statistics about the audit logger
func (l *PersistentAuditLogger) GetStatistics() AuditStatistics {
	l.mu.Lock()
	stats := AuditStatistics{
		TotalEvents:  l.eventCount,
		BytesWritten: l.bytesWritten,
		LastRotation: l.lastRotation,
	}
	if l.currentFile != nil {
		stats.CurrentFile = filepath.Base(l.currentFile.Name())
	}
	l.mu.Unlock()

	names, err := l.logFiles()
	if err != nil {
		return stats
	}
	for _, name := range names {
		stats.TotalFiles++
		if info, err := os.Stat(filepath.Join(l.logDir, name)); err == nil {
			stats.TotalSize += info.Size()
		}
	}
	return stats
}
