package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to unmarshal log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"verbose", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDomainFields(t *testing.T) {
	tests := []struct {
		field Field
		key   string
		value any
	}{
		{NodeID(7), "node_id", int64(7)},
		{SourceID(1), "source_id", int64(1)},
		{DestinationID(2), "destination_id", int64(2)},
		{Seq(3), "seq", uint64(3)},
		{RequestID("abc"), "request_id", "abc"},
		{StatusCode(503), "status_code", 503},
		{Latency(1500 * time.Millisecond), "latency", "1.5s"},
		{Error(errors.New("boom")), "error", "boom"},
		{Error(nil), "error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if tt.field.Key != tt.key || tt.field.Value != tt.value {
				t.Errorf("field = %+v, want {Key:%s Value:%v}", tt.field, tt.key, tt.value)
			}
		})
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("refresh diff")
	logger.Info("simulation dispatched")
	logger.Warn("selected node removed")
	logger.Log(ErrorLevel, "simulate failed")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("levels = %s,%s, want WARN,ERROR", entries[0].Level, entries[1].Level)
	}
}

func TestJSONLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)
	child := logger.With(Component("session"))

	logger.SetLevel(ErrorLevel)
	child.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatal("child logger should follow the parent's level")
	}

	child.Error("kept", NodeID(4))
	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Fields["component"] != "session" {
		t.Errorf("component field = %v, want session", entries[0].Fields["component"])
	}
	if entries[0].Fields["node_id"] != float64(4) {
		t.Errorf("node_id field = %v, want 4", entries[0].Fields["node_id"])
	}
}

func TestJSONLogger_NoFieldsOmitted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Info("message without fields")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if _, exists := entry["fields"]; exists {
		t.Error("Expected fields key to be omitted when empty")
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	StartTimer(logger, "list nodes", Operation("list_nodes")).End(Count(3))
	StartTimer(logger, "simulate", Operation("simulate")).EndError(errors.New("connection refused"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "DEBUG" || entries[0].Fields["count"] != float64(3) {
		t.Errorf("unexpected success entry: %+v", entries[0])
	}
	if _, ok := entries[0].Fields["latency"]; !ok {
		t.Error("expected latency field")
	}
	if entries[1].Level != "ERROR" || entries[1].Fields["error"] != "connection refused" {
		t.Errorf("unexpected error entry: %+v", entries[1])
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crclink.log")

	logger, closer, err := OpenFile(path, InfoLevel)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	logger.Info("hello", Component("tui"))
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestOpenFile_EmptyPath(t *testing.T) {
	logger, closer, err := OpenFile("", DebugLevel)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if _, ok := logger.(NopLogger); !ok {
		t.Errorf("expected NopLogger, got %T", logger)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func BenchmarkJSONLogger_Info(b *testing.B) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("simulation completed",
			SourceID(1),
			DestinationID(2),
		)
	}
}
