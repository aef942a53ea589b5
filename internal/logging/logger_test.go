package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New().SetOutput(&buf).SetLevel(LevelWarn)

	l.Info("ignored")
	l.Warn("kept")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[0].Message != "kept" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestLogger_WithFieldsMergesAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New().SetOutput(&buf).WithComponent("ws").WithField("session", "s1")

	l.Error("boom", Fields{"event": "sendMessage"})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Component != "ws" {
		t.Fatalf("expected component ws, got %q", e.Component)
	}
	if e.Fields["session"] != "s1" || e.Fields["event"] != "sendMessage" {
		t.Fatalf("unexpected fields: %+v", e.Fields)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"WARNING": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
