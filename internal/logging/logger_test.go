package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New().SetOutput(&buf).SetLevel(LevelWarn)

	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info entry should be filtered: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn entry missing: %s", out)
	}
}

func TestLogger_WithFieldsMerges(t *testing.T) {
	var buf bytes.Buffer
	l := New().SetOutput(&buf).WithField("component", "presence")

	l.Info("user offline", map[string]interface{}{"user_id": "u1"})

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry.Level != "INFO" || entry.Message != "user offline" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Fields["component"] != "presence" || entry.Fields["user_id"] != "u1" {
		t.Fatalf("fields not merged: %+v", entry.Fields)
	}
}
