package logx

import (
	"testing"
	"time"
)

func TestRecentFiltersByComponent(t *testing.T) {
	logger := NewLogger("router")
	logger.Info("resolved intent")

	other := NewLogger("session")
	other.Info("connection opened")

	entries := Recent("router", time.Time{})
	if len(entries) == 0 {
		t.Fatal("expected at least one router entry")
	}
	for i := range entries {
		if entries[i].Component != "router" {
			t.Errorf("expected component 'router', got '%s'", entries[i].Component)
		}
	}
}

func TestRecentFiltersBySince(t *testing.T) {
	logger := NewLogger("since-test")
	logger.Info("old entry")

	future := time.Now().UTC().Add(time.Hour)
	entries := Recent("since-test", future)
	if len(entries) != 0 {
		t.Errorf("expected no entries after future cutoff, got %d", len(entries))
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	SetDebug(false)
	logger := NewLogger("debug-test")
	logger.Debug("should not appear")

	entries := Recent("debug-test", time.Time{})
	for i := range entries {
		if entries[i].Level == string(LevelDebug) {
			t.Error("debug entry buffered while debug disabled")
		}
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, "context"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
