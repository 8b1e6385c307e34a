package monitoring

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	// Save original logger
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")

	if !called {
		t.Error("Custom logger was not called")
	}

	// Now set to nil and verify it doesn't call our logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestSetZap(t *testing.T) {
	defer SetZap(nil)

	core, logs := observer.New(zap.InfoLevel)
	SetZap(zap.New(core))

	L().Info("zone pass complete", zap.Int("zones", 4))

	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "zone pass complete" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if got := entry.ContextMap()["zones"]; got != int64(4) {
		t.Errorf("zones field = %v, want 4", got)
	}
}

func TestDefaultLogfWritesThroughZap(t *testing.T) {
	defer SetZap(nil)
	original := Logf
	defer func() { Logf = original }()

	core, logs := observer.New(zap.InfoLevel)
	SetZap(zap.New(core))

	Logf("saved %s", "out.nc")
	if logs.Len() != 1 || logs.All()[0].Message != "saved out.nc" {
		t.Errorf("expected formatted message through zap, got %+v", logs.All())
	}
}

func TestSetZapNilRestoresNop(t *testing.T) {
	SetZap(nil)
	if L() == nil {
		t.Fatal("L() must never be nil")
	}
	// Must not panic.
	L().Info("dropped")
}
