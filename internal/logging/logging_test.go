package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := context.WithValue(context.Background(), loggerKey, zap.New(core))

	ctx = WithRequestID(ctx, "req-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID = %q, want req-1", got)
	}

	WithContext(ctx).Info("hello")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if id := entries[0].ContextMap()["request_id"]; id != "req-1" {
		t.Errorf("request_id field = %v, want req-1", id)
	}
}

func TestWithContext_FallsBackToGlobal(t *testing.T) {
	if WithContext(context.Background()) != L() {
		t.Error("Expected global logger without a context logger")
	}
	if GetRequestID(context.Background()) != "" {
		t.Error("Expected empty request ID")
	}
}

func TestInit_BadLevelDefaultsToInfo(t *testing.T) {
	if err := Init(Config{Level: "nope", Format: "console"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !L().Core().Enabled(zap.InfoLevel) || L().Core().Enabled(zap.DebugLevel) {
		t.Error("Expected info level")
	}
}
