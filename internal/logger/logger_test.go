package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZapLoggerWritesObjectField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core))

	log.WarnObj("backend auth error", "request", map[string]any{"path": "/clients/"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].ContextMap()["request"] == nil {
		t.Fatalf("unexpected entry %#v", entries[0])
	}
}

func TestEnsureFallsBackToNop(t *testing.T) {
	if _, ok := Ensure(nil).(NopLogger); !ok {
		t.Fatalf("Ensure(nil) should return NopLogger")
	}
}

func TestPackageHelpersAreSafeBeforeInit(t *testing.T) {
	mu.Lock()
	saved := process
	process = nil
	mu.Unlock()
	defer func() {
		mu.Lock()
		process = saved
		mu.Unlock()
	}()

	InfoObj("ignored", "k", 1)
	if err := Close(); err != nil {
		t.Fatalf("Close before Init: %v", err)
	}
}

func TestNamedLoggerCarriesComponent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewZapLogger(zap.New(core)).Named("snapshotter").InfoObj("tick", "n", 1)

	entries := logs.All()
	if len(entries) != 1 || entries[0].LoggerName != "snapshotter" {
		t.Fatalf("unexpected entries %#v", entries)
	}
}
