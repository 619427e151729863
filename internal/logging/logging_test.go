package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func contextFields(entry observer.LoggedEntry) map[string]interface{} {
	fields := map[string]interface{}{}
	for _, field := range entry.Context {
		fields[field.Key] = field.Interface
		if field.Type == zapcore.StringType {
			fields[field.Key] = field.String
		}
		if field.Type == zapcore.Uint64Type || field.Type == zapcore.Int64Type {
			fields[field.Key] = field.Integer
		}
	}
	return fields
}

func TestSessionLoggerAddsLogFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	logger := For("session-123")
	logger.StartTurn()
	logger.Infof("hello")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}

	fields := contextFields(logs[0])
	if fields["session_id"] != "session-123" {
		t.Fatalf("expected session_id to be session-123, got %v", fields["session_id"])
	}
	if fields["turn_id"] != int64(1) {
		t.Fatalf("expected turn_id to be 1, got %v", fields["turn_id"])
	}
	if fields["log_id"] != "session-123-1" {
		t.Fatalf("expected log_id to be session-123-1, got %v", fields["log_id"])
	}
}

func TestSessionLoggersCountTurnsIndependently(t *testing.T) {
	a := For("a")
	b := For("b")
	a.StartTurn()
	a.StartTurn()
	b.StartTurn()

	if a.Turn() != 2 {
		t.Fatalf("expected a to be on turn 2, got %d", a.Turn())
	}
	if b.Turn() != 1 {
		t.Fatalf("expected b to be on turn 1, got %d", b.Turn())
	}
}

func TestEmptySessionIDFallsBack(t *testing.T) {
	if got := For("  ").sessionID; got != "session-unknown" {
		t.Fatalf("expected fallback session id, got %q", got)
	}
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	if err := Init(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if err := Init(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	SetLogger(nil)
}

func TestPackageLevelHelpersRespectLevel(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Infof("dropped")
	Warnf("kept %d", 1)

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	if logs[0].Message != "kept 1" {
		t.Fatalf("unexpected message %q", logs[0].Message)
	}
}
