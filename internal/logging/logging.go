package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string
	Format string
}

var (
	baseLogger *zap.Logger
	sugar      *zap.SugaredLogger
)

func init() {
	baseLogger = zap.NewNop()
	sugar = baseLogger.Sugar()
}

func InitFromEnv() error {
	cfg := Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
	return Init(cfg)
}

func Init(cfg Config) error {
	level := strings.ToLower(strings.TrimSpace(cfg.Level))
	if level == "" {
		level = "info"
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = "console"
	}

	var zapCfg zap.Config
	switch format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s", cfg.Format)
	}

	atomLevel := zap.NewAtomicLevel()
	if err := atomLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %s", cfg.Level)
	}
	zapCfg.Level = atomLevel

	logger, err := zapCfg.Build(zap.AddCaller())
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	baseLogger = logger
	sugar = logger.Sugar()
	return nil
}

// SetLogger replaces the process logger, mainly for tests and embedding.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseLogger = logger
	sugar = logger.Sugar()
}

func Sync() {
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
}

func Debugf(format string, args ...interface{}) {
	sugar.WithOptions(zap.AddCallerSkip(1)).Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	sugar.WithOptions(zap.AddCallerSkip(1)).Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	sugar.WithOptions(zap.AddCallerSkip(1)).Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	sugar.WithOptions(zap.AddCallerSkip(1)).Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	sugar.WithOptions(zap.AddCallerSkip(1)).Fatalf(format, args...)
}

// SessionLogger tags every entry with the session and the current turn.
type SessionLogger struct {
	sessionID string
	turnID    uint64
}

func For(sessionID string) *SessionLogger {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = "session-unknown"
	}
	return &SessionLogger{sessionID: sessionID}
}

// StartTurn advances the turn counter; call once per utterance.
func (l *SessionLogger) StartTurn() uint64 {
	return atomic.AddUint64(&l.turnID, 1)
}

func (l *SessionLogger) Turn() uint64 {
	return atomic.LoadUint64(&l.turnID)
}

func (l *SessionLogger) Debugf(format string, args ...interface{}) {
	l.withFields().Debugf(format, args...)
}

func (l *SessionLogger) Infof(format string, args ...interface{}) {
	l.withFields().Infof(format, args...)
}

func (l *SessionLogger) Warnf(format string, args ...interface{}) {
	l.withFields().Warnf(format, args...)
}

func (l *SessionLogger) Errorf(format string, args ...interface{}) {
	l.withFields().Errorf(format, args...)
}

func (l *SessionLogger) withFields() *zap.SugaredLogger {
	turn := l.Turn()
	return sugar.WithOptions(zap.AddCallerSkip(1)).With(
		"session_id", l.sessionID,
		"turn_id", turn,
		"log_id", fmt.Sprintf("%s-%d", l.sessionID, turn),
	)
}
