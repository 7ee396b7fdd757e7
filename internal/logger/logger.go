package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface used across the service. Every
// entry carries a human message, a stable event name and arbitrary fields.
type Logger interface {
	DebugObj(msg, event string, fields map[string]any)
	InfoObj(msg, event string, fields map[string]any)
	WarnObj(msg, event string, fields map[string]any)
	ErrorObj(msg, event string, fields map[string]any)
}

// zapLogger implements Logger on top of a zap.Logger.
type zapLogger struct {
	l *zap.Logger
}

// New builds a production zap-backed Logger at the given level
// ("debug", "info", "warn", "error"; anything else means info).
func New(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: l}, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *zapLogger) DebugObj(msg, event string, fields map[string]any) {
	z.l.Debug(msg, toZapFields(event, fields)...)
}

func (z *zapLogger) InfoObj(msg, event string, fields map[string]any) {
	z.l.Info(msg, toZapFields(event, fields)...)
}

func (z *zapLogger) WarnObj(msg, event string, fields map[string]any) {
	z.l.Warn(msg, toZapFields(event, fields)...)
}

func (z *zapLogger) ErrorObj(msg, event string, fields map[string]any) {
	z.l.Error(msg, toZapFields(event, fields)...)
}

func toZapFields(event string, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("event", event))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// NopLogger discards all entries. Useful as a default and in tests.
type NopLogger struct{}

func (NopLogger) DebugObj(string, string, map[string]any) {}
func (NopLogger) InfoObj(string, string, map[string]any)  {}
func (NopLogger) WarnObj(string, string, map[string]any)  {}
func (NopLogger) ErrorObj(string, string, map[string]any) {}

// Ensure ensures callers always get a usable Logger.
func Ensure(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}
