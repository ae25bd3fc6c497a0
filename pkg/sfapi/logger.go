package sfapi

import "go.uber.org/zap"

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NoopLogger discards all log output. It is the default when Config.Logger
// is nil.
type NoopLogger struct{}

// Debug implements Logger.
func (NoopLogger) Debug(string, map[string]interface{}) {}

// Info implements Logger.
func (NoopLogger) Info(string, map[string]interface{}) {}

// Warn implements Logger.
func (NoopLogger) Warn(string, map[string]interface{}) {}

// Error implements Logger.
func (NoopLogger) Error(string, map[string]interface{}) {}

// ZapLogger adapts a zap.Logger to the Logger interface.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps a zap logger for use as a client Logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: logger}
}

// Debug implements Logger.
func (l *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, zapFields(fields)...)
}

// Info implements Logger.
func (l *ZapLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, zapFields(fields)...)
}

// Warn implements Logger.
func (l *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, zapFields(fields)...)
}

// Error implements Logger.
func (l *ZapLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, zapFields(fields)...)
}

func zapFields(fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}

	return out
}
