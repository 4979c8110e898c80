// Package monitor provides the logging facility used across the connector.
//
// Components receive a Monitor instead of a concrete logger so that the
// production zap-backed implementation, the no-op monitor, and test recorders
// are interchangeable.
package monitor

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Monitor is the logging contract consumed by the transfer engine.
// Key/value pairs follow the sugared convention: alternating string keys and
// arbitrary values.
type Monitor interface {
	// Debug logs diagnostic detail useful during development and tracing.
	Debug(msg string, keysAndValues ...any)

	// Info logs normal operational events.
	Info(msg string, keysAndValues ...any)

	// Severe logs failures that require operator attention.
	Severe(msg string, keysAndValues ...any)
}

// ZapMonitor implements Monitor on top of a zap sugared logger.
type ZapMonitor struct {
	log *zap.SugaredLogger
}

// New creates a production ZapMonitor. When debug is true the monitor emits
// development-formatted output at debug level.
func New(debug bool) (*ZapMonitor, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &ZapMonitor{log: logger.Sugar()}, nil
}

// NewWithLogger wraps an existing zap logger, e.g. one shared with other
// subsystems of the host process.
func NewWithLogger(logger *zap.Logger) *ZapMonitor {
	return &ZapMonitor{log: logger.Sugar()}
}

// Debug implements Monitor.
func (m *ZapMonitor) Debug(msg string, keysAndValues ...any) {
	m.log.Debugw(msg, keysAndValues...)
}

// Info implements Monitor.
func (m *ZapMonitor) Info(msg string, keysAndValues ...any) {
	m.log.Infow(msg, keysAndValues...)
}

// Severe implements Monitor.
func (m *ZapMonitor) Severe(msg string, keysAndValues ...any) {
	m.log.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries. Call before process exit.
func (m *ZapMonitor) Sync() error {
	return m.log.Sync()
}

// Noop is a Monitor that discards everything. Useful as a default and in
// tests that do not assert on log output.
type Noop struct{}

// Debug implements Monitor.
func (Noop) Debug(string, ...any) {}

// Info implements Monitor.
func (Noop) Info(string, ...any) {}

// Severe implements Monitor.
func (Noop) Severe(string, ...any) {}
