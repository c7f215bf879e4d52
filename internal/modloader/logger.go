package modloader

import "mcpd/pkg/logging"

// subsystemLogger adapts pkg/logging's subsystem-tagged free functions to
// the Logger capability passed to handler constructors.
type subsystemLogger struct {
	subsystem string
}

func newSubsystemLogger(moduleName string) Logger {
	return subsystemLogger{subsystem: "Handler:" + moduleName}
}

func (l subsystemLogger) Debug(format string, args ...any) {
	logging.Debug(l.subsystem, format, args...)
}

func (l subsystemLogger) Info(format string, args ...any) {
	logging.Info(l.subsystem, format, args...)
}

func (l subsystemLogger) Warn(format string, args ...any) {
	logging.Warn(l.subsystem, format, args...)
}

func (l subsystemLogger) Error(err error, format string, args ...any) {
	logging.Error(l.subsystem, err, format, args...)
}
