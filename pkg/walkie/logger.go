package walkie

import (
	"fmt"
	"log/slog"
)

// Logger is the interface for logging in walkie.
type Logger interface {
	ErrorPrintf(format string, args ...any)
	WarnPrintf(format string, args ...any)
	InfoPrintf(format string, args ...any)
	DebugPrintf(format string, args ...any)
	Errorf(format string, args ...any) error
}

type defaultLogger struct{}

// DefaultLogger returns a Logger writing to the default slog logger.
func DefaultLogger() Logger {
	return defaultLogger{}
}

func (defaultLogger) ErrorPrintf(format string, args ...any) {
	slog.Error("walkie: " + fmt.Sprintf(format, args...))
}

func (defaultLogger) WarnPrintf(format string, args ...any) {
	slog.Warn("walkie: " + fmt.Sprintf(format, args...))
}

func (defaultLogger) InfoPrintf(format string, args ...any) {
	slog.Info("walkie: " + fmt.Sprintf(format, args...))
}

func (defaultLogger) DebugPrintf(format string, args ...any) {
	slog.Debug("walkie: " + fmt.Sprintf(format, args...))
}

func (defaultLogger) Errorf(format string, args ...any) error {
	return fmt.Errorf("walkie: "+format, args...)
}

// SlogLogger creates a Logger from a slog.Logger.
func SlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l}
}

type slogLogger struct {
	*slog.Logger
}

func (s *slogLogger) ErrorPrintf(format string, args ...any) {
	s.Logger.Error("walkie: " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) WarnPrintf(format string, args ...any) {
	s.Logger.Warn("walkie: " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) InfoPrintf(format string, args ...any) {
	s.Logger.Info("walkie: " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) DebugPrintf(format string, args ...any) {
	s.Logger.Debug("walkie: " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) Errorf(format string, args ...any) error {
	return fmt.Errorf("walkie: "+format, args...)
}
