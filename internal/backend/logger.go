package backend

import (
	"fmt"
	"log/slog"

	"github.com/opentrusty/console/internal/observability/logger"
)

// slogLogger adapts slog to resty's logger interface
type slogLogger struct {
	logger *slog.Logger
}

func newSlogLogger() *slogLogger {
	return &slogLogger{logger: slog.Default().With(logger.Component("backend"))}
}

func (l *slogLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *slogLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *slogLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
