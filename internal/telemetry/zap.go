package telemetry

import (
	"context"

	"go.uber.org/zap"
)

// ZapLogger delegates to a *zap.SugaredLogger for structured logging.
type ZapLogger struct {
	log *zap.SugaredLogger
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(l *zap.Logger) Logger {
	return ZapLogger{log: l.Sugar()}
}

func (l ZapLogger) Debug(_ context.Context, msg string, keyvals ...any) {
	l.log.Debugw(msg, keyvals...)
}

func (l ZapLogger) Info(_ context.Context, msg string, keyvals ...any) {
	l.log.Infow(msg, keyvals...)
}

func (l ZapLogger) Warn(_ context.Context, msg string, keyvals ...any) {
	l.log.Warnw(msg, keyvals...)
}

func (l ZapLogger) Error(_ context.Context, msg string, keyvals ...any) {
	l.log.Errorw(msg, keyvals...)
}
