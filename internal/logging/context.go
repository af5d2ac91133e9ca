package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type loggerKey struct{}

// WithTrace returns a context carrying a logger tagged with a fresh trace_id,
// plus that logger. Every inbound chat interaction gets one.
func WithTrace(ctx context.Context, attrs ...any) (context.Context, *slog.Logger) {
	log := FromContext(ctx).With(append([]any{"trace_id", uuid.NewString()}, attrs...)...)
	return context.WithValue(ctx, loggerKey{}, log), log
}

// FromContext returns the logger stored by WithTrace or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if log, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return log
		}
	}
	return slog.Default()
}
