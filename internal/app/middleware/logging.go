package middleware

import (
	"context"
	"log/slog"
	"time"

	"ownercal/internal/app/commands"
	"ownercal/internal/app/queries"
)

func Logging(logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		if logger == nil {
			return next
		}
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			logResult(ctx, logger, "command", cmd.Key(), start, err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		if logger == nil {
			return next
		}
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := next.Ask(ctx, q)
			logResult(ctx, logger, "query", q.Key(), start, err)
			return res, err
		})
	}
}

func logResult(ctx context.Context, logger *slog.Logger, kind, key string, start time.Time, err error) {
	attrs := []any{kind, key, "latency", time.Since(start)}
	if err != nil {
		logger.WarnContext(ctx, kind+" failed", append(attrs, "error", err)...)
		return
	}
	logger.DebugContext(ctx, kind+" handled", attrs...)
}
