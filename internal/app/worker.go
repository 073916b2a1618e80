package app

import (
	"context"
	"log/slog"
	"time"
)

const (
	cleanupInterval  = 5 * time.Minute
	visitorRetention = 30 * 24 * time.Hour
)

// VisitorPruner deletes visitors that stayed idle and never used a feature.
type VisitorPruner interface {
	CleanupIdleVisitors(ctx context.Context, ttl time.Duration) (int64, error)
}

// StartVisitorCleanup periodically prunes idle visitors until ctx is done.
// onPass, if set, runs after every pass.
func StartVisitorCleanup(ctx context.Context, repo VisitorPruner, ttl time.Duration, onPass func()) {
	ticker := time.NewTicker(cleanupInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Visitor cleanup worker started", "interval", cleanupInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				cleanupIdleVisitors(ctx, repo, ttl)
				if onPass != nil {
					onPass()
				}
			case <-ctx.Done():
				slog.Info("Visitor cleanup worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func cleanupIdleVisitors(ctx context.Context, repo VisitorPruner, ttl time.Duration) int64 {
	deleted, err := repo.CleanupIdleVisitors(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Visitor cleanup canceled", "error", err)
			return 0
		}
		slog.Error("Visitor cleanup failed", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Visitor cleanup removed idle visitors", "count", deleted)
	}
	return deleted
}
