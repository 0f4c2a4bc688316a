package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically deletes
// sessions older than retention. A non-positive retention disables it.
func StartRetentionWorker(ctx context.Context, repo Repository, retention time.Duration) {
	if retention <= 0 {
		slog.Info("Retention worker disabled")
		return
	}

	ticker := time.NewTicker(retentionInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", retentionInterval, "retention", retention)

		sweepOldSessions(ctx, repo, retention)
		for {
			select {
			case <-ticker.C:
				sweepOldSessions(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOldSessions(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := repo.DeleteSessionsBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Retention worker failed to delete old sessions", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker deleted old sessions", "count", deleted)
	}
}
