package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

// IdleCloser closes sessions that have gone quiet.
type IdleCloser interface {
	CloseIdleSessions(ctx context.Context, idle time.Duration) ([]domain.SessionKey, error)
}

// CloseCallback is called for every session the idle worker closes.
type CloseCallback func(key domain.SessionKey)

// StartIdleWorker runs a background goroutine that periodically ends
// sessions idle for longer than ttl. It stops when ctx is done; the returned
// channel is closed once the goroutine has exited.
func StartIdleWorker(ctx context.Context, closer IdleCloser, interval, ttl time.Duration, onClose CloseCallback) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Idle worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepIdleSessions(ctx, closer, ttl, onClose)
			case <-ctx.Done():
				slog.Info("Idle worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweepIdleSessions(ctx context.Context, closer IdleCloser, ttl time.Duration, onClose CloseCallback) {
	closed, err := closer.CloseIdleSessions(ctx, ttl)
	if err != nil {
		slog.Error("Idle worker failed to close sessions", "error", err)
		return
	}
	if len(closed) == 0 {
		return
	}

	for _, key := range closed {
		if onClose != nil {
			onClose(key)
		}
	}
	slog.Info("Idle worker closed sessions", "count", len(closed))
}
