package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Background runs fire-and-forget work that must outlive the request that
// triggered it. Panics and errors are logged; Wait blocks shutdown until the
// work drains.
type Background struct {
	logger  *slog.Logger
	timeout time.Duration

	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
}

func NewBackground(logger *slog.Logger, timeout time.Duration) *Background {
	return &Background{logger: logger, timeout: timeout, inflight: make(map[string]struct{})}
}

// Go runs fn in a new goroutine. The context passed to fn keeps the values of
// ctx but not its cancellation, and is bounded by the runner's timeout. When
// key is non-empty and work with the same key is still running, Go does
// nothing and returns false.
func (b *Background) Go(ctx context.Context, key string, fn func(ctx context.Context) error) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	if key != "" {
		if _, busy := b.inflight[key]; busy {
			b.mu.Unlock()
			return false
		}
		b.inflight[key] = struct{}{}
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer func() {
			if key != "" {
				b.mu.Lock()
				delete(b.inflight, key)
				b.mu.Unlock()
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("background task panicked", "task", key, "panic", fmt.Sprint(r))
			}
		}()

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()
		if err := fn(runCtx); err != nil {
			b.logger.Warn("background task failed", "task", key, "error", err)
		}
	}()
	return true
}

// Wait stops accepting work and blocks until running tasks finish or ctx ends.
func (b *Background) Wait(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
