package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundOutlivesCaller(t *testing.T) {
	bg := NewBackground(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	require.True(t, bg.Go(ctx, "", func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		done <- ctx.Err()
		return nil
	}))
	cancel()

	require.NoError(t, bg.Wait(context.Background()))
	assert.NoError(t, <-done, "request cancellation must not reach background work")
}

func TestBackgroundDedupesByKey(t *testing.T) {
	bg := NewBackground(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
	release := make(chan struct{})
	var runs atomic.Int32

	task := func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}
	assert.True(t, bg.Go(context.Background(), "sweep:alice", task))
	assert.False(t, bg.Go(context.Background(), "sweep:alice", task))
	assert.True(t, bg.Go(context.Background(), "sweep:bob", task))
	close(release)
	require.NoError(t, bg.Wait(context.Background()))
	assert.Equal(t, int32(2), runs.Load())

	assert.False(t, bg.Go(context.Background(), "late", task), "closed runner rejects work")
}

func TestBackgroundRecoversAndLogs(t *testing.T) {
	e := newEnv(t, at(1, 8, 0))
	bg := NewBackground(slog.New(slog.NewTextHandler(&lockedWriter{w: e.logs}, nil)), time.Second)

	bg.Go(context.Background(), "panics", func(context.Context) error { panic("boom") })
	bg.Go(context.Background(), "fails", func(context.Context) error { return errors.New("nope") })
	require.NoError(t, bg.Wait(context.Background()))

	logs := e.logs.String()
	assert.Contains(t, logs, "background task panicked")
	assert.Contains(t, logs, "background task failed")
}

func TestBackgroundWaitHonoursDeadline(t *testing.T) {
	bg := NewBackground(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute)
	release := make(chan struct{})
	defer close(release)
	bg.Go(context.Background(), "", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bg.Wait(ctx), context.DeadlineExceeded)
}
