package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proveit/models"
)

func TestRecordCompletionStreaks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(1, 8, 0))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "run", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0)})

	res, err := e.recorder.RecordCompletion(ctx, "alice", g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.False(t, res.Late)

	e.clock.Set(at(2, 17, 0))
	res, err = e.recorder.RecordCompletion(ctx, "alice", g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak, "on-time completion the day after continues the streak")
	assert.Equal(t, 2, res.LongestStreak)

	// skip day 3
	e.clock.Set(at(4, 10, 0))
	res, err = e.recorder.RecordCompletion(ctx, "alice", g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak, "a gap restarts the streak")
	assert.Equal(t, 2, res.LongestStreak, "longest streak never decreases")

	e.clock.Set(at(5, 19, 0))
	res, err = e.recorder.RecordCompletion(ctx, "alice", g.ID)
	require.NoError(t, err)
	assert.True(t, res.Late)
	assert.Equal(t, 1, res.CurrentStreak, "late completions always restart the streak")

	got := e.reload(t, g)
	assert.Equal(t, 4, got.TotalCompletions)
	assert.Equal(t, []string{"2025-03-10", "2025-03-11", "2025-03-13", "2025-03-14"}, got.CompletedDates)
	assert.Equal(t, "2025-03-14", got.LastCompletedDay)

	u, err := e.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, u.Stats.PostsCompleted)
}

func TestRecordCompletionTwiceSameDay(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(1, 8, 0))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "read", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0)})

	_, err := e.recorder.RecordCompletion(ctx, "alice", g.ID)
	require.NoError(t, err)
	before := e.reload(t, g)

	e.clock.Advance(3 * time.Hour)
	_, err = e.recorder.RecordCompletion(ctx, "alice", g.ID)
	assert.ErrorIs(t, err, ErrAlreadyCompletedToday)

	assert.Equal(t, before, e.reload(t, g), "a rejected completion must not mutate the goal")
	u, err := e.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Stats.PostsCompleted)
}

func TestRecordCompletionConcurrent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(1, 8, 0))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "stretch", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0)})

	const callers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.recorder.RecordCompletion(ctx, "alice", g.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyCompletedToday):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, rejected)
	got := e.reload(t, g)
	assert.Equal(t, 1, got.TotalCompletions)
	assert.Equal(t, 1, got.CurrentStreak)
}

func TestRecordCompletionErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(1, 8, 0))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "swim", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0)})

	_, err := e.recorder.RecordCompletion(ctx, "alice", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.recorder.RecordCompletion(ctx, "bob", g.ID)
	assert.ErrorIs(t, err, ErrNotFound, "goals are scoped to their owner")

	_, err = e.recorder.RecordCompletion(ctx, "alice", "bad.id")
	assert.ErrorIs(t, err, ErrValidation)

	e.store.goals.failApply = true
	_, err = e.recorder.RecordCompletion(ctx, "alice", g.ID)
	require.ErrorIs(t, err, ErrPersistence)
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "record completion", pe.Op)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRecordCompletionAfterMiss(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(2, 19, 0))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "write", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0), CurrentStreak: 3, LongestStreak: 3, LastCompletedDay: "2025-03-10"})

	report := e.sweeper.Sweep(ctx, "alice")
	require.Equal(t, 1, report.Missed)

	res, err := e.recorder.RecordCompletion(ctx, "alice", g.ID)
	require.NoError(t, err)
	assert.True(t, res.Late)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 3, res.LongestStreak)
	assert.False(t, e.reload(t, g).MissedToday)
}
