package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proveit/models"
)

func TestSweepMarksMissedOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(3, 19, 0))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "run", DueTime: "6:00 PM", CreatedAt: at(1, 9, 0), CurrentStreak: 2, LongestStreak: 2, LastCompletedDay: "2025-03-11"})

	first := e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 1, first.Missed)
	assert.Equal(t, "2025-03-12", first.Day)

	second := e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 0, second.Missed)

	got := e.reload(t, g)
	assert.True(t, got.MissedToday)
	assert.Equal(t, "2025-03-12", got.MissedOn)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 2, got.LongestStreak)

	missed := e.postsOf(t, "alice", models.PostMissedGoal)
	require.Len(t, missed, 1)
	assert.Equal(t, "missed_"+g.ID+"_2025-03-12", missed[0].ID)
	assert.Equal(t, "Missed goal: run", missed[0].Message)
	assert.Equal(t, "Alice", missed[0].UserDisplayName)
	assert.Equal(t, 0, missed[0].Reactions[models.ReactionCheer])
}

func TestSweepConcurrentCallsEmitOnePost(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(3, 21, 0))
	e.user(t, "alice", "Alice")
	for _, title := range []string{"a", "b", "c"} {
		e.seedGoal(t, &models.Goal{UserID: "alice", Title: title, DueTime: "8:00 PM", CreatedAt: at(1, 9, 0)})
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.sweeper.Sweep(ctx, "alice")
		}()
	}
	wg.Wait()

	assert.Len(t, e.postsOf(t, "alice", models.PostMissedGoal), 3)
}

func TestSweepSkips(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(2, 20, 0))
	e.user(t, "alice", "Alice")

	createdToday := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "new", DueTime: "6:00 AM", CreatedAt: at(2, 9, 0)})
	completed := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "done", DueTime: "6:00 PM", CreatedAt: at(1, 9, 0)})
	notDue := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "later", DueTime: "11:00 PM", CreatedAt: at(1, 9, 0)})
	malformed := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "broken", DueTime: "whenever", CreatedAt: at(1, 9, 0)})

	e.clock.Set(at(2, 10, 0))
	_, err := e.recorder.RecordCompletion(ctx, "alice", completed.ID)
	require.NoError(t, err)
	e.clock.Set(at(2, 20, 0))

	report := e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, 0, report.Missed)
	assert.Equal(t, 0, report.Failed)
	for _, g := range []*models.Goal{createdToday, completed, notDue, malformed} {
		assert.False(t, e.reload(t, g).MissedToday, g.Title)
	}
	assert.Empty(t, e.postsOf(t, "alice", models.PostMissedGoal))
}

func TestSweepReleasesClaimWhenPostFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(2, 20, 0))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "run", DueTime: "6:00 PM", CreatedAt: at(1, 9, 0)})

	e.store.posts.failCreate = 1
	report := e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Missed)
	assert.False(t, e.reload(t, g).MissedToday, "failed announcement releases the claim")

	report = e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 1, report.Missed)
	assert.Len(t, e.postsOf(t, "alice", models.PostMissedGoal), 1)
}

func TestSweepResetsUserStreak(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(1, 10, 0))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "run", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0)})

	_, err := e.recorder.RecordCompletion(ctx, "alice", g.ID)
	require.NoError(t, err)
	u, err := e.users.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, u.CurrentStreak)

	e.clock.Set(at(2, 19, 0))
	e.sweeper.Sweep(ctx, "alice")
	u, err = e.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 1, u.LongestStreak)
}

func TestSweepStreakWarning(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(2, 17, 15))
	e.user(t, "alice", "Alice")
	g := e.seedGoal(t, &models.Goal{UserID: "alice", Title: "run", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0), CurrentStreak: 4, LongestStreak: 4, LastCompletedDay: "2025-03-10"})
	e.seedGoal(t, &models.Goal{UserID: "alice", Title: "no streak", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0)})

	report := e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 1, report.Warned)
	report = e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 0, report.Warned)

	warnings := e.postsOf(t, "alice", models.PostStreakWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "warning_"+g.ID+"_2025-03-11", warnings[0].ID)
	assert.Equal(t, 4, warnings[0].Streak)
	assert.Contains(t, warnings[0].Message, "4-day streak")

	// outside the window nothing is posted
	e.clock.Set(at(3, 12, 0))
	report = e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 0, report.Warned)
}

func TestSweepStreakWarningDisabled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, at(2, 17, 30))
	e.sweeper.warningWindow = 0
	e.user(t, "alice", "Alice")
	e.seedGoal(t, &models.Goal{UserID: "alice", Title: "run", DueTime: "6:00 PM", CreatedAt: at(0, 9, 0), CurrentStreak: 4})

	report := e.sweeper.Sweep(ctx, "alice")
	assert.Equal(t, 0, report.Warned)
}

func TestSweepUserTimeZone(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("tzdata not available")
	}
	ctx := context.Background()
	// 20:00 UTC is 13:00 in Los Angeles (PDT)
	e := newEnv(t, at(3, 20, 0))
	_, err = e.users.Ensure(ctx, EnsureRequest{UserID: "lee", DisplayName: "Lee", TimeZone: la.String()})
	require.NoError(t, err)
	e.seedGoal(t, &models.Goal{UserID: "lee", Title: "run", DueTime: "6:00 PM", CreatedAt: at(1, 9, 0)})

	report := e.sweeper.Sweep(ctx, "lee")
	assert.Equal(t, 0, report.Missed, "due time is evaluated in the user's zone")

	e.clock.Set(at(4, 2, 0)) // 19:00 the previous day in Los Angeles
	report = e.sweeper.Sweep(ctx, "lee")
	assert.Equal(t, 1, report.Missed)
	assert.Equal(t, "2025-03-12", report.Day)
}
