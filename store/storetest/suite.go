package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proveit/models"
	"proveit/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// makeStore must return a clean, isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("goals", func(t *testing.T) { testGoals(t, makeStore(t)) })
	t.Run("completion guard", func(t *testing.T) { testCompletionGuard(t, makeStore(t)) })
	t.Run("missed claim", func(t *testing.T) { testMissedClaim(t, makeStore(t)) })
	t.Run("streak warning claim", func(t *testing.T) { testWarningClaim(t, makeStore(t)) })
	t.Run("users", func(t *testing.T) { testUsers(t, makeStore(t)) })
	t.Run("posts", func(t *testing.T) { testPosts(t, makeStore(t)) })
	t.Run("reactions", func(t *testing.T) { testReactions(t, makeStore(t)) })
	t.Run("concurrent claims", func(t *testing.T) { testConcurrentClaims(t, makeStore(t)) })
}

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newGoal(userID string) *models.Goal {
	return &models.Goal{
		ID:             "g-" + uuid.NewString(),
		UserID:         userID,
		Title:          "Run 5k",
		Frequency:      models.FrequencyDaily,
		DueTime:        "9:00 PM",
		CompletedDates: []string{},
		CreatedAt:      base.Add(-72 * time.Hour),
	}
}

func newUser() *models.User {
	id := "u-" + uuid.NewString()
	return &models.User{ID: id, Email: id + "@example.test", DisplayName: "Test User", Friends: []string{}, CreatedAt: base}
}

func testGoals(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID := "u-" + uuid.NewString()

	first := newGoal(userID)
	second := newGoal(userID)
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	require.NoError(t, s.Goals().Create(ctx, first))
	require.NoError(t, s.Goals().Create(ctx, second))

	got, err := s.Goals().Get(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Run 5k", got.Title)
	assert.Equal(t, models.FrequencyDaily, got.Frequency)

	_, err = s.Goals().Get(ctx, "someone-else", first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := s.Goals().List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	require.NoError(t, s.Goals().Delete(ctx, userID, first.ID))
	assert.ErrorIs(t, s.Goals().Delete(ctx, userID, first.ID), store.ErrNotFound)
	list, err = s.Goals().List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testCompletionGuard(t *testing.T, s store.Store) {
	ctx := context.Background()
	g := newGoal("u-" + uuid.NewString())
	require.NoError(t, s.Goals().Create(ctx, g))

	up := store.CompletionUpdate{ExpectedRevision: 0, Day: "2025-03-10", CompletedAt: base, CurrentStreak: 1, LongestStreak: 1}
	updated, err := s.Goals().ApplyCompletion(ctx, g.UserID, g.ID, up)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Revision)
	assert.Equal(t, 1, updated.TotalCompletions)
	assert.Equal(t, "2025-03-10", updated.LastCompletedDay)
	assert.Equal(t, []string{"2025-03-10"}, updated.CompletedDates)
	require.NotNil(t, updated.LastCompleted)
	assert.True(t, updated.LastCompleted.Equal(base))

	// same day with the fresh revision still conflicts
	up.ExpectedRevision = 1
	_, err = s.Goals().ApplyCompletion(ctx, g.UserID, g.ID, up)
	assert.ErrorIs(t, err, store.ErrConflict)

	// stale revision conflicts
	next := store.CompletionUpdate{ExpectedRevision: 0, Day: "2025-03-11", CompletedAt: base.Add(24 * time.Hour), CurrentStreak: 2, LongestStreak: 2}
	_, err = s.Goals().ApplyCompletion(ctx, g.UserID, g.ID, next)
	assert.ErrorIs(t, err, store.ErrConflict)

	next.ExpectedRevision = 1
	updated, err = s.Goals().ApplyCompletion(ctx, g.UserID, g.ID, next)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentStreak)
	assert.Equal(t, 2, updated.TotalCompletions)
	assert.Len(t, updated.CompletedDates, 2)

	_, err = s.Goals().ApplyCompletion(ctx, g.UserID, "missing", next)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testMissedClaim(t *testing.T, s store.Store) {
	ctx := context.Background()
	g := newGoal("u-" + uuid.NewString())
	g.CurrentStreak = 4
	g.LongestStreak = 6
	require.NoError(t, s.Goals().Create(ctx, g))

	ok, err := s.Goals().ClaimMissed(ctx, g.UserID, g.ID, "2025-03-10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Goals().ClaimMissed(ctx, g.UserID, g.ID, "2025-03-10")
	require.NoError(t, err)
	assert.False(t, ok, "second claim on the same day must lose")

	got, err := s.Goals().Get(ctx, g.UserID, g.ID)
	require.NoError(t, err)
	assert.True(t, got.MissedToday)
	assert.Equal(t, "2025-03-10", got.MissedOn)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 6, got.LongestStreak)

	// a stale flag from an earlier day does not block a new claim
	ok, err = s.Goals().ClaimMissed(ctx, g.UserID, g.ID, "2025-03-11")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Goals().ReleaseMissed(ctx, g.UserID, g.ID, "2025-03-11"))
	got, err = s.Goals().Get(ctx, g.UserID, g.ID)
	require.NoError(t, err)
	assert.False(t, got.MissedToday)

	ok, err = s.Goals().ClaimMissed(ctx, g.UserID, g.ID, "2025-03-11")
	require.NoError(t, err)
	assert.True(t, ok, "released claim can be taken again")

	// completed goals cannot be claimed for that day
	done := newGoal(g.UserID)
	require.NoError(t, s.Goals().Create(ctx, done))
	_, err = s.Goals().ApplyCompletion(ctx, done.UserID, done.ID, store.CompletionUpdate{Day: "2025-03-10", CompletedAt: base, CurrentStreak: 1, LongestStreak: 1})
	require.NoError(t, err)
	ok, err = s.Goals().ClaimMissed(ctx, done.UserID, done.ID, "2025-03-10")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Goals().ClaimMissed(ctx, g.UserID, "missing", "2025-03-10")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testWarningClaim(t *testing.T, s store.Store) {
	ctx := context.Background()
	g := newGoal("u-" + uuid.NewString())
	require.NoError(t, s.Goals().Create(ctx, g))

	ok, err := s.Goals().ClaimStreakWarning(ctx, g.UserID, g.ID, "2025-03-10")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Goals().ClaimStreakWarning(ctx, g.UserID, g.ID, "2025-03-10")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.Goals().ClaimStreakWarning(ctx, g.UserID, g.ID, "2025-03-11")
	require.NoError(t, err)
	assert.True(t, ok)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser()

	got, created, err := s.Users().Ensure(ctx, u)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, u.ID, got.ID)

	again := *u
	again.DisplayName = "Renamed"
	got, created, err = s.Users().Ensure(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Test User", got.DisplayName, "ensure never overwrites an existing user")

	require.NoError(t, s.Users().IncrementStat(ctx, u.ID, models.StatPostsCompleted, 1))
	require.NoError(t, s.Users().IncrementStat(ctx, u.ID, models.StatTomatoCount, 2))
	require.NoError(t, s.Users().IncrementStat(ctx, u.ID, models.StatTomatoCount, -1))
	assert.ErrorIs(t, s.Users().IncrementStat(ctx, "missing", models.StatTomatoCount, 1), store.ErrNotFound)

	applied, err := s.Users().AdvanceStreak(ctx, u.ID, store.StreakUpdate{PrevDay: "", Day: "2025-03-10", At: base, Current: 1, Longest: 1})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.Users().AdvanceStreak(ctx, u.ID, store.StreakUpdate{PrevDay: "", Day: "2025-03-10", At: base, Current: 1, Longest: 1})
	require.NoError(t, err)
	assert.False(t, applied, "stale previous day must not apply")

	applied, err = s.Users().AdvanceStreak(ctx, u.ID, store.StreakUpdate{PrevDay: "2025-03-10", PrevCurrent: 7, Day: "2025-03-11", At: base.Add(24 * time.Hour), Current: 8, Longest: 8})
	require.NoError(t, err)
	assert.False(t, applied, "stale current streak must not apply")

	applied, err = s.Users().AdvanceStreak(ctx, u.ID, store.StreakUpdate{PrevDay: "2025-03-10", PrevCurrent: 1, Day: "2025-03-11", At: base.Add(24 * time.Hour), Current: 2, Longest: 2})
	require.NoError(t, err)
	assert.True(t, applied)

	got, err = s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats.PostsCompleted)
	assert.Equal(t, 1, got.Stats.TomatoCount)
	assert.Equal(t, 2, got.CurrentStreak)
	assert.Equal(t, 2, got.LongestStreak)
	assert.Equal(t, "2025-03-11", got.LastStreakDay)

	require.NoError(t, s.Users().ResetStreak(ctx, u.ID))
	got, err = s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 2, got.LongestStreak)

	require.NoError(t, s.Users().AddFriend(ctx, u.ID, "f1"))
	require.NoError(t, s.Users().AddFriend(ctx, u.ID, "f1"))
	require.NoError(t, s.Users().AddFriend(ctx, u.ID, "f2"))
	require.NoError(t, s.Users().RemoveFriend(ctx, u.ID, "f2"))
	got, err = s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, got.Friends)

	_, err = s.Users().Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testPosts(t *testing.T, s store.Store) {
	ctx := context.Background()
	author := "u-" + uuid.NewString()
	other := "u-" + uuid.NewString()

	older := models.NewPost("p-"+uuid.NewString(), models.GoalCreated{GoalID: "g1", GoalTitle: "Read", Message: "committed"}, author, "A", base)
	newer := models.NewPost("p-"+uuid.NewString(), models.MissedGoal{GoalID: "g1", GoalTitle: "Read", Message: "Missed goal: Read"}, author, "A", base.Add(time.Minute))
	foreign := models.NewPost("p-"+uuid.NewString(), models.ProofPost{GoalID: "g2", Caption: "done"}, other, "B", base.Add(2*time.Minute))
	for _, p := range []*models.Post{older, newer, foreign} {
		require.NoError(t, s.Posts().Create(ctx, p))
	}
	assert.ErrorIs(t, s.Posts().Create(ctx, older), store.ErrDuplicate)

	list, err := s.Posts().ListByAuthors(ctx, []string{author}, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	list, err = s.Posts().ListByAuthors(ctx, []string{author, other}, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, foreign.ID, list[0].ID)

	require.NoError(t, s.Posts().AttachImage(ctx, foreign.ID, "posts/"+foreign.ID+"/proof.jpg"))
	got, err := s.Posts().Get(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, "posts/"+foreign.ID+"/proof.jpg", got.ImageKey)
	content, err := got.Content()
	require.NoError(t, err)
	assert.Equal(t, models.PostProof, content.Type())

	assert.ErrorIs(t, s.Posts().AttachImage(ctx, "missing", "k"), store.ErrNotFound)
	_, err = s.Posts().Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testReactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := models.NewPost("p-"+uuid.NewString(), models.GoalCreated{GoalID: "g", Message: "m"}, "author", "A", base)
	require.NoError(t, s.Posts().Create(ctx, p))

	changed, err := s.Posts().AddReaction(ctx, p.ID, models.ReactionCheer, "u1")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.Posts().AddReaction(ctx, p.ID, models.ReactionCheer, "u1")
	require.NoError(t, err)
	assert.False(t, changed, "repeated add is a no-op")
	changed, err = s.Posts().AddReaction(ctx, p.ID, models.ReactionCheer, "u2")
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.Posts().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Reactions[models.ReactionCheer])
	assert.Equal(t, 0, got.Reactions[models.ReactionTomato])
	assert.True(t, got.HasReacted(models.ReactionCheer, "u1"))

	changed, err = s.Posts().RemoveReaction(ctx, p.ID, models.ReactionCheer, "u1")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.Posts().RemoveReaction(ctx, p.ID, models.ReactionCheer, "u1")
	require.NoError(t, err)
	assert.False(t, changed, "repeated remove is a no-op")
	changed, err = s.Posts().RemoveReaction(ctx, p.ID, models.ReactionNudge, "u3")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err = s.Posts().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Reactions[models.ReactionCheer])
	assert.Equal(t, 0, got.Reactions[models.ReactionNudge])
	assert.False(t, got.HasReacted(models.ReactionCheer, "u1"))

	_, err = s.Posts().AddReaction(ctx, "missing", models.ReactionCheer, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testConcurrentClaims(t *testing.T, s store.Store) {
	ctx := context.Background()
	g := newGoal("u-" + uuid.NewString())
	require.NoError(t, s.Goals().Create(ctx, g))
	p := models.NewPost("p-"+uuid.NewString(), models.GoalCreated{GoalID: g.ID}, g.UserID, "A", base)
	require.NoError(t, s.Posts().Create(ctx, p))

	const workers = 16
	var claims, adds atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.Goals().ClaimMissed(ctx, g.UserID, g.ID, "2025-03-10"); err == nil && ok {
				claims.Add(1)
			}
			if ok, err := s.Posts().AddReaction(ctx, p.ID, models.ReactionTomato, "same-user"); err == nil && ok {
				adds.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), claims.Load())
	assert.Equal(t, int32(1), adds.Load())
	got, err := s.Posts().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Reactions[models.ReactionTomato])
}
