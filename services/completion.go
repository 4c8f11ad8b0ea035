package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"proveit/models"
	"proveit/store"
)

const (
	completionAttempts = 5
	completionBackoff  = 10 * time.Millisecond
)

// StreakResult reports the goal streak after a completion.
type StreakResult struct {
	GoalID        string    `json:"goalId"`
	CurrentStreak int       `json:"currentStreak"`
	LongestStreak int       `json:"longestStreak"`
	Late          bool      `json:"late"`
	CompletedAt   time.Time `json:"completedAt"`
}

// CompletionRecorder records at most one completion per goal per day.
type CompletionRecorder struct {
	goals   store.Goals
	users   *UserService
	stats   store.Users
	streaks *StreakUpdater
	logger  *slog.Logger
}

func NewCompletionRecorder(s store.Store, users *UserService, streaks *StreakUpdater, logger *slog.Logger) *CompletionRecorder {
	return &CompletionRecorder{goals: s.Goals(), users: users, stats: s.Users(), streaks: streaks, logger: logger}
}

// nextStreak returns the goal streak after a completion at now. The streak
// continues only for an on-time completion whose previous completion was
// yesterday.
func nextStreak(g *models.Goal, now time.Time, late bool) int {
	if !late && g.LastCompletedDay == PreviousDayKey(now) {
		return g.CurrentStreak + 1
	}
	return 1
}

// RecordCompletion marks the goal completed today. Concurrent completions of
// the same goal are serialized by the goal revision; losers re-read and, once
// they see today's completion, fail with ErrAlreadyCompletedToday.
func (r *CompletionRecorder) RecordCompletion(ctx context.Context, userID, goalID string) (StreakResult, error) {
	if err := validateID("user id", userID); err != nil {
		return StreakResult{}, err
	}
	if err := validateID("goal id", goalID); err != nil {
		return StreakResult{}, err
	}

	var (
		result StreakResult
		final  error
	)
	err := retry.Do(
		func() error {
			now := r.users.Now(ctx, userID)
			goal, err := r.goals.Get(ctx, userID, goalID)
			if err != nil {
				final = storeErr("record completion", err)
				return retry.Unrecoverable(final)
			}
			today := DayKey(now)
			if goal.CompletedOn(today) {
				final = ErrAlreadyCompletedToday
				return retry.Unrecoverable(final)
			}

			late := IsPastDue(goal.DueTime, now)
			current := nextStreak(goal, now, late)
			longest := max(current, goal.LongestStreak)
			updated, err := r.goals.ApplyCompletion(ctx, userID, goalID, store.CompletionUpdate{
				ExpectedRevision: goal.Revision,
				Day:              today,
				CompletedAt:      now,
				CurrentStreak:    current,
				LongestStreak:    longest,
			})
			if errors.Is(err, store.ErrConflict) {
				return err
			}
			if err != nil {
				final = storeErr("record completion", err)
				return retry.Unrecoverable(final)
			}
			final = nil
			result = StreakResult{
				GoalID:        goalID,
				CurrentStreak: updated.CurrentStreak,
				LongestStreak: updated.LongestStreak,
				Late:          late,
				CompletedAt:   now,
			}
			return nil
		},
		retry.Attempts(completionAttempts),
		retry.Delay(completionBackoff),
		retry.MaxJitter(completionBackoff),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debug("completion conflict, retrying", "goalID", goalID, "attempt", n+1, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, store.ErrConflict)
		}),
	)
	if final != nil {
		return StreakResult{}, final
	}
	if err != nil {
		return StreakResult{}, persistErr("record completion", err)
	}

	if err := r.stats.IncrementStat(ctx, userID, models.StatPostsCompleted, 1); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return result, persistErr("record completion", err)
		}
		r.logger.Warn("completion recorded for user without a document", "userID", userID)
	}

	r.logger.Info("goal completed",
		"userID", userID,
		"goalID", goalID,
		"streak", result.CurrentStreak,
		"late", result.Late,
	)

	if err := r.streaks.RefreshUserStreak(ctx, userID); err != nil {
		r.logger.Warn("user streak refresh failed", "userID", userID, "error", err)
	}
	return result, nil
}
