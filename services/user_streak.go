package services

import (
	"context"
	"log/slog"

	"proveit/store"
)

// StreakUpdater maintains the user-level streak: consecutive days on which
// every goal was completed.
type StreakUpdater struct {
	goals  store.Goals
	users  store.Users
	cal    *Calendar
	logger *slog.Logger
}

func NewStreakUpdater(s store.Store, cal *Calendar, logger *slog.Logger) *StreakUpdater {
	return &StreakUpdater{goals: s.Goals(), users: s.Users(), cal: cal, logger: logger}
}

// RefreshUserStreak advances the user streak once all goals are completed
// today. It never lowers the streak; misses are handled by the sweeper.
func (s *StreakUpdater) RefreshUserStreak(ctx context.Context, userID string) error {
	if err := validateID("user id", userID); err != nil {
		return err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return storeErr("refresh user streak", err)
	}
	goals, err := s.goals.List(ctx, userID)
	if err != nil {
		return persistErr("refresh user streak", err)
	}
	if len(goals) == 0 {
		return nil
	}

	now := s.cal.Now(user)
	today := DayKey(now)
	for _, g := range goals {
		if !g.CompletedOn(today) {
			return nil
		}
	}
	if user.LastStreakDay == today {
		return nil
	}

	next := 1
	if user.LastStreakDay == PreviousDayKey(now) {
		next = user.CurrentStreak + 1
	}
	applied, err := s.users.AdvanceStreak(ctx, userID, store.StreakUpdate{
		PrevDay:     user.LastStreakDay,
		PrevCurrent: user.CurrentStreak,
		Day:         today,
		At:          now,
		Current:     next,
		Longest:     max(next, user.LongestStreak),
	})
	if err != nil {
		return persistErr("refresh user streak", err)
	}
	if !applied {
		s.logger.Debug("user streak changed concurrently", "userID", userID)
		return nil
	}
	s.logger.Info("user streak advanced", "userID", userID, "streak", next)
	return nil
}
