package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"proveit/models"
	"proveit/store"
)

// SweepReport summarizes one sweep for logging.
type SweepReport struct {
	UserID  string `json:"userId"`
	Day     string `json:"day"`
	Checked int    `json:"checked"`
	Missed  int    `json:"missed"`
	Warned  int    `json:"warned"`
	Failed  int    `json:"failed"`
}

// Sweeper detects goals that passed their due time without a completion. Any
// number of sweeps may run for the same user at once; each goal is marked
// missed, and announced, at most once per day.
type Sweeper struct {
	goals         store.Goals
	users         store.Users
	feed          *FeedService
	cal           *Calendar
	warningWindow time.Duration
	logger        *slog.Logger
}

// NewSweeper builds a Sweeper. A zero warningWindow disables streak warnings.
func NewSweeper(s store.Store, feed *FeedService, cal *Calendar, warningWindow time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{goals: s.Goals(), users: s.Users(), feed: feed, cal: cal, warningWindow: warningWindow, logger: logger}
}

func missedPostID(goalID, day string) string  { return "missed_" + goalID + "_" + day }
func warningPostID(goalID, day string) string { return "warning_" + goalID + "_" + day }

// Sweep checks every goal of userID. Failures are logged and counted; they
// never stop the remaining goals from being checked.
func (s *Sweeper) Sweep(ctx context.Context, userID string) SweepReport {
	report := SweepReport{UserID: userID}
	if err := validateID("user id", userID); err != nil {
		s.logger.Warn("sweep skipped", "userID", userID, "error", err)
		return report
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("sweep: failed to load user", "userID", userID, "error", err)
		report.Failed++
		return report
	}
	goals, err := s.goals.List(ctx, userID)
	if err != nil {
		s.logger.Error("sweep: failed to list goals", "userID", userID, "error", err)
		report.Failed++
		return report
	}

	now := s.cal.Now(user)
	report.Day = DayKey(now)
	for _, g := range goals {
		if ctx.Err() != nil {
			break
		}
		report.Checked++
		if err := s.sweepGoal(ctx, g, now, &report); err != nil {
			report.Failed++
			s.logger.Error("sweep: goal check failed", "userID", userID, "goalID", g.ID, "error", err)
		}
	}

	if report.Missed > 0 || report.Warned > 0 || report.Failed > 0 {
		s.logger.Info("sweep finished",
			"userID", userID,
			"day", report.Day,
			"checked", report.Checked,
			"missed", report.Missed,
			"warned", report.Warned,
			"failed", report.Failed,
		)
	}
	return report
}

// TODO: weekly goals are swept on the daily cadence too; they need a 7-day
// due window before FrequencyWeekly means anything here.
func (s *Sweeper) sweepGoal(ctx context.Context, g *models.Goal, now time.Time, report *SweepReport) error {
	today := DayKey(now)
	switch {
	case g.MissedOnDay(today), g.CompletedOn(today):
		return nil
	case DayKey(g.CreatedAt.In(now.Location())) == today:
		return nil
	}

	due, err := ParseDueTime(g.DueTime)
	if err != nil {
		return nil
	}
	deadline := due.On(now)
	if !now.After(deadline) {
		if s.warningWindow > 0 && g.CurrentStreak > 0 && deadline.Sub(now) <= s.warningWindow {
			return s.warn(ctx, g, today, report)
		}
		return nil
	}
	return s.markMissed(ctx, g, today, report)
}

func (s *Sweeper) markMissed(ctx context.Context, g *models.Goal, today string, report *SweepReport) error {
	claimed, err := s.goals.ClaimMissed(ctx, g.UserID, g.ID, today)
	if err != nil {
		return fmt.Errorf("claim missed: %w", err)
	}
	if !claimed {
		return nil
	}

	_, err = s.feed.CreatePost(ctx, NewPost{
		ID:       missedPostID(g.ID, today),
		AuthorID: g.UserID,
		Content: models.MissedGoal{
			GoalID:    g.ID,
			GoalTitle: g.Title,
			Message:   "Missed goal: " + g.Title,
		},
	})
	if err != nil && !errors.Is(err, ErrPostExists) {
		if relErr := s.goals.ReleaseMissed(ctx, g.UserID, g.ID, today); relErr != nil {
			s.logger.Error("sweep: failed to release missed claim", "goalID", g.ID, "error", relErr)
		}
		return fmt.Errorf("create missed post: %w", err)
	}
	report.Missed++
	s.logger.Info("goal missed", "userID", g.UserID, "goalID", g.ID, "day", today)

	if err := s.users.ResetStreak(ctx, g.UserID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("sweep: failed to reset user streak", "userID", g.UserID, "error", err)
	}
	return nil
}

func (s *Sweeper) warn(ctx context.Context, g *models.Goal, today string, report *SweepReport) error {
	claimed, err := s.goals.ClaimStreakWarning(ctx, g.UserID, g.ID, today)
	if err != nil {
		return fmt.Errorf("claim streak warning: %w", err)
	}
	if !claimed {
		return nil
	}
	_, err = s.feed.CreatePost(ctx, NewPost{
		ID:       warningPostID(g.ID, today),
		AuthorID: g.UserID,
		Content: models.StreakWarning{
			GoalID:    g.ID,
			GoalTitle: g.Title,
			Streak:    g.CurrentStreak,
			DueTime:   g.DueTime,
			Message:   fmt.Sprintf("%d-day streak on the line: %s is due at %s", g.CurrentStreak, g.Title, g.DueTime),
		},
	})
	if err != nil && !errors.Is(err, ErrPostExists) {
		return fmt.Errorf("create streak warning: %w", err)
	}
	report.Warned++
	return nil
}
