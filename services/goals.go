package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"proveit/models"
	"proveit/store"
)

const maxTitleLength = 100

// CreateGoalRequest is the user input for a new goal.
type CreateGoalRequest struct {
	Title     string `json:"title"`
	Frequency string `json:"frequency"`
	DueTime   string `json:"dueTime"`
}

// AvailableGoal is a goal that can still be completed today.
type AvailableGoal struct {
	*models.Goal
	PastDue bool `json:"pastDue"`
}

// GoalService manages the goal lifecycle outside of completions.
type GoalService struct {
	goals  store.Goals
	users  *UserService
	feed   *FeedService
	logger *slog.Logger
}

func NewGoalService(s store.Store, users *UserService, feed *FeedService, logger *slog.Logger) *GoalService {
	return &GoalService{goals: s.Goals(), users: users, feed: feed, logger: logger}
}

func (req CreateGoalRequest) normalize() (title string, freq models.Frequency, due DueTime, err error) {
	title = strings.TrimSpace(req.Title)
	if title == "" {
		return "", "", DueTime{}, invalid("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", "", DueTime{}, invalid("title must be at most %d characters", maxTitleLength)
	}
	freq = models.Frequency(strings.ToLower(strings.TrimSpace(req.Frequency)))
	if freq == "" {
		freq = models.FrequencyDaily
	}
	if !freq.Valid() {
		return "", "", DueTime{}, invalid("frequency must be daily or weekly")
	}
	due, err = ParseDueTime(strings.ToUpper(strings.TrimSpace(req.DueTime)))
	if err != nil {
		return "", "", DueTime{}, err
	}
	return title, freq, due, nil
}

// Create stores a new goal with empty history and announces it in the feed.
func (s *GoalService) Create(ctx context.Context, userID string, req CreateGoalRequest) (*models.Goal, error) {
	if err := validateID("user id", userID); err != nil {
		return nil, err
	}
	title, freq, due, err := req.normalize()
	if err != nil {
		return nil, err
	}

	goal := &models.Goal{
		ID:             uuid.NewString(),
		UserID:         userID,
		Title:          title,
		Frequency:      freq,
		DueTime:        due.String(),
		CompletedDates: []string{},
		CreatedAt:      s.users.calendar.Clock().Now(),
	}
	if err := s.goals.Create(ctx, goal); err != nil {
		return nil, persistErr("create goal", err)
	}
	s.logger.Info("goal created", "userID", userID, "goalID", goal.ID, "frequency", freq)

	_, err = s.feed.CreatePost(ctx, NewPost{
		AuthorID: userID,
		Content: models.GoalCreated{
			GoalID:    goal.ID,
			GoalTitle: title,
			Message:   fmt.Sprintf("%s just committed to: %s", s.users.DisplayName(ctx, userID), title),
		},
	})
	if err != nil {
		s.logger.Warn("goal announcement failed", "goalID", goal.ID, "error", err)
	}
	return goal, nil
}

func (s *GoalService) List(ctx context.Context, userID string) ([]*models.Goal, error) {
	if err := validateID("user id", userID); err != nil {
		return nil, err
	}
	goals, err := s.goals.List(ctx, userID)
	if err != nil {
		return nil, persistErr("list goals", err)
	}
	return goals, nil
}

func (s *GoalService) Get(ctx context.Context, userID, goalID string) (*models.Goal, error) {
	if err := validateID("goal id", goalID); err != nil {
		return nil, err
	}
	g, err := s.goals.Get(ctx, userID, goalID)
	if err != nil {
		return nil, storeErr("get goal", err)
	}
	return g, nil
}

// Delete removes a goal owned by userID.
func (s *GoalService) Delete(ctx context.Context, userID, goalID string) error {
	if err := validateID("user id", userID); err != nil {
		return err
	}
	if err := validateID("goal id", goalID); err != nil {
		return err
	}
	if err := s.goals.Delete(ctx, userID, goalID); err != nil {
		return storeErr("delete goal", err)
	}
	s.logger.Info("goal deleted", "userID", userID, "goalID", goalID)
	return nil
}

// Available returns the goals not yet completed today.
func (s *GoalService) Available(ctx context.Context, userID string) ([]AvailableGoal, error) {
	goals, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.users.Now(ctx, userID)
	today := DayKey(now)
	out := make([]AvailableGoal, 0, len(goals))
	for _, g := range goals {
		if g.CompletedOn(today) {
			continue
		}
		out = append(out, AvailableGoal{Goal: g, PastDue: IsPastDue(g.DueTime, now)})
	}
	return out, nil
}
