package store

import (
	"context"
	"errors"
	"time"

	"proveit/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("concurrent modification")
	ErrDuplicate = errors.New("duplicate key")
)

// Store exposes persistence operations required by services.
// Implementations: db (MongoDB) and store.Memory.
type Store interface {
	Goals() Goals
	Users() Users
	Posts() Posts
}

// CompletionUpdate is the goal write performed by a completion. It applies only
// while the stored revision equals ExpectedRevision and Day is not already
// the last completed day.
type CompletionUpdate struct {
	ExpectedRevision int64
	Day              string
	CompletedAt      time.Time
	CurrentStreak    int
	LongestStreak    int
}

// StreakUpdate moves a user's aggregate streak forward. It applies only while
// the stored lastStreakDay and currentStreak still equal PrevDay and
// PrevCurrent.
type StreakUpdate struct {
	PrevDay     string
	PrevCurrent int
	Day         string
	At          time.Time
	Current     int
	Longest     int
}

type Goals interface {
	Create(ctx context.Context, g *models.Goal) error
	Get(ctx context.Context, userID, goalID string) (*models.Goal, error)
	List(ctx context.Context, userID string) ([]*models.Goal, error)
	Delete(ctx context.Context, userID, goalID string) error
	// ApplyCompletion returns ErrConflict when the guard fails and ErrNotFound
	// when the goal does not exist.
	ApplyCompletion(ctx context.Context, userID, goalID string, u CompletionUpdate) (*models.Goal, error)
	// ClaimMissed marks the goal missed for day and zeroes its streak. It
	// reports false when another caller already claimed it or the goal was
	// completed on day.
	ClaimMissed(ctx context.Context, userID, goalID, day string) (bool, error)
	ReleaseMissed(ctx context.Context, userID, goalID, day string) error
	ClaimStreakWarning(ctx context.Context, userID, goalID, day string) (bool, error)
}

type Users interface {
	// Ensure inserts u when no user with its ID exists and returns the stored
	// document either way.
	Ensure(ctx context.Context, u *models.User) (*models.User, bool, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	IncrementStat(ctx context.Context, userID, stat string, delta int) error
	ResetStreak(ctx context.Context, userID string) error
	AdvanceStreak(ctx context.Context, userID string, u StreakUpdate) (bool, error)
	AddFriend(ctx context.Context, userID, friendID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
}

type Posts interface {
	// Create returns ErrDuplicate when a post with the same ID exists.
	Create(ctx context.Context, p *models.Post) error
	Get(ctx context.Context, postID string) (*models.Post, error)
	// ListByAuthors returns posts newest first.
	ListByAuthors(ctx context.Context, authorIDs []string, limit int) ([]*models.Post, error)
	AttachImage(ctx context.Context, postID, imageKey string) error
	// AddReaction and RemoveReaction report whether membership changed.
	AddReaction(ctx context.Context, postID string, t models.ReactionType, userID string) (bool, error)
	RemoveReaction(ctx context.Context, postID string, t models.ReactionType, userID string) (bool, error)
}
