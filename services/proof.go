package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"proveit/models"
)

const maxCaptionLength = 500

// Uploader stores proof images.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// ProofImageKey is the storage key of a proof post's image.
func ProofImageKey(postID string) string {
	return "posts/" + postID + "/proof.jpg"
}

// ProofSubmission is a completion backed by a photo.
type ProofSubmission struct {
	UserID      string
	GoalID      string
	Caption     string
	Image       io.Reader
	Size        int64
	ContentType string
}

// ProofResult describes a submitted proof.
type ProofResult struct {
	StreakResult
	PostID   string `json:"postId"`
	ImageKey string `json:"imageKey,omitempty"`
}

// ProofService records a completion and publishes the proof post.
type ProofService struct {
	recorder *CompletionRecorder
	goals    *GoalService
	feed     *FeedService
	uploader Uploader
	logger   *slog.Logger
}

func NewProofService(recorder *CompletionRecorder, goals *GoalService, feed *FeedService, uploader Uploader, logger *slog.Logger) *ProofService {
	return &ProofService{recorder: recorder, goals: goals, feed: feed, uploader: uploader, logger: logger}
}

func proofPostID(goalID, day string) string { return "proof_" + goalID + "_" + day }

// Submit completes the goal first so that a duplicate submission is rejected
// before anything is posted or uploaded. The proof post id is derived from the
// goal and day, so a submission whose post or upload failed after the
// completion committed is finished by the next submission instead of being
// rejected. An upload failure is returned but the completion and the post
// stand.
func (s *ProofService) Submit(ctx context.Context, sub ProofSubmission) (ProofResult, error) {
	caption := strings.TrimSpace(sub.Caption)
	if utf8.RuneCountInString(caption) > maxCaptionLength {
		return ProofResult{}, invalid("caption must be at most %d characters", maxCaptionLength)
	}
	if sub.Image == nil {
		return ProofResult{}, invalid("proof image is required")
	}
	goal, err := s.goals.Get(ctx, sub.UserID, sub.GoalID)
	if err != nil {
		return ProofResult{}, err
	}

	var post *models.Post
	streak, err := s.recorder.RecordCompletion(ctx, sub.UserID, sub.GoalID)
	switch {
	case errors.Is(err, ErrAlreadyCompletedToday):
		streak, post, err = s.resume(ctx, sub.UserID, sub.GoalID)
		if err != nil {
			return ProofResult{}, err
		}
	case err != nil:
		return ProofResult{}, err
	}
	result := ProofResult{StreakResult: streak}

	if post == nil {
		post, err = s.createPost(ctx, goal, sub.UserID, caption, DayKey(streak.CompletedAt))
		if err != nil {
			return result, err
		}
	}
	result.PostID = post.ID

	key := ProofImageKey(post.ID)
	if err := s.uploader.Upload(ctx, key, sub.Image, sub.Size, sub.ContentType); err != nil {
		s.logger.Error("proof upload failed", "postID", post.ID, "error", err)
		return result, persistErr("upload proof image", err)
	}
	if err := s.feed.AttachImage(ctx, post.ID, key); err != nil {
		return result, err
	}
	result.ImageKey = key
	return result, nil
}

func (s *ProofService) createPost(ctx context.Context, goal *models.Goal, userID, caption, day string) (*models.Post, error) {
	id, err := s.feed.CreatePost(ctx, NewPost{
		ID:       proofPostID(goal.ID, day),
		AuthorID: userID,
		Content: models.ProofPost{
			GoalID:    goal.ID,
			GoalTitle: goal.Title,
			Caption:   caption,
		},
	})
	if err != nil && !errors.Is(err, ErrPostExists) {
		return nil, err
	}
	return s.feed.get(ctx, id)
}

// resume picks up a proof for a goal already completed today. It returns the
// stored proof post when one exists without an image, a nil post when the
// post was never created, and ErrAlreadyCompletedToday when the proof is
// complete.
func (s *ProofService) resume(ctx context.Context, userID, goalID string) (StreakResult, *models.Post, error) {
	goal, err := s.goals.Get(ctx, userID, goalID)
	if err != nil {
		return StreakResult{}, nil, err
	}
	if goal.LastCompletedDay == "" || goal.LastCompleted == nil {
		return StreakResult{}, nil, ErrAlreadyCompletedToday
	}

	post, err := s.feed.get(ctx, proofPostID(goal.ID, goal.LastCompletedDay))
	switch {
	case err == nil && post.ImageKey != "":
		return StreakResult{}, nil, ErrAlreadyCompletedToday
	case err != nil && !errors.Is(err, ErrNotFound):
		return StreakResult{}, nil, err
	case err != nil:
		post = nil
	}

	loc := s.goals.users.Now(ctx, userID).Location()
	completedAt := goal.LastCompleted.In(loc)
	s.logger.Info("resuming unfinished proof", "userID", userID, "goalID", goalID, "day", goal.LastCompletedDay)
	return StreakResult{
		GoalID:        goal.ID,
		CurrentStreak: goal.CurrentStreak,
		LongestStreak: goal.LongestStreak,
		Late:          IsPastDue(goal.DueTime, completedAt),
		CompletedAt:   completedAt,
	}, post, nil
}
