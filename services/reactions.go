package services

import (
	"context"
	"errors"
	"log/slog"

	"proveit/models"
	"proveit/store"
)

// ReactionState is the post's reaction state after a change, for the caller
// to reconcile an optimistic update.
type ReactionState struct {
	PostID  string                       `json:"postId"`
	Changed bool                         `json:"changed"`
	Counts  map[models.ReactionType]int  `json:"reactions"`
	Reacted map[models.ReactionType]bool `json:"reacted"`
}

// ReactionLedger keeps per-post reaction counters consistent with per-user
// membership. A tomato also counts against the post author.
type ReactionLedger struct {
	posts  store.Posts
	users  store.Users
	feed   *FeedService
	logger *slog.Logger
}

func NewReactionLedger(s store.Store, feed *FeedService, logger *slog.Logger) *ReactionLedger {
	return &ReactionLedger{posts: s.Posts(), users: s.Users(), feed: feed, logger: logger}
}

func parseReaction(postID, reaction, userID string) (models.ReactionType, error) {
	if err := validateID("post id", postID); err != nil {
		return "", err
	}
	if err := validateID("user id", userID); err != nil {
		return "", err
	}
	t, ok := models.ParseReactionType(reaction)
	if !ok {
		return "", invalid("unknown reaction type %q", reaction)
	}
	return t, nil
}

// AddReaction records userID's reaction. Adding a reaction the user already
// holds changes nothing.
func (l *ReactionLedger) AddReaction(ctx context.Context, postID, reaction, userID string) (ReactionState, error) {
	t, err := parseReaction(postID, reaction, userID)
	if err != nil {
		return ReactionState{}, err
	}
	changed, err := l.posts.AddReaction(ctx, postID, t, userID)
	if err != nil {
		return ReactionState{}, storeErr("add reaction", err)
	}
	return l.settle(ctx, postID, t, userID, changed, 1)
}

// RemoveReaction withdraws userID's reaction. Removing a reaction the user
// does not hold changes nothing.
func (l *ReactionLedger) RemoveReaction(ctx context.Context, postID, reaction, userID string) (ReactionState, error) {
	t, err := parseReaction(postID, reaction, userID)
	if err != nil {
		return ReactionState{}, err
	}
	changed, err := l.posts.RemoveReaction(ctx, postID, t, userID)
	if err != nil {
		return ReactionState{}, storeErr("remove reaction", err)
	}
	return l.settle(ctx, postID, t, userID, changed, -1)
}

func (l *ReactionLedger) settle(ctx context.Context, postID string, t models.ReactionType, userID string, changed bool, delta int) (ReactionState, error) {
	post, err := l.posts.Get(ctx, postID)
	if err != nil {
		return ReactionState{}, storeErr("read reactions", err)
	}
	if changed && t == models.ReactionTomato {
		if err := l.users.IncrementStat(ctx, post.UserID, models.StatTomatoCount, delta); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				l.revert(ctx, postID, t, userID, delta)
				return ReactionState{}, persistErr("update tomato count", err)
			}
			l.logger.Warn("tomato on post by unknown author", "postID", postID, "authorID", post.UserID)
		}
	}
	if changed {
		l.logger.Debug("reaction changed", "postID", postID, "type", t, "userID", userID, "delta", delta)
		l.feed.publish(ctx, models.EventReactionUpdated, post)
	}
	return ReactionState{
		PostID:  postID,
		Changed: changed,
		Counts:  post.Reactions,
		Reacted: post.ReactedBy(userID),
	}, nil
}

// revert undoes a membership change whose tomato count could not be applied,
// so that a retry applies both again.
func (l *ReactionLedger) revert(ctx context.Context, postID string, t models.ReactionType, userID string, delta int) {
	var err error
	if delta > 0 {
		_, err = l.posts.RemoveReaction(ctx, postID, t, userID)
	} else {
		_, err = l.posts.AddReaction(ctx, postID, t, userID)
	}
	if err != nil {
		l.logger.Error("failed to revert reaction", "postID", postID, "type", t, "userID", userID, "error", err)
	}
}
