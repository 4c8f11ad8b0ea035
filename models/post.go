package models

import (
	"fmt"
	"time"
)

// PostType discriminates the feed post variants
type PostType string

const (
	PostGoalCreated   PostType = "goal_created"
	PostProof         PostType = "proof_post"
	PostMissedGoal    PostType = "missed_goal"
	PostStreakWarning PostType = "streak_warning"
)

// ReactionType is one of the fixed reactions a user can leave on a post
type ReactionType string

const (
	ReactionCheer  ReactionType = "cheer"
	ReactionNudge  ReactionType = "nudge"
	ReactionTomato ReactionType = "tomato"
)

// ReactionTypes lists every supported reaction in display order.
var ReactionTypes = []ReactionType{ReactionCheer, ReactionNudge, ReactionTomato}

// ParseReactionType validates s against the fixed reaction set.
func ParseReactionType(s string) (ReactionType, bool) {
	for _, t := range ReactionTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Post is the stored form of a feed entry. Only the reaction fields and the
// proof image reference change after creation.
type Post struct {
	ID              string                           `bson:"_id" json:"id"`
	Type            PostType                         `bson:"type" json:"type"`
	UserID          string                           `bson:"userId" json:"userId"`
	UserDisplayName string                           `bson:"userDisplayName" json:"userDisplayName"`
	GoalID          string                           `bson:"goalId,omitempty" json:"goalId,omitempty"`
	GoalTitle       string                           `bson:"goalTitle,omitempty" json:"goalTitle,omitempty"`
	Message         string                           `bson:"message,omitempty" json:"message,omitempty"`
	Caption         string                           `bson:"caption,omitempty" json:"caption,omitempty"`
	ImageKey        string                           `bson:"imageKey,omitempty" json:"-"`
	ImageURL        string                           `bson:"-" json:"imageUrl,omitempty"`
	Streak          int                              `bson:"streak,omitempty" json:"streak,omitempty"`
	DueTime         string                           `bson:"dueTime,omitempty" json:"dueTime,omitempty"`
	Timestamp       time.Time                        `bson:"timestamp" json:"timestamp"`
	Reactions       map[ReactionType]int             `bson:"reactions" json:"reactions"`
	ReactedUsers    map[ReactionType]map[string]bool `bson:"reactedUsers" json:"-"`
}

// EmptyReactions returns a zeroed counter for every reaction type.
func EmptyReactions() map[ReactionType]int {
	counts := make(map[ReactionType]int, len(ReactionTypes))
	for _, t := range ReactionTypes {
		counts[t] = 0
	}
	return counts
}

// HasReacted reports whether userID currently holds a reaction of type t.
func (p *Post) HasReacted(t ReactionType, userID string) bool {
	return p.ReactedUsers[t][userID]
}

// ReactedBy returns the reactions userID currently holds on the post.
func (p *Post) ReactedBy(userID string) map[ReactionType]bool {
	out := make(map[ReactionType]bool, len(ReactionTypes))
	for _, t := range ReactionTypes {
		out[t] = p.HasReacted(t, userID)
	}
	return out
}

// PostContent is the type-specific payload of a feed post. The set of
// implementations is closed: every variant is declared in this file and
// every PostVisitor must handle all of them.
type PostContent interface {
	Type() PostType
	Accept(v PostVisitor)
	isPostContent()
}

// PostVisitor dispatches on the concrete PostContent variant.
type PostVisitor interface {
	VisitGoalCreated(GoalCreated)
	VisitProofPost(ProofPost)
	VisitMissedGoal(MissedGoal)
	VisitStreakWarning(StreakWarning)
}

// GoalCreated announces a new commitment
type GoalCreated struct {
	GoalID    string
	GoalTitle string
	Message   string
}

// ProofPost carries a completion photo and caption
type ProofPost struct {
	GoalID    string
	GoalTitle string
	Caption   string
	ImageKey  string
}

// MissedGoal records that a goal passed its due time without a completion
type MissedGoal struct {
	GoalID    string
	GoalTitle string
	Message   string
}

// StreakWarning tells friends a running streak is about to lapse
type StreakWarning struct {
	GoalID    string
	GoalTitle string
	Streak    int
	DueTime   string
	Message   string
}

func (GoalCreated) Type() PostType   { return PostGoalCreated }
func (ProofPost) Type() PostType     { return PostProof }
func (MissedGoal) Type() PostType    { return PostMissedGoal }
func (StreakWarning) Type() PostType { return PostStreakWarning }

func (c GoalCreated) Accept(v PostVisitor)   { v.VisitGoalCreated(c) }
func (c ProofPost) Accept(v PostVisitor)     { v.VisitProofPost(c) }
func (c MissedGoal) Accept(v PostVisitor)    { v.VisitMissedGoal(c) }
func (c StreakWarning) Accept(v PostVisitor) { v.VisitStreakWarning(c) }

func (GoalCreated) isPostContent()   {}
func (ProofPost) isPostContent()     {}
func (MissedGoal) isPostContent()    {}
func (StreakWarning) isPostContent() {}

// fieldWriter copies a variant's fields onto the stored document.
type fieldWriter struct{ p *Post }

func (w fieldWriter) VisitGoalCreated(c GoalCreated) {
	w.p.GoalID, w.p.GoalTitle, w.p.Message = c.GoalID, c.GoalTitle, c.Message
}

func (w fieldWriter) VisitProofPost(c ProofPost) {
	w.p.GoalID, w.p.GoalTitle, w.p.Caption, w.p.ImageKey = c.GoalID, c.GoalTitle, c.Caption, c.ImageKey
}

func (w fieldWriter) VisitMissedGoal(c MissedGoal) {
	w.p.GoalID, w.p.GoalTitle, w.p.Message = c.GoalID, c.GoalTitle, c.Message
}

func (w fieldWriter) VisitStreakWarning(c StreakWarning) {
	w.p.GoalID, w.p.GoalTitle, w.p.Message = c.GoalID, c.GoalTitle, c.Message
	w.p.Streak, w.p.DueTime = c.Streak, c.DueTime
}

// NewPost builds the stored document for content with zeroed reactions.
func NewPost(id string, content PostContent, userID, displayName string, at time.Time) *Post {
	p := &Post{
		ID:              id,
		Type:            content.Type(),
		UserID:          userID,
		UserDisplayName: displayName,
		Timestamp:       at,
		Reactions:       EmptyReactions(),
		ReactedUsers:    map[ReactionType]map[string]bool{},
	}
	content.Accept(fieldWriter{p})
	return p
}

// Content decodes the stored document back into its typed variant.
func (p *Post) Content() (PostContent, error) {
	switch p.Type {
	case PostGoalCreated:
		return GoalCreated{GoalID: p.GoalID, GoalTitle: p.GoalTitle, Message: p.Message}, nil
	case PostProof:
		return ProofPost{GoalID: p.GoalID, GoalTitle: p.GoalTitle, Caption: p.Caption, ImageKey: p.ImageKey}, nil
	case PostMissedGoal:
		return MissedGoal{GoalID: p.GoalID, GoalTitle: p.GoalTitle, Message: p.Message}, nil
	case PostStreakWarning:
		return StreakWarning{GoalID: p.GoalID, GoalTitle: p.GoalTitle, Streak: p.Streak, DueTime: p.DueTime, Message: p.Message}, nil
	}
	return nil, fmt.Errorf("unknown post type %q", p.Type)
}

// FeedEvent is pushed to live feed subscribers
type FeedEvent struct {
	Type      string    `json:"type"` // "post_created", "reaction_updated"
	AuthorID  string    `json:"authorId"`
	Audience  []string  `json:"audience"` // user IDs that should receive the event
	Post      *Post     `json:"post"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventPostCreated     = "post_created"
	EventReactionUpdated = "reaction_updated"
)
