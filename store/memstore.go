package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"proveit/models"
)

// Memory is an in-process Store. Each conditional write is applied under a
// single lock, which gives it the same per-document atomicity as MongoDB.
type Memory struct {
	mu    sync.Mutex
	goals map[string]*models.Goal
	users map[string]*models.User
	posts map[string]*models.Post
}

func NewMemory() *Memory {
	return &Memory{
		goals: make(map[string]*models.Goal),
		users: make(map[string]*models.User),
		posts: make(map[string]*models.Post),
	}
}

func (m *Memory) Goals() Goals { return memGoals{m} }
func (m *Memory) Users() Users { return memUsers{m} }
func (m *Memory) Posts() Posts { return memPosts{m} }

type memGoals struct{ m *Memory }

func cloneGoal(g *models.Goal) *models.Goal {
	c := *g
	c.CompletedDates = append([]string(nil), g.CompletedDates...)
	if g.LastCompleted != nil {
		t := *g.LastCompleted
		c.LastCompleted = &t
	}
	return &c
}

func (s memGoals) Create(ctx context.Context, g *models.Goal) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.goals[g.ID]; ok {
		return ErrDuplicate
	}
	s.m.goals[g.ID] = cloneGoal(g)
	return nil
}

// owned returns the live goal when it belongs to userID. Callers hold the lock.
func (s memGoals) owned(userID, goalID string) (*models.Goal, bool) {
	g, ok := s.m.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, false
	}
	return g, true
}

func (s memGoals) Get(ctx context.Context, userID, goalID string) (*models.Goal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.owned(userID, goalID)
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGoal(g), nil
}

func (s memGoals) List(ctx context.Context, userID string) ([]*models.Goal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []*models.Goal{}
	for _, g := range s.m.goals {
		if g.UserID == userID {
			out = append(out, cloneGoal(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s memGoals) Delete(ctx context.Context, userID, goalID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.owned(userID, goalID); !ok {
		return ErrNotFound
	}
	delete(s.m.goals, goalID)
	return nil
}

func (s memGoals) ApplyCompletion(ctx context.Context, userID, goalID string, u CompletionUpdate) (*models.Goal, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.owned(userID, goalID)
	if !ok {
		return nil, ErrNotFound
	}
	if g.Revision != u.ExpectedRevision || g.LastCompletedDay == u.Day {
		return nil, ErrConflict
	}
	at := u.CompletedAt
	if !containsString(g.CompletedDates, u.Day) {
		g.CompletedDates = append(g.CompletedDates, u.Day)
	}
	g.LastCompleted = &at
	g.LastCompletedDay = u.Day
	g.CurrentStreak = u.CurrentStreak
	g.LongestStreak = u.LongestStreak
	g.TotalCompletions++
	g.MissedToday = false
	g.Revision++
	return cloneGoal(g), nil
}

func (s memGoals) ClaimMissed(ctx context.Context, userID, goalID, day string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.owned(userID, goalID)
	if !ok {
		return false, ErrNotFound
	}
	if g.LastCompletedDay == day || g.MissedOnDay(day) {
		return false, nil
	}
	g.MissedToday = true
	g.MissedOn = day
	g.CurrentStreak = 0
	g.Revision++
	return true, nil
}

func (s memGoals) ReleaseMissed(ctx context.Context, userID, goalID, day string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.owned(userID, goalID)
	if !ok {
		return ErrNotFound
	}
	if g.MissedOnDay(day) {
		g.MissedToday = false
		g.Revision++
	}
	return nil
}

func (s memGoals) ClaimStreakWarning(ctx context.Context, userID, goalID, day string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	g, ok := s.owned(userID, goalID)
	if !ok {
		return false, ErrNotFound
	}
	if g.WarnedOn == day || g.LastCompletedDay == day || g.MissedOnDay(day) {
		return false, nil
	}
	g.WarnedOn = day
	g.Revision++
	return true, nil
}

type memUsers struct{ m *Memory }

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Friends = append([]string{}, u.Friends...)
	if u.LastStreakDate != nil {
		t := *u.LastStreakDate
		c.LastStreakDate = &t
	}
	return &c
}

func (s memUsers) Ensure(ctx context.Context, u *models.User) (*models.User, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if existing, ok := s.m.users[u.ID]; ok {
		return cloneUser(existing), false, nil
	}
	s.m.users[u.ID] = cloneUser(u)
	return cloneUser(u), true, nil
}

func (s memUsers) Get(ctx context.Context, userID string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s memUsers) IncrementStat(ctx context.Context, userID, stat string, delta int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[userID]
	if !ok {
		return ErrNotFound
	}
	switch stat {
	case models.StatPostsCompleted:
		u.Stats.PostsCompleted += delta
	case models.StatTomatoCount:
		u.Stats.TomatoCount += delta
	default:
		return fmt.Errorf("unknown stat %q", stat)
	}
	return nil
}

func (s memUsers) ResetStreak(ctx context.Context, userID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.CurrentStreak = 0
	return nil
}

func (s memUsers) AdvanceStreak(ctx context.Context, userID string, up StreakUpdate) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	if u.LastStreakDay != up.PrevDay || u.CurrentStreak != up.PrevCurrent {
		return false, nil
	}
	at := up.At
	u.CurrentStreak = up.Current
	u.LongestStreak = up.Longest
	u.LastStreakDay = up.Day
	u.LastStreakDate = &at
	return true, nil
}

func (s memUsers) AddFriend(ctx context.Context, userID, friendID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[userID]
	if !ok {
		return ErrNotFound
	}
	if !containsString(u.Friends, friendID) {
		u.Friends = append(u.Friends, friendID)
	}
	return nil
}

func (s memUsers) RemoveFriend(ctx context.Context, userID, friendID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[userID]
	if !ok {
		return ErrNotFound
	}
	kept := u.Friends[:0]
	for _, f := range u.Friends {
		if f != friendID {
			kept = append(kept, f)
		}
	}
	u.Friends = kept
	return nil
}

type memPosts struct{ m *Memory }

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Reactions = make(map[models.ReactionType]int, len(p.Reactions))
	for t, n := range p.Reactions {
		c.Reactions[t] = n
	}
	c.ReactedUsers = make(map[models.ReactionType]map[string]bool, len(p.ReactedUsers))
	for t, users := range p.ReactedUsers {
		inner := make(map[string]bool, len(users))
		for id, v := range users {
			inner[id] = v
		}
		c.ReactedUsers[t] = inner
	}
	return &c
}

func (s memPosts) Create(ctx context.Context, p *models.Post) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.posts[p.ID]; ok {
		return ErrDuplicate
	}
	s.m.posts[p.ID] = clonePost(p)
	return nil
}

func (s memPosts) Get(ctx context.Context, postID string) (*models.Post, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.posts[postID]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePost(p), nil
}

func (s memPosts) ListByAuthors(ctx context.Context, authorIDs []string, limit int) ([]*models.Post, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []*models.Post{}
	for _, p := range s.m.posts {
		if containsString(authorIDs, p.UserID) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memPosts) AttachImage(ctx context.Context, postID, imageKey string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.posts[postID]
	if !ok {
		return ErrNotFound
	}
	p.ImageKey = imageKey
	return nil
}

func (s memPosts) AddReaction(ctx context.Context, postID string, t models.ReactionType, userID string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.posts[postID]
	if !ok {
		return false, ErrNotFound
	}
	if p.ReactedUsers[t][userID] {
		return false, nil
	}
	if p.ReactedUsers == nil {
		p.ReactedUsers = map[models.ReactionType]map[string]bool{}
	}
	if p.ReactedUsers[t] == nil {
		p.ReactedUsers[t] = map[string]bool{}
	}
	if p.Reactions == nil {
		p.Reactions = models.EmptyReactions()
	}
	p.ReactedUsers[t][userID] = true
	p.Reactions[t]++
	return true, nil
}

func (s memPosts) RemoveReaction(ctx context.Context, postID string, t models.ReactionType, userID string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.posts[postID]
	if !ok {
		return false, ErrNotFound
	}
	if !p.ReactedUsers[t][userID] {
		return false, nil
	}
	delete(p.ReactedUsers[t], userID)
	if p.Reactions[t] > 0 {
		p.Reactions[t]--
	}
	return true, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
