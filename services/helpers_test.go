package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"proveit/clock"
	"proveit/models"
	"proveit/store"
)

var errStoreDown = errors.New("store unavailable")

// day1 is a Monday in UTC; tests run with UTC as the default zone.
var day1 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(day int, hour, minute int) time.Time {
	return day1.AddDate(0, 0, day-1).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.FeedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev models.FeedEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) Events() []models.FeedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.FeedEvent(nil), p.events...)
}

type memUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (u *memUploader) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if u.err != nil {
		return u.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.objects == nil {
		u.objects = map[string][]byte{}
	}
	u.objects[key] = data
	return nil
}

type staticImages struct{}

func (staticImages) URL(ctx context.Context, key string) (string, error) {
	return "https://img.test/" + key, nil
}

// faultyStore wraps a store and fails selected operations.
type faultyStore struct {
	store.Store
	posts *faultyPosts
	goals *faultyGoals
	users *faultyUsers
}

func (f *faultyStore) Posts() store.Posts { return f.posts }
func (f *faultyStore) Goals() store.Goals { return f.goals }
func (f *faultyStore) Users() store.Users { return f.users }

type faultyUsers struct {
	store.Users
	mu            sync.Mutex
	failIncrement int
}

func (u *faultyUsers) IncrementStat(ctx context.Context, userID, stat string, delta int) error {
	u.mu.Lock()
	if u.failIncrement > 0 {
		u.failIncrement--
		u.mu.Unlock()
		return errStoreDown
	}
	u.mu.Unlock()
	return u.Users.IncrementStat(ctx, userID, stat, delta)
}

type faultyPosts struct {
	store.Posts
	mu         sync.Mutex
	failCreate int
}

func (p *faultyPosts) Create(ctx context.Context, post *models.Post) error {
	p.mu.Lock()
	if p.failCreate > 0 {
		p.failCreate--
		p.mu.Unlock()
		return errStoreDown
	}
	p.mu.Unlock()
	return p.Posts.Create(ctx, post)
}

type faultyGoals struct {
	store.Goals
	failApply bool
}

func (g *faultyGoals) ApplyCompletion(ctx context.Context, userID, goalID string, u store.CompletionUpdate) (*models.Goal, error) {
	if g.failApply {
		return nil, errStoreDown
	}
	return g.Goals.ApplyCompletion(ctx, userID, goalID, u)
}

type env struct {
	clock    *clock.Manual
	mem      *store.Memory
	store    *faultyStore
	cal      *Calendar
	users    *UserService
	feed     *FeedService
	streaks  *StreakUpdater
	recorder *CompletionRecorder
	sweeper  *Sweeper
	ledger   *ReactionLedger
	goals    *GoalService
	friends  *FriendService
	proof    *ProofService
	pub      *recordingPublisher
	uploader *memUploader
	logs     *bytes.Buffer
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()
	e := &env{
		clock:    clock.NewManual(now),
		mem:      store.NewMemory(),
		pub:      &recordingPublisher{},
		uploader: &memUploader{},
		logs:     &bytes.Buffer{},
	}
	e.store = &faultyStore{
		Store: e.mem,
		posts: &faultyPosts{Posts: e.mem.Posts()},
		goals: &faultyGoals{Goals: e.mem.Goals()},
		users: &faultyUsers{Users: e.mem.Users()},
	}
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: e.logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cal, err := NewCalendar(e.clock, "UTC")
	require.NoError(t, err)
	e.cal = cal
	e.users = NewUserService(e.store.Users(), cal, 5*time.Minute, logger)
	e.feed = NewFeedService(e.store.Posts(), e.users, staticImages{}, e.pub, e.clock, logger)
	e.streaks = NewStreakUpdater(e.store, cal, logger)
	e.recorder = NewCompletionRecorder(e.store, e.users, e.streaks, logger)
	e.sweeper = NewSweeper(e.store, e.feed, cal, time.Hour, logger)
	e.ledger = NewReactionLedger(e.store, e.feed, logger)
	e.goals = NewGoalService(e.store, e.users, e.feed, logger)
	e.friends = NewFriendService(e.store.Users(), e.users, logger)
	e.proof = NewProofService(e.recorder, e.goals, e.feed, e.uploader, logger)
	return e
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (e *env) user(t *testing.T, id, name string) *models.User {
	t.Helper()
	u, err := e.users.Ensure(context.Background(), EnsureRequest{UserID: id, DisplayName: name, Email: id + "@example.test"})
	require.NoError(t, err)
	return u
}

// goal creates a goal through the service at the current clock time.
func (e *env) goal(t *testing.T, userID, title, due string) *models.Goal {
	t.Helper()
	g, err := e.goals.Create(context.Background(), userID, CreateGoalRequest{Title: title, Frequency: "daily", DueTime: due})
	require.NoError(t, err)
	return g
}

// seedGoal stores a goal directly, bypassing the feed announcement.
func (e *env) seedGoal(t *testing.T, g *models.Goal) *models.Goal {
	t.Helper()
	if g.ID == "" {
		g.ID = "goal-" + g.Title
	}
	if g.Frequency == "" {
		g.Frequency = models.FrequencyDaily
	}
	if g.CompletedDates == nil {
		g.CompletedDates = []string{}
	}
	require.NoError(t, e.mem.Goals().Create(context.Background(), g))
	return g
}

func (e *env) reload(t *testing.T, g *models.Goal) *models.Goal {
	t.Helper()
	got, err := e.mem.Goals().Get(context.Background(), g.UserID, g.ID)
	require.NoError(t, err)
	return got
}

func (e *env) postsOf(t *testing.T, userID string, typ models.PostType) []*models.Post {
	t.Helper()
	all, err := e.mem.Posts().ListByAuthors(context.Background(), []string{userID}, 0)
	require.NoError(t, err)
	var out []*models.Post
	for _, p := range all {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}
