package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"proveit/clock"
	"proveit/models"
	"proveit/store"
	"proveit/utils"
)

// ErrPostExists is returned by CreatePost when a post with the requested ID
// is already stored.
var ErrPostExists = errors.New("post already exists")

// Publisher delivers feed events to live subscribers. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev models.FeedEvent)
}

// ImageURLs resolves a stored image key to a URL a client can fetch.
type ImageURLs interface {
	URL(ctx context.Context, key string) (string, error)
}

// NewPost describes a post to materialize. ID is optional; callers that need
// idempotent creation pass a deterministic one.
type NewPost struct {
	ID       string
	AuthorID string
	Content  models.PostContent
}

// FeedService persists typed feed posts and serves the feed.
type FeedService struct {
	posts     store.Posts
	users     *UserService
	images    ImageURLs
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

func NewFeedService(posts store.Posts, users *UserService, images ImageURLs, publisher Publisher, c clock.Clock, logger *slog.Logger) *FeedService {
	return &FeedService{posts: posts, users: users, images: images, publisher: publisher, clock: c, logger: logger}
}

// CreatePost stores the post with a server timestamp and zeroed reaction
// counters, then publishes it. It returns ErrPostExists when np.ID is taken.
func (f *FeedService) CreatePost(ctx context.Context, np NewPost) (string, error) {
	if err := validateID("author id", np.AuthorID); err != nil {
		return "", err
	}
	if np.Content == nil {
		return "", invalid("post content is required")
	}
	id := np.ID
	if id == "" {
		id = uuid.NewString()
	} else if err := validateID("post id", id); err != nil {
		return "", err
	}

	post := models.NewPost(id, np.Content, np.AuthorID, f.users.DisplayName(ctx, np.AuthorID), f.clock.Now())
	if err := f.posts.Create(ctx, post); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return id, ErrPostExists
		}
		return "", persistErr("create post", err)
	}
	f.logger.Info("post created", "postID", id, "type", post.Type, "userID", np.AuthorID)
	f.publish(ctx, models.EventPostCreated, post)
	return id, nil
}

// AttachImage records the stored image key on a proof post.
func (f *FeedService) AttachImage(ctx context.Context, postID, key string) error {
	if err := f.posts.AttachImage(ctx, postID, key); err != nil {
		return storeErr("attach image", err)
	}
	return nil
}

func (f *FeedService) publish(ctx context.Context, eventType string, post *models.Post) {
	if f.publisher == nil {
		return
	}
	audience := []string{post.UserID}
	if author, err := f.users.Get(ctx, post.UserID); err == nil {
		audience = append(audience, author.Friends...)
	}
	f.publisher.Publish(ctx, models.FeedEvent{
		Type:      eventType,
		AuthorID:  post.UserID,
		Audience:  audience,
		Post:      post,
		Timestamp: f.clock.Now(),
	})
}

// Feed scopes.
const (
	ScopeFriends = "friends"
	ScopeMine    = "mine"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
)

// FeedItem is a post prepared for one viewer.
type FeedItem struct {
	*models.Post
	DisplayTime string                       `json:"displayTime"`
	Reacted     map[models.ReactionType]bool `json:"reacted"`
}

// Feed lists posts for viewerID, newest first. The friends scope covers the
// viewer's friends; the mine scope covers the viewer's own posts.
func (f *FeedService) Feed(ctx context.Context, viewerID, scope string, limit int) ([]FeedItem, error) {
	viewer, err := f.users.Get(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	var authors []string
	switch scope {
	case "", ScopeFriends:
		authors = viewer.Friends
	case ScopeMine:
		authors = []string{viewer.ID}
	default:
		return nil, invalid("unknown feed scope %q", scope)
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	if len(authors) == 0 {
		return []FeedItem{}, nil
	}

	posts, err := f.posts.ListByAuthors(ctx, authors, limit)
	if err != nil {
		return nil, persistErr("list feed", err)
	}
	now := f.users.calendar.Now(viewer)
	items := make([]FeedItem, 0, len(posts))
	for _, p := range posts {
		f.resolveImage(ctx, p)
		items = append(items, FeedItem{
			Post:        p,
			DisplayTime: utils.FormatFeedTime(p.Timestamp, now),
			Reacted:     p.ReactedBy(viewerID),
		})
	}
	return items, nil
}

func (f *FeedService) get(ctx context.Context, postID string) (*models.Post, error) {
	p, err := f.posts.Get(ctx, postID)
	if err != nil {
		return nil, storeErr("get post", err)
	}
	return p, nil
}

// ImageURL returns a fetchable URL for the post's proof image.
func (f *FeedService) ImageURL(ctx context.Context, postID string) (string, error) {
	if err := validateID("post id", postID); err != nil {
		return "", err
	}
	p, err := f.posts.Get(ctx, postID)
	if err != nil {
		return "", storeErr("get post", err)
	}
	if p.ImageKey == "" || f.images == nil {
		return "", ErrNotFound
	}
	url, err := f.images.URL(ctx, p.ImageKey)
	if err != nil {
		return "", persistErr("resolve image", err)
	}
	return url, nil
}

func (f *FeedService) resolveImage(ctx context.Context, p *models.Post) {
	if p.ImageKey == "" || f.images == nil {
		return
	}
	url, err := f.images.URL(ctx, p.ImageKey)
	if err != nil {
		f.logger.Warn("image url lookup failed", "postID", p.ID, "error", err)
		return
	}
	p.ImageURL = url
}
