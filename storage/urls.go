package storage

import (
	"context"
	"time"

	"proveit/cache"
	"proveit/clock"
)

// Presigner issues temporary object URLs.
type Presigner interface {
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// URLCache hands out presigned URLs, reusing each one for ttl. URLs are
// signed to outlive their cache entry by presignMargin.
type URLCache struct {
	presigner Presigner
	ttl       time.Duration
	urls      *cache.TTL[string]
}

const presignMargin = 15 * time.Minute

func NewURLCache(p Presigner, c clock.Clock, ttl time.Duration) *URLCache {
	return &URLCache{presigner: p, ttl: ttl, urls: cache.NewTTL[string](c, ttl)}
}

func (u *URLCache) URL(ctx context.Context, key string) (string, error) {
	return u.urls.Get(ctx, key, func(ctx context.Context) (string, error) {
		return u.presigner.PresignedURL(ctx, key, u.ttl+presignMargin)
	})
}

// Purge drops expired URLs.
func (u *URLCache) Purge() {
	u.urls.Purge()
}
