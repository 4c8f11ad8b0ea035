package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"proveit/cache"
	"proveit/models"
	"proveit/store"
)

// UserService owns user documents and the per-user calendar.
type UserService struct {
	users    store.Users
	calendar *Calendar
	profiles *cache.TTL[*models.User]
	logger   *slog.Logger
}

func NewUserService(users store.Users, calendar *Calendar, profileTTL time.Duration, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		calendar: calendar,
		profiles: cache.NewTTL[*models.User](calendar.Clock(), profileTTL),
		logger:   logger,
	}
}

// EnsureRequest carries the identity fields known at sign-in.
type EnsureRequest struct {
	UserID      string
	Email       string
	DisplayName string
	PhotoURL    string
	TimeZone    string
}

// Ensure creates the user document on first sign-in with zeroed stats and
// an empty friend set. An existing document is returned unchanged.
func (s *UserService) Ensure(ctx context.Context, req EnsureRequest) (*models.User, error) {
	if err := validateID("user id", req.UserID); err != nil {
		return nil, err
	}
	if req.TimeZone != "" {
		if _, err := loadZone(req.TimeZone); err != nil {
			return nil, err
		}
	}
	u := &models.User{
		ID:          req.UserID,
		Email:       strings.TrimSpace(req.Email),
		DisplayName: strings.TrimSpace(req.DisplayName),
		PhotoURL:    req.PhotoURL,
		TimeZone:    req.TimeZone,
		Friends:     []string{},
		CreatedAt:   s.calendar.Clock().Now(),
	}
	stored, created, err := s.users.Ensure(ctx, u)
	if err != nil {
		return nil, persistErr("ensure user", err)
	}
	if created {
		s.logger.Info("user created", "userID", stored.ID)
	}
	s.profiles.Set(stored.ID, stored)
	return stored, nil
}

// Get reads the current user document, bypassing the profile cache.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	if err := validateID("user id", userID); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return u, nil
}

// Profile returns a possibly stale user document. Use it for display names
// and time zones, never for counters.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.profiles.Get(ctx, userID, func(ctx context.Context) (*models.User, error) {
		return s.Get(ctx, userID)
	})
}

// Invalidate drops the cached profile for userID.
func (s *UserService) Invalidate(userID string) {
	s.profiles.Invalidate(userID)
}

// DisplayName returns the user's name, or "User" when the document is
// missing or unreadable.
func (s *UserService) DisplayName(ctx context.Context, userID string) string {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("profile lookup failed", "userID", userID, "error", err)
		}
		return "User"
	}
	return u.Name()
}

// Now returns the current instant in the user's calendar.
func (s *UserService) Now(ctx context.Context, userID string) time.Time {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		u = nil
	}
	return s.calendar.Now(u)
}

// PurgeExpired drops stale cached profiles.
func (s *UserService) PurgeExpired() {
	s.profiles.Purge()
}
