package services

import (
	"context"
	"log/slog"

	"proveit/store"
)

// FriendService keeps friendships symmetric across both user documents.
type FriendService struct {
	users    store.Users
	profiles *UserService
	logger   *slog.Logger
}

func NewFriendService(users store.Users, profiles *UserService, logger *slog.Logger) *FriendService {
	return &FriendService{users: users, profiles: profiles, logger: logger}
}

func (s *FriendService) validate(userID, friendID string) error {
	if err := validateID("user id", userID); err != nil {
		return err
	}
	if err := validateID("friend id", friendID); err != nil {
		return err
	}
	if userID == friendID {
		return invalid("cannot befriend yourself")
	}
	return nil
}

// Add links both users. Both must exist.
func (s *FriendService) Add(ctx context.Context, userID, friendID string) error {
	if err := s.validate(userID, friendID); err != nil {
		return err
	}
	if _, err := s.users.Get(ctx, friendID); err != nil {
		return storeErr("add friend", err)
	}
	if err := s.users.AddFriend(ctx, userID, friendID); err != nil {
		return storeErr("add friend", err)
	}
	if err := s.users.AddFriend(ctx, friendID, userID); err != nil {
		return storeErr("add friend", err)
	}
	s.profiles.Invalidate(userID)
	s.profiles.Invalidate(friendID)
	s.logger.Info("friends linked", "userID", userID, "friendID", friendID)
	return nil
}

// Remove unlinks both users. Removing a non-friend is a no-op.
func (s *FriendService) Remove(ctx context.Context, userID, friendID string) error {
	if err := s.validate(userID, friendID); err != nil {
		return err
	}
	if err := s.users.RemoveFriend(ctx, userID, friendID); err != nil {
		return storeErr("remove friend", err)
	}
	if err := s.users.RemoveFriend(ctx, friendID, userID); err != nil && !isNotFound(err) {
		return persistErr("remove friend", err)
	}
	s.profiles.Invalidate(userID)
	s.profiles.Invalidate(friendID)
	s.logger.Info("friends unlinked", "userID", userID, "friendID", friendID)
	return nil
}
