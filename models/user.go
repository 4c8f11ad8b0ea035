package models

import (
	"strings"
	"time"
)

// Stat names addressable by field-scoped counter updates.
const (
	StatPostsCompleted = "postsCompleted"
	StatTomatoCount    = "tomatoCount"
)

// UserStats holds the per-user counters
type UserStats struct {
	PostsCompleted int `bson:"postsCompleted" json:"postsCompleted"`
	TomatoCount    int `bson:"tomatoCount" json:"tomatoCount"`
}

// User defines a user entity
type User struct {
	ID             string     `bson:"_id" json:"id"`
	Email          string     `bson:"email" json:"email"`
	DisplayName    string     `bson:"displayName" json:"displayName"`
	PhotoURL       string     `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	TimeZone       string     `bson:"timeZone,omitempty" json:"timeZone,omitempty"`
	Friends        []string   `bson:"friends" json:"friends"`
	Stats          UserStats  `bson:"stats" json:"stats"`
	CurrentStreak  int        `bson:"currentStreak" json:"currentStreak"`
	LongestStreak  int        `bson:"longestStreak" json:"longestStreak"`
	LastStreakDate *time.Time `bson:"lastStreakDate,omitempty" json:"lastStreakDate,omitempty"`
	LastStreakDay  string     `bson:"lastStreakDay,omitempty" json:"lastStreakDay,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
}

// Name returns the display name, or "User" when none is set.
func (u *User) Name() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return "User"
}

// HasFriend reports whether id is in the user's friend set.
func (u *User) HasFriend(id string) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}
