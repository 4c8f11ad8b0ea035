package models

import (
	"time"
)

// Frequency is how often a goal is expected to be completed.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// Goal defines a recurring goal owned by a single user
type Goal struct {
	ID               string     `bson:"_id" json:"id"`
	UserID           string     `bson:"userId" json:"userId"`
	Title            string     `bson:"title" json:"title"`
	Frequency        Frequency  `bson:"frequency" json:"frequency"`
	DueTime          string     `bson:"dueTime" json:"dueTime"` // "H:MM AM" / "H:MM PM"
	CompletedDates   []string   `bson:"completedDates" json:"completedDates"`
	LastCompleted    *time.Time `bson:"lastCompleted,omitempty" json:"lastCompleted,omitempty"`
	LastCompletedDay string     `bson:"lastCompletedDay,omitempty" json:"lastCompletedDay,omitempty"`
	CurrentStreak    int        `bson:"currentStreak" json:"currentStreak"`
	LongestStreak    int        `bson:"longestStreak" json:"longestStreak"`
	TotalCompletions int        `bson:"totalCompletions" json:"totalCompletions"`
	MissedToday      bool       `bson:"missedToday" json:"missedToday"`
	MissedOn         string     `bson:"missedOn,omitempty" json:"missedOn,omitempty"`
	WarnedOn         string     `bson:"warnedOn,omitempty" json:"-"`
	Revision         int64      `bson:"revision" json:"-"`
	CreatedAt        time.Time  `bson:"createdAt" json:"createdAt"`
}

// CompletedOn reports whether the goal has a completion on the given day key.
func (g *Goal) CompletedOn(day string) bool {
	return g.LastCompletedDay == day
}

// MissedOnDay reports whether the missed flag is set and refers to day.
func (g *Goal) MissedOnDay(day string) bool {
	return g.MissedToday && g.MissedOn == day
}
