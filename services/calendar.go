package services

import (
	"time"

	"proveit/clock"
	"proveit/models"
)

// DayLayout formats calendar-day keys.
const DayLayout = "2006-01-02"

func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// PreviousDayKey returns the day key of the calendar day before t, in t's
// location. Calendar arithmetic keeps DST transitions from skipping a day.
func PreviousDayKey(t time.Time) string {
	y, m, d := t.Date()
	return time.Date(y, m, d-1, 12, 0, 0, 0, t.Location()).Format(DayLayout)
}

// Calendar resolves "now" in a user's time zone.
type Calendar struct {
	clock    clock.Clock
	fallback *time.Location
}

// NewCalendar builds a Calendar whose fallback zone is defaultZone. An empty
// zone or "Local" means the server's local time.
func NewCalendar(c clock.Clock, defaultZone string) (*Calendar, error) {
	loc, err := loadZone(defaultZone)
	if err != nil {
		return nil, err
	}
	return &Calendar{clock: c, fallback: loc}, nil
}

func loadZone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, invalid("unknown time zone %q", name)
	}
	return loc, nil
}

// Location returns the user's zone, or the fallback when unset or unknown.
func (c *Calendar) Location(u *models.User) *time.Location {
	if u == nil || u.TimeZone == "" {
		return c.fallback
	}
	loc, err := loadZone(u.TimeZone)
	if err != nil {
		return c.fallback
	}
	return loc
}

// Now returns the current instant in the user's zone.
func (c *Calendar) Now(u *models.User) time.Time {
	return c.clock.Now().In(c.Location(u))
}

func (c *Calendar) Clock() clock.Clock { return c.clock }
