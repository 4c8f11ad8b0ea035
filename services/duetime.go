package services

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var dueTimePattern = regexp.MustCompile(`^(1[0-2]|[1-9]):([0-5][0-9]) (AM|PM)$`)

// DueTime is a wall-clock deadline parsed from "H:MM AM" / "H:MM PM".
type DueTime struct {
	Hour   int // 0-23
	Minute int
}

// ParseDueTime parses s. 12 AM is midnight and 12 PM is noon.
func ParseDueTime(s string) (DueTime, error) {
	m := dueTimePattern.FindStringSubmatch(s)
	if m == nil {
		return DueTime{}, invalid("due time %q must look like \"9:00 PM\"", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	switch {
	case m[3] == "AM" && hour == 12:
		hour = 0
	case m[3] == "PM" && hour != 12:
		hour += 12
	}
	return DueTime{Hour: hour, Minute: minute}, nil
}

// On returns the due instant on the calendar date of day, in day's location.
func (d DueTime) On(day time.Time) time.Time {
	y, m, dd := day.Date()
	return time.Date(y, m, dd, d.Hour, d.Minute, 0, 0, day.Location())
}

func (d DueTime) String() string {
	hour, suffix := d.Hour, "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	if hour%12 == 0 {
		hour = 12
	} else {
		hour %= 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, d.Minute, suffix)
}

// IsPastDue reports whether now is strictly after today's due instant.
// Malformed due times are never past due.
func IsPastDue(dueTime string, now time.Time) bool {
	d, err := ParseDueTime(dueTime)
	if err != nil {
		return false
	}
	return now.After(d.On(now))
}
