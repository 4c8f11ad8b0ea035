package utils

import "time"

// FormatFeedTime renders a post timestamp relative to now, in now's location:
// "3:04PM" today, the weekday within the last week, "Jan 2" earlier this
// year, "Jan 2, 2006" otherwise.
func FormatFeedTime(t, now time.Time) string {
	if t.IsZero() {
		return "Unknown time"
	}
	t = t.In(now.Location())
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	switch {
	case ty == ny && tm == nm && td == nd:
		return t.Format("3:04PM")
	case t.After(now.Add(-7 * 24 * time.Hour)):
		return t.Weekday().String()
	case ty == ny:
		return t.Format("Jan 2")
	default:
		return t.Format("Jan 2, 2006")
	}
}
