package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proveit/clock"
	"proveit/models"
)

func TestPreviousDayKey(t *testing.T) {
	assert.Equal(t, "2025-02-28", PreviousDayKey(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-12-31", PreviousDayKey(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-02-29", PreviousDayKey(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)))
}

func TestPreviousDayKeyAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// the day after spring-forward is only 23 hours from its predecessor
	assert.Equal(t, "2025-03-09", PreviousDayKey(time.Date(2025, 3, 10, 0, 30, 0, 0, ny)))
	assert.Equal(t, "2025-11-02", PreviousDayKey(time.Date(2025, 11, 3, 23, 30, 0, 0, ny)))
}

func TestCalendarLocation(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC))
	cal, err := NewCalendar(clk, "UTC")
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10", DayKey(cal.Now(nil)))
	assert.Equal(t, "2025-03-10", DayKey(cal.Now(&models.User{TimeZone: "Not/AZone"})))

	if _, err := time.LoadLocation("America/Los_Angeles"); err != nil {
		t.Skip("tzdata not available")
	}
	// 03:00 UTC is still the previous evening on the west coast
	assert.Equal(t, "2025-03-09", DayKey(cal.Now(&models.User{TimeZone: "America/Los_Angeles"})))
}

func TestNewCalendarRejectsUnknownZone(t *testing.T) {
	_, err := NewCalendar(clock.System{}, "Mars/Olympus")
	assert.ErrorIs(t, err, ErrValidation)

	cal, err := NewCalendar(clock.System{}, "Local")
	require.NoError(t, err)
	assert.Equal(t, time.Local, cal.Location(nil))
}
