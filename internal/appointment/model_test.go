package appointment

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"scheduled":  StatusScheduled,
		"Confirmed":  StatusConfirmed,
		"checked-in": StatusCheckedIn,
		"checked_in": StatusCheckedIn,
		"CheckedIn":  StatusCheckedIn,
		" cancelled": StatusCancelled,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatus("no-show")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseTimeOfDay(t *testing.T) {
	for in, want := range map[string]TimeOfDay{
		"09:00":   "09:00",
		"9:30":    "09:30",
		"23:59":   "23:59",
		"2:15 pm": "14:15",
	} {
		got, err := ParseTimeOfDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "24:00", "12:60", "noon"} {
		_, err := ParseTimeOfDay(in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}
}

func TestDateOf(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	instant := time.Date(2026, time.October, 18, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-10-18", FormatDate(DateOf(instant, time.UTC)))
	assert.Equal(t, "2026-10-17", FormatDate(DateOf(instant, ny)))

	d, err := ParseDate("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	_, err = ParseDate("19/10/2026")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", ErrSlotTaken), "slot_unavailable"},
		{ErrStaleStatus, "invalid_transition"},
		{ErrAppointmentNotFound, "not_found"},
		{unavailable("ping", errors.New("dial tcp")), "unavailable"},
		{ErrInvalidTemplate, "invalid_template"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
}
