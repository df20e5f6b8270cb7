package appointment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTemplate_DefaultsToUnavailableWeek(t *testing.T) {
	f := newFixture(t)

	tmpl, err := f.svc.GetTemplate(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, tmpl.DoctorID)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		assert.False(t, tmpl.Day(wd).Available, wd)
		assert.Empty(t, tmpl.Day(wd).Slots, wd)
	}

	free, err := f.svc.FreeSlots(context.Background(), f.doctor.ID, nextWeekday(time.Monday))
	require.NoError(t, err)
	assert.NotNil(t, free)
	assert.Empty(t, free)
}

func TestSetTemplate_RoundTripNormalizes(t *testing.T) {
	f := newFixture(t)

	var w Week
	w[time.Monday] = DayAvailability{Available: true, Slots: []TimeOfDay{"14:00", "9:00", "10:30"}}
	w[time.Friday] = DayAvailability{Available: true, Slots: []TimeOfDay{}}

	saved, err := f.svc.SetTemplate(context.Background(), f.doctor.ID, f.doctor.ID, w)
	require.NoError(t, err)
	assert.Equal(t, []TimeOfDay{"09:00", "10:30", "14:00"}, saved.Day(time.Monday).Slots)

	got, err := f.svc.GetTemplate(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Days, got.Days)
	assert.True(t, got.Day(time.Friday).Available)
	assert.Nil(t, got.Day(time.Friday).Slots)

	free, err := f.svc.FreeSlots(context.Background(), f.doctor.ID, nextWeekday(time.Friday))
	require.NoError(t, err)
	assert.Empty(t, free, "available day without slots offers nothing")
}

func TestSetTemplate_Rejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetTemplate(context.Background(), f.doctor.ID, f.staff.ID, mondayWeek("09:00"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.SetTemplate(context.Background(), uuid.Nil, uuid.Nil, mondayWeek("09:00"))
	assert.ErrorIs(t, err, ErrValidation)

	cases := map[string]Week{
		"bad format": mondayWeek("9am-ish"),
		"duplicate":  mondayWeek("09:00", "9:00"),
		"unavailable with slots": func() Week {
			var w Week
			w[time.Sunday] = DayAvailability{Available: false, Slots: []TimeOfDay{"10:00"}}
			return w
		}(),
	}
	for name, w := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SetTemplate(context.Background(), f.doctor.ID, f.doctor.ID, w)
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}

	tmpl, err := f.svc.GetTemplate(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.False(t, tmpl.Day(time.Monday).Available, "rejected templates are not stored")
}

func TestSetTemplate_ReplacesWholeWeek(t *testing.T) {
	f := newFixture(t)
	f.setMonday(t, "09:00")

	var w Week
	w[time.Tuesday] = DayAvailability{Available: true, Slots: []TimeOfDay{"11:00"}}
	_, err := f.svc.SetTemplate(context.Background(), f.doctor.ID, f.doctor.ID, w)
	require.NoError(t, err)

	got, err := f.svc.GetTemplate(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.False(t, got.Day(time.Monday).Available)
	assert.Equal(t, []TimeOfDay{"11:00"}, got.Day(time.Tuesday).Slots)
}

func TestFreeSlots_IgnoresCancelledAndOtherDoctors(t *testing.T) {
	f := newFixture(t)
	f.setMonday(t, "09:00", "10:00", "11:00")
	monday := nextWeekday(time.Monday)

	a := f.book(t, f.patient, monday, "10:00")
	f.book(t, f.other, monday, "11:00")
	_, err := f.svc.Transition(context.Background(), a.ID, f.actor(f.patient), StatusCancelled)
	require.NoError(t, err)

	free, err := f.svc.FreeSlots(context.Background(), f.doctor.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []TimeOfDay{"09:00", "10:00"}, free)

	free, err = f.svc.FreeSlots(context.Background(), f.doctor.ID, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, []TimeOfDay{"09:00", "10:00", "11:00"}, free, "bookings are per date")

	ok, err := f.svc.IsBookable(context.Background(), f.doctor.ID, monday, "11:00")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWeekJSON(t *testing.T) {
	var w Week
	w[time.Wednesday] = DayAvailability{Available: true, Slots: []TimeOfDay{"08:30"}}

	data, err := json.Marshal(w)
	require.NoError(t, err)

	var raw map[string]DayAvailability
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 7)
	assert.Equal(t, []TimeOfDay{"08:30"}, raw["wednesday"].Slots)
	assert.Equal(t, []TimeOfDay{}, raw["sunday"].Slots)

	var back Week
	require.NoError(t, json.Unmarshal([]byte(`{"wed":{"available":true,"slots":["08:30"]}}`), &back))
	assert.True(t, back[time.Wednesday].Available)

	err = json.Unmarshal([]byte(`{"funday":{"available":true}}`), &back)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	err = json.Unmarshal([]byte(`{"mon":{"available":true,"slots":["09:00"]},"monday":{"available":false}}`), &back)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}
