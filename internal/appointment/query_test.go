package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_OrderingAndFilters(t *testing.T) {
	f := newFixture(t)
	var w Week
	w[time.Monday] = DayAvailability{Available: true, Slots: []TimeOfDay{"09:00", "10:00", "11:00"}}
	w[time.Tuesday] = DayAvailability{Available: true, Slots: []TimeOfDay{"08:00"}}
	_, err := f.svc.SetTemplate(context.Background(), f.doctor.ID, f.doctor.ID, w)
	require.NoError(t, err)

	monday := nextWeekday(time.Monday)
	tuesday := monday.AddDate(0, 0, 1)

	c := f.book(t, f.patient, tuesday, "08:00")
	b := f.book(t, f.other, monday, "11:00")
	a := f.book(t, f.patient, monday, "09:00")
	_, err = f.svc.Transition(context.Background(), b.ID, f.actor(f.other), StatusCancelled)
	require.NoError(t, err)

	all, err := f.svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID.String(), b.ID.String(), c.ID.String()}, ids(all))

	mine, err := f.svc.List(context.Background(), Filter{PatientID: &f.patient.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID.String(), c.ID.String()}, ids(mine))

	cancelled := StatusCancelled
	got, err := f.svc.List(context.Background(), Filter{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID.String()}, ids(got))

	got, err = f.svc.List(context.Background(), Filter{Dates: DateRange{From: &tuesday}})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID.String()}, ids(got))

	got, err = f.svc.List(context.Background(), Filter{Dates: DateRange{From: &monday, To: &monday}})
	require.NoError(t, err)
	assert.Len(t, got, 2, "range bounds are inclusive")

	got, err = f.svc.List(context.Background(), Filter{Department: "Dermatology"})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.svc.List(context.Background(), Filter{Dates: DateRange{From: &tuesday, To: &monday}})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.List(context.Background(), Filter{Limit: -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestList_Pagination(t *testing.T) {
	f := newFixture(t)
	f.setMonday(t, "09:00", "10:00", "11:00", "12:00", "13:00")
	monday := nextWeekday(time.Monday)
	for _, at := range []TimeOfDay{"13:00", "09:00", "12:00", "10:00", "11:00"} {
		f.book(t, f.patient, monday, at)
	}

	page1, err := f.svc.List(context.Background(), Filter{Limit: 2})
	require.NoError(t, err)
	page2, err := f.svc.List(context.Background(), Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	page3, err := f.svc.List(context.Background(), Filter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	beyond, err := f.svc.List(context.Background(), Filter{Offset: 10})
	require.NoError(t, err)

	var times []TimeOfDay
	for _, p := range [][]Appointment{page1, page2, page3} {
		for _, a := range p {
			times = append(times, a.Time)
		}
	}
	assert.Equal(t, []TimeOfDay{"09:00", "10:00", "11:00", "12:00", "13:00"}, times)
	assert.Empty(t, beyond)

	again, err := f.svc.List(context.Background(), Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, ids(page1), ids(again))
}

func TestListFor_PatientScope(t *testing.T) {
	f := newFixture(t)
	f.setMonday(t, "09:00", "10:00")
	monday := nextWeekday(time.Monday)
	mine := f.book(t, f.patient, monday, "09:00")
	f.book(t, f.other, monday, "10:00")

	got, err := f.svc.ListFor(context.Background(), f.actor(f.patient), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID.String()}, ids(got))

	_, err = f.svc.ListFor(context.Background(), f.actor(f.patient), Filter{PatientID: &f.other.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err = f.svc.ListFor(context.Background(), f.actor(f.staff), Filter{DoctorID: &f.doctor.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func ids(appts []Appointment) []string {
	out := make([]string, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.ID.String())
	}
	return out
}
