package appointment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := map[Status][]Status{
		StatusPending:     {StatusScheduled, StatusConfirmed, StatusCancelled},
		StatusScheduled:   {StatusConfirmed, StatusRescheduled, StatusCancelled},
		StatusConfirmed:   {StatusCheckedIn, StatusRescheduled, StatusCancelled},
		StatusCheckedIn:   {StatusCompleted, StatusCancelled},
		StatusRescheduled: {StatusCancelled},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, s := range legal[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransition_Roles(t *testing.T) {
	patient := uuid.New()
	doctor := uuid.New()
	appt := func(st Status) *Appointment {
		return &Appointment{ID: uuid.New(), PatientID: patient, DoctorID: doctor, Status: st}
	}

	tests := []struct {
		name  string
		actor Actor
		from  Status
		to    Status
		want  error
	}{
		{"staff confirms", Actor{uuid.New(), RoleStaff}, StatusScheduled, StatusConfirmed, nil},
		{"admin confirms", Actor{uuid.New(), RoleAdmin}, StatusPending, StatusConfirmed, nil},
		{"patient cannot confirm", Actor{patient, RolePatient}, StatusScheduled, StatusConfirmed, ErrForbidden},
		{"patient cannot complete", Actor{patient, RolePatient}, StatusCheckedIn, StatusCompleted, ErrForbidden},
		{"patient cancels own", Actor{patient, RolePatient}, StatusConfirmed, StatusCancelled, nil},
		{"patient cannot cancel others", Actor{uuid.New(), RolePatient}, StatusConfirmed, StatusCancelled, ErrForbidden},
		{"own doctor checks in", Actor{doctor, RoleDoctor}, StatusConfirmed, StatusCheckedIn, nil},
		{"other doctor cannot check in", Actor{uuid.New(), RoleDoctor}, StatusConfirmed, StatusCheckedIn, ErrForbidden},
		{"admin cannot check in", Actor{uuid.New(), RoleAdmin}, StatusConfirmed, StatusCheckedIn, ErrForbidden},
		{"staff completes", Actor{uuid.New(), RoleStaff}, StatusCheckedIn, StatusCompleted, nil},
		{"completed is terminal", Actor{uuid.New(), RoleStaff}, StatusCompleted, StatusCancelled, ErrInvalidTransition},
		{"cancelled is terminal", Actor{patient, RolePatient}, StatusCancelled, StatusCancelled, ErrInvalidTransition},
		{"skip confirmation", Actor{uuid.New(), RoleStaff}, StatusScheduled, StatusCheckedIn, ErrInvalidTransition},
		{"patient marks rescheduled", Actor{patient, RolePatient}, StatusScheduled, StatusRescheduled, nil},
		{"staff cannot return to pending", Actor{uuid.New(), RoleStaff}, StatusScheduled, StatusPending, ErrInvalidTransition},
		{"admin cannot return to pending", Actor{uuid.New(), RoleAdmin}, StatusConfirmed, StatusPending, ErrInvalidTransition},
		{"own doctor cannot return to pending", Actor{doctor, RoleDoctor}, StatusScheduled, StatusPending, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTransition(tt.actor, appt(tt.from), tt.to)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAllowedTransitions(t *testing.T) {
	patient := uuid.New()
	doctor := uuid.New()
	a := &Appointment{PatientID: patient, DoctorID: doctor, Status: StatusConfirmed}

	assert.Equal(t,
		[]Status{StatusRescheduled, StatusCancelled},
		AllowedTransitions(Actor{patient, RolePatient}, a))
	assert.Equal(t,
		[]Status{StatusCheckedIn, StatusRescheduled, StatusCancelled},
		AllowedTransitions(Actor{doctor, RoleDoctor}, a))
	assert.Empty(t, AllowedTransitions(Actor{uuid.New(), RoleDoctor}, a))

	a.Status = StatusCompleted
	assert.Empty(t, AllowedTransitions(Actor{uuid.New(), RoleStaff}, a))
}
