package appointment

import (
	"context"
	"fmt"
	"sort"
)

// List returns appointments matching f ordered by date, then time, so
// repeated calls with identical filters page identically. It has no side
// effects.
func (s *Service) List(ctx context.Context, f Filter) ([]Appointment, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrValidation)
	}
	if f.Dates.From != nil && f.Dates.To != nil && f.Dates.To.Before(*f.Dates.From) {
		return nil, fmt.Errorf("%w: date range ends before it starts", ErrValidation)
	}

	out, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

// ListFor scopes a listing to what actor may see: patients only ever get
// their own appointments.
func (s *Service) ListFor(ctx context.Context, actor Actor, f Filter) ([]Appointment, error) {
	if actor.Role == RolePatient {
		if f.PatientID != nil && *f.PatientID != actor.ID {
			return nil, fmt.Errorf("%w: patients list only their own appointments", ErrForbidden)
		}
		id := actor.ID
		f.PatientID = &id
	}
	return s.List(ctx, f)
}

func (f Filter) matches(a Appointment) bool {
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.Department != "" && a.Department != f.Department {
		return false
	}
	if f.Dates.From != nil && a.Date.Before(*f.Dates.From) {
		return false
	}
	if f.Dates.To != nil && a.Date.After(*f.Dates.To) {
		return false
	}
	return true
}

// sortAppointments orders by date, time, then creation and id so ties are
// deterministic.
func sortAppointments(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

func paginate(appts []Appointment, limit, offset int) []Appointment {
	if offset >= len(appts) {
		return []Appointment{}
	}
	appts = appts[offset:]
	if limit > 0 && limit < len(appts) {
		appts = appts[:limit]
	}
	return appts
}
