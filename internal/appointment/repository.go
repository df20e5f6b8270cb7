package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserDirectory resolves identities owned outside this package.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
}

// AvailabilityRepository stores one weekly template per doctor. SaveTemplate
// replaces the stored template as a whole.
type AvailabilityRepository interface {
	GetTemplate(ctx context.Context, doctorID uuid.UUID) (*WeeklyTemplate, error)
	SaveTemplate(ctx context.Context, tmpl WeeklyTemplate) (*WeeklyTemplate, error)
}

// Repository contains all storage interactions needed by the service.
type Repository interface {
	UserDirectory
	AvailabilityRepository

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// OccupiedTimes returns the times held by non-cancelled appointments.
	OccupiedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error)

	// CreateAppointment must reject a second non-cancelled appointment on the
	// same (doctor, date, time) with ErrSlotTaken.
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)

	// UpdateAppointmentStatus is conditional on the current status being from;
	// it returns ErrStaleStatus when another writer got there first.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// MoveAppointment sets a new (date, time) and status scheduled in one
	// write, conditional on from. ErrSlotTaken leaves the row untouched.
	MoveAppointment(ctx context.Context, id uuid.UUID, from Status, date time.Time, at TimeOfDay) (*Appointment, error)

	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
	ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error)

	Ping(ctx context.Context) error
}

// Publisher delivers committed changes to external listeners.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
