package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/lock"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentTransition  = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentExpired     = "APPOINTMENT_EXPIRED"
)

type Service struct {
	repo      Repository
	locker    lock.Locker
	publisher Publisher
	log       zerolog.Logger
	now       func() time.Time

	location       *time.Location
	pendingTTL     time.Duration
	patientPending bool
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides time.Now, used for "today" and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker lock.Locker, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		locker:         locker,
		publisher:      nopPublisher{},
		log:            zerolog.Nop(),
		now:            time.Now,
		location:       cfg.ClinicLocation,
		pendingTTL:     cfg.PendingTTL,
		patientPending: cfg.PatientBookingsPending,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book reserves a free slot for a patient. The slot is re-checked and the
// appointment written while holding the (doctor, date, time) lock, so two
// concurrent requests for the same slot cannot both succeed.
func (s *Service) Book(ctx context.Context, actor Actor, req BookingRequest) (*Appointment, error) {
	req, err := s.validateBooking(req)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case RolePatient:
		if actor.ID != req.PatientID {
			return nil, fmt.Errorf("%w: patients book only for themselves", ErrForbidden)
		}
	case RoleDoctor:
		if actor.ID != req.DoctorID {
			return nil, fmt.Errorf("%w: doctors book only into their own schedule", ErrForbidden)
		}
	case RoleStaff, RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, actor.Role)
	}

	if err := s.requireRole(ctx, req.PatientID, RolePatient); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, req.DoctorID, RoleDoctor); err != nil {
		return nil, err
	}

	now := s.now()
	appt := &Appointment{
		ID:         uuid.New(),
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		Date:       req.Date,
		Time:       req.Time,
		Department: req.Department,
		Type:       req.Type,
		Notes:      req.Notes,
		Status:     StatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if actor.Role == RolePatient && s.patientPending {
		appt.Status = StatusPending
		if s.pendingTTL > 0 {
			expiresAt := now.Add(s.pendingTTL)
			appt.ExpiresAt = &expiresAt
		}
	}

	var created *Appointment
	err = s.withSlotLock(ctx, req.DoctorID, req.Date, req.Time, func(lockCtx context.Context) error {
		ok, err := s.IsBookable(lockCtx, req.DoctorID, req.Date, req.Time)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %s is not free", ErrSlotUnavailable, FormatDate(req.Date), req.Time)
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("patient_id", created.PatientID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("date", FormatDate(created.Date)).
		Str("time", created.Time.String()).
		Str("status", string(created.Status)).
		Msg("appointment booked")

	s.recordEvent(ctx, created, actor.ID, EventAppointmentBooked, map[string]any{
		"department": created.Department,
		"type":       created.Type,
		"expires_at": created.ExpiresAt,
	})

	return created, nil
}

func (s *Service) validateBooking(req BookingRequest) (BookingRequest, error) {
	var missing []string
	if req.PatientID == uuid.Nil {
		missing = append(missing, "patient_id")
	}
	if req.DoctorID == uuid.Nil {
		missing = append(missing, "doctor_id")
	}
	if req.Date.IsZero() {
		missing = append(missing, "date")
	}
	if req.Time == "" {
		missing = append(missing, "time")
	}
	req.Department = strings.TrimSpace(req.Department)
	if req.Department == "" {
		missing = append(missing, "department")
	}
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return req, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	at, err := ParseTimeOfDay(string(req.Time))
	if err != nil {
		return req, err
	}
	req.Time = at

	req.Date = DateOf(req.Date, time.UTC)
	if err := s.checkNotPast(req.Date); err != nil {
		return req, err
	}
	return req, nil
}

// checkNotPast accepts today (in the clinic time zone) and later.
func (s *Service) checkNotPast(date time.Time) error {
	today := DateOf(s.now(), s.location)
	if date.Before(today) {
		return fmt.Errorf("%w: %s is in the past", ErrInvalidDate, FormatDate(date))
	}
	return nil
}

func (s *Service) requireRole(ctx context.Context, id uuid.UUID, role Role) error {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return fmt.Errorf("load %s: %w", role, err)
	}
	if u.Role != role {
		return fmt.Errorf("%w: user %s is not a %s", ErrValidation, id, role)
	}
	return nil
}

// Reschedule moves an appointment to a new slot. The status change and the
// new reservation land in one conditional write: on failure the appointment
// still holds its old slot.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, actor Actor, newDate time.Time, newTime TimeOfDay) (*Appointment, error) {
	if newDate.IsZero() {
		return nil, fmt.Errorf("%w: missing date", ErrValidation)
	}
	at, err := ParseTimeOfDay(string(newTime))
	if err != nil {
		return nil, err
	}
	newDate = DateOf(newDate, time.UTC)
	if err := s.checkNotPast(newDate); err != nil {
		return nil, err
	}

	var before Appointment
	var moved *Appointment
	err = s.withAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, appt, StatusRescheduled); err != nil {
			return err
		}
		if !slices.Contains(reschedulable, appt.Status) {
			return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, appt.Status)
		}
		before = *appt

		return s.withSlotLock(lockCtx, appt.DoctorID, newDate, at, func(slotCtx context.Context) error {
			ok, err := s.IsBookable(slotCtx, appt.DoctorID, newDate, at)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s %s is not free", ErrSlotUnavailable, FormatDate(newDate), at)
			}

			moved, err = s.repo.MoveAppointment(slotCtx, id, appt.Status, newDate, at)
			if err != nil {
				return fmt.Errorf("move appointment: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", FormatDate(before.Date)+" "+before.Time.String()).
		Str("to", FormatDate(moved.Date)+" "+moved.Time.String()).
		Msg("appointment rescheduled")

	s.recordEvent(ctx, moved, actor.ID, EventAppointmentRescheduled, map[string]any{
		"from_status": before.Status,
		"from_date":   FormatDate(before.Date),
		"from_time":   before.Time,
		"to_date":     FormatDate(moved.Date),
		"to_time":     moved.Time,
	})

	return moved, nil
}

// Transition applies a status change under the appointment lock. A change
// to cancelled frees the slot: the allocator ignores cancelled appointments.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, actor Actor, to Status) (*Appointment, error) {
	if !actor.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, actor.Role)
	}

	var from Status
	var updated *Appointment
	err := s.withAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(actor, appt, to); err != nil {
			return err
		}
		from = appt.Status

		updated, err = s.repo.UpdateAppointmentStatus(lockCtx, id, from, to)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("appointment status changed")

	s.recordEvent(ctx, updated, actor.ID, EventAppointmentTransition, map[string]any{
		"from": from,
		"to":   to,
		"role": actor.Role,
	})

	return updated, nil
}

// GetAppointment returns one appointment. Patients see only their own.
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if actor.Role == RolePatient && appt.PatientID != actor.ID {
		return nil, fmt.Errorf("%w: appointment belongs to another patient", ErrForbidden)
	}
	return appt, nil
}

// History returns the event log of an appointment, oldest first.
func (s *Service) History(ctx context.Context, actor Actor, id uuid.UUID) ([]EventLog, error) {
	if _, err := s.GetAppointment(ctx, actor, id); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ExpirePendingAppointments cancels pending requests nobody confirmed before
// their expiry. It is intended to be called by the worker periodically.
func (s *Service) ExpirePendingAppointments(ctx context.Context) (int, error) {
	candidates, err := s.repo.FindExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		var updated *Appointment
		err := s.withAppointmentLock(ctx, appt.ID, func(lockCtx context.Context) error {
			var err error
			updated, err = s.repo.UpdateAppointmentStatus(lockCtx, appt.ID, StatusPending, StatusCancelled)
			return err
		})
		if errors.Is(err, ErrStaleStatus) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to expire appointment")
			continue
		}

		expired++
		s.recordEvent(ctx, updated, uuid.Nil, EventAppointmentExpired, map[string]any{
			"reason":     "expired",
			"expires_at": appt.ExpiresAt,
		})
	}

	return expired, nil
}

func (s *Service) recordEvent(ctx context.Context, appt *Appointment, actorID uuid.UUID, eventType string, payload map[string]any) {
	now := s.now()

	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appt.ID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     now,
	}
	if actorID != uuid.Nil {
		id := actorID
		ev.ActorID = &id
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("appointment_id", appt.ID.String()).Msg("failed to insert event log")
	}

	msg := Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          FormatDate(appt.Date),
		Time:          appt.Time,
		Status:        appt.Status,
		OccurredAt:    now,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("appointment_id", appt.ID.String()).Msg("failed to publish event")
	}
}
