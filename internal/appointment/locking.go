package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/lock"
)

func slotKey(doctorID uuid.UUID, date time.Time, at TimeOfDay) string {
	return fmt.Sprintf("slot:%s:%s:%s", doctorID, FormatDate(date), at)
}

func appointmentKey(id uuid.UUID) string {
	return "appointment:" + id.String()
}

func availabilityKey(doctorID uuid.UUID) string {
	return "availability:" + doctorID.String()
}

func weekdayName(i int) string {
	return time.Weekday(i).String()
}

// withLock runs fn under key. Losing the wait is reported as contended; a
// broken lock backend or an ended request context as ErrUnavailable.
func (s *Service) withLock(ctx context.Context, key string, contended error, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, key, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lock.ErrNotAcquired):
		return fmt.Errorf("%w: %s is busy", contended, key)
	case errors.Is(err, lock.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if KindOf(err) != "internal_error" {
			return err
		}
		return fmt.Errorf("%w: waiting for %s: %w", ErrUnavailable, key, err)
	}
	return err
}

func (s *Service) withSlotLock(ctx context.Context, doctorID uuid.UUID, date time.Time, at TimeOfDay, fn func(ctx context.Context) error) error {
	return s.withLock(ctx, slotKey(doctorID, date, at), ErrSlotUnavailable, fn)
}

func (s *Service) withAppointmentLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	return s.withLock(ctx, appointmentKey(id), ErrUnavailable, fn)
}
