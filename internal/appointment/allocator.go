package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FreeSlots returns the template slots for the weekday of date that no
// non-cancelled appointment holds, in chronological order. It always reads
// current bookings.
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error) {
	date = DateOf(date, time.UTC)

	tmpl, err := s.GetTemplate(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	day := tmpl.Day(date.Weekday())
	if !day.Available || len(day.Slots) == 0 {
		return []TimeOfDay{}, nil
	}

	occupied, err := s.repo.OccupiedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load occupied times: %w", err)
	}

	return subtractSlots(day.Slots, occupied), nil
}

// IsBookable reports whether at is currently free for the doctor on date.
func (s *Service) IsBookable(ctx context.Context, doctorID uuid.UUID, date time.Time, at TimeOfDay) (bool, error) {
	free, err := s.FreeSlots(ctx, doctorID, date)
	if err != nil {
		return false, err
	}
	for _, slot := range free {
		if slot == at {
			return true, nil
		}
	}
	return false, nil
}

func subtractSlots(slots, occupied []TimeOfDay) []TimeOfDay {
	held := make(map[TimeOfDay]struct{}, len(occupied))
	for _, t := range occupied {
		held[t] = struct{}{}
	}

	free := make([]TimeOfDay, 0, len(slots))
	for _, slot := range slots {
		if _, ok := held[slot]; !ok {
			free = append(free, slot)
		}
	}
	return free
}
