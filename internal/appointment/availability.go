package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// GetTemplate returns the doctor's weekly template. A doctor who never saved
// one gets an all-unavailable week.
func (s *Service) GetTemplate(ctx context.Context, doctorID uuid.UUID) (*WeeklyTemplate, error) {
	tmpl, err := s.repo.GetTemplate(ctx, doctorID)
	if errors.Is(err, ErrTemplateNotFound) {
		return &WeeklyTemplate{DoctorID: doctorID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return tmpl, nil
}

// SetTemplate replaces the doctor's template. Only the doctor may write it.
func (s *Service) SetTemplate(ctx context.Context, doctorID, requesterID uuid.UUID, days Week) (*WeeklyTemplate, error) {
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	if requesterID != doctorID {
		return nil, fmt.Errorf("%w: doctors manage only their own schedule", ErrUnauthorized)
	}

	normalized, err := normalizeWeek(days)
	if err != nil {
		return nil, err
	}

	var saved *WeeklyTemplate
	err = s.withLock(ctx, availabilityKey(doctorID), ErrUnavailable, func(lockCtx context.Context) error {
		var err error
		saved, err = s.repo.SaveTemplate(lockCtx, WeeklyTemplate{
			DoctorID:  doctorID,
			Days:      normalized,
			UpdatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int("slots", countSlots(normalized)).
		Msg("availability template saved")

	return saved, nil
}

// normalizeWeek validates a week and returns it with canonical slot values
// sorted chronologically. Empty slot lists come back nil.
func normalizeWeek(days Week) (Week, error) {
	var out Week
	for i, day := range days {
		if !day.Available {
			if len(day.Slots) > 0 {
				return Week{}, fmt.Errorf("%w: %s is unavailable but declares slots", ErrInvalidTemplate, weekdayName(i))
			}
			continue
		}

		out[i].Available = true
		if len(day.Slots) == 0 {
			continue
		}

		seen := make(map[TimeOfDay]struct{}, len(day.Slots))
		slots := make([]TimeOfDay, 0, len(day.Slots))
		for _, raw := range day.Slots {
			slot, err := ParseTimeOfDay(string(raw))
			if err != nil {
				return Week{}, fmt.Errorf("%w: %s: invalid slot %q", ErrInvalidTemplate, weekdayName(i), raw)
			}
			if _, dup := seen[slot]; dup {
				return Week{}, fmt.Errorf("%w: %s: duplicate slot %s", ErrInvalidTemplate, weekdayName(i), slot)
			}
			seen[slot] = struct{}{}
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(a, b int) bool { return slots[a] < slots[b] })
		out[i].Slots = slots
	}
	return out, nil
}

func countSlots(w Week) int {
	n := 0
	for _, d := range w {
		n += len(d.Slots)
	}
	return n
}
