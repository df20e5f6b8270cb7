package appointment

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Every rejected operation wraps exactly one
// of these so the API layer can map it to an actionable response.
var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidTemplate   = errors.New("invalid template")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrNotFound          = errors.New("not found")
	ErrUnavailable       = errors.New("storage unavailable")
)

// Storage-level conditions. Each one already carries its caller-facing kind.
var (
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrTemplateNotFound    = errors.New("template not found")
	ErrSlotTaken           = fmt.Errorf("%w: already held by another appointment", ErrSlotUnavailable)
	ErrStaleStatus         = fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrValidation, "validation_error"},
	{ErrInvalidDate, "invalid_date"},
	{ErrInvalidTemplate, "invalid_template"},
	{ErrUnauthorized, "unauthorized"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrSlotUnavailable, "slot_unavailable"},
	{ErrNotFound, "not_found"},
	{ErrUnavailable, "unavailable"},
}

// KindOf names the error kind of err, or "internal_error".
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal_error"
}
