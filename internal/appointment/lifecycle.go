package appointment

import (
	"fmt"
	"slices"
)

// transitions is the authoritative table of legal status changes. Terminal
// statuses have no entry. rescheduled returns to scheduled only through
// Reschedule, which re-enters the allocator.
var transitions = map[Status][]Status{
	StatusPending:     {StatusScheduled, StatusConfirmed, StatusCancelled},
	StatusScheduled:   {StatusConfirmed, StatusRescheduled, StatusCancelled},
	StatusConfirmed:   {StatusCheckedIn, StatusRescheduled, StatusCancelled},
	StatusCheckedIn:   {StatusCompleted, StatusCancelled},
	StatusRescheduled: {StatusCancelled},
}

// targetRoles lists who may move an appointment into a status. Patients and
// doctors additionally need to own the appointment.
var targetRoles = map[Status][]Role{
	StatusScheduled:   {RoleStaff, RoleDoctor, RoleAdmin},
	StatusConfirmed:   {RoleStaff, RoleDoctor, RoleAdmin},
	StatusCheckedIn:   {RoleStaff, RoleDoctor},
	StatusCompleted:   {RoleStaff, RoleDoctor},
	StatusRescheduled: {RolePatient, RoleStaff, RoleDoctor, RoleAdmin},
	StatusCancelled:   {RolePatient, RoleStaff, RoleDoctor, RoleAdmin},
}

// reschedulable are the statuses Reschedule accepts.
var reschedulable = []Status{StatusScheduled, StatusConfirmed, StatusRescheduled}

func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// AllowedTransitions returns the statuses reachable from from by actor,
// letting the UI render only enabled actions.
func AllowedTransitions(actor Actor, a *Appointment) []Status {
	var out []Status
	for _, to := range transitions[a.Status] {
		if authorize(actor, a, to) == nil {
			out = append(out, to)
		}
	}
	return out
}

// authorize checks the actor's role and ownership for moving a into to,
// independent of a's current status.
func authorize(actor Actor, a *Appointment, to Status) error {
	if !slices.Contains(targetRoles[to], actor.Role) {
		return fmt.Errorf("%w: role %q may not set status %s", ErrForbidden, actor.Role, to)
	}
	if !owns(actor, a) {
		return fmt.Errorf("%w: appointment belongs to another %s", ErrForbidden, actor.Role)
	}
	return nil
}

// checkTransition validates a requested change. Authorization comes first so
// a patient asking for a staff-only status learns it is forbidden rather
// than merely out of order. A status no row leads into has nobody to
// authorize and is always out of order.
func checkTransition(actor Actor, a *Appointment, to Status) error {
	if _, ok := targetRoles[to]; !ok {
		return fmt.Errorf("%w: no transition leads to %s", ErrInvalidTransition, to)
	}
	if err := authorize(actor, a, to); err != nil {
		return err
	}
	if a.Status.Terminal() {
		return fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, a.Status)
	}
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	return nil
}

func owns(actor Actor, a *Appointment) bool {
	switch actor.Role {
	case RolePatient:
		return a.PatientID == actor.ID
	case RoleDoctor:
		return a.DoctorID == actor.ID
	case RoleStaff, RoleAdmin:
		return true
	}
	return false
}
