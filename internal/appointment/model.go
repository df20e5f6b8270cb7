package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role acts as clinic staff in the lifecycle.
// Doctors are staff restricted to their own appointments.
func (r Role) IsStaff() bool {
	return r == RoleDoctor || r == RoleStaff
}

type User struct {
	ID        uuid.UUID
	Role      Role
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor is the identity on whose behalf an operation runs. It is trusted as
// given; authentication happens before it reaches this package.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func ActorOf(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

type Status string

const (
	StatusPending     Status = "pending"
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCheckedIn   Status = "checked-in"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

var allStatuses = []Status{
	StatusPending,
	StatusScheduled,
	StatusConfirmed,
	StatusCheckedIn,
	StatusCompleted,
	StatusCancelled,
	StatusRescheduled,
}

// ParseStatus accepts any capitalization and the "checked_in"/"checkedin"
// spellings that older dashboards send.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", "-")
	if norm == "checkedin" {
		norm = string(StatusCheckedIn)
	}
	for _, st := range allStatuses {
		if string(st) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TimeOfDay is a wall-clock slot value in 24h "HH:MM" form. The zero-padded
// form sorts chronologically as a string.
type TimeOfDay string

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		if t, err = time.Parse("3:04PM", strings.ToUpper(strings.ReplaceAll(s, " ", ""))); err != nil {
			return "", fmt.Errorf("%w: invalid time %q, want HH:MM", ErrValidation, s)
		}
	}
	return TimeOfDay(t.Format("15:04")), nil
}

func (t TimeOfDay) String() string { return string(t) }

const dateLayout = "2006-01-02"

// ParseDate parses a calendar day. The result is midnight UTC so dates
// compare and key consistently regardless of the clinic time zone.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", ErrValidation, s)
	}
	return d, nil
}

// DateOf truncates an instant to its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

type DayAvailability struct {
	Available bool        `json:"available"`
	Slots     []TimeOfDay `json:"slots"`
}

// Week is indexed by time.Weekday (Sunday = 0). On the wire it is an object
// keyed by lower-case weekday names.
type Week [7]DayAvailability

func (w Week) MarshalJSON() ([]byte, error) {
	m := make(map[string]DayAvailability, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		day := w[wd]
		if day.Slots == nil {
			day.Slots = []TimeOfDay{}
		}
		m[strings.ToLower(wd.String())] = day
	}
	return json.Marshal(m)
}

func (w *Week) UnmarshalJSON(data []byte) error {
	var m map[string]DayAvailability
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out Week
	var seen [7]bool
	for name, day := range m {
		wd, ok := parseWeekday(name)
		if !ok {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidTemplate, name)
		}
		if seen[wd] {
			return fmt.Errorf("%w: %s given more than once", ErrInvalidTemplate, strings.ToLower(wd.String()))
		}
		seen[wd] = true
		out[wd] = day
	}
	*w = out
	return nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if s == full || s == full[:3] {
			return wd, true
		}
	}
	return 0, false
}

// WeeklyTemplate is a doctor's recurring availability declaration.
type WeeklyTemplate struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Days      Week      `json:"days"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t WeeklyTemplate) Day(wd time.Weekday) DayAvailability {
	return t.Days[wd]
}

func (t WeeklyTemplate) clone() WeeklyTemplate {
	out := t
	for i := range out.Days {
		if t.Days[i].Slots != nil {
			out.Days[i].Slots = append([]TimeOfDay(nil), t.Days[i].Slots...)
		}
	}
	return out
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	DoctorID   uuid.UUID
	Date       time.Time
	Time       TimeOfDay
	Department string
	Type       string
	Notes      string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  *time.Time
}

// Holds reports whether the appointment occupies its (doctor, date, time).
func (a Appointment) Holds() bool {
	return a.Status != StatusCancelled
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	ActorID       *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Event is the message published to external listeners after a committed
// change.
type Event struct {
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          string    `json:"date"`
	Time          TimeOfDay `json:"time"`
	Status        Status    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type DateRange struct {
	From *time.Time
	To   *time.Time
}

type Filter struct {
	PatientID  *uuid.UUID
	DoctorID   *uuid.UUID
	Status     *Status
	Dates      DateRange
	Department string
	Limit      int
	Offset     int
}

type BookingRequest struct {
	PatientID  uuid.UUID
	DoctorID   uuid.UUID
	Date       time.Time
	Time       TimeOfDay
	Department string
	Type       string
	Notes      string
}
