package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process. It enforces the same
// one-holder-per-slot constraint as the Postgres unique index.
type MemoryRepository struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]User
	templates    map[uuid.UUID]WeeklyTemplate
	appointments map[uuid.UUID]Appointment
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[uuid.UUID]User),
		templates:    make(map[uuid.UUID]WeeklyTemplate),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

// PutUser registers a directory entry.
func (r *MemoryRepository) PutUser(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// UpsertUser matches PgRepository.UpsertUser so seeding works on either store.
func (r *MemoryRepository) UpsertUser(_ context.Context, u User) error {
	r.PutUser(u)
	return nil
}

func (r *MemoryRepository) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) GetTemplate(_ context.Context, doctorID uuid.UUID) (*WeeklyTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[doctorID]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	out := t.clone()
	return &out, nil
}

func (r *MemoryRepository) SaveTemplate(_ context.Context, tmpl WeeklyTemplate) (*WeeklyTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[tmpl.DoctorID] = tmpl.clone()
	out := tmpl.clone()
	return &out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) OccupiedTimes(_ context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []TimeOfDay
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Holds() {
			out = append(out, a.Time)
		}
	}
	return out, nil
}

// slotHeldLocked reports whether another non-cancelled appointment holds the
// slot. Callers hold r.mu.
func (r *MemoryRepository) slotHeldLocked(except, doctorID uuid.UUID, date time.Time, at TimeOfDay) bool {
	for _, a := range r.appointments {
		if a.ID != except && a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == at && a.Holds() {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Holds() && r.slotHeldLocked(a.ID, a.DoctorID, a.Date, a.Time) {
		return nil, ErrSlotTaken
	}

	stored := *a
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	r.appointments[stored.ID] = stored

	out := stored
	return &out, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrStaleStatus
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	if to != StatusPending {
		a.ExpiresAt = nil
	}
	r.appointments[id] = a

	out := a
	return &out, nil
}

func (r *MemoryRepository) MoveAppointment(_ context.Context, id uuid.UUID, from Status, date time.Time, at TimeOfDay) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrStaleStatus
	}
	if r.slotHeldLocked(id, a.DoctorID, date, at) {
		return nil, ErrSlotTaken
	}

	a.Date = date
	a.Time = at
	a.Status = StatusScheduled
	a.ExpiresAt = nil
	a.UpdatedAt = time.Now()
	r.appointments[id] = a

	out := a
	return &out, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.RLock()
	out := make([]Appointment, 0, len(r.appointments))
	for _, a := range r.appointments {
		if f.matches(a) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sortAppointments(out)
	return paginate(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepository) FindExpiredPending(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *MemoryRepository) ListEvents(_ context.Context, appointmentID uuid.UUID) ([]EventLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []EventLog{}
	for _, ev := range r.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == appointmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }
