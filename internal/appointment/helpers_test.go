package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/lock"
)

// fixedNow is a Saturday.
var fixedNow = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    *MemoryRepository
	pub     *recordingPublisher
	clock   *time.Time
	doctor  User
	patient User
	other   User
	staff   User
	admin   User
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Config{
		ClinicLocation: time.UTC,
		PendingTTL:     time.Hour,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	now := fixedNow
	f := &fixture{
		repo:    NewMemoryRepository(),
		pub:     &recordingPublisher{},
		clock:   &now,
		doctor:  User{ID: uuid.New(), Role: RoleDoctor, Name: "Dr. Adaeze Okafor"},
		patient: User{ID: uuid.New(), Role: RolePatient, Name: "Tomas Lindqvist"},
		other:   User{ID: uuid.New(), Role: RolePatient, Name: "Priya Raman"},
		staff:   User{ID: uuid.New(), Role: RoleStaff, Name: "Front Desk"},
		admin:   User{ID: uuid.New(), Role: RoleAdmin, Name: "Ops Admin"},
	}
	for _, u := range []User{f.doctor, f.patient, f.other, f.staff, f.admin} {
		f.repo.PutUser(u)
	}

	f.svc = NewService(f.repo, lock.NewLocal(0), cfg,
		WithPublisher(f.pub),
		WithClock(func() time.Time { return *f.clock }),
	)
	return f
}

func (f *fixture) actor(u User) Actor { return ActorOf(&u) }

// nextWeekday returns the first date strictly after fixedNow on wd.
func nextWeekday(wd time.Weekday) time.Time {
	d := DateOf(fixedNow, time.UTC).AddDate(0, 0, 1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func mondayWeek(slots ...TimeOfDay) Week {
	var w Week
	w[time.Monday] = DayAvailability{Available: true, Slots: slots}
	return w
}

func (f *fixture) setMonday(t *testing.T, slots ...TimeOfDay) {
	t.Helper()
	_, err := f.svc.SetTemplate(context.Background(), f.doctor.ID, f.doctor.ID, mondayWeek(slots...))
	require.NoError(t, err)
}

func (f *fixture) request(patient User, date time.Time, at TimeOfDay) BookingRequest {
	return BookingRequest{
		PatientID:  patient.ID,
		DoctorID:   f.doctor.ID,
		Date:       date,
		Time:       at,
		Department: "Cardiology",
		Type:       "consultation",
		Notes:      "follow-up on ECG",
	}
}

func (f *fixture) book(t *testing.T, patient User, date time.Time, at TimeOfDay) *Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), f.actor(patient), f.request(patient, date, at))
	require.NoError(t, err)
	return appt
}
