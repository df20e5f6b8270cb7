// Package seed fills a user directory and doctor templates with fake data.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
)

// UserWriter stores directory entries. Both repositories implement it.
type UserWriter interface {
	UpsertUser(ctx context.Context, u appointment.User) error
}

type Counts struct {
	Doctors  int
	Staff    int
	Patients int
}

// Result holds the users created by Populate, grouped by role.
type Result struct {
	Doctors  []appointment.User
	Staff    []appointment.User
	Patients []appointment.User
}

// Populate creates doctors with a random weekly template, then staff and
// patients. Templates go through the service so they are validated like
// any other write.
func Populate(ctx context.Context, logger zerolog.Logger, users UserWriter, svc *appointment.Service, counts Counts) (Result, error) {
	var res Result

	logger.Info().Int("count", counts.Doctors).Msg("seeding doctors")
	for i := 0; i < counts.Doctors; i++ {
		doctor := NewUser(appointment.RoleDoctor)
		if err := users.UpsertUser(ctx, doctor); err != nil {
			return res, err
		}
		if _, err := svc.SetTemplate(ctx, doctor.ID, doctor.ID, RandomWeek()); err != nil {
			return res, fmt.Errorf("template for %s: %w", doctor.ID, err)
		}
		res.Doctors = append(res.Doctors, doctor)
	}

	var err error
	if res.Staff, err = seedUsers(ctx, logger, users, appointment.RoleStaff, counts.Staff); err != nil {
		return res, err
	}
	if res.Patients, err = seedUsers(ctx, logger, users, appointment.RolePatient, counts.Patients); err != nil {
		return res, err
	}
	return res, nil
}

func seedUsers(ctx context.Context, logger zerolog.Logger, users UserWriter, role appointment.Role, count int) ([]appointment.User, error) {
	logger.Info().Int("count", count).Str("role", string(role)).Msg("seeding users")

	const batchSize = 500

	out := make([]appointment.User, 0, count)
	for i := 0; i < count; i++ {
		u := NewUser(role)
		if err := users.UpsertUser(ctx, u); err != nil {
			return out, err
		}
		out = append(out, u)
		if (i+1)%batchSize == 0 || i+1 == count {
			logger.Info().Str("role", string(role)).Msgf("users seeded: %d/%d", i+1, count)
		}
	}
	return out, nil
}

func NewUser(role appointment.Role) appointment.User {
	name := gofakeit.Name()
	if role == appointment.RoleDoctor {
		name = "Dr. " + name
	}
	return appointment.User{
		ID:    uuid.New(),
		Role:  role,
		Name:  name,
		Email: gofakeit.Email(),
	}
}

// RandomWeek opens three to five weekdays with a morning and/or afternoon
// block of 30 minute slots.
func RandomWeek() appointment.Week {
	var w appointment.Week
	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	for i := len(days) - 1; i > 0; i-- {
		j := gofakeit.Number(0, i)
		days[i], days[j] = days[j], days[i]
	}

	for _, wd := range days[:gofakeit.Number(3, 5)] {
		var slots []appointment.TimeOfDay
		if gofakeit.Bool() {
			slots = append(slots, block(9, 12)...)
		}
		if len(slots) == 0 || gofakeit.Bool() {
			slots = append(slots, block(13, 17)...)
		}
		w[wd] = appointment.DayAvailability{Available: true, Slots: slots}
	}
	return w
}

func block(fromHour, toHour int) []appointment.TimeOfDay {
	var out []appointment.TimeOfDay
	for h := fromHour; h < toHour; h++ {
		out = append(out,
			appointment.TimeOfDay(fmt.Sprintf("%02d:00", h)),
			appointment.TimeOfDay(fmt.Sprintf("%02d:30", h)))
	}
	return out
}
