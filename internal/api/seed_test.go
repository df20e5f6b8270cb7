package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/lock"
	"github.com/hackgods/hospital-scheduling/internal/seed"
)

// Mirrors api-server in memory mode: the directory is only the seeded users.
func TestSeededMemoryStore(t *testing.T) {
	repo := appointment.NewMemoryRepository()
	svc := appointment.NewService(repo, lock.NewLocal(time.Second), config.Config{ClinicLocation: time.UTC},
		appointment.WithClock(func() time.Time { return testNow }))

	res, err := seed.Populate(context.Background(), zerolog.Nop(), repo, svc, seed.Counts{Doctors: 1, Staff: 1, Patients: 1})
	require.NoError(t, err)

	ts := &testServer{
		handler: NewRouter(RouterConfig{Service: svc, Directory: repo, Storage: repo, Env: "test"}),
		doctor:  res.Doctors[0],
		patient: res.Patients[0],
		staff:   res.Staff[0],
	}
	doctorPath := "/doctors/" + ts.doctor.ID.String()

	stranger := appointment.User{ID: uuid.New(), Role: appointment.RolePatient}
	rec := ts.do(t, http.MethodGet, doctorPath+"/availability", &stranger, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, doctorPath+"/availability", &ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tmpl TemplateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tmpl))

	// the seeded week always opens at least three weekdays
	date := testNow
	for i := 0; i < 7; i++ {
		date = date.AddDate(0, 0, 1)
		if tmpl.Days[date.Weekday()].Available {
			break
		}
	}
	require.True(t, tmpl.Days[date.Weekday()].Available)

	rec = ts.do(t, http.MethodGet, doctorPath+"/free-slots?date="+appointment.FormatDate(date), &ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var free FreeSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &free))
	require.NotEmpty(t, free.Slots)

	rec = ts.do(t, http.MethodPost, "/appointments", &ts.patient, map[string]string{
		"doctor_id":  ts.doctor.ID.String(),
		"date":       appointment.FormatDate(date),
		"time":       string(free.Slots[0]),
		"department": "Cardiology",
		"type":       "consultation",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/appointments", &ts.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
