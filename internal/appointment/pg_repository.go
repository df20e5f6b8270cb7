package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const appointmentColumns = `id, patient_id, doctor_id, slot_date, slot_time, department, type, notes, status, created_at, updated_at, expires_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var email *string

	err := row.Scan(
		&u.ID,
		&u.Role,
		&u.Name,
		&email,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, unavailable("scan user", err)
	}

	if email != nil {
		u.Email = *email
	}
	return &u, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var notes *string
	var expiresAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.Time,
		&a.Department,
		&a.Type,
		&notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, writeErr("scan appointment", err)
	}

	if notes != nil {
		a.Notes = *notes
	}
	a.Date = DateOf(a.Date, time.UTC)
	a.ExpiresAt = expiresAt
	return &a, nil
}

// writeErr maps the partial unique index on held slots to ErrSlotTaken.
func writeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrSlotTaken
	}
	return unavailable(op, err)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate appointments", err)
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, role, name, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// UpsertUser is used by seeding; the directory itself is owned elsewhere.
func (r *PgRepository) UpsertUser(ctx context.Context, u User) error {
	var email *string
	if u.Email != "" {
		email = &u.Email
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, role, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
		    name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    updated_at = now()
	`, u.ID, u.Role, u.Name, email)
	if err != nil {
		return unavailable("upsert user", err)
	}
	return nil
}

func (r *PgRepository) GetTemplate(ctx context.Context, doctorID uuid.UUID) (*WeeklyTemplate, error) {
	var raw []byte
	tmpl := WeeklyTemplate{DoctorID: doctorID}

	err := r.pool.QueryRow(ctx, `
		SELECT template, updated_at
		FROM doctor_availability
		WHERE doctor_id = $1
	`, doctorID).Scan(&raw, &tmpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, unavailable("get template", err)
	}

	if err := json.Unmarshal(raw, &tmpl.Days); err != nil {
		return nil, fmt.Errorf("decode template for %s: %w", doctorID, err)
	}
	for i := range tmpl.Days {
		if len(tmpl.Days[i].Slots) == 0 {
			tmpl.Days[i].Slots = nil
		}
	}
	return &tmpl, nil
}

// SaveTemplate replaces the whole template in a single statement.
func (r *PgRepository) SaveTemplate(ctx context.Context, tmpl WeeklyTemplate) (*WeeklyTemplate, error) {
	raw, err := json.Marshal(tmpl.Days)
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO doctor_availability (doctor_id, template, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (doctor_id) DO UPDATE
		SET template = EXCLUDED.template,
		    updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`, tmpl.DoctorID, raw, tmpl.UpdatedAt).Scan(&tmpl.UpdatedAt)
	if err != nil {
		return nil, unavailable("save template", err)
	}

	out := tmpl.clone()
	return &out, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) OccupiedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_time
		FROM appointments
		WHERE doctor_id = $1
		  AND slot_date = $2
		  AND status <> 'cancelled'
	`, doctorID, date)
	if err != nil {
		return nil, unavailable("occupied times", err)
	}
	defer rows.Close()

	var out []TimeOfDay
	for rows.Next() {
		var t TimeOfDay
		if err := rows.Scan(&t); err != nil {
			return nil, unavailable("scan occupied time", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate occupied times", err)
	}
	return out, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var notes *string
	if a.Notes != "" {
		notes = &a.Notes
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, slot_date, slot_time, department, type, notes, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now(), $10)
		RETURNING `+appointmentColumns,
		id, a.PatientID, a.DoctorID, a.Date, a.Time, a.Department, a.Type, notes, a.Status, a.ExpiresAt)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2::text,
		    expires_at = CASE WHEN $2::text = 'pending' THEN expires_at ELSE NULL END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.staleOrMissing(ctx, id)
	}
	return appt, err
}

// MoveAppointment relocates and reschedules in one UPDATE; the partial unique
// index rejects the move if the target slot is held.
func (r *PgRepository) MoveAppointment(ctx context.Context, id uuid.UUID, from Status, date time.Time, at TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET slot_date = $2,
		    slot_time = $3,
		    status = 'scheduled',
		    expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = $4
		RETURNING `+appointmentColumns, id, date, at, from)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.staleOrMissing(ctx, id)
	}
	return appt, err
}

// staleOrMissing distinguishes a lost conditional update from a missing row.
func (r *PgRepository) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return unavailable("check appointment", err)
	}
	if exists {
		return ErrStaleStatus
	}
	return ErrAppointmentNotFound
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("doctor_id = $%d", *f.DoctorID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Department != "" {
		add("department = $%d", f.Department)
	}
	if f.Dates.From != nil {
		add("slot_date >= $%d", *f.Dates.From)
	}
	if f.Dates.To != nil {
		add("slot_date <= $%d", *f.Dates.To)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY slot_date ASC, slot_time ASC, created_at ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list appointments", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		ORDER BY slot_date ASC, slot_time ASC
	`, now)
	if err != nil {
		return nil, unavailable("find expired pending", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.ActorID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, actor_id, payload, created_at
		FROM event_logs
		WHERE appointment_id = $1
		ORDER BY created_at ASC, id ASC
	`, appointmentID)
	if err != nil {
		return nil, unavailable("list events", err)
	}
	defer rows.Close()

	out := []EventLog{}
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.ActorID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, unavailable("scan event", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate events", err)
	}
	return out, nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
