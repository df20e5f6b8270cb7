package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID  string `json:"patient_id"`
	DoctorID   string `json:"doctor_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Department string `json:"department"`
	Type       string `json:"type"`
	Notes      string `json:"notes,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type TemplateRequest struct {
	Days appointment.Week `json:"days"`
}

type TemplateResponse struct {
	DoctorID  uuid.UUID        `json:"doctor_id"`
	Days      appointment.Week `json:"days"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

type FreeSlotsResponse struct {
	DoctorID uuid.UUID               `json:"doctor_id"`
	Date     string                  `json:"date"`
	Slots    []appointment.TimeOfDay `json:"slots"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID             `json:"id"`
	PatientID          uuid.UUID             `json:"patient_id"`
	DoctorID           uuid.UUID             `json:"doctor_id"`
	Date               string                `json:"date"`
	Time               appointment.TimeOfDay `json:"time"`
	Department         string                `json:"department"`
	Type               string                `json:"type"`
	Notes              string                `json:"notes,omitempty"`
	Status             string                `json:"status"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	ExpiresAt          *time.Time            `json:"expires_at,omitempty"`
	AllowedTransitions []appointment.Status  `json:"allowed_transitions,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit,omitempty"`
	Offset       int                   `json:"offset,omitempty"`
}

type EventResponse struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		DoctorID:   a.DoctorID,
		Date:       appointment.FormatDate(a.Date),
		Time:       a.Time,
		Department: a.Department,
		Type:       a.Type,
		Notes:      a.Notes,
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		ExpiresAt:  a.ExpiresAt,
	}
}

func toTemplateResponse(t *appointment.WeeklyTemplate) TemplateResponse {
	resp := TemplateResponse{DoctorID: t.DoctorID, Days: t.Days}
	if !t.UpdatedAt.IsZero() {
		updated := t.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
