package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
)

func getAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}

		tmpl, err := svc.GetTemplate(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
	}
}

func putAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}

		var req TemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeServiceError(w, r, fmt.Errorf("%w: %w", appointment.ErrInvalidTemplate, err))
			return
		}

		tmpl, err := svc.SetTemplate(r.Context(), doctorID, actor.ID, req.Days)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
	}
}

func freeSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID")
		if !ok {
			return
		}
		date, err := appointment.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		slots, err := svc.FreeSlots(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, FreeSlotsResponse{
			DoctorID: doctorID,
			Date:     appointment.FormatDate(date),
			Slots:    slots,
		})
	}
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		// patients may omit themselves
		if req.PatientID == "" && actor.Role == appointment.RolePatient {
			req.PatientID = actor.ID.String()
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "doctor_id must be a valid UUID")
			return
		}
		date, err := appointment.ParseDate(req.Date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.Book(r.Context(), actor, appointment.BookingRequest{
			PatientID:  patientID,
			DoctorID:   doctorID,
			Date:       date,
			Time:       appointment.TimeOfDay(req.Time),
			Department: req.Department,
			Type:       req.Type,
			Notes:      req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, withTransitions(actor, appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())

		f, err := parseFilter(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appts, err := svc.ListFor(r.Context(), actor, f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := AppointmentListResponse{
			Appointments: make([]AppointmentResponse, 0, len(appts)),
			Limit:        f.Limit,
			Offset:       f.Offset,
		}
		for i := range appts {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), actor, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, withTransitions(actor, appt))
	}
}

func appointmentEventsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		events, err := svc.History(r.Context(), actor, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]EventResponse, 0, len(events))
		for _, ev := range events {
			resp = append(resp, EventResponse{
				ID:        ev.ID,
				EventType: ev.EventType,
				ActorID:   ev.ActorID,
				Payload:   json.RawMessage(ev.Payload),
				CreatedAt: ev.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func transitionAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		to, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.Transition(r.Context(), id, actor, to)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, withTransitions(actor, appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r.Context())
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := appointment.ParseDate(req.Date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, actor, date, appointment.TimeOfDay(req.Time))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, withTransitions(actor, appt))
	}
}

func withTransitions(actor appointment.Actor, appt *appointment.Appointment) AppointmentResponse {
	resp := toAppointmentResponse(appt)
	resp.AllowedTransitions = appointment.AllowedTransitions(actor, appt)
	return resp
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(r *http.Request) (appointment.Filter, error) {
	q := r.URL.Query()
	var f appointment.Filter

	for param, dst := range map[string]**uuid.UUID{
		"patient_id": &f.PatientID,
		"doctor_id":  &f.DoctorID,
	} {
		if v := q.Get(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, fmt.Errorf("%w: %s must be a valid UUID", appointment.ErrValidation, param)
			}
			*dst = &id
		}
	}

	if v := q.Get("status"); v != "" {
		st, err := appointment.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}

	if v := q.Get("from"); v != "" {
		d, err := appointment.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.Dates.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := appointment.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.Dates.To = &d
	}

	f.Department = strings.TrimSpace(q.Get("department"))

	for param, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, fmt.Errorf("%w: %s must be an integer", appointment.ErrValidation, param)
			}
			*dst = n
		}
	}

	return f, nil
}

var kindStatus = map[string]int{
	"validation_error":   http.StatusBadRequest,
	"invalid_date":       http.StatusBadRequest,
	"invalid_template":   http.StatusBadRequest,
	"unauthorized":       http.StatusUnauthorized,
	"forbidden":          http.StatusForbidden,
	"not_found":          http.StatusNotFound,
	"invalid_transition": http.StatusConflict,
	"slot_unavailable":   http.StatusConflict,
	"unavailable":        http.StatusServiceUnavailable,
}

// writeServiceError maps an error kind to its HTTP status. Internal errors
// are logged and their details withheld.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := appointment.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, kind, "internal error")
		return
	}
	writeError(w, status, kind, err.Error())
}
