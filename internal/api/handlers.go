package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/appointment"
)

var (
	errInvalidDoctorID      = apperr.InvalidInput("doctorId must be a valid UUID")
	errInvalidAppointmentID = apperr.InvalidInput("id must be a valid UUID")
	errDateRequired         = apperr.InvalidInput("date is required")
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if strings.TrimSpace(req.DoctorID) == "" || strings.TrimSpace(req.Date) == "" {
			handleServiceError(w, r, appointment.ErrDoctorAndDateRequired)
			return
		}
		doctorID, err := uuid.Parse(strings.TrimSpace(req.DoctorID))
		if err != nil {
			handleServiceError(w, r, errInvalidDoctorID)
			return
		}

		actor := actorFrom(r)
		appt, err := svc.CreateAppointment(r.Context(), actor.UserID, doctorID, req.Date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawDoctor := strings.TrimSpace(r.URL.Query().Get("doctorId"))
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if rawDoctor == "" || date == "" {
			handleServiceError(w, r, appointment.ErrDoctorAndDateRequired)
			return
		}
		doctorID, err := uuid.Parse(rawDoctor)
		if err != nil {
			handleServiceError(w, r, errInvalidDoctorID)
			return
		}

		av, err := svc.Availability(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailabilityResponse(av))
	}
}

func doctorAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if date == "" {
			handleServiceError(w, r, errDateRequired)
			return
		}

		av, err := svc.DoctorAvailability(r.Context(), actorFrom(r), date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailabilityResponse(av))
	}
}

func patientAgendaHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agenda, err := svc.PatientAgenda(r.Context(), actorFrom(r))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAgendaResponse(agenda))
	}
}

func doctorAgendaHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agenda, err := svc.DoctorAgenda(r.Context(), actorFrom(r))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAgendaResponse(agenda))
	}
}

func facilityAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.FacilityAppointments(r.Context(), actorFrom(r))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAgendaItems(items))
	}
}

func agendaRangeHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res, err := svc.AgendaRange(r.Context(), actorFrom(r), q.Get("from"), q.Get("to"), q.Get("status"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		items := toAgendaItems(res.Items)
		writeJSON(w, http.StatusOK, AgendaRangeResponse{
			From:   res.From,
			To:     res.To,
			Status: string(res.Status),
			Total:  len(items),
			Agenda: items,
		})
	}
}

// updateStatusHandler serves both the facility and the doctor status routes;
// the service scopes the change by the actor's role.
func updateStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, r, errInvalidAppointmentID)
			return
		}

		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		target, err := appointment.ParseStatus(strings.TrimSpace(req.Status))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), actorFrom(r), id, target)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "appointments router ok"})
}

func toAvailabilityResponse(av *appointment.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		Date:        av.Date,
		DoctorID:    av.DoctorID,
		SlotMinutes: av.SlotMinutes,
		WorkStart:   av.WorkStart,
		WorkEnd:     av.WorkEnd,
		Booked:      av.Booked,
		Available:   av.Available,
	}
}

func toAgendaResponse(a *appointment.Agenda) AgendaResponse {
	return AgendaResponse{
		Upcoming: toAgendaItems(a.Upcoming),
		History:  toAgendaItems(a.History),
	}
}
