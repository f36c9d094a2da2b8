package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentalsys/clinic-scheduling/internal/clinic"
)

// startLayouts are accepted for appointment start times: full RFC 3339 or a
// local "date T clock" shorthand interpreted in the clinic's timezone.
var startLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

func parseStart(s string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range startLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func availabilityHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(r.URL.Query().Get("practitioner_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(r.URL.Query().Get("service_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), practitionerID, serviceID, r.URL.Query().Get("date"))
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{Slots: slots})
	}
}

func bookAppointmentHandler(svc *clinic.Scheduler, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		start, err := parseStart(req.Start, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 or YYYY-MM-DDTHH:MM timestamp")
			return
		}

		appt, err := svc.Book(r.Context(), clinic.BookingRequest{
			PatientID:      patientID,
			PractitionerID: practitionerID,
			ServiceID:      serviceID,
			Start:          start,
			Notes:          req.Notes,
			AdminBooked:    req.AsAdmin,
		})
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		appt, err := svc.Cancel(r.Context(), id, patientID)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func setStatusHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req SetStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.SetStatus(r.Context(), id, clinic.AppointmentStatus(req.Status))
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		appts, err := svc.ListPatientAppointments(r.Context(), id)
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentList(appts))
	}
}

func practitionerAgendaHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		appts, err := svc.PractitionerAgenda(r.Context(), id, r.URL.Query().Get("date"))
		if err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentList(appts))
	}
}

func listPractitionersHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pracs, err := svc.ListActivePractitioners(r.Context())
		if err != nil {
			handleSchedulerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pracs)
	}
}

func listServicesHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := svc.ListActiveServices(r.Context())
		if err != nil {
			handleSchedulerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, services)
	}
}

func deletePractitionerHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}
		if err := svc.DeletePractitioner(r.Context(), id); err != nil {
			handleSchedulerError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteServiceHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "id must be a valid UUID")
			return
		}
		if err := svc.DeleteService(r.Context(), id); err != nil {
			handleSchedulerError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getConfigHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := svc.CalendarConfig(r.Context())
		if err != nil {
			handleSchedulerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fromConfig(cfg))
	}
}

func saveConfigHandler(svc *clinic.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload CalendarConfigPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.SaveCalendarConfig(r.Context(), payload.toConfig()); err != nil {
			handleSchedulerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, payload)
	}
}

func appointmentList(appts []clinic.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

func handleSchedulerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, clinic.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrServiceInactive):
		writeError(w, http.StatusUnprocessableEntity, "service_inactive", err.Error())
	case errors.Is(err, clinic.ErrPractitionerInactive):
		writeError(w, http.StatusUnprocessableEntity, "practitioner_inactive", err.Error())
	case errors.Is(err, clinic.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
	case errors.Is(err, clinic.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
	case errors.Is(err, clinic.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, clinic.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
	case errors.Is(err, clinic.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, clinic.ErrPractitionerBusy):
		writeError(w, http.StatusConflict, "practitioner_busy", "practitioner is currently being booked, please retry shortly")
	case errors.Is(err, clinic.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "already_terminal", err.Error())
	case errors.Is(err, clinic.ErrPractitionerInUse):
		writeError(w, http.StatusConflict, "practitioner_in_use", err.Error())
	case errors.Is(err, clinic.ErrServiceInUse):
		writeError(w, http.StatusConflict, "service_in_use", err.Error())
	case errors.Is(err, clinic.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
