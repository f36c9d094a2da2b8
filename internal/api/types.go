package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentalsys/clinic-scheduling/internal/clinic"
)

type AvailabilityResponse struct {
	Slots []string `json:"slots"`
}

type BookAppointmentRequest struct {
	PatientID      string `json:"patient_id"`
	PractitionerID string `json:"practitioner_id"`
	ServiceID      string `json:"service_id"`
	Start          string `json:"start"`
	Notes          string `json:"notes,omitempty"`
	AsAdmin        bool   `json:"as_admin,omitempty"`
}

type CancelAppointmentRequest struct {
	PatientID string `json:"patient_id"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	ServiceID      uuid.UUID `json:"service_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Status         string    `json:"status"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		PractitionerID: a.PractitionerID,
		ServiceID:      a.ServiceID,
		Start:          a.StartTime,
		End:            a.EndTime,
		Status:         string(a.Status),
		Notes:          a.Notes,
		CreatedAt:      a.CreatedAt,
	}
}

// CalendarConfigPayload names every weekday explicitly so the admin payload
// cannot suffer from weekday numbering mismatches.
type CalendarConfigPayload struct {
	ClinicName     string `json:"clinic_name"`
	Sunday         bool   `json:"sunday"`
	Monday         bool   `json:"monday"`
	Tuesday        bool   `json:"tuesday"`
	Wednesday      bool   `json:"wednesday"`
	Thursday       bool   `json:"thursday"`
	Friday         bool   `json:"friday"`
	Saturday       bool   `json:"saturday"`
	MorningStart   string `json:"morning_start"`
	MorningEnd     string `json:"morning_end"`
	AfternoonStart string `json:"afternoon_start"`
	AfternoonEnd   string `json:"afternoon_end"`
	SlotInterval   int    `json:"slot_interval"`
}

func (p CalendarConfigPayload) toConfig() clinic.CalendarConfig {
	cfg := clinic.CalendarConfig{
		ClinicName:     p.ClinicName,
		MorningStart:   p.MorningStart,
		MorningEnd:     p.MorningEnd,
		AfternoonStart: p.AfternoonStart,
		AfternoonEnd:   p.AfternoonEnd,
		SlotInterval:   p.SlotInterval,
	}
	cfg.OpenDays[time.Sunday] = p.Sunday
	cfg.OpenDays[time.Monday] = p.Monday
	cfg.OpenDays[time.Tuesday] = p.Tuesday
	cfg.OpenDays[time.Wednesday] = p.Wednesday
	cfg.OpenDays[time.Thursday] = p.Thursday
	cfg.OpenDays[time.Friday] = p.Friday
	cfg.OpenDays[time.Saturday] = p.Saturday
	return cfg
}

func fromConfig(cfg clinic.CalendarConfig) CalendarConfigPayload {
	return CalendarConfigPayload{
		ClinicName:     cfg.ClinicName,
		Sunday:         cfg.OpenDays[time.Sunday],
		Monday:         cfg.OpenDays[time.Monday],
		Tuesday:        cfg.OpenDays[time.Tuesday],
		Wednesday:      cfg.OpenDays[time.Wednesday],
		Thursday:       cfg.OpenDays[time.Thursday],
		Friday:         cfg.OpenDays[time.Friday],
		Saturday:       cfg.OpenDays[time.Saturday],
		MorningStart:   cfg.MorningStart,
		MorningEnd:     cfg.MorningEnd,
		AfternoonStart: cfg.AfternoonStart,
		AfternoonEnd:   cfg.AfternoonEnd,
		SlotInterval:   cfg.SlotInterval,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
