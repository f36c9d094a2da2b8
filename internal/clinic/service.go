package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/dentalsys/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventStatusChanged        = "APPOINTMENT_STATUS_CHANGED"
	EventConfigUpdated        = "CALENDAR_CONFIG_UPDATED"
)

// DateLayout is the wire format for calendar dates, ClockLayout for the
// time-of-day strings availability returns.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrServiceInactive      = errors.New("service is disabled")
	ErrPractitionerInactive = errors.New("practitioner is disabled")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidTime          = errors.New("start time must be in the future")
	ErrPractitionerBusy     = errors.New("practitioner is being booked, please retry")
	ErrForbidden            = errors.New("appointment belongs to another patient")
	ErrAlreadyTerminal      = errors.New("appointment is already cancelled or completed")
	ErrInvalidStatus        = errors.New("invalid status transition")
	ErrInvalidConfig        = errors.New("invalid calendar config")
	ErrPractitionerInUse    = errors.New("practitioner has linked appointments")
	ErrServiceInUse         = errors.New("service has linked appointments")
)

// Scheduler is the availability and booking core. Reads are advisory
// point-in-time views; the write path re-checks conflicts under a
// per-practitioner lock, with the storage exclusion constraint as backstop.
type Scheduler struct {
	repo   Repository
	locker redisclient.Locker
	loc    *time.Location
	log    zerolog.Logger
}

// NewScheduler builds a Scheduler. loc is the clinic's timezone; nil means
// the process-local zone.
func NewScheduler(repo Repository, locker redisclient.Locker, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		repo:   repo,
		locker: locker,
		loc:    loc,
		log:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// AvailableSlots returns the bookable "HH:MM" start times for the given
// practitioner, service and date. The result is empty (not an error) when
// the clinic is closed that weekday. It takes no lock: the list may be stale
// by the time the patient submits, and Book re-validates.
func (s *Scheduler) AvailableSlots(ctx context.Context, practitionerID, serviceID uuid.UUID, dateStr string) ([]string, error) {
	date, err := time.ParseInLocation(DateLayout, dateStr, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}

	svc, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}

	cfg, err := s.calendarConfig(ctx)
	if err != nil {
		return nil, err
	}

	candidates := GenerateCandidateSlots(cfg, date)
	if len(candidates) == 0 {
		return []string{}, nil
	}

	from, to := dayBounds(date)
	existing, err := s.repo.ListPractitionerAppointments(ctx, practitionerID, from, to, ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute

	free := make([]string, 0, len(candidates))
	for _, slot := range candidates {
		if !Overlaps(slot, slot.Add(duration), existing) {
			free = append(free, slot.Format(ClockLayout))
		}
	}

	return free, nil
}

type BookingRequest struct {
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	ServiceID      uuid.UUID
	Start          time.Time
	Notes          string
	// AdminBooked appointments skip the approval step and start confirmed.
	AdminBooked bool
}

// Book validates the request and creates the appointment, serialized against
// other bookings for the same practitioner and day.
func (s *Scheduler) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if !req.Start.After(time.Now()) {
		return nil, ErrInvalidTime
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	svc, err := s.repo.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, ErrServiceInactive
	}

	prac, err := s.repo.GetPractitionerByID(ctx, req.PractitionerID)
	if err != nil {
		return nil, err
	}
	if !prac.Active {
		return nil, ErrPractitionerInactive
	}

	start := req.Start.In(s.loc)
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	status := StatusPending
	if req.AdminBooked {
		status = StatusConfirmed
	}

	var created *Appointment

	err = s.locker.WithPractitionerLock(ctx, req.PractitionerID, start, func(lockCtx context.Context) error {
		// Re-check against live data inside the critical section. The
		// availability list the patient saw is only a hint.
		from, to := dayBounds(start)
		existing, err := s.repo.ListPractitionerAppointments(lockCtx, req.PractitionerID, from, to, ActiveStatuses)
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		if Overlaps(start, end, existing) {
			return ErrSlotTaken
		}

		appt := Appointment{
			PatientID:      req.PatientID,
			PractitionerID: req.PractitionerID,
			ServiceID:      req.ServiceID,
			StartTime:      start,
			EndTime:        end,
			Status:         status,
		}
		if req.Notes != "" {
			notes := req.Notes
			appt.Notes = &notes
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentBooked, map[string]any{
			"patient_id":      req.PatientID.String(),
			"practitioner_id": req.PractitionerID.String(),
			"service_id":      req.ServiceID.String(),
			"start":           start,
			"status":          string(status),
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrPractitionerBusy
		}
		return nil, err
	}

	return created, nil
}

// Cancel sets a patient's own appointment to cancelled. Cancellation is
// terminal and frees the slot immediately.
func (s *Scheduler) Cancel(ctx context.Context, appointmentID, patientID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appt.PatientID != patientID {
		return nil, ErrForbidden
	}
	if appt.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID, StatusCancelled)
	if err != nil {
		// The guarded update skips terminal rows, so a miss here means the
		// appointment reached a terminal status since we loaded it.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyTerminal
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"patient_id": patientID.String(),
	})

	return updated, nil
}

// SetStatus is the admin path: move a non-terminal appointment to confirmed,
// cancelled or completed.
func (s *Scheduler) SetStatus(ctx context.Context, appointmentID uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if !adminTargets[to] {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyTerminal
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})

	return updated, nil
}

func (s *Scheduler) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListPatientAppointments returns a patient's appointments, newest first.
func (s *Scheduler) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListPatientAppointments(ctx, patientID)
}

// PractitionerAgenda returns all of a practitioner's appointments for a
// date, regardless of status. Backs the admin agenda view.
func (s *Scheduler) PractitionerAgenda(ctx context.Context, practitionerID uuid.UUID, dateStr string) ([]Appointment, error) {
	date, err := time.ParseInLocation(DateLayout, dateStr, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}

	from, to := dayBounds(date)
	return s.repo.ListPractitionerAppointments(ctx, practitionerID, from, to, nil)
}

func (s *Scheduler) ListActivePractitioners(ctx context.Context) ([]Practitioner, error) {
	return s.repo.ListActivePractitioners(ctx)
}

func (s *Scheduler) ListActiveServices(ctx context.Context) ([]Service, error) {
	return s.repo.ListActiveServices(ctx)
}

// CalendarConfig returns the clinic configuration, falling back to defaults
// when no row has been saved yet.
func (s *Scheduler) CalendarConfig(ctx context.Context) (CalendarConfig, error) {
	return s.calendarConfig(ctx)
}

// SaveCalendarConfig replaces the singleton configuration wholesale.
func (s *Scheduler) SaveCalendarConfig(ctx context.Context, cfg CalendarConfig) error {
	if cfg.SlotInterval <= 0 {
		return ErrInvalidConfig
	}

	if err := s.repo.SaveCalendarConfig(ctx, cfg); err != nil {
		return err
	}

	s.logEvent(ctx, uuid.Nil, EventConfigUpdated, map[string]any{
		"slot_interval": cfg.SlotInterval,
	})

	return nil
}

// DeletePractitioner removes a practitioner with no linked appointments.
func (s *Scheduler) DeletePractitioner(ctx context.Context, id uuid.UUID) error {
	inUse, err := s.repo.PractitionerHasAppointments(ctx, id)
	if err != nil {
		return fmt.Errorf("check practitioner appointments: %w", err)
	}
	if inUse {
		return ErrPractitionerInUse
	}
	return s.repo.DeletePractitioner(ctx, id)
}

// DeleteService removes a service with no linked appointments.
func (s *Scheduler) DeleteService(ctx context.Context, id uuid.UUID) error {
	inUse, err := s.repo.ServiceHasAppointments(ctx, id)
	if err != nil {
		return fmt.Errorf("check service appointments: %w", err)
	}
	if inUse {
		return ErrServiceInUse
	}
	return s.repo.DeleteService(ctx, id)
}

func (s *Scheduler) calendarConfig(ctx context.Context) (CalendarConfig, error) {
	cfg, err := s.repo.GetCalendarConfig(ctx)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return DefaultCalendarConfig(), nil
		}
		return CalendarConfig{}, fmt.Errorf("load calendar config: %w", err)
	}
	return *cfg, nil
}

func dayBounds(date time.Time) (from, to time.Time) {
	from = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return from, from.AddDate(0, 0, 1)
}

func (s *Scheduler) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if appointmentID != uuid.Nil {
		apptID := appointmentID
		ev.AppointmentID = &apptID
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Stringer("appointment_id", appointmentID).Msg("insert event log")
	}
}
