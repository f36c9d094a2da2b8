package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrServiceNotFound      = errors.New("service not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrConfigNotFound       = errors.New("calendar config not found")

	// ErrSlotTaken is returned when an insert collides with an existing
	// active appointment for the same practitioner. The Postgres exclusion
	// constraint raises it even if the in-process conflict check was raced.
	ErrSlotTaken = errors.New("time slot is already taken")
)

// Repository contains all DB interactions needed by the scheduler.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error)

	ListActivePractitioners(ctx context.Context) ([]Practitioner, error)
	ListActiveServices(ctx context.Context) ([]Service, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)

	// ListPractitionerAppointments returns the practitioner's appointments
	// whose start falls in [from, to), restricted to the given statuses
	// (all statuses when empty).
	ListPractitionerAppointments(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, statuses []AppointmentStatus) ([]Appointment, error)

	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)

	// UpdateAppointmentStatus moves a non-terminal appointment to the given
	// status. It returns ErrAppointmentNotFound when the row does not exist
	// or has already reached a terminal status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error)

	// Catalog maintenance. Deletes are only legal for rows with no linked
	// appointments; the scheduler checks first.
	PractitionerHasAppointments(ctx context.Context, id uuid.UUID) (bool, error)
	ServiceHasAppointments(ctx context.Context, id uuid.UUID) (bool, error)
	DeletePractitioner(ctx context.Context, id uuid.UUID) error
	DeleteService(ctx context.Context, id uuid.UUID) error

	// Singleton calendar configuration, replaced wholesale.
	GetCalendarConfig(ctx context.Context) (*CalendarConfig, error)
	SaveCalendarConfig(ctx context.Context, cfg CalendarConfig) error

	InsertEvent(ctx context.Context, ev EventLog) error
}
