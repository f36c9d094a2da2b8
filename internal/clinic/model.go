package clinic

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Terminal reports whether no further status transition is permitted.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// ActiveStatuses are the statuses that hold a practitioner's time.
// Cancelled and completed appointments never participate in conflict checks.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

// adminTargets is the set of statuses an administrator may move a
// non-terminal appointment into.
var adminTargets = map[AppointmentStatus]bool{
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusCompleted: true,
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID           uuid.UUID
	Name         string
	Registration string // licensing board registration number
	Specialty    *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Service struct {
	ID              uuid.UUID
	Name            string
	Description     *string
	DurationMinutes int
	PriceCents      int64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Appointment references its patient, practitioner and service by id only.
// EndTime is captured at creation from the service duration and is never
// recomputed, even if the service's duration changes later.
type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	ServiceID      uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Status         AppointmentStatus
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
