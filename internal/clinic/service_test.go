package clinic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestScheduler(repo *MemoryRepository) *Scheduler {
	return NewScheduler(repo, NewMemoryLocker(), time.UTC, zerolog.Nop())
}

type fixture struct {
	patientID      uuid.UUID
	otherPatientID uuid.UUID
	practitionerID uuid.UUID
	serviceID      uuid.UUID
}

func seedClinic(repo *MemoryRepository) fixture {
	f := fixture{
		patientID:      uuid.New(),
		otherPatientID: uuid.New(),
		practitionerID: uuid.New(),
		serviceID:      uuid.New(),
	}
	repo.AddPatient(Patient{ID: f.patientID, Name: "Ana Souza", Active: true})
	repo.AddPatient(Patient{ID: f.otherPatientID, Name: "Bruno Lima", Active: true})
	repo.AddPractitioner(Practitioner{ID: f.practitionerID, Name: "Dr. Carla Mendes", Registration: "CRO-12345", Active: true})
	repo.AddService(Service{ID: f.serviceID, Name: "Cleaning", DurationMinutes: 30, Active: true})
	return f
}

// futureMonday returns an open weekday far enough ahead that booked starts
// always pass the future check.
func futureMonday() time.Time {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func TestAvailableSlots_FullDay(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	day := futureMonday()
	slots, err := s.AvailableSlots(context.Background(), f.practitionerID, f.serviceID, day.Format(DateLayout))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 8 morning + 8 afternoon slots with the default calendar.
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d: %v", len(slots), slots)
	}
	if slots[0] != "08:00" || slots[7] != "11:30" || slots[8] != "14:00" || slots[15] != "17:30" {
		t.Errorf("unexpected slot layout: %v", slots)
	}
}

func TestAvailableSlots_ExcludesBookedInterval(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	day := futureMonday()
	booked := Appointment{
		PatientID:      f.otherPatientID,
		PractitionerID: f.practitionerID,
		ServiceID:      f.serviceID,
		StartTime:      day.Add(9 * time.Hour),
		EndTime:        day.Add(9*time.Hour + 30*time.Minute),
		Status:         StatusConfirmed,
	}
	if _, err := repo.CreateAppointment(context.Background(), booked); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	slots, err := s.AvailableSlots(context.Background(), f.practitionerID, f.serviceID, day.Format(DateLayout))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	has := func(clock string) bool {
		for _, s := range slots {
			if s == clock {
				return true
			}
		}
		return false
	}

	if has("09:00") {
		t.Error("09:00 must be excluded by the 09:00-09:30 appointment")
	}
	if !has("08:30") || !has("09:30") {
		t.Errorf("adjacent slots 08:30 and 09:30 must stay bookable: %v", slots)
	}
}

func TestAvailableSlots_CancelledAppointmentFreesSlot(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	day := futureMonday()
	booked, err := repo.CreateAppointment(context.Background(), Appointment{
		PatientID:      f.patientID,
		PractitionerID: f.practitionerID,
		ServiceID:      f.serviceID,
		StartTime:      day.Add(9 * time.Hour),
		EndTime:        day.Add(9*time.Hour + 30*time.Minute),
		Status:         StatusPending,
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	if _, err := s.Cancel(context.Background(), booked.ID, f.patientID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slots, err := s.AvailableSlots(context.Background(), f.practitionerID, f.serviceID, day.Format(DateLayout))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range slots {
		if c == "09:00" {
			return
		}
	}
	t.Errorf("09:00 must reappear after cancellation: %v", slots)
}

func TestAvailableSlots_ClosedDay(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	sunday := futureMonday().AddDate(0, 0, -1)
	slots, err := s.AvailableSlots(context.Background(), f.practitionerID, f.serviceID, sunday.Format(DateLayout))
	if err != nil {
		t.Fatalf("closed day must not be an error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots on a closed day, got %v", slots)
	}
}

func TestAvailableSlots_Errors(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	if _, err := s.AvailableSlots(context.Background(), f.practitionerID, f.serviceID, "15/01/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := s.AvailableSlots(context.Background(), f.practitionerID, uuid.New(), futureMonday().Format(DateLayout)); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
	if _, err := s.AvailableSlots(context.Background(), uuid.New(), f.serviceID, futureMonday().Format(DateLayout)); !errors.Is(err, ErrPractitionerNotFound) {
		t.Errorf("expected ErrPractitionerNotFound, got %v", err)
	}
}

// Every slot availability advertises must be bookable on a static snapshot:
// the read path and the write path share the same conflict logic.
func TestAvailableSlots_AgreesWithBook(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	day := futureMonday()
	slots, err := s.AvailableSlots(context.Background(), f.practitionerID, f.serviceID, day.Format(DateLayout))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}

	for _, clock := range slots {
		start, err := time.ParseInLocation(DateLayout+" "+ClockLayout, day.Format(DateLayout)+" "+clock, time.UTC)
		if err != nil {
			t.Fatalf("parse %s: %v", clock, err)
		}
		if _, err := s.Book(context.Background(), BookingRequest{
			PatientID:      f.patientID,
			PractitionerID: f.practitionerID,
			ServiceID:      f.serviceID,
			Start:          start,
		}); err != nil {
			t.Fatalf("advertised slot %s failed to book: %v", clock, err)
		}
	}

	slots, err = s.AvailableSlots(context.Background(), f.practitionerID, f.serviceID, day.Format(DateLayout))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("fully booked day must have no slots, got %v", slots)
	}
}

func TestBook_CreatesPendingAppointment(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	start := futureMonday().Add(9 * time.Hour)
	appt, err := s.Book(context.Background(), BookingRequest{
		PatientID:      f.patientID,
		PractitionerID: f.practitionerID,
		ServiceID:      f.serviceID,
		Start:          start,
		Notes:          "sensitive tooth, upper left",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if appt.Status != StatusPending {
		t.Errorf("patient booking must start pending, got %s", appt.Status)
	}
	if !appt.EndTime.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("end must be start + duration, got %s", appt.EndTime)
	}
	if appt.Notes == nil || *appt.Notes != "sensitive tooth, upper left" {
		t.Error("notes must be stored")
	}
}

func TestBook_AdminBookingStartsConfirmed(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	appt, err := s.Book(context.Background(), BookingRequest{
		PatientID:      f.patientID,
		PractitionerID: f.practitionerID,
		ServiceID:      f.serviceID,
		Start:          futureMonday().Add(10 * time.Hour),
		AdminBooked:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusConfirmed {
		t.Errorf("admin booking must start confirmed, got %s", appt.Status)
	}
}

func TestBook_PastStartRejected(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	for _, start := range []time.Time{time.Now().Add(-time.Hour), time.Now()} {
		_, err := s.Book(context.Background(), BookingRequest{
			PatientID:      f.patientID,
			PractitionerID: f.practitionerID,
			ServiceID:      f.serviceID,
			Start:          start,
		})
		if !errors.Is(err, ErrInvalidTime) {
			t.Errorf("expected ErrInvalidTime for start %s, got %v", start, err)
		}
	}
	if repo.AppointmentCount() != 0 {
		t.Error("rejected bookings must not create rows")
	}
}

func TestBook_Validation(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)

	inactiveService := uuid.New()
	repo.AddService(Service{ID: inactiveService, Name: "Legacy", DurationMinutes: 30, Active: false})
	inactivePractitioner := uuid.New()
	repo.AddPractitioner(Practitioner{ID: inactivePractitioner, Name: "Dr. Gone", Registration: "CRO-00001", Active: false})

	s := newTestScheduler(repo)
	start := futureMonday().Add(9 * time.Hour)

	tests := []struct {
		name string
		req  BookingRequest
		want error
	}{
		{"unknown patient", BookingRequest{PatientID: uuid.New(), PractitionerID: f.practitionerID, ServiceID: f.serviceID, Start: start}, ErrPatientNotFound},
		{"unknown service", BookingRequest{PatientID: f.patientID, PractitionerID: f.practitionerID, ServiceID: uuid.New(), Start: start}, ErrServiceNotFound},
		{"unknown practitioner", BookingRequest{PatientID: f.patientID, PractitionerID: uuid.New(), ServiceID: f.serviceID, Start: start}, ErrPractitionerNotFound},
		{"inactive service", BookingRequest{PatientID: f.patientID, PractitionerID: f.practitionerID, ServiceID: inactiveService, Start: start}, ErrServiceInactive},
		{"inactive practitioner", BookingRequest{PatientID: f.patientID, PractitionerID: inactivePractitioner, ServiceID: f.serviceID, Start: start}, ErrPractitionerInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Book(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if repo.AppointmentCount() != 0 {
		t.Error("no rows may be created by failed validations")
	}
}

func TestBook_ConflictRejected(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	start := futureMonday().Add(9 * time.Hour)
	if _, err := s.Book(context.Background(), BookingRequest{
		PatientID: f.patientID, PractitionerID: f.practitionerID, ServiceID: f.serviceID, Start: start,
	}); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// Same interval, overlapping interval: both rejected.
	for _, overlap := range []time.Time{start, start.Add(15 * time.Minute), start.Add(-15 * time.Minute)} {
		_, err := s.Book(context.Background(), BookingRequest{
			PatientID: f.otherPatientID, PractitionerID: f.practitionerID, ServiceID: f.serviceID, Start: overlap,
		})
		if !errors.Is(err, ErrSlotTaken) {
			t.Errorf("expected ErrSlotTaken for start %s, got %v", overlap.Format("15:04"), err)
		}
	}

	// Touching intervals book fine.
	if _, err := s.Book(context.Background(), BookingRequest{
		PatientID: f.otherPatientID, PractitionerID: f.practitionerID, ServiceID: f.serviceID, Start: start.Add(30 * time.Minute),
	}); err != nil {
		t.Errorf("touching interval must not conflict: %v", err)
	}

	// Another practitioner is free at the same time.
	other := uuid.New()
	repo.AddPractitioner(Practitioner{ID: other, Name: "Dr. Diego Reis", Registration: "CRO-54321", Active: true})
	if _, err := s.Book(context.Background(), BookingRequest{
		PatientID: f.otherPatientID, PractitionerID: other, ServiceID: f.serviceID, Start: start,
	}); err != nil {
		t.Errorf("other practitioner must be bookable: %v", err)
	}
}

func TestBook_ConcurrentIdenticalInterval(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	start := futureMonday().Add(9 * time.Hour)

	const attempts = 8
	errs := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Book(context.Background(), BookingRequest{
				PatientID:      f.patientID,
				PractitionerID: f.practitionerID,
				ServiceID:      f.serviceID,
				Start:          start,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("exactly one concurrent booking must win, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
	if repo.AppointmentCount() != 1 {
		t.Errorf("exactly one row must exist, got %d", repo.AppointmentCount())
	}
}

func TestCancel(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	appt, err := s.Book(context.Background(), BookingRequest{
		PatientID: f.patientID, PractitionerID: f.practitionerID, ServiceID: f.serviceID,
		Start: futureMonday().Add(9 * time.Hour),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	// Wrong patient cannot cancel, and the status is untouched.
	if _, err := s.Cancel(context.Background(), appt.ID, f.otherPatientID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	current, _ := s.GetAppointment(context.Background(), appt.ID)
	if current.Status != StatusPending {
		t.Errorf("status must be unchanged after forbidden cancel, got %s", current.Status)
	}

	// The owner can.
	cancelled, err := s.Cancel(context.Background(), appt.ID, f.patientID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	// A second cancel reports terminal and changes nothing.
	if _, err := s.Cancel(context.Background(), appt.ID, f.patientID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
	current, _ = s.GetAppointment(context.Background(), appt.ID)
	if current.Status != StatusCancelled {
		t.Errorf("second cancel must not change status, got %s", current.Status)
	}

	if _, err := s.Cancel(context.Background(), uuid.New(), f.patientID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	appt, err := s.Book(context.Background(), BookingRequest{
		PatientID: f.patientID, PractitionerID: f.practitionerID, ServiceID: f.serviceID,
		Start: futureMonday().Add(9 * time.Hour),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := s.SetStatus(context.Background(), appt.ID, StatusPending); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("pending is not an admin target, got %v", err)
	}
	if _, err := s.SetStatus(context.Background(), appt.ID, AppointmentStatus("approved")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("unknown status must be rejected, got %v", err)
	}

	confirmed, err := s.SetStatus(context.Background(), appt.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", confirmed.Status)
	}

	completed, err := s.SetStatus(context.Background(), appt.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", completed.Status)
	}

	// Terminal rows are frozen, even for admins.
	if _, err := s.SetStatus(context.Background(), appt.ID, StatusConfirmed); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestCalendarConfig_DefaultsAndSave(t *testing.T) {
	repo := NewMemoryRepository()
	seedClinic(repo)
	s := newTestScheduler(repo)

	cfg, err := s.CalendarConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MorningStart != DefaultMorningStart {
		t.Errorf("expected default config before any save, got %+v", cfg)
	}

	cfg.OpenDays[time.Saturday] = true
	cfg.SlotInterval = 20
	if err := s.SaveCalendarConfig(context.Background(), cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.CalendarConfig(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !loaded.IsOpen(time.Saturday) || loaded.SlotInterval != 20 {
		t.Errorf("saved config not returned: %+v", loaded)
	}

	bad := loaded
	bad.SlotInterval = 0
	if err := s.SaveCalendarConfig(context.Background(), bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestDeleteGuards(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	if _, err := s.Book(context.Background(), BookingRequest{
		PatientID: f.patientID, PractitionerID: f.practitionerID, ServiceID: f.serviceID,
		Start: futureMonday().Add(9 * time.Hour),
	}); err != nil {
		t.Fatalf("book: %v", err)
	}

	if err := s.DeletePractitioner(context.Background(), f.practitionerID); !errors.Is(err, ErrPractitionerInUse) {
		t.Errorf("expected ErrPractitionerInUse, got %v", err)
	}
	if err := s.DeleteService(context.Background(), f.serviceID); !errors.Is(err, ErrServiceInUse) {
		t.Errorf("expected ErrServiceInUse, got %v", err)
	}

	unused := uuid.New()
	repo.AddService(Service{ID: unused, Name: "Unused", DurationMinutes: 30, Active: true})
	if err := s.DeleteService(context.Background(), unused); err != nil {
		t.Errorf("unused service must be deletable: %v", err)
	}
}

func TestBook_WritesEventLog(t *testing.T) {
	repo := NewMemoryRepository()
	f := seedClinic(repo)
	s := newTestScheduler(repo)

	appt, err := s.Book(context.Background(), BookingRequest{
		PatientID: f.patientID, PractitionerID: f.practitionerID, ServiceID: f.serviceID,
		Start: futureMonday().Add(9 * time.Hour),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventType != EventAppointmentBooked {
		t.Errorf("expected %s, got %s", EventAppointmentBooked, ev.EventType)
	}
	if ev.AppointmentID == nil || *ev.AppointmentID != appt.ID {
		t.Error("event must reference the created appointment")
	}
}
