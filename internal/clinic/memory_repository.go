package clinic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/dentalsys/clinic-scheduling/internal/redis"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It backs tests
// and local development without Postgres, and enforces the same no-overlap
// invariant on insert that the database exclusion constraint does.
type MemoryRepository struct {
	mu            sync.RWMutex
	patients      map[uuid.UUID]Patient
	practitioners map[uuid.UUID]Practitioner
	services      map[uuid.UUID]Service
	appointments  map[uuid.UUID]Appointment
	config        *CalendarConfig
	events        []EventLog
	nextEventID   int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:      make(map[uuid.UUID]Patient),
		practitioners: make(map[uuid.UUID]Practitioner),
		services:      make(map[uuid.UUID]Service),
		appointments:  make(map[uuid.UUID]Appointment),
	}
}

// Fixture setup.

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) AddPractitioner(p Practitioner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.practitioners[p.ID] = p
}

func (r *MemoryRepository) AddService(s Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = s
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

// AppointmentCount reports the number of stored appointment rows.
func (r *MemoryRepository) AppointmentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.appointments)
}

// Repository implementation.

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetPractitionerByID(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetServiceByID(_ context.Context, id uuid.UUID) (*Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) ListActivePractitioners(_ context.Context) ([]Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Practitioner
	for _, p := range r.practitioners {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListActiveServices(_ context.Context) ([]Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Service
	for _, s := range r.services {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListPatientAppointments(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sortAppointmentsDesc(out)
	return out, nil
}

func (r *MemoryRepository) ListPractitionerAppointments(_ context.Context, practitionerID uuid.UUID, from, to time.Time, statuses []AppointmentStatus) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.PractitionerID != practitionerID {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		if len(statuses) > 0 && !statusIn(a.Status, statuses) {
			continue
		}
		out = append(out, a)
	}
	sortAppointmentsAsc(out)
	return out, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Same guarantee as the appointments_no_overlap constraint.
	if !appt.Status.Terminal() {
		for _, existing := range r.appointments {
			if existing.PractitionerID != appt.PractitionerID || existing.Status.Terminal() {
				continue
			}
			if appt.StartTime.Before(existing.EndTime) && existing.StartTime.Before(appt.EndTime) {
				return nil, ErrSlotTaken
			}
		}
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now

	r.appointments[appt.ID] = appt
	return &appt, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status.Terminal() {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) PractitionerHasAppointments(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.appointments {
		if a.PractitionerID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ServiceHasAppointments(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.appointments {
		if a.ServiceID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) DeletePractitioner(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.practitioners[id]; !ok {
		return ErrPractitionerNotFound
	}
	delete(r.practitioners, id)
	return nil
}

func (r *MemoryRepository) DeleteService(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[id]; !ok {
		return ErrServiceNotFound
	}
	delete(r.services, id)
	return nil
}

func (r *MemoryRepository) GetCalendarConfig(_ context.Context) (*CalendarConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.config == nil {
		return nil, ErrConfigNotFound
	}
	cfg := *r.config
	return &cfg, nil
}

func (r *MemoryRepository) SaveCalendarConfig(_ context.Context, cfg CalendarConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	r.config = &cfg
	return nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextEventID++
	ev.ID = r.nextEventID
	r.events = append(r.events, ev)
	return nil
}

func statusIn(s AppointmentStatus, set []AppointmentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func sortAppointmentsAsc(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].StartTime.Before(appts[j].StartTime)
	})
}

func sortAppointmentsDesc(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[j].StartTime.Before(appts[i].StartTime)
	})
}

// MemoryLocker serializes critical sections with an in-process mutex per
// practitioner and day. Single-process deployments and tests only; the
// distributed deployments use the Redis locker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MemoryLocker) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error {
	key := practitionerID.String() + ":" + day.Format("2006-01-02")

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}

var _ redisclient.Locker = (*MemoryLocker)(nil)
var _ Repository = (*MemoryRepository)(nil)
