package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exclusionViolation is the SQLSTATE raised by the no-overlap constraint on
// appointments.
const exclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Registration,
		&p.Specialty,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.DurationMinutes,
		&s.PriceCents,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.ServiceID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func statusStrings(statuses []AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

const appointmentColumns = `id, patient_id, practitioner_id, service_id, start_time, end_time, status, notes, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, active, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, registration, specialty, active, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, duration_minutes, price_cents, active, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) ListActivePractitioners(ctx context.Context) ([]Practitioner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, registration, specialty, active, created_at, updated_at
		FROM practitioners
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListActiveServices(ctx context.Context) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, duration_minutes, price_cents, active, created_at, updated_at
		FROM services
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListPractitionerAppointments(ctx context.Context, practitionerID uuid.UUID, from, to time.Time, statuses []AppointmentStatus) ([]Appointment, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if len(statuses) == 0 {
		rows, err = r.pool.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE practitioner_id = $1
			  AND start_time >= $2
			  AND start_time < $3
			ORDER BY start_time
		`, practitionerID, from, to)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE practitioner_id = $1
			  AND start_time >= $2
			  AND start_time < $3
			  AND status = ANY($4)
			ORDER BY start_time
		`, practitionerID, from, to, statusStrings(statuses))
	}
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, practitioner_id, service_id, start_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.PatientID, appt.PractitionerID, appt.ServiceID, appt.StartTime, appt.EndTime, appt.Status, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, id, to)

	return scanAppointment(row)
}

func (r *PgRepository) PractitionerHasAppointments(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE practitioner_id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) ServiceHasAppointments(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE service_id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) DeletePractitioner(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM practitioners WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete practitioner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPractitionerNotFound
	}
	return nil
}

func (r *PgRepository) DeleteService(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

func (r *PgRepository) GetCalendarConfig(ctx context.Context) (*CalendarConfig, error) {
	var cfg CalendarConfig

	err := r.pool.QueryRow(ctx, `
		SELECT clinic_name,
		       open_sunday, open_monday, open_tuesday, open_wednesday, open_thursday, open_friday, open_saturday,
		       morning_start, morning_end, afternoon_start, afternoon_end,
		       slot_interval, updated_at
		FROM calendar_config
		WHERE id = 1
	`).Scan(
		&cfg.ClinicName,
		&cfg.OpenDays[time.Sunday],
		&cfg.OpenDays[time.Monday],
		&cfg.OpenDays[time.Tuesday],
		&cfg.OpenDays[time.Wednesday],
		&cfg.OpenDays[time.Thursday],
		&cfg.OpenDays[time.Friday],
		&cfg.OpenDays[time.Saturday],
		&cfg.MorningStart,
		&cfg.MorningEnd,
		&cfg.AfternoonStart,
		&cfg.AfternoonEnd,
		&cfg.SlotInterval,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	return &cfg, nil
}

func (r *PgRepository) SaveCalendarConfig(ctx context.Context, cfg CalendarConfig) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO calendar_config (
			id, clinic_name,
			open_sunday, open_monday, open_tuesday, open_wednesday, open_thursday, open_friday, open_saturday,
			morning_start, morning_end, afternoon_start, afternoon_end,
			slot_interval, updated_at
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (id) DO UPDATE SET
			clinic_name     = EXCLUDED.clinic_name,
			open_sunday     = EXCLUDED.open_sunday,
			open_monday     = EXCLUDED.open_monday,
			open_tuesday    = EXCLUDED.open_tuesday,
			open_wednesday  = EXCLUDED.open_wednesday,
			open_thursday   = EXCLUDED.open_thursday,
			open_friday     = EXCLUDED.open_friday,
			open_saturday   = EXCLUDED.open_saturday,
			morning_start   = EXCLUDED.morning_start,
			morning_end     = EXCLUDED.morning_end,
			afternoon_start = EXCLUDED.afternoon_start,
			afternoon_end   = EXCLUDED.afternoon_end,
			slot_interval   = EXCLUDED.slot_interval,
			updated_at      = now()
	`,
		cfg.ClinicName,
		cfg.OpenDays[time.Sunday],
		cfg.OpenDays[time.Monday],
		cfg.OpenDays[time.Tuesday],
		cfg.OpenDays[time.Wednesday],
		cfg.OpenDays[time.Thursday],
		cfg.OpenDays[time.Friday],
		cfg.OpenDays[time.Saturday],
		cfg.MorningStart,
		cfg.MorningEnd,
		cfg.AfternoonStart,
		cfg.AfternoonEnd,
		cfg.SlotInterval,
	)
	if err != nil {
		return fmt.Errorf("save calendar config: %w", err)
	}

	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
