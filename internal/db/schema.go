package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on startup; every statement is idempotent. The exclusion
// constraint on appointments is the storage-level backstop for the booking
// path: no two pending/confirmed appointments for the same practitioner may
// overlap in [start_time, end_time), even across processes that bypass the
// application lock.
const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS patients (
	id          uuid PRIMARY KEY,
	name        text NOT NULL,
	email       text,
	phone       text,
	active      boolean NOT NULL DEFAULT true,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS practitioners (
	id            uuid PRIMARY KEY,
	name          text NOT NULL,
	registration  text NOT NULL UNIQUE,
	specialty     text,
	active        boolean NOT NULL DEFAULT true,
	created_at    timestamptz NOT NULL DEFAULT now(),
	updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS services (
	id                uuid PRIMARY KEY,
	name              text NOT NULL,
	description       text,
	duration_minutes  integer NOT NULL CHECK (duration_minutes > 0),
	price_cents       bigint NOT NULL DEFAULT 0,
	active            boolean NOT NULL DEFAULT true,
	created_at        timestamptz NOT NULL DEFAULT now(),
	updated_at        timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS appointments (
	id               uuid PRIMARY KEY,
	patient_id       uuid NOT NULL REFERENCES patients(id),
	practitioner_id  uuid NOT NULL REFERENCES practitioners(id),
	service_id       uuid NOT NULL REFERENCES services(id),
	start_time       timestamptz NOT NULL,
	end_time         timestamptz NOT NULL,
	status           text NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed')),
	notes            text,
	created_at       timestamptz NOT NULL DEFAULT now(),
	updated_at       timestamptz NOT NULL DEFAULT now(),
	CHECK (end_time > start_time),
	CONSTRAINT appointments_no_overlap EXCLUDE USING gist (
		practitioner_id WITH =,
		tstzrange(start_time, end_time) WITH &&
	) WHERE (status IN ('pending', 'confirmed'))
);

CREATE INDEX IF NOT EXISTS idx_appointments_practitioner_start
	ON appointments (practitioner_id, start_time);
CREATE INDEX IF NOT EXISTS idx_appointments_patient_start
	ON appointments (patient_id, start_time DESC);

CREATE TABLE IF NOT EXISTS calendar_config (
	id               integer PRIMARY KEY CHECK (id = 1),
	clinic_name      text NOT NULL DEFAULT 'DentalSystem',
	open_sunday      boolean NOT NULL DEFAULT false,
	open_monday      boolean NOT NULL DEFAULT true,
	open_tuesday     boolean NOT NULL DEFAULT true,
	open_wednesday   boolean NOT NULL DEFAULT true,
	open_thursday    boolean NOT NULL DEFAULT true,
	open_friday      boolean NOT NULL DEFAULT true,
	open_saturday    boolean NOT NULL DEFAULT false,
	morning_start    text NOT NULL DEFAULT '08:00',
	morning_end      text NOT NULL DEFAULT '12:00',
	afternoon_start  text NOT NULL DEFAULT '14:00',
	afternoon_end    text NOT NULL DEFAULT '18:00',
	slot_interval    integer NOT NULL DEFAULT 30,
	updated_at       timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS event_logs (
	id              bigserial PRIMARY KEY,
	event_type      text NOT NULL,
	appointment_id  uuid,
	payload         jsonb,
	created_at      timestamptz NOT NULL DEFAULT now()
);
`

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
