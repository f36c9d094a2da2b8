package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dentalsys/clinic-scheduling/internal/db"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "seed").Logger()

func main() {
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("apply schema")
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedCalendarConfig(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("seed calendar config")
	}
	if err := seedPractitioners(context.Background(), pool, 12); err != nil {
		logger.Fatal().Err(err).Msg("seed practitioners")
	}
	if err := seedServices(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("seed services")
	}
	if err := seedPatients(context.Background(), pool, 500); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedCalendarConfig(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO calendar_config (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`)
	return err
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding practitioners")

	specialties := []string{
		"General Dentistry",
		"Orthodontics",
		"Endodontics",
		"Periodontics",
		"Oral Surgery",
		"Pediatric Dentistry",
		"Prosthodontics",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		registration := fmt.Sprintf("CRO-%05d", gofakeit.Number(10000, 99999))
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, name, registration, specialty, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, id, name, registration, spec)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("practitioners seeded")
	return nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) error {
	services := []struct {
		name     string
		duration int
		price    int64
	}{
		{"Consultation", 30, 12000},
		{"Cleaning", 30, 18000},
		{"Whitening", 60, 45000},
		{"Filling", 60, 25000},
		{"Root Canal", 90, 90000},
		{"Extraction", 60, 35000},
		{"Orthodontic Adjustment", 30, 20000},
		{"Implant Evaluation", 60, 30000},
	}

	logger.Info().Int("count", len(services)).Msg("seeding services")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, description, duration_minutes, price_cents, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, now(), now())
		`, uuid.New(), s.name, gofakeit.Sentence(8), s.duration, s.price)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("services seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, true, now(), now())
			`, id, name, email, phone)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded batch")
	}

	logger.Info().Msg("patients seeded")
	return nil
}
