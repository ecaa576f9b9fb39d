package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/IANDYI/labour-care-service/internal/logger"
	_ "github.com/lib/pq"
)

var tables = []string{"observation_records", "stage_clocks", "patients"}

var schema = []struct {
	table string
	ddl   string
}{
	{"patients", `
	CREATE TABLE IF NOT EXISTS patients (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		township TEXT NOT NULL DEFAULT '',
		facility TEXT NOT NULL DEFAULT '',
		lmp DATE,
		status TEXT NOT NULL DEFAULT 'registered',
		status_update_reason TEXT,
		status_updated_at TIMESTAMPTZ,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"stage_clocks", `
	CREATE TABLE IF NOT EXISTS stage_clocks (
		patient_id UUID PRIMARY KEY REFERENCES patients(id) ON DELETE CASCADE,
		first_stage_start INTEGER,
		second_stage_start INTEGER,
		updated_by TEXT,
		updated_at TIMESTAMPTZ,
		-- Minutes since midnight of the day monitoring started
		CONSTRAINT chk_first_stage_range CHECK (first_stage_start IS NULL OR first_stage_start BETWEEN 0 AND 1439),
		CONSTRAINT chk_stage_sequence CHECK (
			second_stage_start IS NULL OR
			(first_stage_start IS NOT NULL AND second_stage_start > first_stage_start)
		)
	);`},
	{"observation_records", `
	CREATE TABLE IF NOT EXISTS observation_records (
		patient_id UUID PRIMARY KEY REFERENCES patients(id) ON DELETE CASCADE,
		anchor_time INTEGER NOT NULL,
		observations JSONB NOT NULL DEFAULT '{}',
		updated_by TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_patients_created_by ON patients(created_by)",
	"CREATE INDEX IF NOT EXISTS idx_patients_status ON patients(status)",
}

// InitDatabase creates the schema. With dropTables set, existing tables are
// dropped first; this loses all data and is meant for development only.
func InitDatabase(ctx context.Context, db *sql.DB, dropTables bool, log *logger.Logger) error {
	entry := log.WithComponent("database")

	if dropTables {
		entry.Warn("Dropping existing tables (DROP_TABLES_ON_STARTUP=true)")
		for _, table := range tables {
			if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
				entry.WithError(err).WithField("table", table).Warn("Failed to drop table")
			}
		}
	}

	for _, s := range schema {
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.table, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			entry.WithError(err).Warn("Failed to create index")
		}
	}

	entry.Info("Database schema initialized successfully")
	return nil
}

// ConnectDatabase establishes a connection to PostgreSQL with retry logic
func ConnectDatabase(databaseURL string, maxRetries int, retryDelay time.Duration, log *logger.Logger) (*sql.DB, error) {
	entry := log.WithComponent("database")
	var err error

	for i := 0; i < maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open("postgres", databaseURL)
		if err == nil {
			if err = db.Ping(); err == nil {
				// Configure connection pool
				db.SetMaxOpenConns(25)
				db.SetMaxIdleConns(5)
				db.SetConnMaxLifetime(5 * time.Minute)

				entry.Info("Database connection established successfully")
				return db, nil
			}
			db.Close()
		}

		entry.WithError(err).WithField("attempt", fmt.Sprintf("%d/%d", i+1, maxRetries)).Warn("Failed to connect to database")
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}
