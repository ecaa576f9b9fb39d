package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// SQLRepository implements the patient, stage clock and observation stores on PostgreSQL
// Includes retry logic and circuit breaker for resilience
type SQLRepository struct {
	db         *sql.DB
	patientCB  *gobreaker.CircuitBreaker
	clockCB    *gobreaker.CircuitBreaker
	recordCB   *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

// Option configures a SQLRepository
type Option func(*SQLRepository)

// WithRetry overrides the retry policy for transient database errors
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(r *SQLRepository) {
		if maxRetries > 0 {
			r.maxRetries = maxRetries
		}
		r.retryDelay = delay
	}
}

// NewSQLRepository creates a new PostgreSQL repository with circuit breakers
func NewSQLRepository(db *sql.DB, opts ...Option) *SQLRepository {
	r := &SQLRepository{
		db:         db,
		patientCB:  gobreaker.NewCircuitBreaker(breakerSettings("patients")),
		clockCB:    gobreaker.NewCircuitBreaker(breakerSettings("stage_clocks")),
		recordCB:   gobreaker.NewCircuitBreaker(breakerSettings("observation_records")),
		maxRetries: 3,
		retryDelay: 1 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Domain outcomes are answers from a healthy database
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
	}
}

// isPermanent reports errors that retrying cannot change
func isPermanent(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, domain.ErrPatientNotFound) ||
		errors.Is(err, domain.ErrAlreadyLocked) ||
		errors.Is(err, domain.ErrInvalidSequence) ||
		errors.Is(err, domain.ErrStatusConflict) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// executeWithRetry executes a database operation with retry logic
func (r *SQLRepository) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	for i := 0; i < r.maxRetries; i++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanent(err) {
			return err
		}
		if i < r.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", r.maxRetries, lastErr)
}

// PatientRepository implementation

func (r *SQLRepository) CreatePatient(ctx context.Context, patient *domain.Patient) error {
	_, err := r.patientCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			query := `INSERT INTO patients (id, name, age, township, facility, lmp, status, created_by, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
			var lmp interface{}
			if patient.LMP != nil {
				lmp = *patient.LMP
			}
			_, err := r.db.ExecContext(ctx, query,
				patient.ID, patient.Name, patient.Age, patient.Township, patient.Facility,
				lmp, string(patient.CurrentStatus()), patient.CreatedBy, patient.CreatedAt)
			return err
		})
	})
	return err
}

func (r *SQLRepository) GetPatient(ctx context.Context, patientID uuid.UUID) (*domain.Patient, error) {
	result, err := r.patientCB.Execute(func() (interface{}, error) {
		var p domain.Patient
		err := r.executeWithRetry(ctx, func() error {
			var (
				status    string
				reason    sql.NullString
				lmp       sql.NullTime
				updatedAt sql.NullTime
			)
			query := `SELECT id, name, age, township, facility, lmp, status, status_update_reason, status_updated_at, created_by, created_at
				FROM patients WHERE id = $1`
			err := r.db.QueryRowContext(ctx, query, patientID).Scan(
				&p.ID, &p.Name, &p.Age, &p.Township, &p.Facility, &lmp,
				&status, &reason, &updatedAt, &p.CreatedBy, &p.CreatedAt)
			if err != nil {
				return err
			}
			p.Status = domain.PatientStatus(status)
			p.StatusReason = reason.String
			if lmp.Valid {
				d := domain.CalendarDate(lmp.Time)
				p.LMP = &d
			}
			if updatedAt.Valid {
				p.StatusUpdatedAt = &updatedAt.Time
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &p, nil
	})

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, err
	}

	return result.(*domain.Patient), nil
}

// CompareAndSetStatus writes status, reason and timestamp only while the stored
// status still equals expected
func (r *SQLRepository) CompareAndSetStatus(ctx context.Context, patientID uuid.UUID, expected, next domain.PatientStatus, reason string, at time.Time) error {
	_, err := r.patientCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			query := `UPDATE patients SET status = $1, status_update_reason = $2, status_updated_at = $3
				WHERE id = $4 AND status = $5`
			result, err := r.db.ExecContext(ctx, query, string(next), reason, at, patientID, string(expected))
			if err != nil {
				return err
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if rowsAffected > 0 {
				return nil
			}

			exists, err := r.patientExists(ctx, patientID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrPatientNotFound
			}
			return domain.ErrStatusConflict
		})
	})
	return err
}

func (r *SQLRepository) patientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1)`, patientID).Scan(&exists)
	return exists, err
}

// StageClockRepository implementation

func (r *SQLRepository) GetStageClock(ctx context.Context, patientID uuid.UUID) (*domain.StageClock, error) {
	result, err := r.clockCB.Execute(func() (interface{}, error) {
		clock := &domain.StageClock{PatientID: patientID}
		err := r.executeWithRetry(ctx, func() error {
			return r.scanStageClock(ctx, patientID, clock)
		})
		if errors.Is(err, sql.ErrNoRows) {
			return clock, nil
		}
		if err != nil {
			return nil, err
		}
		return clock, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.StageClock), nil
}

func (r *SQLRepository) scanStageClock(ctx context.Context, patientID uuid.UUID, clock *domain.StageClock) error {
	var (
		first, second sql.NullInt64
		updatedBy     sql.NullString
		updatedAt     sql.NullTime
	)
	query := `SELECT first_stage_start, second_stage_start, updated_by, updated_at FROM stage_clocks WHERE patient_id = $1`
	if err := r.db.QueryRowContext(ctx, query, patientID).Scan(&first, &second, &updatedBy, &updatedAt); err != nil {
		return err
	}
	clock.FirstStageStart = nullClockTime(first)
	clock.SecondStageStart = nullClockTime(second)
	clock.UpdatedBy = updatedBy.String
	if updatedAt.Valid {
		clock.UpdatedAt = updatedAt.Time
	}
	return nil
}

// SetStageClockField locks one anchor. The write only lands while the column
// is still NULL, so concurrent writers cannot both succeed.
func (r *SQLRepository) SetStageClockField(ctx context.Context, patientID uuid.UUID, stage domain.Stage, t domain.ClockTime, updatedBy string) error {
	_, err := r.clockCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			now := r.now().UTC()
			var (
				result sql.Result
				err    error
			)
			switch stage {
			case domain.StageFirst:
				query := `INSERT INTO stage_clocks (patient_id, first_stage_start, updated_by, updated_at)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (patient_id) DO UPDATE
					SET first_stage_start = EXCLUDED.first_stage_start, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
					WHERE stage_clocks.first_stage_start IS NULL`
				result, err = r.db.ExecContext(ctx, query, patientID, int(t), updatedBy, now)
			case domain.StageSecond:
				query := `UPDATE stage_clocks SET second_stage_start = $2, updated_by = $3, updated_at = $4
					WHERE patient_id = $1 AND second_stage_start IS NULL
					AND first_stage_start IS NOT NULL AND first_stage_start < $2`
				result, err = r.db.ExecContext(ctx, query, patientID, int(t), updatedBy, now)
			default:
				return domain.NewValidationError("stage", "%q is not first or second", stage)
			}
			if err != nil {
				return err
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if rowsAffected > 0 {
				return nil
			}
			if stage == domain.StageFirst {
				return domain.ErrAlreadyLocked
			}
			return r.secondStageRejection(ctx, patientID, t)
		})
	})
	return err
}

// secondStageRejection explains why a second stage write matched no row
func (r *SQLRepository) secondStageRejection(ctx context.Context, patientID uuid.UUID, t domain.ClockTime) error {
	clock := &domain.StageClock{PatientID: patientID}
	err := r.scanStageClock(ctx, patientID, clock)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := clock.ValidateSecondStage(t); err != nil {
		return err
	}
	return domain.ErrAlreadyLocked
}

// ClearStageClockField is the administrative unlock. Clearing the first stage
// also clears the second.
func (r *SQLRepository) ClearStageClockField(ctx context.Context, patientID uuid.UUID, stage domain.Stage, updatedBy string) error {
	_, err := r.clockCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			var query string
			switch stage {
			case domain.StageFirst:
				query = `UPDATE stage_clocks SET first_stage_start = NULL, second_stage_start = NULL, updated_by = $2, updated_at = $3 WHERE patient_id = $1`
			case domain.StageSecond:
				query = `UPDATE stage_clocks SET second_stage_start = NULL, updated_by = $2, updated_at = $3 WHERE patient_id = $1`
			default:
				return domain.NewValidationError("stage", "%q is not first or second", stage)
			}
			_, err := r.db.ExecContext(ctx, query, patientID, updatedBy, r.now().UTC())
			return err
		})
	})
	return err
}

// ObservationRepository implementation

func (r *SQLRepository) GetAggregatedRecord(ctx context.Context, patientID uuid.UUID) (*domain.ObservationRecord, error) {
	result, err := r.recordCB.Execute(func() (interface{}, error) {
		record := &domain.ObservationRecord{PatientID: patientID}
		err := r.executeWithRetry(ctx, func() error {
			var (
				anchor    int64
				raw       []byte
				updatedBy sql.NullString
			)
			query := `SELECT anchor_time, observations, updated_by, updated_at FROM observation_records WHERE patient_id = $1`
			if err := r.db.QueryRowContext(ctx, query, patientID).Scan(&anchor, &raw, &updatedBy, &record.UpdatedAt); err != nil {
				return err
			}
			record.AnchorTime = domain.ClockTime(anchor)
			record.UpdatedBy = updatedBy.String
			record.Values = map[string]string{}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &record.Values); err != nil {
					return fmt.Errorf("failed to decode observations: %w", err)
				}
			}
			return nil
		})
		if errors.Is(err, sql.ErrNoRows) {
			return (*domain.ObservationRecord)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.ObservationRecord), nil
}

func (r *SQLRepository) SaveAggregatedRecord(ctx context.Context, record *domain.ObservationRecord) error {
	raw, err := json.Marshal(record.Values)
	if err != nil {
		return fmt.Errorf("failed to encode observations: %w", err)
	}
	_, err = r.recordCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			query := `INSERT INTO observation_records (patient_id, anchor_time, observations, updated_by, updated_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (patient_id) DO UPDATE
				SET anchor_time = EXCLUDED.anchor_time, observations = EXCLUDED.observations,
					updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
			_, err := r.db.ExecContext(ctx, query, record.PatientID, int(record.AnchorTime), raw, record.UpdatedBy, record.UpdatedAt)
			return err
		})
	})
	return err
}

func nullClockTime(v sql.NullInt64) *domain.ClockTime {
	if !v.Valid {
		return nil
	}
	t := domain.ClockTime(v.Int64)
	return &t
}

// Ensure SQLRepository implements the interfaces
var _ ports.PatientRepository = (*SQLRepository)(nil)
var _ ports.StageClockRepository = (*SQLRepository)(nil)
var _ ports.ObservationRepository = (*SQLRepository)(nil)
