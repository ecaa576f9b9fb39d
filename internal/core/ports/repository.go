package ports

import (
	"context"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/google/uuid"
)

// PatientRepository defines the interface for patient persistence
type PatientRepository interface {
	CreatePatient(ctx context.Context, patient *domain.Patient) error

	// GetPatient returns domain.ErrPatientNotFound if the patient does not exist
	GetPatient(ctx context.Context, patientID uuid.UUID) (*domain.Patient, error)

	// CompareAndSetStatus writes the status, reason and timestamp in one
	// conditional update. It returns domain.ErrStatusConflict when the stored
	// status is no longer expected, and domain.ErrPatientNotFound when the
	// patient does not exist.
	CompareAndSetStatus(ctx context.Context, patientID uuid.UUID, expected, next domain.PatientStatus, reason string, at time.Time) error
}

// StageClockRepository defines the interface for stage clock persistence
type StageClockRepository interface {
	// GetStageClock returns an empty clock when none has been started
	GetStageClock(ctx context.Context, patientID uuid.UUID) (*domain.StageClock, error)

	// SetStageClockField sets an anchor only if it is still unset and returns
	// domain.ErrAlreadyLocked otherwise
	SetStageClockField(ctx context.Context, patientID uuid.UUID, stage domain.Stage, t domain.ClockTime, updatedBy string) error

	// ClearStageClockField is the administrative unlock. Clearing the first
	// stage also clears the second.
	ClearStageClockField(ctx context.Context, patientID uuid.UUID, stage domain.Stage, updatedBy string) error
}

// ObservationRepository defines the interface for the aggregated observation record
type ObservationRepository interface {
	// GetAggregatedRecord returns nil without error when no record exists
	GetAggregatedRecord(ctx context.Context, patientID uuid.UUID) (*domain.ObservationRecord, error)

	// SaveAggregatedRecord overwrites the whole record
	SaveAggregatedRecord(ctx context.Context, record *domain.ObservationRecord) error
}

// EventPublisher defines the interface for publishing clinical events to RabbitMQ
type EventPublisher interface {
	PublishAlerts(ctx context.Context, patientID uuid.UUID, alerts []domain.Alert) error
	PublishStatusChange(ctx context.Context, change *domain.StatusChange) error
}

// AuditLogger records privileged actions
type AuditLogger interface {
	Audit(userID, action, resource string, success bool, details map[string]interface{})
}
