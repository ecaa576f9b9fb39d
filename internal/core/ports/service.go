package ports

import (
	"context"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/google/uuid"
)

// Actor is the authenticated user behind a request
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the actor holds the ADMIN role
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// String identifies the actor in stored metadata and logs
func (a Actor) String() string {
	return a.UserID.String()
}

// PatientService defines the business logic interface for patient registration
type PatientService interface {
	// RegisterPatient creates a patient in the registered stage
	RegisterPatient(ctx context.Context, req RegisterPatientRequest, actor Actor) (*domain.Patient, error)

	// GetPatient retrieves a patient. MIDWIFE users only see patients they registered.
	GetPatient(ctx context.Context, patientID uuid.UUID, actor Actor) (*domain.Patient, error)
}

// StageClockService defines the business logic interface for the stage clock
type StageClockService interface {
	// GetStageClock returns the clock of a patient the actor can access
	GetStageClock(ctx context.Context, patientID uuid.UUID, actor Actor) (*domain.StageClock, error)

	// SetFirstStageStart pins the active first stage and records the labour milestone
	SetFirstStageStart(ctx context.Context, patientID uuid.UUID, t domain.ClockTime, actor Actor) (*domain.StageClock, error)

	// SetSecondStageStart pins the second stage and records the birth milestone
	SetSecondStageStart(ctx context.Context, patientID uuid.UUID, t domain.ClockTime, actor Actor) (*domain.StageClock, error)

	// UnlockStage is the administrative override; it is audit logged
	UnlockStage(ctx context.Context, patientID uuid.UUID, stage domain.Stage, actor Actor, reason string) (*domain.StageClock, error)
}

// ObservationService defines the business logic interface for the labour care guide
type ObservationService interface {
	GetPartogram(ctx context.Context, patientID uuid.UUID, actor Actor) (*domain.Partogram, error)

	// SaveObservations validates and overwrites the whole observation record
	SaveObservations(ctx context.Context, patientID uuid.UUID, values map[string]string, actor Actor) (*domain.Partogram, error)

	// Evaluate checks a single value as it is entered
	Evaluate(fieldKey, value string) domain.Alert
}

// StatusService defines the status transition engine
// Milestones from the message queue are trusted; those reported by a user go
// through RecordMilestoneAs and its per-patient access check.
type StatusService interface {
	RecordMilestone(ctx context.Context, milestone domain.Milestone) (*domain.StatusChange, error)
	RecordMilestoneAs(ctx context.Context, milestone domain.Milestone, actor Actor) (*domain.StatusChange, error)
}

// RegisterPatientRequest represents the input for registering a patient
type RegisterPatientRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Township string `json:"township,omitempty"`
	Facility string `json:"facility,omitempty"`
	LMP      string `json:"lmp,omitempty"` // YYYY-MM-DD
	EDD      string `json:"edd,omitempty"` // YYYY-MM-DD, checked against LMP
}
