package services

import (
	"context"
	"fmt"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/google/uuid"
)

// authorizePatient loads a patient the actor may work on. MIDWIFE users only
// reach the patients they registered; for anyone else's the patient is
// reported as not found so its existence does not leak.
func authorizePatient(ctx context.Context, repo ports.PatientRepository, patientID uuid.UUID, actor ports.Actor) (*domain.Patient, error) {
	patient, err := repo.GetPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	if actor.Role == domain.RoleMidwife && patient.CreatedBy != actor.UserID {
		return nil, fmt.Errorf("failed to get patient: %w", domain.ErrPatientNotFound)
	}

	return patient, nil
}
