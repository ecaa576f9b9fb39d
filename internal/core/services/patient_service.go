package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
)

// PatientService implements patient registration and lookup
// Enforces RBAC: MIDWIFE users only see the patients they registered
type PatientService struct {
	patientRepo ports.PatientRepository
	log         *logger.Logger
	now         func() time.Time
}

var _ ports.PatientService = (*PatientService)(nil)

// NewPatientService creates a new patient service
func NewPatientService(patientRepo ports.PatientRepository, log *logger.Logger) *PatientService {
	return &PatientService{
		patientRepo: patientRepo,
		log:         log,
		now:         time.Now,
	}
}

// RegisterPatient creates a patient in the registered stage
func (s *PatientService) RegisterPatient(ctx context.Context, req ports.RegisterPatientRequest, actor ports.Actor) (*domain.Patient, error) {
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleMidwife {
		return nil, fmt.Errorf("%w: only ADMIN or MIDWIFE can register patients", domain.ErrForbidden)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "cannot be empty")
	}
	if req.Age < 10 || req.Age > 60 {
		return nil, domain.NewValidationError("age", "%d is outside 10-60", req.Age)
	}

	now := s.now().UTC()
	patient := &domain.Patient{
		ID:        uuid.New(),
		Name:      name,
		Age:       req.Age,
		Township:  strings.TrimSpace(req.Township),
		Facility:  strings.TrimSpace(req.Facility),
		Status:    domain.StatusRegistered,
		CreatedBy: actor.UserID,
		CreatedAt: now,
	}

	if req.LMP != "" {
		lmp, err := domain.ParseClinicalDate("lmp", req.LMP)
		if err != nil {
			return nil, err
		}
		if _, err := domain.CalculateGestationalAge(lmp, now); err != nil {
			return nil, err
		}
		if req.EDD != "" {
			edd, err := domain.ParseClinicalDate("edd", req.EDD)
			if err != nil {
				return nil, err
			}
			if err := domain.ValidateDueDate(lmp, edd); err != nil {
				return nil, err
			}
		}
		patient.LMP = &lmp
	} else if req.EDD != "" {
		return nil, domain.NewValidationError("edd", "requires lmp")
	}

	if err := s.patientRepo.CreatePatient(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"event":      "patient_registered",
		"patient_id": patient.ID.String(),
		"created_by": actor.String(),
	}).Info("Patient registered")

	return patient, nil
}

// GetPatient retrieves a patient by ID
// ADMIN and TMO can access any patient, MIDWIFE only their own
func (s *PatientService) GetPatient(ctx context.Context, patientID uuid.UUID, actor ports.Actor) (*domain.Patient, error) {
	return authorizePatient(ctx, s.patientRepo, patientID, actor)
}
