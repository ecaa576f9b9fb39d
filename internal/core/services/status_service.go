package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
)

const maxTransitionAttempts = 3

// StatusService applies care milestones to patient status
// Each attempt reads the patient, evaluates the guard and writes with a
// compare-and-set; a lost race is re-evaluated against the fresh status.
type StatusService struct {
	patientRepo ports.PatientRepository
	publisher   ports.EventPublisher
	log         *logger.Logger
	now         func() time.Time
}

var _ ports.StatusService = (*StatusService)(nil)

// NewStatusService creates a new status service. publisher may be nil.
func NewStatusService(patientRepo ports.PatientRepository, publisher ports.EventPublisher, log *logger.Logger) *StatusService {
	return &StatusService{
		patientRepo: patientRepo,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

// RecordMilestone evaluates the milestone against the patient's current status
// and applies the resulting transition. Guards that do not hold return a
// change with Applied set to false and no error.
func (s *StatusService) RecordMilestone(ctx context.Context, milestone domain.Milestone) (*domain.StatusChange, error) {
	var lastErr error
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		patient, err := s.patientRepo.GetPatient(ctx, milestone.PatientID)
		if err != nil {
			return nil, fmt.Errorf("failed to load patient: %w", err)
		}

		transition, err := domain.NextStatus(patient.CurrentStatus(), milestone)
		if err != nil {
			return nil, err
		}

		at := milestone.OccurredAt
		if at.IsZero() {
			at = s.now()
		}
		change := &domain.StatusChange{
			PatientID: milestone.PatientID,
			Milestone: milestone.Kind,
			From:      transition.From,
			To:        transition.To,
			Reason:    transition.Reason,
			At:        at.UTC(),
		}

		if !transition.Apply {
			return change, nil
		}

		err = s.patientRepo.CompareAndSetStatus(ctx, milestone.PatientID, patient.Status, transition.To, transition.Reason, change.At)
		if errors.Is(err, domain.ErrStatusConflict) {
			statusConflictsTotal.Inc()
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update patient status: %w", err)
		}

		change.Applied = true
		statusTransitionsTotal.WithLabelValues(string(change.From), string(change.To)).Inc()
		s.log.WithContext(ctx).WithFields(map[string]interface{}{
			"event":      "status_transition",
			"patient_id": change.PatientID.String(),
			"milestone":  string(change.Milestone),
			"from":       string(change.From),
			"to":         string(change.To),
			"reason":     change.Reason,
		}).Info("Patient status updated")

		s.publishAsync(change)
		return change, nil
	}

	return nil, fmt.Errorf("failed to update patient status after %d attempts: %w", maxTransitionAttempts, lastErr)
}

// RecordMilestoneAs records a milestone reported by a user, who must be able
// to access the patient
func (s *StatusService) RecordMilestoneAs(ctx context.Context, milestone domain.Milestone, actor ports.Actor) (*domain.StatusChange, error) {
	if _, err := authorizePatient(ctx, s.patientRepo, milestone.PatientID, actor); err != nil {
		return nil, err
	}
	return s.RecordMilestone(ctx, milestone)
}

func (s *StatusService) publishAsync(change *domain.StatusChange) {
	if s.publisher == nil {
		return
	}
	go func() {
		// Background context so the request's cancellation does not drop the event
		if err := s.publisher.PublishStatusChange(context.Background(), change); err != nil {
			s.log.WithError(err).WithField("patient_id", change.PatientID.String()).Warn("Failed to publish status change")
		}
	}()
}
