package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
)

// StageClockService pins the labour anchors that drive every schedule
type StageClockService struct {
	clockRepo   ports.StageClockRepository
	patientRepo ports.PatientRepository
	status      ports.StatusService
	audit       ports.AuditLogger
	log         *logger.Logger
	now         func() time.Time
}

var _ ports.StageClockService = (*StageClockService)(nil)

// NewStageClockService creates a new stage clock service
func NewStageClockService(
	clockRepo ports.StageClockRepository,
	patientRepo ports.PatientRepository,
	status ports.StatusService,
	audit ports.AuditLogger,
	log *logger.Logger,
) *StageClockService {
	return &StageClockService{
		clockRepo:   clockRepo,
		patientRepo: patientRepo,
		status:      status,
		audit:       audit,
		log:         log,
		now:         time.Now,
	}
}

// GetStageClock returns the patient's stage clock
func (s *StageClockService) GetStageClock(ctx context.Context, patientID uuid.UUID, actor ports.Actor) (*domain.StageClock, error) {
	if _, err := authorizePatient(ctx, s.patientRepo, patientID, actor); err != nil {
		return nil, err
	}
	clock, err := s.clockRepo.GetStageClock(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage clock: %w", err)
	}
	clock.PatientID = patientID
	return clock, nil
}

// SetFirstStageStart pins the active first stage start time
func (s *StageClockService) SetFirstStageStart(ctx context.Context, patientID uuid.UUID, t domain.ClockTime, actor ports.Actor) (*domain.StageClock, error) {
	clock, err := s.GetStageClock(ctx, patientID, actor)
	if err != nil {
		return nil, err
	}

	if err := clock.SetFirstStageStart(t); err != nil {
		return nil, s.rejected(domain.StageFirst, err)
	}

	// The repository repeats the lock check atomically for concurrent writers
	if err := s.clockRepo.SetStageClockField(ctx, patientID, domain.StageFirst, t, actor.String()); err != nil {
		if errors.Is(err, domain.ErrAlreadyLocked) {
			return nil, s.rejected(domain.StageFirst, err)
		}
		return nil, fmt.Errorf("failed to set first stage start: %w", err)
	}
	s.stamp(clock, actor)
	s.logClock(ctx, clock, domain.StageFirst, t)

	s.recordMilestone(ctx, domain.Milestone{
		PatientID: patientID,
		Kind:      domain.MilestoneFirstStage,
	})

	return clock, nil
}

// SetSecondStageStart pins the second stage start time, which must be strictly
// after the active first stage start
func (s *StageClockService) SetSecondStageStart(ctx context.Context, patientID uuid.UUID, t domain.ClockTime, actor ports.Actor) (*domain.StageClock, error) {
	clock, err := s.GetStageClock(ctx, patientID, actor)
	if err != nil {
		return nil, err
	}

	if err := clock.SetSecondStageStart(t); err != nil {
		return nil, s.rejected(domain.StageSecond, err)
	}

	if err := s.clockRepo.SetStageClockField(ctx, patientID, domain.StageSecond, t, actor.String()); err != nil {
		if errors.Is(err, domain.ErrAlreadyLocked) {
			return nil, s.rejected(domain.StageSecond, err)
		}
		return nil, fmt.Errorf("failed to set second stage start: %w", err)
	}
	s.stamp(clock, actor)
	s.logClock(ctx, clock, domain.StageSecond, t)

	s.recordMilestone(ctx, domain.Milestone{
		PatientID: patientID,
		Kind:      domain.MilestoneBirth,
		Reason:    "Second stage time recorded",
	})

	return clock, nil
}

// UnlockStage clears a pinned anchor. ADMIN only; every attempt is audited.
func (s *StageClockService) UnlockStage(ctx context.Context, patientID uuid.UUID, stage domain.Stage, actor ports.Actor, reason string) (*domain.StageClock, error) {
	details := map[string]interface{}{
		"stage":  string(stage),
		"reason": reason,
		"role":   actor.Role,
	}
	resource := "patient/" + patientID.String() + "/stage-clock"

	if !actor.IsAdmin() {
		s.audit.Audit(actor.String(), "unlock_stage_clock", resource, false, details)
		return nil, fmt.Errorf("%w: only ADMIN can unlock the stage clock", domain.ErrForbidden)
	}
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required to unlock the stage clock")
	}

	clock, err := s.GetStageClock(ctx, patientID, actor)
	if err != nil {
		return nil, err
	}

	if err := s.clockRepo.ClearStageClockField(ctx, patientID, stage, actor.String()); err != nil {
		details["error"] = err.Error()
		s.audit.Audit(actor.String(), "unlock_stage_clock", resource, false, details)
		return nil, fmt.Errorf("failed to unlock %s stage: %w", stage, err)
	}

	clock.Unlock(stage)
	s.stamp(clock, actor)
	s.audit.Audit(actor.String(), "unlock_stage_clock", resource, true, details)

	return clock, nil
}

func (s *StageClockService) rejected(stage domain.Stage, err error) error {
	reason := "invalid"
	switch {
	case errors.Is(err, domain.ErrAlreadyLocked):
		reason = "already_locked"
	case errors.Is(err, domain.ErrInvalidSequence):
		reason = "invalid_sequence"
	}
	stageClockRejectionsTotal.WithLabelValues(string(stage), reason).Inc()
	return err
}

func (s *StageClockService) stamp(clock *domain.StageClock, actor ports.Actor) {
	clock.UpdatedBy = actor.String()
	clock.UpdatedAt = s.now().UTC()
}

// recordMilestone advances the patient status. A failure here does not undo
// the clock, which is already locked.
func (s *StageClockService) recordMilestone(ctx context.Context, milestone domain.Milestone) {
	if s.status == nil {
		return
	}
	milestone.OccurredAt = s.now()
	if _, err := s.status.RecordMilestone(ctx, milestone); err != nil {
		s.log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"patient_id": milestone.PatientID.String(),
			"milestone":  string(milestone.Kind),
		}).Error("Failed to record milestone after stage clock update")
	}
}

func (s *StageClockService) logClock(ctx context.Context, clock *domain.StageClock, stage domain.Stage, t domain.ClockTime) {
	fields := map[string]interface{}{
		"event":      "stage_clock_set",
		"patient_id": clock.PatientID.String(),
		"stage":      string(stage),
		"time":       t.String(),
		"updated_by": clock.UpdatedBy,
	}
	if duration := clock.FirstStageDurationText(); duration != "" {
		fields["first_stage_duration"] = duration
	}
	s.log.WithContext(ctx).WithFields(fields).Info("Stage clock updated")
}
