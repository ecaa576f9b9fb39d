package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ObservationService reads and writes the labour care guide of a patient
// Saved values are evaluated and newly raised alerts are published asynchronously
type ObservationService struct {
	recordRepo  ports.ObservationRepository
	clockRepo   ports.StageClockRepository
	patientRepo ports.PatientRepository
	publisher   ports.EventPublisher
	log         *logger.Logger
	now         func() time.Time
}

var _ ports.ObservationService = (*ObservationService)(nil)

// NewObservationService creates a new observation service. publisher may be nil.
func NewObservationService(
	recordRepo ports.ObservationRepository,
	clockRepo ports.StageClockRepository,
	patientRepo ports.PatientRepository,
	publisher ports.EventPublisher,
	log *logger.Logger,
) *ObservationService {
	return &ObservationService{
		recordRepo:  recordRepo,
		clockRepo:   clockRepo,
		patientRepo: patientRepo,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

// GetPartogram builds every category grid from the stage clock and the stored record
func (s *ObservationService) GetPartogram(ctx context.Context, patientID uuid.UUID, actor ports.Actor) (*domain.Partogram, error) {
	clock, values, err := s.load(ctx, patientID, actor)
	if err != nil {
		return nil, err
	}
	return domain.BuildPartogram(*clock, values), nil
}

// SaveObservations validates and overwrites the patient's observation record
func (s *ObservationService) SaveObservations(ctx context.Context, patientID uuid.UUID, values map[string]string, actor ports.Actor) (*domain.Partogram, error) {
	if err := domain.ValidateObservations(values); err != nil {
		return nil, err
	}

	clock, previous, err := s.load(ctx, patientID, actor)
	if err != nil {
		return nil, err
	}
	if clock.FirstStageStart == nil {
		return nil, domain.NewValidationError("active_first_stage_start", "must be set before observations are recorded")
	}
	if err := domain.ValidateScheduledKeys(*clock, values); err != nil {
		return nil, err
	}

	// Empty values clear a cell and are not stored
	stored := lo.OmitBy(values, func(_ string, v string) bool { return v == "" })

	record := &domain.ObservationRecord{
		PatientID:  patientID,
		AnchorTime: *clock.FirstStageStart,
		Values:     stored,
		UpdatedBy:  actor.String(),
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.recordRepo.SaveAggregatedRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save observations: %w", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"event":       "observations_saved",
		"patient_id":  patientID.String(),
		"anchor_time": record.AnchorTime.String(),
		"values":      len(stored),
		"updated_by":  record.UpdatedBy,
	}).Info("Observation record saved")

	raised := newAlerts(previous, stored)
	if len(raised) > 0 {
		for _, a := range raised {
			clinicalAlertsTotal.WithLabelValues(string(a.Field)).Inc()
		}
		s.publishAsync(patientID, raised)
	}

	return domain.BuildPartogram(*clock, stored), nil
}

// Evaluate checks a single value as it is entered
func (s *ObservationService) Evaluate(fieldKey, value string) domain.Alert {
	return domain.Evaluate(fieldKey, value)
}

// load returns the stage clock and the stored values that belong to its first
// stage anchor. A record taken against an earlier anchor is discarded.
func (s *ObservationService) load(ctx context.Context, patientID uuid.UUID, actor ports.Actor) (*domain.StageClock, map[string]string, error) {
	if _, err := authorizePatient(ctx, s.patientRepo, patientID, actor); err != nil {
		return nil, nil, err
	}

	clock, err := s.clockRepo.GetStageClock(ctx, patientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get stage clock: %w", err)
	}
	clock.PatientID = patientID

	record, err := s.recordRepo.GetAggregatedRecord(ctx, patientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get observation record: %w", err)
	}
	if record == nil {
		return clock, map[string]string{}, nil
	}
	if !record.MatchesAnchor(clock.FirstStageStart) {
		s.log.WithContext(ctx).WithFields(map[string]interface{}{
			"patient_id":    patientID.String(),
			"record_anchor": record.AnchorTime.String(),
		}).Info("Discarding observation record from a previous first stage anchor")
		return clock, map[string]string{}, nil
	}
	return clock, maps.Clone(record.Values), nil
}

// newAlerts returns the alerts raised by values that were added or changed
func newAlerts(previous, current map[string]string) []domain.Alert {
	changed := lo.PickBy(current, func(key string, value string) bool {
		return previous[key] != value
	})
	alerts := lo.Map(lo.Keys(changed), func(key string, _ int) domain.Alert {
		return domain.Evaluate(key, changed[key])
	})
	alerts = lo.Filter(alerts, func(a domain.Alert, _ int) bool { return a.IsAlert })
	slices.SortFunc(alerts, func(a, b domain.Alert) int { return strings.Compare(a.Key, b.Key) })
	return alerts
}

func (s *ObservationService) publishAsync(patientID uuid.UUID, alerts []domain.Alert) {
	if s.publisher == nil {
		return
	}
	go func() {
		if err := s.publisher.PublishAlerts(context.Background(), patientID, alerts); err != nil {
			s.log.WithError(err).WithField("patient_id", patientID.String()).Warn("Failed to publish clinical alerts")
			return
		}
		s.log.WithFields(map[string]interface{}{
			"event":      "alert_published",
			"patient_id": patientID.String(),
			"alerts":     len(alerts),
		}).Info("Clinical alerts published")
	}()
}
