package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
)

// MilestoneMessage is the inbound milestone format published by the care
// form services (ANC visit, birth, postnatal and transfer forms)
type MilestoneMessage struct {
	PatientID    string    `json:"patient_id"`
	Kind         string    `json:"kind"`
	TransferKind string    `json:"transfer_kind,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at,omitempty"`
}

// NewMilestoneHandler returns a MessageHandler that feeds milestones into the
// status transition engine. Malformed messages and unknown patients are
// rejected; storage failures are requeued.
func NewMilestoneHandler(status ports.StatusService, log *logger.Logger) MessageHandler {
	return func(ctx context.Context, body []byte) error {
		var msg MilestoneMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: invalid milestone message: %v", ErrRejectMessage, err)
		}

		patientID, err := uuid.Parse(msg.PatientID)
		if err != nil {
			return fmt.Errorf("%w: patient_id is not a valid UUID", ErrRejectMessage)
		}

		change, err := status.RecordMilestone(ctx, domain.Milestone{
			PatientID:  patientID,
			Kind:       domain.MilestoneKind(msg.Kind),
			Transfer:   domain.TransferKind(msg.TransferKind),
			Reason:     msg.Reason,
			OccurredAt: msg.OccurredAt,
		})
		if err != nil {
			if domain.IsValidationError(err) || errors.Is(err, domain.ErrPatientNotFound) {
				return fmt.Errorf("%w: %v", ErrRejectMessage, err)
			}
			return err
		}

		log.WithFields(map[string]interface{}{
			"event":      "milestone_consumed",
			"patient_id": patientID.String(),
			"milestone":  msg.Kind,
			"applied":    change.Applied,
			"status":     string(change.To),
		}).Info("Milestone processed")
		return nil
	}
}
