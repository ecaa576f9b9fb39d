package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
)

// MilestoneHandler lets care forms report milestones over HTTP
type MilestoneHandler struct {
	statusService ports.StatusService
	log           *logger.Logger
}

// NewMilestoneHandler creates a new milestone handler
func NewMilestoneHandler(statusService ports.StatusService, log *logger.Logger) *MilestoneHandler {
	return &MilestoneHandler{
		statusService: statusService,
		log:           log,
	}
}

// RecordMilestoneRequest is the body of POST /patients/{patient_id}/milestones
type RecordMilestoneRequest struct {
	Kind         string    `json:"kind"`
	TransferKind string    `json:"transfer_kind,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at,omitempty"`
}

// RecordMilestone handles POST /patients/{patient_id}/milestones
// Returns 200 with applied=false when the patient is already past the target
func (h *MilestoneHandler) RecordMilestone(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	reqID := requestID(r)
	entry := h.log.WithRequestID(reqID)

	actor, err := actorFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	patientID, err := patientIDFromPath(r)
	if err != nil {
		status := writeError(w, entry, err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	var req RecordMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		logStructured(h.log, r, reqID, actor, http.StatusBadRequest, time.Since(startTime))
		return
	}

	change, err := h.statusService.RecordMilestoneAs(r.Context(), domain.Milestone{
		PatientID:  patientID,
		Kind:       domain.MilestoneKind(req.Kind),
		Transfer:   domain.TransferKind(req.TransferKind),
		Reason:     req.Reason,
		OccurredAt: req.OccurredAt,
	}, actor)
	if err != nil {
		status := writeError(w, entry.WithField("patient_id", patientID.String()), err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	writeJSON(w, http.StatusOK, change)
	logStructured(h.log, r, reqID, actor, http.StatusOK, time.Since(startTime))
}
