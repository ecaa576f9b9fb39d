package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
)

// StageClockHandler handles HTTP requests for the labour stage clock
type StageClockHandler struct {
	clockService ports.StageClockService
	log          *logger.Logger
}

// NewStageClockHandler creates a new stage clock handler
func NewStageClockHandler(clockService ports.StageClockService, log *logger.Logger) *StageClockHandler {
	return &StageClockHandler{
		clockService: clockService,
		log:          log,
	}
}

// SetStageTimeRequest is the body of the first and second stage PUTs
type SetStageTimeRequest struct {
	Time string `json:"time"` // HH:MM
}

// UnlockStageRequest is the body of the unlock override
type UnlockStageRequest struct {
	Reason string `json:"reason"`
}

// StageClockResponse is the clock with its derived first stage duration
type StageClockResponse struct {
	*domain.StageClock
	FirstStageDuration string `json:"first_stage_duration,omitempty"`
}

func toStageClockResponse(clock *domain.StageClock) StageClockResponse {
	return StageClockResponse{StageClock: clock, FirstStageDuration: clock.FirstStageDurationText()}
}

// GetStageClock handles GET /patients/{patient_id}/stage-clock
func (h *StageClockHandler) GetStageClock(w http.ResponseWriter, r *http.Request) {
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

	clock, err := h.clockService.GetStageClock(r.Context(), patientID, actor)
	if err != nil {
		status := writeError(w, entry, err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	writeJSON(w, http.StatusOK, toStageClockResponse(clock))
	logStructured(h.log, r, reqID, actor, http.StatusOK, time.Since(startTime))
}

// SetFirstStageStart handles PUT /patients/{patient_id}/stage-clock/first-stage
func (h *StageClockHandler) SetFirstStageStart(w http.ResponseWriter, r *http.Request) {
	h.setStage(w, r, h.clockService.SetFirstStageStart)
}

// SetSecondStageStart handles PUT /patients/{patient_id}/stage-clock/second-stage
func (h *StageClockHandler) SetSecondStageStart(w http.ResponseWriter, r *http.Request) {
	h.setStage(w, r, h.clockService.SetSecondStageStart)
}

type setStageFunc func(ctx context.Context, patientID uuid.UUID, t domain.ClockTime, actor ports.Actor) (*domain.StageClock, error)

func (h *StageClockHandler) setStage(w http.ResponseWriter, r *http.Request, set setStageFunc) {
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

	var req SetStageTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		logStructured(h.log, r, reqID, actor, http.StatusBadRequest, time.Since(startTime))
		return
	}

	t, err := domain.ParseClockTime(req.Time)
	if err != nil {
		status := writeError(w, entry, err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	clock, err := set(r.Context(), patientID, t, actor)
	if err != nil {
		status := writeError(w, entry.WithField("patient_id", patientID.String()), err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	writeJSON(w, http.StatusOK, toStageClockResponse(clock))
	logStructured(h.log, r, reqID, actor, http.StatusOK, time.Since(startTime))
}

// UnlockStage handles DELETE /patients/{patient_id}/stage-clock/{stage}
// ADMIN only, the reason is required and audit logged
func (h *StageClockHandler) UnlockStage(w http.ResponseWriter, r *http.Request) {
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

	stage, err := domain.ParseStage(r.PathValue("stage"))
	if err != nil {
		status := writeError(w, entry, err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	var req UnlockStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		logStructured(h.log, r, reqID, actor, http.StatusBadRequest, time.Since(startTime))
		return
	}

	clock, err := h.clockService.UnlockStage(r.Context(), patientID, stage, actor, req.Reason)
	if err != nil {
		status := writeError(w, entry.WithField("patient_id", patientID.String()), err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	writeJSON(w, http.StatusOK, toStageClockResponse(clock))
	logStructured(h.log, r, reqID, actor, http.StatusOK, time.Since(startTime))
}
