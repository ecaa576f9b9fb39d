package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
)

// ObservationHandler handles HTTP requests for the labour care guide
type ObservationHandler struct {
	observationService ports.ObservationService
	log                *logger.Logger
}

// NewObservationHandler creates a new observation handler
func NewObservationHandler(observationService ports.ObservationService, log *logger.Logger) *ObservationHandler {
	return &ObservationHandler{
		observationService: observationService,
		log:                log,
	}
}

// SaveObservationsRequest carries the whole observation record keyed by
// "<field>_<HH>_<MM>"
type SaveObservationsRequest struct {
	Values map[string]string `json:"values"`
}

// EvaluateRequest is a single value checked while it is being entered
type EvaluateRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetPartogram handles GET /patients/{patient_id}/partogram
func (h *ObservationHandler) GetPartogram(w http.ResponseWriter, r *http.Request) {
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

	partogram, err := h.observationService.GetPartogram(r.Context(), patientID, actor)
	if err != nil {
		status := writeError(w, entry.WithField("patient_id", patientID.String()), err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	writeJSON(w, http.StatusOK, partogram)
	logStructured(h.log, r, reqID, actor, http.StatusOK, time.Since(startTime))
}

// SaveObservations handles PUT /patients/{patient_id}/observations
// The record is replaced as a whole; the response is the rebuilt partogram
func (h *ObservationHandler) SaveObservations(w http.ResponseWriter, r *http.Request) {
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

	var req SaveObservationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		logStructured(h.log, r, reqID, actor, http.StatusBadRequest, time.Since(startTime))
		return
	}

	partogram, err := h.observationService.SaveObservations(r.Context(), patientID, req.Values, actor)
	if err != nil {
		status := writeError(w, entry.WithField("patient_id", patientID.String()), err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	writeJSON(w, http.StatusOK, partogram)
	logStructured(h.log, r, reqID, actor, http.StatusOK, time.Since(startTime))
}

// Evaluate handles POST /observations/evaluate
// Never fails on the value itself; the alert describes it
func (h *ObservationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "key is required", Field: "key"})
		return
	}

	writeJSON(w, http.StatusOK, h.observationService.Evaluate(req.Key, req.Value))
}
