package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
)

// PatientHandler handles HTTP requests for patient operations
type PatientHandler struct {
	patientService ports.PatientService
	log            *logger.Logger
	now            func() time.Time
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(patientService ports.PatientService, log *logger.Logger) *PatientHandler {
	return &PatientHandler{
		patientService: patientService,
		log:            log,
		now:            time.Now,
	}
}

// PatientResponse adds the derived care stage fields to a patient
type PatientResponse struct {
	*domain.Patient
	StatusDisplay  string                 `json:"status_display"`
	GestationalAge *domain.GestationalAge `json:"gestational_age,omitempty"`
	EstimatedDue   string                 `json:"estimated_due_date,omitempty"`
}

func (h *PatientHandler) toResponse(patient *domain.Patient) PatientResponse {
	resp := PatientResponse{
		Patient:       patient,
		StatusDisplay: patient.CurrentStatus().DisplayName(),
	}
	if patient.LMP != nil {
		resp.EstimatedDue = domain.EstimatedDueDate(*patient.LMP).Format(domain.ClinicalDateLayout)
		// Past the plausible range once delivered; leave it out rather than fail
		if ga, err := domain.CalculateGestationalAge(*patient.LMP, h.now()); err == nil {
			resp.GestationalAge = &ga
		}
	}
	return resp
}

// RegisterPatient handles POST /patients
// ADMIN and MIDWIFE only
func (h *PatientHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	reqID := requestID(r)
	entry := h.log.WithRequestID(reqID)

	actor, err := actorFromRequest(r)
	if err != nil {
		entry.WithError(err).Warn("Failed to read actor from context")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req ports.RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		logStructured(h.log, r, reqID, actor, http.StatusBadRequest, time.Since(startTime))
		return
	}

	patient, err := h.patientService.RegisterPatient(r.Context(), req, actor)
	if err != nil {
		status := writeError(w, entry, err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(patient))
	logStructured(h.log, r, reqID, actor, http.StatusCreated, time.Since(startTime))
}

// GetPatient handles GET /patients/{patient_id}
// ADMIN and TMO: any patient, MIDWIFE: own patients only
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	reqID := requestID(r)
	entry := h.log.WithRequestID(reqID)

	actor, err := actorFromRequest(r)
	if err != nil {
		entry.WithError(err).Warn("Failed to read actor from context")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	patientID, err := patientIDFromPath(r)
	if err != nil {
		status := writeError(w, entry, err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	patient, err := h.patientService.GetPatient(r.Context(), patientID, actor)
	if err != nil {
		status := writeError(w, entry.WithField("patient_id", patientID.String()), err)
		logStructured(h.log, r, reqID, actor, status, time.Since(startTime))
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(patient))
	logStructured(h.log, r, reqID, actor, http.StatusOK, time.Since(startTime))
}
