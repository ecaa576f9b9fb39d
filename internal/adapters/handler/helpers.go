package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/IANDYI/labour-care-service/internal/adapters/middleware"
	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/IANDYI/labour-care-service/internal/core/ports"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// generateRequestID generates a unique request ID for tracing
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if random generation fails
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

// requestID returns the ID set by the metrics middleware, or a fresh one
func requestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return generateRequestID()
}

// ErrorResponse is the JSON body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// actorFromRequest reads the authenticated user placed in the context by
// the auth middleware
func actorFromRequest(r *http.Request) (ports.Actor, error) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return ports.Actor{}, errors.New("missing user ID")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return ports.Actor{}, errors.New("invalid user ID")
	}
	role, ok := middleware.GetRole(r.Context())
	if !ok {
		return ports.Actor{}, errors.New("missing role")
	}
	return ports.Actor{UserID: userID, Role: role}, nil
}

// patientIDFromPath parses the {patient_id} path value
func patientIDFromPath(r *http.Request) (uuid.UUID, error) {
	patientID, err := uuid.Parse(r.PathValue("patient_id"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("patient_id", "must be a valid UUID")
	}
	return patientID, nil
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyLocked), errors.Is(err, domain.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidSequence):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the mapped status and a JSON error body. Internal
// errors are logged and never echoed to the client.
func writeError(w http.ResponseWriter, entry *logrus.Entry, err error) int {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		resp = ErrorResponse{Error: validationErr.Reason, Field: validationErr.Field}
	}

	switch {
	case status >= http.StatusInternalServerError:
		entry.WithError(err).Error("Request failed")
		resp = ErrorResponse{Error: "internal server error"}
	case status == http.StatusForbidden:
		resp = ErrorResponse{Error: "forbidden"}
	case status == http.StatusNotFound:
		resp = ErrorResponse{Error: domain.ErrPatientNotFound.Error()}
	}

	writeJSON(w, status, resp)
	return status
}

// writeJSON encodes v with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logStructured logs one line per handled request
// Includes: request_id, user_id, role, endpoint, status_code, duration
func logStructured(log *logger.Logger, r *http.Request, reqID string, actor ports.Actor, statusCode int, duration time.Duration) {
	log.WithFields(logrus.Fields{
		"request_id":  reqID,
		"user_id":     actor.String(),
		"role":        actor.Role,
		"method":      r.Method,
		"endpoint":    r.URL.Path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}).Info("Handled request")
}
