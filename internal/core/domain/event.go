package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types carried on the message queues
const (
	EventClinicalAlert = "clinical_alert"
	EventStatusChanged = "status_changed"
)

// AlertEvent is published when saved observations raise clinical alerts
type AlertEvent struct {
	Type      string    `json:"type"`
	PatientID uuid.UUID `json:"patient_id"`
	Alerts    []Alert   `json:"alerts"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusChangedEvent is published after a status transition has been written
type StatusChangedEvent struct {
	Type        string        `json:"type"`
	PatientID   uuid.UUID     `json:"patient_id"`
	Milestone   MilestoneKind `json:"milestone"`
	From        PatientStatus `json:"from"`
	To          PatientStatus `json:"to"`
	DisplayName string        `json:"display_name"`
	Reason      string        `json:"reason,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// AlertSeverity is "rejected" when any value was not acceptable for its
// field and "warning" otherwise
func AlertSeverity(alerts []Alert) string {
	for _, a := range alerts {
		if a.Rejected {
			return "rejected"
		}
	}
	return "warning"
}
