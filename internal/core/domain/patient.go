package domain

import (
	"time"

	"github.com/google/uuid"
)

// PatientStatus is the care stage of a patient
type PatientStatus string

const (
	StatusRegistered     PatientStatus = "registered"
	StatusAntenatalCare  PatientStatus = "antenatal_care"
	StatusInLabour       PatientStatus = "in_labour"
	StatusBirthed        PatientStatus = "birthed"
	StatusPostnatalCare  PatientStatus = "postnatal_care"
	StatusANCTransfer    PatientStatus = "anc_transfer"
	StatusLabourTransfer PatientStatus = "labour_transfer"
	StatusPNCTransfer    PatientStatus = "pnc_transfer"
)

var statusDisplayNames = map[PatientStatus]string{
	StatusRegistered:     "Registered",
	StatusAntenatalCare:  "Antenatal Care",
	StatusInLabour:       "In Labour",
	StatusBirthed:        "Birthed",
	StatusPostnatalCare:  "Postnatal Care",
	StatusANCTransfer:    "ANC Transfer",
	StatusLabourTransfer: "Labour Transfer",
	StatusPNCTransfer:    "PNC Transfer",
}

// Roles carried in the access token
const (
	RoleAdmin   = "ADMIN"
	RoleMidwife = "MIDWIFE"
	RoleTMO     = "TMO"
)

// Patient is a clinical case record. The service only changes Status through
// the transition engine.
type Patient struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Age             int           `json:"age"`
	Township        string        `json:"township,omitempty"`
	Facility        string        `json:"facility,omitempty"`
	LMP             *time.Time    `json:"lmp,omitempty"`
	Status          PatientStatus `json:"status"`
	StatusReason    string        `json:"status_update_reason,omitempty"`
	StatusUpdatedAt *time.Time    `json:"status_updated_at,omitempty"`
	CreatedBy       uuid.UUID     `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
}

// CurrentStatus returns the patient's status, treating an unset status as
// registered.
func (p *Patient) CurrentStatus() PatientStatus {
	if p.Status == "" {
		return StatusRegistered
	}
	return p.Status
}

// IsValidStatus checks if the status is one of the known care stages
func IsValidStatus(status PatientStatus) bool {
	_, ok := statusDisplayNames[status]
	return ok
}

// DisplayName returns the human readable name of the status
func (s PatientStatus) DisplayName() string {
	if name, ok := statusDisplayNames[s]; ok {
		return name
	}
	return statusDisplayNames[StatusRegistered]
}

// IsTransfer reports whether the status is one of the terminal transfer states
func (s PatientStatus) IsTransfer() bool {
	return s == StatusANCTransfer || s == StatusLabourTransfer || s == StatusPNCTransfer
}
