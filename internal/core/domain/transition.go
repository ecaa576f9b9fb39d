package domain

import (
	"time"

	"github.com/google/uuid"
)

// MilestoneKind identifies a clinical milestone that may advance the care stage
type MilestoneKind string

const (
	MilestoneANCVisit       MilestoneKind = "anc_visit_recorded"
	MilestoneFirstStage     MilestoneKind = "first_stage_recorded"
	MilestoneBirth          MilestoneKind = "birth_recorded"
	MilestonePostnatalVisit MilestoneKind = "postnatal_visit_recorded"
	MilestoneTransfer       MilestoneKind = "transfer_recorded"
)

// TransferKind is the care phase during which a patient was transferred out
type TransferKind string

const (
	TransferANC    TransferKind = "anc"
	TransferLabour TransferKind = "labour"
	TransferPNC    TransferKind = "pnc"
)

var transferTargets = map[TransferKind]PatientStatus{
	TransferANC:    StatusANCTransfer,
	TransferLabour: StatusLabourTransfer,
	TransferPNC:    StatusPNCTransfer,
}

var transferPhaseNames = map[TransferKind]string{
	TransferANC:    "ANC",
	TransferLabour: "labour",
	TransferPNC:    "PNC",
}

// Milestone is a transient care event delivered to the transition engine
type Milestone struct {
	PatientID  uuid.UUID
	Kind       MilestoneKind
	Transfer   TransferKind
	Reason     string
	OccurredAt time.Time
}

// Transition is the outcome of evaluating a milestone against a status.
// Apply is false when the patient is already at or past the target.
type Transition struct {
	From   PatientStatus
	To     PatientStatus
	Reason string
	Apply  bool
}

// StatusChange records a transition request and whether it was written
type StatusChange struct {
	PatientID uuid.UUID     `json:"patient_id"`
	Milestone MilestoneKind `json:"milestone"`
	From      PatientStatus `json:"from"`
	To        PatientStatus `json:"to"`
	Reason    string        `json:"reason,omitempty"`
	Applied   bool          `json:"applied"`
	At        time.Time     `json:"at"`
}

// IsValidTransferKind checks the transfer kind against the enumerated phases
func IsValidTransferKind(kind TransferKind) bool {
	_, ok := transferTargets[kind]
	return ok
}

// NextStatus evaluates a milestone against the current status. Guards that do
// not hold produce a no-op transition rather than an error; only malformed
// milestones are rejected.
func NextStatus(current PatientStatus, m Milestone) (Transition, error) {
	if current == "" {
		current = StatusRegistered
	}
	noop := Transition{From: current, To: current}

	switch m.Kind {
	case MilestoneANCVisit:
		if current != StatusRegistered {
			return noop, nil
		}
		return apply(current, StatusAntenatalCare, m.Reason, "First ANC visit recorded"), nil

	case MilestoneFirstStage:
		if current != StatusRegistered && current != StatusAntenatalCare {
			return noop, nil
		}
		return apply(current, StatusInLabour, m.Reason, "Active first stage time recorded"), nil

	case MilestoneBirth:
		if current != StatusInLabour {
			return noop, nil
		}
		return apply(current, StatusBirthed, m.Reason, "Birth recorded"), nil

	case MilestonePostnatalVisit:
		// Transfer states are terminal; a later postnatal visit does not reopen them.
		if current == StatusPostnatalCare || current.IsTransfer() {
			return noop, nil
		}
		return apply(current, StatusPostnatalCare, m.Reason, "Postnatal activity"), nil

	case MilestoneTransfer:
		target, ok := transferTargets[m.Transfer]
		if !ok {
			return noop, NewValidationError("transfer_kind", "%q is not one of anc, labour, pnc", m.Transfer)
		}
		if current == target {
			return noop, nil
		}
		return apply(current, target, m.Reason, "Transferred during "+transferPhaseNames[m.Transfer]), nil
	}

	return noop, NewValidationError("milestone", "unknown milestone kind %q", m.Kind)
}

func apply(from, to PatientStatus, reason, defaultReason string) Transition {
	if reason == "" {
		reason = defaultReason
	}
	return Transition{From: from, To: to, Reason: reason, Apply: true}
}
