package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const minutesPerDay = 24 * 60

// ClockTime is a time of day in minutes since midnight of the day labour
// monitoring started. Values of 1440 and above fall on the following day and
// are displayed modulo 24 hours.
type ClockTime int

// ParseClockTime parses an "HH:MM" wall-clock time
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 || !isDigits(hh) || !isDigits(mm) {
		return 0, NewValidationError("time", "%q is not in HH:MM format", s)
	}
	hours, _ := strconv.Atoi(hh)
	if hours > 23 {
		return 0, NewValidationError("time", "%q has an invalid hour", s)
	}
	minutes, _ := strconv.Atoi(mm)
	if minutes > 59 {
		return 0, NewValidationError("time", "%q has an invalid minute", s)
	}
	return ClockTime(hours*60 + minutes), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (t ClockTime) hourMinute() (int, int) {
	m := int(t) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return m / 60, m % 60
}

// String formats the time as HH:MM
func (t ClockTime) String() string {
	h, m := t.hourMinute()
	return fmt.Sprintf("%02d:%02d", h, m)
}

// KeySuffix formats the time as HH_MM for use in field keys
func (t ClockTime) KeySuffix() string {
	h, m := t.hourMinute()
	return fmt.Sprintf("%02d_%02d", h, m)
}

func (t ClockTime) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// FormatDuration renders a minute count as "{h}h {m}m"
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// Stage selects one of the two stage clock anchors
type Stage string

const (
	StageFirst  Stage = "first"
	StageSecond Stage = "second"
)

// ParseStage accepts "first"/"second" and their "-stage" suffixed forms
func ParseStage(s string) (Stage, error) {
	switch strings.TrimSuffix(strings.ToLower(s), "-stage") {
	case "first":
		return StageFirst, nil
	case "second":
		return StageSecond, nil
	}
	return "", NewValidationError("stage", "%q is not first or second", s)
}

// StageClock holds the pinned anchors of a patient's labour. Each anchor can
// be set exactly once; only the administrative unlock clears them.
type StageClock struct {
	PatientID        uuid.UUID  `json:"patient_id"`
	FirstStageStart  *ClockTime `json:"active_first_stage_start,omitempty"`
	SecondStageStart *ClockTime `json:"second_stage_start,omitempty"`
	UpdatedBy        string     `json:"updated_by,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at,omitempty"`
}

// IsLocked reports whether the given anchor has been confirmed
func (c *StageClock) IsLocked(stage Stage) bool {
	switch stage {
	case StageFirst:
		return c.FirstStageStart != nil
	case StageSecond:
		return c.SecondStageStart != nil
	}
	return false
}

// SetFirstStageStart pins the active first stage anchor
func (c *StageClock) SetFirstStageStart(t ClockTime) error {
	if c.FirstStageStart != nil {
		return ErrAlreadyLocked
	}
	if err := validateTimeOfDay(t); err != nil {
		return err
	}
	c.FirstStageStart = &t
	return nil
}

// SetSecondStageStart pins the second stage anchor. Nothing changes on error.
func (c *StageClock) SetSecondStageStart(t ClockTime) error {
	if err := c.ValidateSecondStage(t); err != nil {
		return err
	}
	c.SecondStageStart = &t
	return nil
}

// ValidateSecondStage checks t as a second stage anchor without mutating the clock
func (c *StageClock) ValidateSecondStage(t ClockTime) error {
	if c.SecondStageStart != nil {
		return ErrAlreadyLocked
	}
	if err := validateTimeOfDay(t); err != nil {
		return err
	}
	if c.FirstStageStart == nil || t <= *c.FirstStageStart {
		return ErrInvalidSequence
	}
	return nil
}

// Unlock clears an anchor. Clearing the first stage also clears the second so
// the sequence invariant still holds.
func (c *StageClock) Unlock(stage Stage) {
	switch stage {
	case StageFirst:
		c.FirstStageStart = nil
		c.SecondStageStart = nil
	case StageSecond:
		c.SecondStageStart = nil
	}
}

// FirstStageDuration returns the first stage length in whole minutes once both
// anchors are set
func (c *StageClock) FirstStageDuration() (int, bool) {
	if c.FirstStageStart == nil || c.SecondStageStart == nil {
		return 0, false
	}
	return int(*c.SecondStageStart - *c.FirstStageStart), true
}

// FirstStageDurationText returns the first stage duration as "{h}h {m}m", or
// an empty string while the second stage is unset
func (c *StageClock) FirstStageDurationText() string {
	minutes, ok := c.FirstStageDuration()
	if !ok {
		return ""
	}
	return FormatDuration(minutes)
}

// IsSecondStageTime reports whether t falls at or after the second stage anchor
func (c *StageClock) IsSecondStageTime(t ClockTime) bool {
	return c.SecondStageStart != nil && t >= *c.SecondStageStart
}

func validateTimeOfDay(t ClockTime) error {
	if t < 0 || t >= minutesPerDay {
		return NewValidationError("time", "%d minutes is outside a single day", int(t))
	}
	return nil
}
