package domain

import (
	"fmt"
	"strings"
	"time"
)

// Clinical dates are calendar dates without a time of day. They are parsed
// and compared in UTC so the server's zone never shifts a day.
const ClinicalDateLayout = "2006-01-02"

const (
	pregnancyDays        = 280
	dueDateToleranceDays = 14
	maxGestationWeeks    = 45
)

// GestationalAge is the completed weeks and days since the LMP
type GestationalAge struct {
	Weeks int `json:"weeks"`
	Days  int `json:"days"`
}

func (g GestationalAge) String() string {
	return fmt.Sprintf("%dw %dd", g.Weeks, g.Days)
}

// ParseClinicalDate parses a YYYY-MM-DD date as midnight UTC
func ParseClinicalDate(field, s string) (time.Time, error) {
	t, err := time.Parse(ClinicalDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, NewValidationError(field, "%q is not a YYYY-MM-DD date", s)
	}
	return t, nil
}

// CalendarDate truncates t to its calendar date in UTC
func CalendarDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(CalendarDate(to).Sub(CalendarDate(from)).Hours() / 24)
}

// CalculateGestationalAge returns the gestational age on asOf for an LMP
func CalculateGestationalAge(lmp, asOf time.Time) (GestationalAge, error) {
	days := daysBetween(lmp, asOf)
	if days < 0 {
		return GestationalAge{}, NewValidationError("lmp", "date is in the future")
	}
	if days > maxGestationWeeks*7 {
		return GestationalAge{}, NewValidationError("lmp", "more than %d weeks ago", maxGestationWeeks)
	}
	return GestationalAge{Weeks: days / 7, Days: days % 7}, nil
}

// EstimatedDueDate is the LMP plus 280 days
func EstimatedDueDate(lmp time.Time) time.Time {
	return CalendarDate(lmp).AddDate(0, 0, pregnancyDays)
}

// ValidateDueDate checks that an EDD lies within two weeks of the LMP based date
func ValidateDueDate(lmp, edd time.Time) error {
	diff := daysBetween(lmp, edd) - pregnancyDays
	if diff < -dueDateToleranceDays || diff > dueDateToleranceDays {
		return NewValidationError("edd", "expected %s within %d days, got %s",
			EstimatedDueDate(lmp).Format(ClinicalDateLayout), dueDateToleranceDays, CalendarDate(edd).Format(ClinicalDateLayout))
	}
	return nil
}
