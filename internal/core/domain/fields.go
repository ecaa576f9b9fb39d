package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FieldID is the stable identifier of an observation field. It is also the
// prefix of the field's persistence keys.
type FieldID string

const (
	FieldCompanion           FieldID = "Companion"
	FieldPainRelief          FieldID = "Pain_Relief"
	FieldOralFluids          FieldID = "Oral_fluids"
	FieldMobility            FieldID = "Mobility"
	FieldBaselineFHR         FieldID = "Baseline_FHR"
	FieldFHRDeceleration     FieldID = "FHR_deceleration"
	FieldAmnioticFluid       FieldID = "Amniotic_fluid"
	FieldFetalPosition       FieldID = "Fetal_position"
	FieldCaput               FieldID = "Caput"
	FieldMoulding            FieldID = "Moulding"
	FieldPulse               FieldID = "Pulse"
	FieldSystolicBP          FieldID = "Systolic_BP"
	FieldDiastolicBP         FieldID = "Diastolic_BP"
	FieldTemperature         FieldID = "Temperature_C"
	FieldUrine               FieldID = "Urine"
	FieldContractions        FieldID = "Contractions_per_10_min"
	FieldContractionDuration FieldID = "Duration_of_contractions"
	FieldOxytocinUnits       FieldID = "Medication_Oxytocin_U_L"
	FieldOxytocinDrops       FieldID = "Medication_Oxytocin_drops_min"
	FieldMedicine            FieldID = "Medication_Medicine"
	FieldIVFluids            FieldID = "Medication_IV_fluids"
	FieldAssessmentPain      FieldID = "ASSESSMENT_Pain"
	FieldAssessmentProgress  FieldID = "ASSESSMENT_Progress"
	FieldAssessmentMaternal  FieldID = "ASSESSMENT_Maternal"
	FieldAssessmentFetal     FieldID = "ASSESSMENT_Fetal"
	FieldPlan                FieldID = "PLAN"
	FieldInitials            FieldID = "INITIALS"
)

// FieldKind describes how a field's value is entered and checked
type FieldKind string

const (
	FieldKindOption  FieldKind = "option"
	FieldKindNumeric FieldKind = "numeric"
	FieldKindText    FieldKind = "text"
)

// Recommendation keys for numeric fields
const (
	BelowRange = "low"
	AboveRange = "high"
)

const maxTextLength = 500

// FieldDefinition is the static configuration of one observation field
type FieldDefinition struct {
	ID       FieldID   `json:"id"`
	Label    string    `json:"label"`
	Category Category  `json:"category"`
	Kind     FieldKind `json:"kind"`
	Unit     string    `json:"unit,omitempty"`

	// Options restricts option fields; UnsafeOptions is the alert set
	Options       []string `json:"options,omitempty"`
	UnsafeOptions []string `json:"-"`

	// Min/Max bound numeric input; SafeMin/SafeMax is the alert range
	Min     float64  `json:"min,omitempty"`
	Max     float64  `json:"max,omitempty"`
	SafeMin *float64 `json:"-"`
	SafeMax *float64 `json:"-"`

	// Recommendations is keyed by option value, or BelowRange/AboveRange
	Recommendations map[string]string `json:"-"`
}

func bound(v float64) *float64 { return &v }

var (
	yesNoDeclined = []string{"Y", "N", "D"}
	scale0to3     = []string{"0", "+", "++", "+++"}
	urineOptions  = []string{"-/-", "P-", "P Trace", "P+", "P++", "P+++", "P++++", "A-", "A Trace", "A+", "A++", "A+++", "A++++"}
)

const (
	recFetalDistress  = "Assess for fetal distress. Prepare for immediate intervention."
	recObstructed     = "Monitor for obstructed labour. Consider intervention."
	recPreEclampsia   = "Assess for pre-eclampsia. Initiate appropriate management."
	recSlowProgress   = "Assess labour progress. Consider augmentation."
	recHyperstimulate = "Assess for uterine hyperstimulation. Consider tocolysis."
)

var fieldDefinitions = []FieldDefinition{
	{
		ID: FieldCompanion, Label: "Companion", Category: CategorySupportiveCare, Kind: FieldKindOption,
		Options: yesNoDeclined, UnsafeOptions: []string{"N"},
		Recommendations: map[string]string{"N": "Encourage presence of a companion of choice for support."},
	},
	{
		ID: FieldPainRelief, Label: "Pain relief", Category: CategorySupportiveCare, Kind: FieldKindOption,
		Options: yesNoDeclined, UnsafeOptions: []string{"N"},
		Recommendations: map[string]string{"N": "Assess pain and offer appropriate pain relief options."},
	},
	{
		ID: FieldOralFluids, Label: "Oral fluids", Category: CategorySupportiveCare, Kind: FieldKindOption,
		Options: yesNoDeclined, UnsafeOptions: []string{"N"},
		Recommendations: map[string]string{"N": "Encourage oral fluid intake unless contraindicated."},
	},
	{
		ID: FieldMobility, Label: "Posture", Category: CategorySupportiveCare, Kind: FieldKindOption,
		Options: []string{"M", "SP"}, UnsafeOptions: []string{"SP"},
		Recommendations: map[string]string{"SP": "Encourage upright or mobile posture for comfort and progress."},
	},
	{
		ID: FieldBaselineFHR, Label: "Baseline FHR", Category: CategoryFHR, Kind: FieldKindNumeric, Unit: "bpm",
		Min: 60, Max: 200, SafeMin: bound(110), SafeMax: bound(160),
		Recommendations: map[string]string{BelowRange: recFetalDistress, AboveRange: recFetalDistress},
	},
	{
		ID: FieldFHRDeceleration, Label: "FHR deceleration", Category: CategoryFHR, Kind: FieldKindOption,
		Options: []string{"N", "E", "L", "V"}, UnsafeOptions: []string{"L"},
		Recommendations: map[string]string{"L": "Reassess fetal condition. Consider immediate intervention."},
	},
	{
		ID: FieldAmnioticFluid, Label: "Amniotic fluid", Category: CategoryBaby, Kind: FieldKindOption,
		Options: []string{"I", "C", "M", "M+", "M++", "M+++", "B"}, UnsafeOptions: []string{"M+++", "B"},
		Recommendations: map[string]string{
			"M+++": "Monitor for fetal distress. Prepare for possible intervention.",
			"B":    "Assess for placental abruption or other complications.",
		},
	},
	{
		ID: FieldFetalPosition, Label: "Fetal position", Category: CategoryBaby, Kind: FieldKindOption,
		Options: []string{"A", "P", "T"}, UnsafeOptions: []string{"P", "T"},
		Recommendations: map[string]string{
			"P": "Monitor labour progress. Consider position change or intervention.",
			"T": "Monitor labour progress. Consider position change or intervention.",
		},
	},
	{
		ID: FieldCaput, Label: "Caput", Category: CategoryBaby, Kind: FieldKindOption,
		Options: scale0to3, UnsafeOptions: []string{"+++"},
		Recommendations: map[string]string{"+++": recObstructed},
	},
	{
		ID: FieldMoulding, Label: "Moulding", Category: CategoryBaby, Kind: FieldKindOption,
		Options: scale0to3, UnsafeOptions: []string{"+++"},
		Recommendations: map[string]string{"+++": recObstructed},
	},
	{
		ID: FieldPulse, Label: "Pulse", Category: CategoryWoman, Kind: FieldKindNumeric, Unit: "bpm",
		Min: 30, Max: 220, SafeMin: bound(60), SafeMax: bound(120),
		Recommendations: map[string]string{
			BelowRange: "Assess for underlying causes. Monitor closely.",
			AboveRange: "Assess for infection, dehydration, pain, anxiety.",
		},
	},
	{
		ID: FieldSystolicBP, Label: "Systolic BP", Category: CategoryWoman, Kind: FieldKindNumeric, Unit: "mmHg",
		Min: 50, Max: 260, SafeMin: bound(90), SafeMax: bound(140),
		Recommendations: map[string]string{
			BelowRange: "Assess for shock. Initiate appropriate management.",
			AboveRange: recPreEclampsia,
		},
	},
	{
		ID: FieldDiastolicBP, Label: "Diastolic BP", Category: CategoryWoman, Kind: FieldKindNumeric, Unit: "mmHg",
		Min: 30, Max: 160, SafeMax: bound(90),
		Recommendations: map[string]string{AboveRange: recPreEclampsia},
	},
	{
		ID: FieldTemperature, Label: "Temperature", Category: CategoryWoman, Kind: FieldKindNumeric, Unit: "°C",
		Min: 32, Max: 43, SafeMin: bound(36.0), SafeMax: bound(37.5),
		Recommendations: map[string]string{
			BelowRange: "Assess for hypothermia. Initiate warming measures.",
			AboveRange: "Assess for infection. Initiate appropriate management.",
		},
	},
	{
		ID: FieldUrine, Label: "Urine", Category: CategoryWoman, Kind: FieldKindOption,
		Options: urineOptions, UnsafeOptions: []string{"P++++", "A++++"},
		Recommendations: map[string]string{
			"P++++": "Assess for pre-eclampsia. Monitor and manage.",
			"A++++": "Assess for diabetic ketoacidosis. Monitor and manage.",
		},
	},
	{
		ID: FieldContractions, Label: "Contractions per 10 min", Category: CategoryContractions, Kind: FieldKindNumeric,
		Min: 0, Max: 10, SafeMin: bound(2), SafeMax: bound(5),
		Recommendations: map[string]string{BelowRange: recSlowProgress, AboveRange: recHyperstimulate},
	},
	{
		ID: FieldContractionDuration, Label: "Duration of contractions", Category: CategoryContractions, Kind: FieldKindNumeric, Unit: "s",
		Min: 0, Max: 120, SafeMin: bound(20), SafeMax: bound(60),
		Recommendations: map[string]string{BelowRange: recSlowProgress, AboveRange: recHyperstimulate},
	},
	{ID: FieldOxytocinUnits, Label: "Oxytocin (U/L)", Category: CategoryMedication, Kind: FieldKindNumeric, Unit: "U/L", Min: 0, Max: 100},
	{ID: FieldOxytocinDrops, Label: "Oxytocin (drops/min)", Category: CategoryMedication, Kind: FieldKindNumeric, Unit: "drops/min", Min: 0, Max: 200},
	{ID: FieldMedicine, Label: "Medicine", Category: CategoryMedication, Kind: FieldKindText},
	{ID: FieldIVFluids, Label: "IV fluids", Category: CategoryMedication, Kind: FieldKindOption, Options: []string{"None", "Started", "Stopped"}},
	{ID: FieldAssessmentPain, Label: "Assessment: pain", Category: CategoryDecision, Kind: FieldKindText},
	{ID: FieldAssessmentProgress, Label: "Assessment: progress", Category: CategoryDecision, Kind: FieldKindText},
	{ID: FieldAssessmentMaternal, Label: "Assessment: maternal", Category: CategoryDecision, Kind: FieldKindText},
	{ID: FieldAssessmentFetal, Label: "Assessment: fetal", Category: CategoryDecision, Kind: FieldKindText},
	{ID: FieldPlan, Label: "Plan", Category: CategoryDecision, Kind: FieldKindText},
	{ID: FieldInitials, Label: "Initials", Category: CategoryInitials, Kind: FieldKindText},
}

type indexedField struct {
	def   *FieldDefinition
	order int
}

var fieldIndex = indexFields(fieldDefinitions)

func indexFields(defs []FieldDefinition) map[FieldID]indexedField {
	index := make(map[FieldID]indexedField, len(defs))
	for i := range defs {
		index[defs[i].ID] = indexedField{def: &defs[i], order: i}
	}
	return index
}

// LookupField returns the definition of a field
func LookupField(id FieldID) (FieldDefinition, bool) {
	f, ok := fieldIndex[id]
	if !ok {
		return FieldDefinition{}, false
	}
	return *f.def, true
}

// FieldsFor returns the fields of a category in display order
func FieldsFor(c Category) []FieldDefinition {
	var fields []FieldDefinition
	for _, def := range fieldDefinitions {
		if def.Category == c {
			fields = append(fields, def)
		}
	}
	return fields
}

func fieldOrder(id FieldID) int {
	if f, ok := fieldIndex[id]; ok {
		return f.order
	}
	return len(fieldDefinitions)
}

// FieldKey composes the persistence key of a cell: "<FieldID>_<HH>_<MM>"
func FieldKey(id FieldID, t ClockTime) string {
	return string(id) + "_" + t.KeySuffix()
}

// ParseFieldKey splits a persistence key into field and time of day. Only the
// canonical spelling produced by FieldKey is accepted.
func ParseFieldKey(key string) (FieldID, ClockTime, bool) {
	const suffixLen = len("_HH_MM")
	if len(key) <= suffixLen || key[len(key)-suffixLen] != '_' || key[len(key)-3] != '_' {
		return "", 0, false
	}
	suffix := key[len(key)-suffixLen+1:]
	t, err := ParseClockTime(strings.Replace(suffix, "_", ":", 1))
	if err != nil {
		return "", 0, false
	}
	id := FieldID(key[:len(key)-suffixLen])
	if FieldKey(id, t) != key {
		return "", 0, false
	}
	return id, t, true
}

// ValidateValue checks a value against the field's option set or bounds. An
// empty value clears the cell and is always accepted.
func (f FieldDefinition) ValidateValue(value string) error {
	if value == "" {
		return nil
	}
	switch f.Kind {
	case FieldKindOption:
		if !slices.Contains(f.Options, value) {
			return NewValidationError(string(f.ID), "%q is not one of %s", value, strings.Join(f.Options, ", "))
		}
	case FieldKindNumeric:
		n, ok := parseNumber(value)
		if !ok {
			return NewValidationError(string(f.ID), "%q is not a number", value)
		}
		if n < f.Min || n > f.Max {
			return NewValidationError(string(f.ID), "%s is outside %s", value, f.boundsText())
		}
	case FieldKindText:
		if utf8.RuneCountInString(value) > maxTextLength {
			return NewValidationError(string(f.ID), "text longer than %d characters", maxTextLength)
		}
	}
	return nil
}

// parseNumber accepts finite decimals only
func parseNumber(value string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func (f FieldDefinition) boundsText() string {
	return fmt.Sprintf("%g-%g", f.Min, f.Max)
}
