package domain

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// GenericRecommendation is returned for alerts without a field specific text
const GenericRecommendation = "Monitor and document progress. Consider specialist consultation if needed."

// Alert is the evaluation of a single observed value
type Alert struct {
	Field    FieldID `json:"field"`
	Label    string  `json:"label,omitempty"`
	Key      string  `json:"key"`
	Value    string  `json:"value"`
	IsAlert  bool    `json:"is_alert"`
	Rejected bool    `json:"rejected,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Evaluate checks a value against its field's safe range or unsafe option
// set. It accepts either a full field key or a bare field identifier.
// Unknown fields never alert; values a known field cannot accept always do,
// flagged as rejected.
func Evaluate(fieldKey, value string) Alert {
	id := FieldID(fieldKey)
	if parsed, _, ok := ParseFieldKey(fieldKey); ok {
		id = parsed
	}
	result := Alert{Field: id, Key: fieldKey, Value: value}

	def, ok := LookupField(id)
	if !ok {
		return result
	}
	result.Label = def.Label
	if value == "" {
		return result
	}

	switch def.Kind {
	case FieldKindOption:
		if !slices.Contains(def.Options, value) {
			return rejected(result, def)
		}
		if slices.Contains(def.UnsafeOptions, value) {
			return raised(result, def, value)
		}
	case FieldKindNumeric:
		n, ok := parseNumber(value)
		if !ok {
			return rejected(result, def)
		}
		if def.SafeMin != nil && n < *def.SafeMin {
			return raised(result, def, BelowRange)
		}
		if def.SafeMax != nil && n > *def.SafeMax {
			return raised(result, def, AboveRange)
		}
	}
	return result
}

func raised(a Alert, def FieldDefinition, trigger string) Alert {
	a.IsAlert = true
	a.Message = GenericRecommendation
	if rec, ok := def.Recommendations[trigger]; ok {
		a.Message = rec
	}
	return a
}

func rejected(a Alert, def FieldDefinition) Alert {
	a.IsAlert = true
	a.Rejected = true
	a.Message = fmt.Sprintf("%q is not an accepted value for %s.", a.Value, def.Label)
	return a
}

// ActiveAlerts summarises the alerting cells of annotated tables: one alert
// per field, taken from its latest column, in field display order. Values
// that no column shows are not part of the summary.
func ActiveAlerts(tables []Table) []Alert {
	type timedAlert struct {
		alert Alert
		at    ClockTime
	}

	var raisedAlerts []timedAlert
	for _, table := range tables {
		for _, row := range table.Rows {
			for c, cell := range row.Cells {
				if cell.Alert != nil {
					raisedAlerts = append(raisedAlerts, timedAlert{alert: *cell.Alert, at: table.Columns[c].Time})
				}
			}
		}
	}

	slices.SortFunc(raisedAlerts, func(a, b timedAlert) int {
		return cmp.Compare(b.at, a.at)
	})
	latest := lo.UniqBy(raisedAlerts, func(t timedAlert) FieldID {
		return t.alert.Field
	})

	alerts := lo.Map(latest, func(t timedAlert, _ int) Alert {
		return t.alert
	})
	slices.SortFunc(alerts, func(a, b Alert) int {
		return cmp.Compare(fieldOrder(a.Field), fieldOrder(b.Field))
	})
	return alerts
}
