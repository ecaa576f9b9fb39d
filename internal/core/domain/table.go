package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ObservationRecord is the aggregated observation document of a patient. It
// belongs to one first stage anchor and is overwritten as a whole on save.
type ObservationRecord struct {
	PatientID  uuid.UUID         `json:"patient_id"`
	AnchorTime ClockTime         `json:"anchor_time"`
	Values     map[string]string `json:"values"`
	UpdatedBy  string            `json:"updated_by,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// MatchesAnchor reports whether the record was taken against the given first
// stage anchor. Records from a previous anchor no longer fit the schedule.
func (r *ObservationRecord) MatchesAnchor(anchor *ClockTime) bool {
	return r != nil && anchor != nil && r.AnchorTime == *anchor
}

// ValidateObservations checks every key and value of a record before it is saved
func ValidateObservations(values map[string]string) error {
	for _, key := range lo.Keys(values) {
		id, _, ok := ParseFieldKey(key)
		if !ok {
			return NewValidationError("field_key", "%q is not <field>_<HH>_<MM>", key)
		}
		def, ok := LookupField(id)
		if !ok {
			return NewValidationError("field_key", "unknown field %q", id)
		}
		if err := def.ValidateValue(values[key]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateScheduledKeys checks that every key of a record is a cell of the
// grid the stage clock currently renders
func ValidateScheduledKeys(clock StageClock, values map[string]string) error {
	scheduled := scheduledKeys(clock)
	for _, key := range lo.Keys(values) {
		if !scheduled[key] {
			return NewValidationError("field_key", "%q is not a scheduled observation time", key)
		}
	}
	return nil
}

func scheduledKeys(clock StageClock) map[string]bool {
	keys := make(map[string]bool)
	for _, c := range Categories {
		fields := FieldsFor(c)
		for _, schedule := range []Schedule{
			Generate(c, clock.FirstStageStart, false),
			Generate(c, clock.SecondStageStart, true),
		} {
			for t := range schedule.All() {
				for _, def := range fields {
					keys[FieldKey(def.ID, t)] = true
				}
			}
		}
	}
	return keys
}

// Column is one sample time of a table
type Column struct {
	Time        ClockTime `json:"time"`
	SecondStage bool      `json:"second_stage"`
}

// Cell binds a field at a sample time to its persisted value
type Cell struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Alert *Alert `json:"alert,omitempty"`
}

// Row is one field across all columns of a table
type Row struct {
	Field   FieldID   `json:"field"`
	Label   string    `json:"label"`
	Kind    FieldKind `json:"kind"`
	Unit    string    `json:"unit,omitempty"`
	Options []string  `json:"options,omitempty"`
	Min     float64   `json:"min,omitempty"`
	Max     float64   `json:"max,omitempty"`
	Cells   []Cell    `json:"cells"`
}

// Table is the data-only grid of a category: fields by sample times
type Table struct {
	Category Category `json:"category"`
	Columns  []Column `json:"columns"`
	Rows     []Row    `json:"rows"`
}

// BuildTable binds the category's fields to the schedule, prefilling each
// cell from values
func BuildTable(c Category, schedule Schedule, values map[string]string) Table {
	columns := lo.Map(schedule.Times(), func(t ClockTime, _ int) Column {
		return Column{Time: t, SecondStage: schedule.SecondStage}
	})
	return fillTable(c, columns, values)
}

// RegenerateForSecondStage extends a first stage table with the second stage
// schedule of the clock. Existing columns and their values are kept; columns
// at or after the second stage anchor are flagged.
func RegenerateForSecondStage(table Table, clock StageClock, values map[string]string) Table {
	if clock.SecondStageStart == nil {
		return table
	}

	byTime := make(map[ClockTime]Column, len(table.Columns))
	for _, col := range table.Columns {
		byTime[col.Time] = col
	}
	for t := range Generate(table.Category, clock.SecondStageStart, true).All() {
		byTime[t] = Column{Time: t}
	}

	columns := lo.Values(byTime)
	for i := range columns {
		columns[i].SecondStage = clock.IsSecondStageTime(columns[i].Time)
	}
	slices.SortFunc(columns, func(a, b Column) int {
		return int(a.Time - b.Time)
	})
	return fillTable(table.Category, columns, values)
}

func fillTable(c Category, columns []Column, values map[string]string) Table {
	fields := FieldsFor(c)
	rows := make([]Row, 0, len(fields))
	for _, def := range fields {
		row := Row{
			Field:   def.ID,
			Label:   def.Label,
			Kind:    def.Kind,
			Unit:    def.Unit,
			Options: def.Options,
			Min:     def.Min,
			Max:     def.Max,
			Cells:   make([]Cell, 0, len(columns)),
		}
		for _, col := range columns {
			key := FieldKey(def.ID, col.Time)
			row.Cells = append(row.Cells, Cell{Key: key, Value: values[key]})
		}
		rows = append(rows, row)
	}
	return Table{Category: c, Columns: columns, Rows: rows}
}

// AnnotateAlerts evaluates every filled cell of the table
func AnnotateAlerts(table Table) Table {
	for r := range table.Rows {
		for c, cell := range table.Rows[r].Cells {
			if cell.Value == "" {
				continue
			}
			if a := Evaluate(cell.Key, cell.Value); a.IsAlert {
				table.Rows[r].Cells[c].Alert = &a
			}
		}
	}
	return table
}

// Partogram is the full labour care guide view of a patient
type Partogram struct {
	PatientID          uuid.UUID  `json:"patient_id"`
	Clock              StageClock `json:"stage_clock"`
	FirstStageDuration string     `json:"first_stage_duration,omitempty"`
	Tables             []Table    `json:"tables"`
	ActiveAlerts       []Alert    `json:"active_alerts"`
}

// BuildPartogram builds every category table from the stage clock and the
// values of a record taken against the current first stage anchor
func BuildPartogram(clock StageClock, values map[string]string) *Partogram {
	if values == nil {
		values = map[string]string{}
	}
	tables := make([]Table, 0, len(Categories))
	for _, c := range Categories {
		table := BuildTable(c, Generate(c, clock.FirstStageStart, false), values)
		table = RegenerateForSecondStage(table, clock, values)
		tables = append(tables, AnnotateAlerts(table))
	}

	active := ActiveAlerts(tables)
	if active == nil {
		active = []Alert{}
	}
	return &Partogram{
		PatientID:          clock.PatientID,
		Clock:              clock,
		FirstStageDuration: clock.FirstStageDurationText(),
		Tables:             tables,
		ActiveAlerts:       active,
	}
}
