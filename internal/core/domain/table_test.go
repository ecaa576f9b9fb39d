package domain_test

import (
	"testing"

	"github.com/IANDYI/labour-care-service/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldKey_RoundTrip(t *testing.T) {
	key := domain.FieldKey(domain.FieldContractions, clockTime(t, "06:15"))
	assert.Equal(t, "Contractions_per_10_min_06_15", key)

	id, at, ok := domain.ParseFieldKey(key)
	require.True(t, ok)
	assert.Equal(t, domain.FieldContractions, id)
	assert.Equal(t, "06:15", at.String())

	_, _, ok = domain.ParseFieldKey("Pulse")
	assert.False(t, ok)
	for _, key := range []string{"Pulse_25_00", "Pulse_+9_00", "Pulse_-0_00", "Pulse_ 9_00"} {
		_, _, ok = domain.ParseFieldKey(key)
		assert.False(t, ok, key)
	}
}

func TestFieldKey_AfterMidnightWraps(t *testing.T) {
	assert.Equal(t, "Pulse_01_30", domain.FieldKey(domain.FieldPulse, domain.ClockTime(24*60+90)))
}

func TestBuildTable_PrefillsValues(t *testing.T) {
	schedule := domain.Generate(domain.CategoryFHR, clockPtr(t, "06:00"), false)
	values := map[string]string{
		"Baseline_FHR_06_15":     "140",
		"FHR_deceleration_06_30": "E",
		"Pulse_06_30":            "80",
	}

	table := domain.BuildTable(domain.CategoryFHR, schedule, values)

	assert.Equal(t, domain.CategoryFHR, table.Category)
	require.Len(t, table.Columns, 48)
	require.Len(t, table.Rows, 2)

	fhr := table.Rows[0]
	assert.Equal(t, domain.FieldBaselineFHR, fhr.Field)
	require.Len(t, fhr.Cells, 48)
	assert.Equal(t, "Baseline_FHR_06_15", fhr.Cells[0].Key)
	assert.Equal(t, "140", fhr.Cells[0].Value)
	assert.Empty(t, fhr.Cells[1].Value)

	decel := table.Rows[1]
	assert.Equal(t, "E", decel.Cells[1].Value)
	assert.Equal(t, []string{"N", "E", "L", "V"}, decel.Options)
}

func TestBuildTable_UnsetAnchorHasNoColumns(t *testing.T) {
	table := domain.BuildTable(domain.CategoryWoman, domain.Generate(domain.CategoryWoman, nil, false), nil)
	assert.Empty(t, table.Columns)
	for _, row := range table.Rows {
		assert.Empty(t, row.Cells)
	}
}

func TestRegenerateForSecondStage_IsAdditive(t *testing.T) {
	first := clockPtr(t, "06:00")
	second := clockPtr(t, "10:10")
	values := map[string]string{
		"Contractions_per_10_min_06_30": "3",
		"Contractions_per_10_min_15_00": "4",
		"Contractions_per_10_min_10_15": "5",
	}

	table := domain.BuildTable(domain.CategoryContractions, domain.Generate(domain.CategoryContractions, first, false), values)
	require.Len(t, table.Columns, 24)

	regenerated := domain.RegenerateForSecondStage(table, domain.StageClock{FirstStageStart: first, SecondStageStart: second}, values)

	// second stage adds the quarter hours 10:15, 10:45, 11:15, 11:45, 12:15 and 12:45
	require.Len(t, regenerated.Columns, 30)
	for i := 1; i < len(regenerated.Columns); i++ {
		assert.Greater(t, regenerated.Columns[i].Time, regenerated.Columns[i-1].Time)
	}

	cells := map[string]domain.Cell{}
	for _, cell := range regenerated.Rows[0].Cells {
		cells[cell.Key] = cell
	}
	assert.Equal(t, "3", cells["Contractions_per_10_min_06_30"].Value)
	assert.Equal(t, "4", cells["Contractions_per_10_min_15_00"].Value)
	assert.Equal(t, "5", cells["Contractions_per_10_min_10_15"].Value)

	for _, col := range regenerated.Columns {
		assert.Equal(t, col.Time >= *second, col.SecondStage, "column %s", col.Time)
	}
}

func TestRegenerateForSecondStage_NoAnchorKeepsTable(t *testing.T) {
	table := domain.BuildTable(domain.CategoryBaby, domain.Generate(domain.CategoryBaby, clockPtr(t, "06:00"), false), nil)
	regenerated := domain.RegenerateForSecondStage(table, domain.StageClock{FirstStageStart: clockPtr(t, "06:00")}, nil)
	assert.Equal(t, table, regenerated)
}

func TestBuildPartogram(t *testing.T) {
	clock := domain.StageClock{FirstStageStart: clockPtr(t, "08:00"), SecondStageStart: clockPtr(t, "14:30")}
	values := map[string]string{
		"Baseline_FHR_08_15": "170",
		"Companion_08_30":    "Y",
	}

	partogram := domain.BuildPartogram(clock, values)

	require.Len(t, partogram.Tables, len(domain.Categories))
	assert.Equal(t, "6h 30m", partogram.FirstStageDuration)
	require.Len(t, partogram.ActiveAlerts, 1)
	assert.Equal(t, domain.FieldBaselineFHR, partogram.ActiveAlerts[0].Field)

	fhr := partogram.Tables[1]
	require.Equal(t, domain.CategoryFHR, fhr.Category)
	require.NotNil(t, fhr.Rows[0].Cells[0].Alert)
	assert.True(t, fhr.Rows[0].Cells[0].Alert.IsAlert)

	supportive := partogram.Tables[0]
	assert.Nil(t, supportive.Rows[0].Cells[0].Alert)
	assert.Equal(t, "Y", supportive.Rows[0].Cells[0].Value)
}

func TestBuildPartogram_NoClockRendersNoColumns(t *testing.T) {
	partogram := domain.BuildPartogram(domain.StageClock{}, nil)
	for _, table := range partogram.Tables {
		assert.Empty(t, table.Columns)
	}
	assert.NotNil(t, partogram.ActiveAlerts)
	assert.Empty(t, partogram.FirstStageDuration)
}

func TestValidateObservations(t *testing.T) {
	assert.NoError(t, domain.ValidateObservations(map[string]string{
		"Baseline_FHR_06_15": "140",
		"Companion_06_30":    "Y",
		"PLAN_06_30":         "Continue monitoring",
		"Pulse_06_30":        "",
	}))

	err := domain.ValidateObservations(map[string]string{"Companion_06_30": "Maybe"})
	assert.True(t, domain.IsValidationError(err))

	err = domain.ValidateObservations(map[string]string{"Baseline_FHR_06_15": "250"})
	assert.True(t, domain.IsValidationError(err))

	err = domain.ValidateObservations(map[string]string{"Baseline_FHR_06_15": "fast"})
	assert.True(t, domain.IsValidationError(err))

	err = domain.ValidateObservations(map[string]string{"Cervix_06_15": "4"})
	assert.True(t, domain.IsValidationError(err))

	err = domain.ValidateObservations(map[string]string{"Pulse": "80"})
	assert.True(t, domain.IsValidationError(err))

	for _, value := range []string{"NaN", "nan", "Inf", "-Inf", "+Inf"} {
		err = domain.ValidateObservations(map[string]string{"Baseline_FHR_06_15": value})
		assert.True(t, domain.IsValidationError(err), value)
	}

	err = domain.ValidateObservations(map[string]string{"Pulse_+9_00": "30"})
	assert.True(t, domain.IsValidationError(err))
}

func TestValidateScheduledKeys(t *testing.T) {
	clock := domain.StageClock{FirstStageStart: clockPtr(t, "08:00")}

	assert.NoError(t, domain.ValidateScheduledKeys(clock, map[string]string{
		"Pulse_08_30":        "80",
		"Baseline_FHR_08_15": "140",
		"Caput_09_00":        "0",
		"Pulse_19_30":        "80",
	}))

	for _, key := range []string{
		"Pulse_08_07", // not on the half hour
		"Pulse_08_00", // the anchor itself is not sampled
		"Caput_08_30", // baby table is hourly in the first stage
		"Pulse_20_30", // past the twelve hour window
		"Pulse_07_30", // before the anchor
	} {
		err := domain.ValidateScheduledKeys(clock, map[string]string{key: "80"})
		assert.True(t, domain.IsValidationError(err), key)
	}

	// second stage columns become valid once the anchor is set
	err := domain.ValidateScheduledKeys(clock, map[string]string{"Caput_14_45": "0"})
	assert.True(t, domain.IsValidationError(err))
	clock.SecondStageStart = clockPtr(t, "14:20")
	assert.NoError(t, domain.ValidateScheduledKeys(clock, map[string]string{"Caput_14_30": "0", "Pulse_14_30": "80"}))
}

func TestBuildPartogram_OffGridValuesDoNotAlert(t *testing.T) {
	clock := domain.StageClock{FirstStageStart: clockPtr(t, "08:00")}
	values := map[string]string{
		"Pulse_08_07": "200",
		"Pulse_08_30": "80",
	}

	partogram := domain.BuildPartogram(clock, values)

	assert.Empty(t, partogram.ActiveAlerts)
}

func TestObservationRecord_MatchesAnchor(t *testing.T) {
	record := &domain.ObservationRecord{AnchorTime: clockTime(t, "06:00")}
	assert.True(t, record.MatchesAnchor(clockPtr(t, "06:00")))
	assert.False(t, record.MatchesAnchor(clockPtr(t, "07:00")))
	assert.False(t, record.MatchesAnchor(nil))

	var missing *domain.ObservationRecord
	assert.False(t, missing.MatchesAnchor(clockPtr(t, "06:00")))
}
