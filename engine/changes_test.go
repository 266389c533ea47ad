package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// CHANGE DETECTION
// ============================================================================
// Thresholds are exclusive: exactly 0.10pp or 3.0% is not material.
// ============================================================================

func twoPointRequest(concept string) SeriesRequest {
	return SeriesRequest{
		Concept:    concept,
		BasePeriod: "08-01-2025",
		Periods:    []string{"07-01-2025"},
	}
}

func TestRateChangeBoundary(t *testing.T) {
	reg := schema.DefaultRegistry()
	tests := []struct {
		name    string
		to      float64
		flagged bool
	}{
		{"0.10pp", 0.1010, false},
		{"0.11pp", 0.1011, true},
		{"-0.11pp", 0.0989, true},
		{"flat", 0.10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := rateSeries("PYME", "Rate All In", "2024",
				[]string{"07-01-2025", "08-01-2025"}, []float64{0.10, tt.to})
			changes := DetectChanges(NewSliceView(records), twoPointRequest("Rate All In"), reg)
			if tt.flagged {
				require.Len(t, changes, 1)
				assert.Equal(t, ScopeTrend, changes[0].Scope)
			} else {
				assert.Empty(t, changes)
			}
		})
	}
}

func TestMonetaryChangeBoundary(t *testing.T) {
	reg := schema.DefaultRegistry()
	tests := []struct {
		name    string
		from    float64
		to      float64
		flagged bool
	}{
		{"3.0%", 100, 103, false},
		{"3.1%", 100, 103.1, true},
		{"-3.1%", 100, 96.9, true},
		{"zero reference", 0, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := rateSeries("PYME", "Originacion", "2024",
				[]string{"07-01-2025", "08-01-2025"}, []float64{tt.from, tt.to})
			changes := DetectChanges(NewSliceView(records), twoPointRequest("Originacion"), reg)
			if tt.flagged {
				require.Len(t, changes, 1)
				assert.Empty(t, changes[0].Cohort, "monetary changes are per business unit")
			} else {
				assert.Empty(t, changes)
			}
		})
	}
}

func TestTermUsesRawUnits(t *testing.T) {
	reg := schema.DefaultRegistry()
	meta := reg.Lookup("Term")

	assert.False(t, IsMaterial(meta, 36, 36.1-36))
	assert.True(t, IsMaterial(meta, 36, 0.2))
	// 0.002 in stored units would be 0.2pp for a percentage rate but not for Term
	assert.False(t, IsMaterial(meta, 36, 0.002))
	assert.True(t, IsMaterial(reg.Lookup("Spread"), 0.03, 0.002))
}

func TestDirectionLabels(t *testing.T) {
	assert.Equal(t, DirectionRose, DirectionFor(schema.KindRate, 0.01))
	assert.Equal(t, DirectionFell, DirectionFor(schema.KindRate, -0.01))
	assert.Equal(t, DirectionGrew, DirectionFor(schema.KindMonetary, 10))
	assert.Equal(t, DirectionShrank, DirectionFor(schema.KindMonetary, -10))
	assert.Equal(t, DirectionUnchanged, DirectionFor(schema.KindMonetary, 0))
}

func TestChangesPerCohort(t *testing.T) {
	reg := schema.DefaultRegistry()
	periods := []string{"07-01-2025", "08-01-2025"}
	records := append(
		rateSeries("PYME", "Rate All In", "2024", periods, []float64{0.10, 0.12}),
		rateSeries("PYME", "Rate All In", "2025", periods, []float64{0.20, 0.20})...,
	)

	changes := DetectChanges(NewSliceView(records), twoPointRequest("Rate All In"), reg)
	require.Len(t, changes, 1)

	c := changes[0]
	assert.Equal(t, "2024", c.Cohort)
	assert.Equal(t, "PYME", c.BusinessUnit)
	assert.Equal(t, "07-01-2025", c.ReferencePeriod)
	assert.Equal(t, "08-01-2025", c.Period)
	assert.Equal(t, DirectionRose, c.Direction)
	assert.InDelta(t, 0.02, c.Magnitude, 1e-12)
	assert.InDelta(t, 20.0, c.Percentage, 1e-9)
}

func TestTrendAndSteps(t *testing.T) {
	reg := schema.DefaultRegistry()
	records := rateSeries("CORP", "Originacion", "2024",
		months(2025, 5, 8), []float64{100, 101, 120, 140})
	req := SeriesRequest{
		Concept:    "Originacion",
		BasePeriod: "08-01-2025",
		Periods:    []string{"07-01-2025", "06-01-2025", "05-01-2025"},
	}

	changes := DetectChanges(NewSliceView(records), req, reg)
	require.Len(t, changes, 3, "trend plus two material steps; 100 → 101 is below the threshold")

	assert.Equal(t, ScopeTrend, changes[0].Scope)
	assert.Equal(t, "05-01-2025", changes[0].ReferencePeriod)
	assert.Equal(t, "08-01-2025", changes[0].Period)
	assert.Equal(t, DirectionGrew, changes[0].Direction)

	assert.Equal(t, ScopeStep, changes[1].Scope)
	assert.Equal(t, "06-01-2025", changes[1].ReferencePeriod)
	assert.Equal(t, ScopeStep, changes[2].Scope)
	assert.Equal(t, "08-01-2025", changes[2].Period)
}

func TestTrendEndsAtBaseForFullYearWindow(t *testing.T) {
	reg := schema.DefaultRegistry()
	values := make([]float64, 12)
	for i := range values {
		values[i] = 100
	}
	values[7] = 200 // 08-01-2025
	records := rateSeries("PYME", "Originacion", "2024", months(2025, 1, 12), values)

	periods, err := PreviousPeriods("08-01-2025", 12)
	require.NoError(t, err)
	require.Contains(t, periods, "08-01-2025", "a twelve month window wraps onto the base month")

	req := SeriesRequest{Concept: "Originacion", BasePeriod: "08-01-2025", Periods: periods}
	chain := chainFor(req)
	require.Len(t, chain, 12)
	assert.Equal(t, "09-01-2025", chain[0])
	assert.Equal(t, "08-01-2025", chain[11])

	changes := DetectChanges(NewSliceView(records), req, reg)
	require.NotEmpty(t, changes)
	trend := changes[0]
	assert.Equal(t, ScopeTrend, trend.Scope)
	assert.Equal(t, "09-01-2025", trend.ReferencePeriod)
	assert.Equal(t, "08-01-2025", trend.Period)
	assert.Equal(t, DirectionGrew, trend.Direction)
	assert.InDelta(t, 100.0, trend.Magnitude, 1e-9)
}

func TestChangesSkipShortSeries(t *testing.T) {
	reg := schema.DefaultRegistry()
	records := []Record{rec("08-01-2025", "PYME", "Originacion", "2024", 100)}

	assert.Empty(t, DetectChanges(NewSliceView(records), twoPointRequest("Originacion"), reg))
	assert.Empty(t, DetectChanges(NewSliceView(records), SeriesRequest{Concept: "Originacion", BasePeriod: "08-01-2025"}, reg))
}

func TestChangesRespectBusinessUnits(t *testing.T) {
	reg := schema.DefaultRegistry()
	periods := []string{"07-01-2025", "08-01-2025"}
	records := append(
		rateSeries("PYME", "Originacion", "2024", periods, []float64{100, 200}),
		rateSeries("CORP", "Originacion", "2024", periods, []float64{100, 50})...,
	)

	req := twoPointRequest("Originacion")
	req.BusinessUnits = []string{"CORP"}
	changes := DetectChanges(NewSliceView(records), req, reg)

	require.Len(t, changes, 1)
	assert.Equal(t, "CORP", changes[0].BusinessUnit)
	assert.Equal(t, DirectionShrank, changes[0].Direction)
}
