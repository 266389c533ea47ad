package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// ANALYZE — end-to-end pipeline
// ============================================================================

func cohortFixture() RecordView {
	periods := []string{"07-01-2025", "08-01-2025"}
	var records []Record
	records = append(records, rateSeries("PYME", "Rate All In", "2024", periods, []float64{0.10, 0.12})...)
	records = append(records, rateSeries("PYME", "Rate All In", "2025", periods, []float64{0.20, 0.20})...)
	records = append(records, rateSeries("PYME", "Originacion", "2024", periods, []float64{1000, 1000})...)
	return NewSliceView(records)
}

func TestAnalyzeRateRise(t *testing.T) {
	var fs FilterSet
	fs.Set(schema.ColConcept, "Rate All In")
	fs.Set(schema.ColCohort, "2024")

	res, err := Analyze(fs, cohortFixture())
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)

	require.Len(t, res.Aggregates, 1)
	assert.InDelta(t, 0.11, res.Aggregates[0].Value, 1e-12)

	assert.Equal(t, []string{"07-01-2025", "08-01-2025"}, res.Chain)
	require.Len(t, res.Changes, 1)
	c := res.Changes[0]
	assert.Equal(t, DirectionRose, c.Direction)
	assert.InDelta(t, 0.02, c.Magnitude, 1e-12)
	assert.Equal(t, "2024", c.Cohort)
	assert.Empty(t, res.Anomalies)

	assert.False(t, res.Relaxed)
	assert.Contains(t, res.Reply, "Rate All In rose +2.00pp")
	require.NotNil(t, res.Chart)
	assert.Equal(t, "line", res.Chart.ChartType)
	assert.Empty(t, res.Breakdowns, "rates are never broken down as sums")
}

func TestAnalyzeRelativeWindow(t *testing.T) {
	view := NewSliceView([]Record{
		vintage("08-01-2025", "06-01-2025", "Originacion", 100),
		vintage("08-01-2025", "07-01-2025", "Originacion", 100),
		vintage("08-01-2025", "08-01-2025", "Originacion", 200),
		vintage("06-01-2025", "07-01-2025", "Originacion", 5000),
	})
	fs := FilterSet{Window: &RelativeWindow{Count: 2, Unit: UnitMonths}}
	fs.Set(schema.ColPrepDate, "08-01-2025")
	fs.Set(schema.ColConcept, "Originacion")

	res, err := Analyze(fs, view)
	require.NoError(t, err)

	assert.Equal(t, []string{"07-01-2025", "06-01-2025"}, res.Filters.Values(schema.ColPeriod))
	require.Len(t, res.Aggregates, 1)
	assert.InDelta(t, 200.0, res.Aggregates[0].Value, 1e-9)

	assert.Equal(t, []string{"06-01-2025", "07-01-2025", "08-01-2025"}, res.Chain)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, ScopeTrend, res.Changes[0].Scope)
	assert.Equal(t, DirectionGrew, res.Changes[0].Direction)
	assert.Equal(t, ScopeStep, res.Changes[1].Scope)
	assert.Equal(t, "07-01-2025", res.Changes[1].ReferencePeriod)
}

func TestAnalyzeWindowWithoutAnchorWarns(t *testing.T) {
	fs := FilterSet{Window: &RelativeWindow{Count: 3, Unit: UnitMonths}}
	fs.Set(schema.ColConcept, "Originacion")

	res, err := Analyze(fs, cohortFixture())
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.False(t, res.Filters.Has(schema.ColPeriod))
	assert.Contains(t, res.Reply, "ignored")
}

func TestAnalyzeDisclosesRelaxation(t *testing.T) {
	var fs FilterSet
	fs.Set(schema.ColConcept, "Originacion")
	fs.Set(schema.ColBusinessUnit, "Brokers")

	res, err := Analyze(fs, cohortFixture())
	require.NoError(t, err)
	assert.True(t, res.Relaxed)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, schema.ColBusinessUnit, res.Dropped[0].Field)
	assert.Contains(t, res.Reply, "Relaxed by dropping: Negocio=Brokers")
}

func TestAnalyzeNoData(t *testing.T) {
	res, err := Analyze(FilterSet{}, NewSliceView(nil))
	require.NoError(t, err)
	assert.Equal(t, StatusNoData, res.Status)
	assert.Contains(t, res.Reply, "No data available")

	onlyMissing := NewSliceView([]Record{rec("08-01-2025", "PYME", "Originacion", "2024", missing)})
	res, err = Analyze(FilterSet{}, onlyMissing)
	require.NoError(t, err)
	assert.Equal(t, StatusNoData, res.Status)
	assert.Empty(t, res.Changes)
}

func TestAnalyzeUnknownField(t *testing.T) {
	fs := FilterSet{Filters: []Filter{{Field: "Valor", Values: []string{"1"}}}}
	_, err := Analyze(fs, cohortFixture())
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestAnalyzeOmitsSectionsForMissingColumns(t *testing.T) {
	view := NewSliceView([]Record{
		rec("08-01-2025", "PYME", "Originacion", "2024", 100),
		rec("08-01-2025", "CORP", "Originacion", "2024", 300),
		rec("08-01-2025", "CORP", "Rate All In", "2024", 0.1),
	}, schema.ColConcept, schema.ColValue, schema.ColBusinessUnit)

	res, err := Analyze(FilterSet{}, view)
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)

	assert.Contains(t, res.Omitted, "rate aggregates")
	assert.Contains(t, res.Omitted, "changes and anomalies")
	assert.Contains(t, res.Omitted, "breakdown by "+schema.ColPeriod)
	assert.Nil(t, res.Chain)

	require.Len(t, res.Aggregates, 1)
	assert.InDelta(t, 400.0, res.Aggregates[0].Value, 1e-9)
	require.NotEmpty(t, res.Breakdowns)
	assert.Equal(t, schema.ColBusinessUnit, res.Breakdowns[0].Column)
}

func TestAnalyzeWithoutTrendSections(t *testing.T) {
	res, err := Analyze(FilterSet{}, cohortFixture(), WithTrendSections(false), WithBreakdowns(false))
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
	assert.Nil(t, res.Chain)
	assert.Empty(t, res.Breakdowns)
	assert.NotContains(t, res.Reply, "Overall trend")
}

func TestAnalyzeVintageComparison(t *testing.T) {
	var fs FilterSet
	fs.Set(schema.ColPrepDate, "06-01-2025")
	fs.Set(schema.ColPeriod, "08-01-2025")

	res, err := Analyze(fs, vintageFixture())
	require.NoError(t, err)
	require.NotNil(t, res.Vintage)
	assert.InDelta(t, 160.0, res.Vintage.Forecast, 1e-9)
	assert.InDelta(t, 200.0, res.Vintage.Actual, 1e-9)
	assert.Contains(t, res.Reply, "Forecast vs realized")
}

func TestAnalyzeCustomRegistry(t *testing.T) {
	reg := schema.NewRegistry([]schema.ConceptMeta{{Name: "Originacion", Kind: schema.KindRate, DisplayScale: 1}})
	res, err := Analyze(FilterSet{}, cohortFixture(), WithRegistry(reg))
	require.NoError(t, err)

	for _, a := range res.Aggregates {
		if a.Concept == "Originacion" {
			assert.Equal(t, schema.KindRate, a.Kind)
			assert.InDelta(t, 1000.0, a.Value, 1e-9)
		}
		if a.Concept == "Rate All In" {
			assert.Equal(t, schema.KindMonetary, a.Kind, "undeclared under the custom registry")
		}
	}
}
