package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// NARRATIVE + BUILDERS
// ============================================================================

func TestComposeNarrativeNoData(t *testing.T) {
	reg := schema.DefaultRegistry()
	assert.Equal(t, "No data available to analyze.\n", ComposeNarrative(nil, reg))
	assert.Equal(t, "No data available to analyze.\n", ComposeNarrative(&Result{Status: StatusNoData}, reg))
}

func TestComposeNarrativeQuietSections(t *testing.T) {
	res := &Result{
		Status:     StatusOK,
		Rows:       4,
		Chain:      []string{"07-01-2025", "08-01-2025"},
		Aggregates: []Aggregate{{Concept: "Originacion", Kind: schema.KindMonetary, Value: 1234.5, Rows: 4, Valid: true}},
	}
	out := ComposeNarrative(res, schema.DefaultRegistry())

	assert.Contains(t, out, "**Originacion**: $1,234.50 (4 rows)")
	assert.Contains(t, out, "No significant changes.")
	assert.Contains(t, out, "No anomalies detected.")
	assert.Contains(t, out, "07-01-2025 – 08-01-2025")
	assert.NotContains(t, out, "Month by month")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestComposeNarrativeFindings(t *testing.T) {
	res := &Result{
		Status: StatusOK,
		Chain:  []string{"06-01-2025", "07-01-2025", "08-01-2025"},
		Changes: []ChangeRecord{
			{Concept: "Spread", BusinessUnit: "CORP", Cohort: "2025", ReferencePeriod: "06-01-2025", Period: "08-01-2025",
				From: 0.03, To: 0.02, Magnitude: -0.01, Direction: DirectionFell, Kind: schema.KindRate, Scope: ScopeTrend},
			{Concept: "Spread", BusinessUnit: "CORP", Cohort: "2025", ReferencePeriod: "07-01-2025", Period: "08-01-2025",
				From: 0.03, To: 0.02, Magnitude: -0.01, Direction: DirectionFell, Kind: schema.KindRate, Scope: ScopeStep},
		},
		Anomalies: []AnomalyRecord{
			{Concept: "Originacion", BusinessUnit: "WK", Period: "08-01-2025", Value: 9000, Deviation: 3.2, Severity: SeverityHigh},
		},
	}
	out := ComposeNarrative(res, schema.DefaultRegistry())

	assert.Contains(t, out, "CORP / cohort 2025: Spread fell -1.00pp (3.00% → 2.00%")
	assert.Contains(t, out, "Month by month")
	assert.Contains(t, out, "[HIGH] WK Originacion in 08-01-2025: $9,000.00 (z = 3.20)")
}

func TestBuildTables(t *testing.T) {
	reg := schema.DefaultRegistry()
	aggs := []Aggregate{
		{Concept: "Rate All In", Kind: schema.KindRate, Value: 0.16, Valid: true, Rows: 3,
			Cohorts: []CohortValue{{Cohort: "2024", Value: 0.12, Groups: 2}, {Cohort: "2025", Value: 0.2, Groups: 1}}},
		{Concept: "Originacion", Kind: schema.KindMonetary, Valid: false},
	}

	table := BuildAggregateTable(aggs, reg)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, []string{"Rate All In", "all", "rate", "16.00%", "3"}, table.Rows[0])
	assert.Equal(t, "12.00%", table.Rows[1][3])
	assert.Equal(t, "n/a", table.Rows[3][3])

	anomalies := BuildAnomalyTable([]AnomalyRecord{{Concept: "Term", BusinessUnit: "PYME", Period: "08-01-2025", Value: 48, Deviation: -2.5, Severity: SeverityMedium}}, reg)
	require.Len(t, anomalies.Rows, 1)
	assert.Equal(t, "48.0 months", anomalies.Rows[0][4])
	assert.Equal(t, "-2.50", anomalies.Rows[0][5])
}

func TestBuildTrendChart(t *testing.T) {
	reg := schema.DefaultRegistry()
	chain := months(2025, 6, 8)
	records := append(
		rateSeries("PYME", "Rate All In", "2024", chain, []float64{0.10, 0.11, 0.12}),
		rateSeries("CORP", "Rate All In", "2024", chain[2:], []float64{0.30})...,
	)

	chart := BuildTrendChart(NewSliceView(records), requestFor("Rate All In", chain), reg)
	require.NotNil(t, chart)
	require.Len(t, chart.Series, 1, "CORP has a single point")
	assert.Equal(t, "PYME", chart.Series[0].Name)
	assert.InDelta(t, 12.0, chart.Series[0].Data[2].Value, 1e-9)
	assert.Equal(t, "Rate All In (%)", chart.YAxis)

	assert.Nil(t, BuildTrendChart(NewSliceView(records), requestFor("Rate All In", chain[:1]), reg))
}
