package engine

import (
	"fmt"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from aggregates and findings
// ============================================================================

// BuildAggregateTable lists each concept aggregate; rate concepts get one
// extra row per cohort.
func BuildAggregateTable(aggs []Aggregate, reg *schema.Registry) *TableData {
	t := &TableData{
		Title: "Aggregates",
		Columns: []Column{
			{Key: "concept", Label: "Concept", Type: "text", Align: "left"},
			{Key: "cohort", Label: "Cohort", Type: "text", Align: "left"},
			{Key: "kind", Label: "Kind", Type: "text", Align: "center"},
			{Key: "value", Label: "Value", Type: "number", Align: "right"},
			{Key: "rows", Label: "Rows", Type: "number", Align: "right"},
		},
		Rows: [][]string{},
	}

	for _, a := range aggs {
		value := "n/a"
		if a.Valid {
			value = FormatMetric(reg, a.Concept, a.Value)
		}
		cohort := ""
		if a.Kind == schema.KindRate {
			cohort = "all"
		}
		t.Rows = append(t.Rows, []string{a.Concept, cohort, string(a.Kind), value, fmt.Sprintf("%d", a.Rows)})

		for _, c := range a.Cohorts {
			t.Rows = append(t.Rows, []string{
				a.Concept,
				cohortLabel(c.Cohort),
				string(a.Kind),
				FormatMetric(reg, a.Concept, c.Value),
				fmt.Sprintf("%d", c.Groups),
			})
		}
	}

	t.Summary = &Summary{
		Label:  fmt.Sprintf("%d concepts", len(aggs)),
		Values: map[string]string{},
	}
	return t
}

// BuildChangeTable lists material changes.
func BuildChangeTable(changes []ChangeRecord, reg *schema.Registry) *TableData {
	t := &TableData{
		Title: "Significant changes",
		Columns: []Column{
			{Key: "scope", Label: "Scope", Type: "text", Align: "left"},
			{Key: "unit", Label: "Business unit", Type: "text", Align: "left"},
			{Key: "cohort", Label: "Cohort", Type: "text", Align: "left"},
			{Key: "concept", Label: "Concept", Type: "text", Align: "left"},
			{Key: "from", Label: "From", Type: "text", Align: "center"},
			{Key: "to", Label: "To", Type: "text", Align: "center"},
			{Key: "direction", Label: "Direction", Type: "text", Align: "center"},
			{Key: "magnitude", Label: "Change", Type: "number", Align: "right"},
			{Key: "percentage", Label: "%", Type: "percent", Align: "right"},
		},
		Rows: make([][]string, 0, len(changes)),
	}

	for _, c := range changes {
		t.Rows = append(t.Rows, []string{
			c.Scope,
			c.BusinessUnit,
			c.Cohort,
			c.Concept,
			c.ReferencePeriod,
			c.Period,
			c.Direction,
			FormatDelta(reg, c.Concept, c.Magnitude),
			fmt.Sprintf("%.1f%%", c.Percentage),
		})
	}
	return t
}

// BuildAnomalyTable lists anomalies.
func BuildAnomalyTable(anomalies []AnomalyRecord, reg *schema.Registry) *TableData {
	t := &TableData{
		Title: "Anomalies",
		Columns: []Column{
			{Key: "severity", Label: "Severity", Type: "text", Align: "center"},
			{Key: "unit", Label: "Business unit", Type: "text", Align: "left"},
			{Key: "concept", Label: "Concept", Type: "text", Align: "left"},
			{Key: "period", Label: "Period", Type: "text", Align: "center"},
			{Key: "value", Label: "Value", Type: "number", Align: "right"},
			{Key: "z", Label: "z-score", Type: "number", Align: "right"},
		},
		Rows: make([][]string, 0, len(anomalies)),
	}

	for _, a := range anomalies {
		t.Rows = append(t.Rows, []string{
			a.Severity,
			a.BusinessUnit,
			a.Concept,
			a.Period,
			FormatMetric(reg, a.Concept, a.Value),
			fmt.Sprintf("%.2f", a.Deviation),
		})
	}
	return t
}
