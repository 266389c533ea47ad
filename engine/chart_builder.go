package engine

import (
	"fmt"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// CHART BUILDER — Produces ChartConfig from per-period series
// ============================================================================

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// BuildTrendChart draws one line per business unit for concept over the chain
// of req. Values are in display units. Returns nil when no unit has at least
// two points.
func BuildTrendChart(view RecordView, req SeriesRequest, reg *schema.Registry) *ChartConfig {
	chain := chainFor(req)
	if len(chain) < 2 {
		return nil
	}

	rows := scopeRows(view, req)
	meta := reg.Lookup(req.Concept)

	var series []ChartSeries
	for _, unit := range unitsFor(rows, req) {
		points := seriesPoints(Where(rows, schema.ColBusinessUnit, unit), chain, req.Concept, reg)
		if len(points) < 2 {
			continue
		}
		data := make([]ChartPoint, 0, len(points))
		for _, p := range points {
			data = append(data, ChartPoint{Label: p.Period, Value: RoundTo2(reg.DisplayValue(req.Concept, p.Value))})
		}
		series = append(series, ChartSeries{Name: unit, Data: data})
	}
	if len(series) == 0 {
		return nil
	}

	colors := assignColors(len(series))
	for i := range series {
		series[i].Color = colors[i]
	}

	return &ChartConfig{
		ChartType:  "line",
		Title:      fmt.Sprintf("%s by business unit", req.Concept),
		XAxis:      schema.ColPeriod,
		YAxis:      yAxisLabel(meta),
		Series:     series,
		Colors:     colors,
		ShowLegend: len(series) > 1,
		ShowGrid:   true,
	}
}

// BuildBreakdownChart renders a breakdown as a single bar series.
func BuildBreakdownChart(b Breakdown) *ChartConfig {
	if len(b.Groups) == 0 {
		return nil
	}
	points := make([]ChartPoint, 0, len(b.Groups))
	for _, g := range b.Groups {
		points = append(points, ChartPoint{Label: cohortLabel(g.Key), Value: RoundTo2(g.Value)})
	}
	return &ChartConfig{
		ChartType:  "bar",
		Title:      fmt.Sprintf("Amount by %s", b.Column),
		XAxis:      b.Column,
		YAxis:      "Amount",
		Series:     []ChartSeries{{Name: "Amount", Data: points}},
		Colors:     assignColors(1),
		ShowLegend: false,
		ShowGrid:   true,
	}
}

func yAxisLabel(meta schema.ConceptMeta) string {
	if meta.Kind != schema.KindRate {
		return "Amount"
	}
	if meta.Unit != "" {
		return fmt.Sprintf("%s (%s)", meta.Name, meta.Unit)
	}
	return meta.Name
}

// assignColors returns n colors from the default palette, cycling if needed.
func assignColors(n int) []string {
	colors := make([]string, n)
	for i := 0; i < n; i++ {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}
