package engine

import (
	"fmt"
	"strings"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// NARRATIVE — Markdown reply assembled from a Result
// ============================================================================
// Pure formatting. Every number comes from the Result; nothing is computed
// here beyond display conversions.
// ============================================================================

// ComposeNarrative renders a Result as markdown.
func ComposeNarrative(res *Result, reg *schema.Registry) string {
	if res == nil || res.Status == StatusNoData {
		return noDataReply(res)
	}

	var b strings.Builder

	b.WriteString("## 📊 Financial analysis\n\n")
	fmt.Fprintf(&b, "Records analysed: %s", FormatInt(res.Rows))
	if len(res.Chain) > 0 {
		fmt.Fprintf(&b, " · periods %s", periodSpan(res.Chain))
	}
	b.WriteString("\n\n")

	writeFilters(&b, res)
	writeAggregates(&b, res, reg)

	if len(res.Chain) >= 2 {
		writeTrend(&b, res, reg)
		writeTrajectory(&b, res, reg)
		writeAnomalies(&b, res, reg)
	}

	writeVintage(&b, res, reg)
	writeBreakdowns(&b, res)

	if len(res.Warnings) > 0 || len(res.Omitted) > 0 {
		b.WriteString("### Notes\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		for _, o := range res.Omitted {
			fmt.Fprintf(&b, "- %s section skipped: required columns are missing\n", o)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func noDataReply(res *Result) string {
	if res != nil && len(res.Warnings) > 0 {
		return "No data available to analyze. " + strings.Join(res.Warnings, " ") + "\n"
	}
	return "No data available to analyze.\n"
}

func writeFilters(b *strings.Builder, res *Result) {
	if len(res.Filters.Filters) > 0 {
		b.WriteString("### 🔍 Filters applied\n")
		for _, f := range res.Filters.Filters {
			fmt.Fprintf(b, "- %s: %s\n", f.Field, strings.Join(f.Values, ", "))
		}
		b.WriteString("\n")
	}

	if res.Relaxed {
		dropped := make([]string, 0, len(res.Dropped))
		for _, f := range res.Dropped {
			dropped = append(dropped, fmt.Sprintf("%s=%s", f.Field, strings.Join(f.Values, "|")))
		}
		fmt.Fprintf(b, "> ⚠️ No rows matched every filter. Relaxed by dropping: %s.\n\n", strings.Join(dropped, ", "))
	}
}

func writeAggregates(b *strings.Builder, res *Result, reg *schema.Registry) {
	if len(res.Aggregates) == 0 {
		return
	}
	b.WriteString("### 💰 Aggregates\n")
	for _, a := range res.Aggregates {
		if !a.Valid {
			fmt.Fprintf(b, "- **%s**: no usable values\n", a.Concept)
			continue
		}
		if a.Kind == schema.KindRate {
			fmt.Fprintf(b, "- **%s**: %s (mean of %d cohorts)\n", a.Concept, FormatMetric(reg, a.Concept, a.Value), len(a.Cohorts))
			for _, c := range a.Cohorts {
				fmt.Fprintf(b, "  - cohort %s: %s\n", cohortLabel(c.Cohort), FormatMetric(reg, a.Concept, c.Value))
			}
			continue
		}
		fmt.Fprintf(b, "- **%s**: %s (%s rows)\n", a.Concept, FormatMetric(reg, a.Concept, a.Value), FormatInt(a.Rows))
	}
	b.WriteString("\n")
}

func writeTrend(b *strings.Builder, res *Result, reg *schema.Registry) {
	b.WriteString("### 📈 Overall trend\n")
	n := 0
	for _, c := range res.Changes {
		if c.Scope != ScopeTrend {
			continue
		}
		fmt.Fprintf(b, "- %s: %s %s %s (%s → %s, %s to %s)\n",
			seriesLabel(c), c.Concept, c.Direction, FormatDelta(reg, c.Concept, c.Magnitude),
			FormatMetric(reg, c.Concept, c.From), FormatMetric(reg, c.Concept, c.To),
			c.ReferencePeriod, c.Period)
		n++
	}
	if n == 0 {
		b.WriteString("- No significant changes.\n")
	}
	b.WriteString("\n")
}

func writeTrajectory(b *strings.Builder, res *Result, reg *schema.Registry) {
	var steps []ChangeRecord
	for _, c := range res.Changes {
		if c.Scope == ScopeStep {
			steps = append(steps, c)
		}
	}
	if len(steps) == 0 {
		return
	}
	b.WriteString("### 🧭 Month by month\n")
	for _, c := range steps {
		fmt.Fprintf(b, "- %s → %s, %s: %s %s %s\n",
			c.ReferencePeriod, c.Period, seriesLabel(c), c.Concept, c.Direction, FormatDelta(reg, c.Concept, c.Magnitude))
	}
	b.WriteString("\n")
}

func writeAnomalies(b *strings.Builder, res *Result, reg *schema.Registry) {
	b.WriteString("### 🚨 Anomalies\n")
	if len(res.Anomalies) == 0 {
		b.WriteString("- No anomalies detected.\n\n")
		return
	}
	for _, a := range res.Anomalies {
		fmt.Fprintf(b, "- [%s] %s %s in %s: %s (z = %.2f)\n",
			strings.ToUpper(a.Severity), a.BusinessUnit, a.Concept, a.Period,
			FormatMetric(reg, a.Concept, a.Value), a.Deviation)
	}
	b.WriteString("\n")
}

func writeVintage(b *strings.Builder, res *Result, reg *schema.Registry) {
	v := res.Vintage
	if v == nil {
		return
	}
	b.WriteString("### 🔮 Forecast vs realized\n")
	fmt.Fprintf(b, "- %s for %s: forecast %s (prepared %s), realized %s, gap %s",
		v.Concept, v.Realized.Period,
		FormatMetric(reg, v.Concept, v.Forecast), v.Predicted.PrepDate,
		FormatMetric(reg, v.Concept, v.Actual), FormatDelta(reg, v.Concept, v.Gap))
	if v.Forecast != 0 {
		fmt.Fprintf(b, " (%.1f%%)", v.GapPercent)
	}
	b.WriteString("\n\n")
}

func writeBreakdowns(b *strings.Builder, res *Result) {
	for _, bd := range res.Breakdowns {
		if len(bd.Groups) < 2 {
			continue
		}
		fmt.Fprintf(b, "### By %s\n", bd.Column)
		for _, g := range bd.Groups {
			fmt.Fprintf(b, "- %s: %s (%.1f%%)\n", cohortLabel(g.Key), FormatAmount(g.Value), g.Share)
		}
		b.WriteString("\n")
	}
}

func seriesLabel(c ChangeRecord) string {
	if c.Cohort != "" {
		return fmt.Sprintf("%s / cohort %s", c.BusinessUnit, c.Cohort)
	}
	return c.BusinessUnit
}

func cohortLabel(v string) string {
	if v == "" {
		return "(blank)"
	}
	return v
}

func periodSpan(chain []string) string {
	if len(chain) == 1 {
		return chain[0]
	}
	return fmt.Sprintf("%s – %s", chain[0], chain[len(chain)-1])
}
