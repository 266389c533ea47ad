package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// AGGREGATORS — Rate vs Monetary Aggregation via RecordView
// ============================================================================
// The concept decides the rule, always through schema.Registry:
//   rate     → first value per (business unit, cohort, period), mean per
//              cohort, simple mean across cohorts
//   monetary → plain sum
// Missing (NaN) values are skipped, never propagated.
// ============================================================================

// AggregateConcept computes the aggregate of one concept over view.
func AggregateConcept(view RecordView, concept string, reg *schema.Registry) Aggregate {
	rows := Where(view, schema.ColConcept, concept)
	agg := Aggregate{
		Concept: concept,
		Kind:    reg.KindOf(concept),
		Rows:    rows.Len(),
	}

	switch agg.Kind {
	case schema.KindRate:
		agg.Cohorts = RateByCohort(rows)
		agg.Value, agg.Valid = meanOfCohorts(agg.Cohorts)
	default:
		var n int
		agg.Value, n = SumValues(rows)
		agg.Valid = n > 0
	}
	return agg
}

// AggregateAll aggregates every concept present in view, in order of first
// appearance.
func AggregateAll(view RecordView, reg *schema.Registry) []Aggregate {
	concepts := UniqueValues(view, schema.ColConcept)
	out := make([]Aggregate, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, AggregateConcept(view, c, reg))
	}
	return out
}

// ============================================================================
// RATE RULE
// ============================================================================

// RateByCohort returns per-cohort values of a rate concept. Within each
// (business unit, cohort, period) group only the first usable value counts;
// the cohort value is the mean of its groups. Cohorts keep first-seen order.
func RateByCohort(view RecordView) []CohortValue {
	type groupKey struct{ unit, cohort, period string }

	firsts := make(map[groupKey]float64)
	var cohortOrder []string
	cohortGroups := make(map[string][]groupKey)

	for i := 0; i < view.Len(); i++ {
		v := view.Value(i)
		if isMissing(v) {
			continue
		}
		key := groupKey{
			unit:   view.Field(i, schema.ColBusinessUnit),
			cohort: view.Field(i, schema.ColCohort),
			period: view.Field(i, schema.ColPeriod),
		}
		if _, seen := firsts[key]; seen {
			continue
		}
		firsts[key] = v
		if _, ok := cohortGroups[key.cohort]; !ok {
			cohortOrder = append(cohortOrder, key.cohort)
		}
		cohortGroups[key.cohort] = append(cohortGroups[key.cohort], key)
	}

	out := make([]CohortValue, 0, len(cohortOrder))
	for _, cohort := range cohortOrder {
		keys := cohortGroups[cohort]
		var sum float64
		for _, k := range keys {
			sum += firsts[k]
		}
		out = append(out, CohortValue{
			Cohort: cohort,
			Value:  sum / float64(len(keys)),
			Groups: len(keys),
		})
	}
	return out
}

// meanOfCohorts is the unweighted mean of per-cohort values.
func meanOfCohorts(cohorts []CohortValue) (float64, bool) {
	if len(cohorts) == 0 {
		return 0, false
	}
	var sum float64
	for _, c := range cohorts {
		sum += c.Value
	}
	return sum / float64(len(cohorts)), true
}

// ============================================================================
// MONETARY RULE
// ============================================================================

// SumValues sums the usable values of a view and reports how many counted.
func SumValues(view RecordView) (float64, int) {
	var total float64
	var n int
	for i := 0; i < view.Len(); i++ {
		v := view.Value(i)
		if isMissing(v) {
			continue
		}
		total += v
		n++
	}
	return total, n
}

// ============================================================================
// GROUPING
// ============================================================================

// GroupBy splits a view by one column, preserving first-seen order.
func GroupBy(view RecordView, column string) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := view.Field(i, column)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{
			Key:   key,
			Count: len(grouped[key]),
			View:  newSubView(view, grouped[key]),
		})
	}
	return groups
}

// BuildBreakdown sums the monetary rows of view per value of column. Rate
// rows are left out so rates are never added up.
func BuildBreakdown(view RecordView, column string, reg *schema.Registry) Breakdown {
	indices := make([]int, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		if reg.KindOf(view.Field(i, schema.ColConcept)) == schema.KindMonetary {
			indices = append(indices, i)
		}
	}
	monetary := newSubView(view, indices)

	b := Breakdown{Column: column}
	groups := GroupBy(monetary, column)
	for i := range groups {
		groups[i].Value, _ = SumValues(groups[i].View)
		b.Total += groups[i].Value
	}
	for i := range groups {
		if b.Total > 0 {
			groups[i].Share = groups[i].Value / b.Total * 100
		}
	}

	sortBy := "value_desc"
	if column == schema.ColPeriod || column == schema.ColPrepDate {
		sortBy = "period_asc"
	}
	SortGroups(groups, sortBy)
	b.Groups = groups
	return b
}

// ============================================================================
// SORTING
// ============================================================================

// SortGroups sorts groups by the specified mode.
func SortGroups(groups []Group, sortBy string) {
	switch sortBy {
	case "value_desc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case "period_asc":
		sort.SliceStable(groups, func(i, j int) bool { return periodOrder(groups[i].Key) < periodOrder(groups[j].Key) })
	default:
		// preserve grouping order
	}
}

// UniqueValues returns distinct non-empty values of a column, first-seen order.
func UniqueValues(view RecordView, column string) []string {
	seen := make(map[string]bool)
	var result []string
	for i := 0; i < view.Len(); i++ {
		val := view.Field(i, column)
		if val != "" && !seen[val] {
			seen[val] = true
			result = append(result, val)
		}
	}
	return result
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatAmount formats an amount with a "$" prefix and comma separators.
func FormatAmount(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	cents := int64(math.Round(amount * 100))
	intStr := FormatInt(int(cents / 100))
	result := fmt.Sprintf("$%s.%02d", intStr, cents%100)
	if negative {
		result = "-" + result
	}
	return result
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatInt(n/1000), n%1000)
}

// FormatMetric renders a stored value in the display unit of its concept.
func FormatMetric(reg *schema.Registry, concept string, v float64) string {
	meta := reg.Lookup(concept)
	if meta.Kind != schema.KindRate {
		return FormatAmount(v)
	}
	shown := v * meta.DisplayScale
	if meta.Unit == "%" {
		return fmt.Sprintf("%.2f%%", shown)
	}
	if meta.Unit != "" {
		return fmt.Sprintf("%.1f %s", shown, meta.Unit)
	}
	return fmt.Sprintf("%.2f", shown)
}

// FormatDelta renders a change magnitude: percentage points for percent
// rates, display units for other rates, amounts for monetary concepts.
func FormatDelta(reg *schema.Registry, concept string, delta float64) string {
	meta := reg.Lookup(concept)
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	switch {
	case meta.Kind != schema.KindRate:
		return sign + FormatAmount(delta)
	case meta.Unit == "%":
		return fmt.Sprintf("%s%.2fpp", sign, delta*meta.DisplayScale)
	case meta.Unit != "":
		return fmt.Sprintf("%s%.1f %s", sign, delta*meta.DisplayScale, meta.Unit)
	default:
		return fmt.Sprintf("%s%.2f", sign, delta*meta.DisplayScale)
	}
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nan() float64 { return math.NaN() }

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
