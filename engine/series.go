package engine

import (
	"github.com/spektr-org/finchat/schema"
)

// point is one period of a per-period aggregate series.
type point struct {
	Period string
	Value  float64
}

// scopeRows restricts a view to the concept (and scenario, when given) of a
// series request.
func scopeRows(view RecordView, req SeriesRequest) RecordView {
	rows := Where(view, schema.ColConcept, req.Concept)
	if req.Scenario != "" {
		rows = Where(rows, schema.ColScenario, req.Scenario)
	}
	return rows
}

// unitsFor returns the requested business units, or every unit present.
func unitsFor(rows RecordView, req SeriesRequest) []string {
	if len(req.BusinessUnits) > 0 {
		return req.BusinessUnits
	}
	return UniqueValues(rows, schema.ColBusinessUnit)
}

// seriesPoints aggregates rows per chain period. Periods without a usable
// aggregate are left out of the series.
func seriesPoints(rows RecordView, chain []string, concept string, reg *schema.Registry) []point {
	byPeriod := make(map[string][]int)
	for i := 0; i < rows.Len(); i++ {
		p := rows.Field(i, schema.ColPeriod)
		byPeriod[p] = append(byPeriod[p], i)
	}

	out := make([]point, 0, len(chain))
	for _, p := range chain {
		idx, ok := byPeriod[p]
		if !ok {
			continue
		}
		agg := AggregateConcept(newSubView(rows, idx), concept, reg)
		if !agg.Valid || isMissing(agg.Value) {
			continue
		}
		out = append(out, point{Period: p, Value: agg.Value})
	}
	return out
}

// ChainFromView derives a chain from the periods present in a view when the
// query did not name one: the newest period becomes the base.
func ChainFromView(view RecordView) (base string, previous []string) {
	periods := UniqueValues(view, schema.ColPeriod)
	if len(periods) == 0 {
		return "", nil
	}
	SortPeriods(periods)
	base = periods[len(periods)-1]
	for i := len(periods) - 2; i >= 0; i-- {
		previous = append(previous, periods[i])
	}
	return base, previous
}
