package engine

import (
	"math"

	"github.com/spektr-org/finchat/schema"
)

// CompareVintages compares the forecast and realized figures of a concept.
// The two keys may come in any order: the one whose preparation date equals
// its period is taken as realized. It reports false when that cannot be
// decided or when either side has no usable aggregate.
//
// TODO: the realized/forecast split relies on the Elaboracion == Periodo
// naming convention; switch to an explicit vintage column if ingestion adds one.
func CompareVintages(view RecordView, concept string, a, b VintageKey, reg *schema.Registry) (VintageComparison, bool) {
	predicted, realized := a, b
	switch {
	case a.IsRealized() && !b.IsRealized():
		predicted, realized = b, a
	case b.IsRealized() && !a.IsRealized():
	default:
		return VintageComparison{}, false
	}

	forecast := AggregateConcept(vintageRows(view, predicted), concept, reg)
	actual := AggregateConcept(vintageRows(view, realized), concept, reg)
	if !forecast.Valid || !actual.Valid {
		return VintageComparison{}, false
	}

	cmp := VintageComparison{
		Concept:   concept,
		Predicted: predicted,
		Realized:  realized,
		Forecast:  forecast.Value,
		Actual:    actual.Value,
		Gap:       actual.Value - forecast.Value,
	}
	if forecast.Value != 0 {
		cmp.GapPercent = cmp.Gap / math.Abs(forecast.Value) * 100
	}
	return cmp, true
}

// VintagesFromFilters infers the comparison implied by a query that names a
// preparation date different from the period: that vintage against the
// realized figures of the same period.
func VintagesFromFilters(fs FilterSet) (predicted, realized VintageKey, ok bool) {
	prep, hasPrep := fs.Get(schema.ColPrepDate)
	period, hasPeriod := fs.Get(schema.ColPeriod)
	if !hasPrep || !hasPeriod || prep == period || len(fs.Values(schema.ColPeriod)) != 1 {
		return VintageKey{}, VintageKey{}, false
	}
	return VintageKey{PrepDate: prep, Period: period}, VintageKey{PrepDate: period, Period: period}, true
}

func vintageRows(view RecordView, k VintageKey) RecordView {
	return Where(Where(view, schema.ColPrepDate, k.PrepDate), schema.ColPeriod, k.Period)
}
