package engine

import (
	"math"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// CHANGES — Material period-over-period movements
// ============================================================================
// Rate concepts are compared per cohort in display units (percentage points
// for percentages, raw units for Term); monetary concepts by relative change.
// Both thresholds are exclusive.
// ============================================================================

const (
	// RateChangeThreshold is the minimum absolute move, in display units.
	RateChangeThreshold = 0.1
	// MonetaryChangeThreshold is the minimum relative move, in percent.
	MonetaryChangeThreshold = 3.0
)

// DetectChanges returns the material changes of one concept across the chain
// of req, per business unit (and per cohort for rate concepts). Each series
// yields a trend record (earliest vs latest point) and, when it has more than
// two points, step records for adjacent points. Series with fewer than two
// points are skipped.
func DetectChanges(view RecordView, req SeriesRequest, reg *schema.Registry) []ChangeRecord {
	chain := chainFor(req)
	if len(chain) < 2 {
		return nil
	}

	rows := scopeRows(view, req)
	meta := reg.Lookup(req.Concept)

	var out []ChangeRecord
	for _, unit := range unitsFor(rows, req) {
		unitRows := Where(rows, schema.ColBusinessUnit, unit)

		if meta.Kind == schema.KindRate {
			for _, cohort := range UniqueValues(unitRows, schema.ColCohort) {
				points := seriesPoints(Where(unitRows, schema.ColCohort, cohort), chain, req.Concept, reg)
				out = append(out, compareSeries(points, meta, unit, cohort)...)
			}
			continue
		}

		points := seriesPoints(unitRows, chain, req.Concept, reg)
		out = append(out, compareSeries(points, meta, unit, "")...)
	}
	return out
}

func compareSeries(points []point, meta schema.ConceptMeta, unit, cohort string) []ChangeRecord {
	if len(points) < 2 {
		return nil
	}

	var out []ChangeRecord
	first, last := points[0], points[len(points)-1]
	if rec, ok := evaluateChange(first, last, meta); ok {
		rec.BusinessUnit, rec.Cohort, rec.Scope = unit, cohort, ScopeTrend
		out = append(out, rec)
	}

	if len(points) > 2 {
		for i := 1; i < len(points); i++ {
			if rec, ok := evaluateChange(points[i-1], points[i], meta); ok {
				rec.BusinessUnit, rec.Cohort, rec.Scope = unit, cohort, ScopeStep
				out = append(out, rec)
			}
		}
	}
	return out
}

// evaluateChange measures from → to and reports whether it is material.
func evaluateChange(from, to point, meta schema.ConceptMeta) (ChangeRecord, bool) {
	delta := to.Value - from.Value
	rec := ChangeRecord{
		Concept:         meta.Name,
		Period:          to.Period,
		ReferencePeriod: from.Period,
		From:            from.Value,
		To:              to.Value,
		Magnitude:       delta,
		Kind:            meta.Kind,
		Direction:       DirectionFor(meta.Kind, delta),
	}
	if from.Value != 0 {
		rec.Percentage = delta / math.Abs(from.Value) * 100
	}

	return rec, IsMaterial(meta, from.Value, delta)
}

// IsMaterial applies the materiality thresholds to a change of delta from a
// reference value. Values are rounded to 1e-10 first so floating-point noise
// cannot push a boundary case over the threshold.
func IsMaterial(meta schema.ConceptMeta, reference, delta float64) bool {
	if meta.Kind == schema.KindRate {
		scale := meta.DisplayScale
		if scale == 0 {
			scale = 1
		}
		return roundNoise(math.Abs(delta)*scale) > RateChangeThreshold
	}
	if reference == 0 {
		return false
	}
	return roundNoise(math.Abs(delta/reference)*100) > MonetaryChangeThreshold
}

// DirectionFor labels a change. Exact zero is its own state.
func DirectionFor(kind schema.Kind, delta float64) string {
	switch {
	case delta == 0:
		return DirectionUnchanged
	case kind == schema.KindRate && delta > 0:
		return DirectionRose
	case kind == schema.KindRate:
		return DirectionFell
	case delta > 0:
		return DirectionGrew
	default:
		return DirectionShrank
	}
}

func roundNoise(v float64) float64 {
	return math.Round(v*1e10) / 1e10
}
