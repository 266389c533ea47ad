package engine

import (
	"math"
)

// --- Test Fixtures ---

// rec builds a realized row (preparation date equals period) for the CL /
// Moderado slice used throughout the engine tests.
func rec(period, unit, concept, cohort string, value float64) Record {
	return Record{
		PrepDate:       period,
		Period:         period,
		Country:        "CL",
		BusinessUnit:   unit,
		Concept:        concept,
		Classification: "Originacion",
		Cohort:         cohort,
		Scenario:       "Moderado",
		Value:          value,
	}
}

// vintage builds a row with an explicit preparation date.
func vintage(prep, period, concept string, value float64) Record {
	r := rec(period, "PYME", concept, "2024", value)
	r.PrepDate = prep
	return r
}

// rateSeries returns one row per period for a single unit and cohort.
func rateSeries(unit, concept, cohort string, periods []string, values []float64) []Record {
	out := make([]Record, 0, len(periods))
	for i, p := range periods {
		out = append(out, rec(p, unit, concept, cohort, values[i]))
	}
	return out
}

// months returns MM-01-YYYY tokens for months first..last of year.
func months(year, first, last int) []string {
	var out []string
	for m := first; m <= last; m++ {
		out = append(out, Period{Month: m, Year: year}.String())
	}
	return out
}

// repeatWithOutlier returns n copies of v with the last one replaced by outlier.
func repeatWithOutlier(n int, v, outlier float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	out[n-1] = outlier
	return out
}

var missing = math.NaN()
