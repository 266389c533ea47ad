package schema

import (
	"strings"
)

// Presence records which contract columns a dataset actually carries.
type Presence map[string]bool

// CheckColumns matches a header against the contract. Surrounding whitespace
// and a UTF-8 BOM on the first column are ignored.
func CheckColumns(header []string) Presence {
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		seen[h] = true
	}

	p := make(Presence, len(Columns))
	for _, col := range Columns {
		p[col] = seen[col]
	}
	return p
}

// Has reports whether every named column is present.
func (p Presence) Has(cols ...string) bool {
	for _, c := range cols {
		if !p[c] {
			return false
		}
	}
	return true
}

// Missing returns the named columns that are absent, in argument order.
func (p Presence) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if !p[c] {
			out = append(out, c)
		}
	}
	return out
}

// Complete reports whether the whole contract is present.
func (p Presence) Complete() bool {
	return p.Has(Columns...)
}

// Columns required by each derived analysis section.
var (
	AggregateColumns = []string{ColConcept, ColValue}
	RateColumns      = []string{ColConcept, ColValue, ColCohort, ColBusinessUnit, ColPeriod}
	SeriesColumns    = []string{ColConcept, ColValue, ColBusinessUnit, ColPeriod}
	VintageColumns   = []string{ColConcept, ColValue, ColPrepDate, ColPeriod}
)
