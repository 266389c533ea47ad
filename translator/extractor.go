package translator

import (
	"strconv"
	"strings"

	"github.com/spektr-org/finchat/engine"
)

// ============================================================================
// FILTER EXTRACTOR — Free text → engine.FilterSet
// ============================================================================
// Pure pattern matching over the recognizer table. No network, no model:
// the same query always yields the same filters.
//
// Order of work:
//   1. fold accents and case
//   2. attribute anchored dates (elaboracion / periodo)
//   3. blank out every date-shaped token
//   4. match keyword aliases on the masked text, leftmost per field
//   5. read a relative window ("ultimos 3 meses")
// ============================================================================

// Extractor turns queries into filter sets.
type Extractor struct {
	table *RecognizerTable
}

// NewExtractor builds an extractor over table; nil selects the embedded
// default table.
func NewExtractor(table *RecognizerTable) *Extractor {
	if table == nil {
		table = DefaultRecognizers()
	}
	return &Extractor{table: table}
}

// Extract parses query into a FilterSet. Fields the query does not
// mention are absent. Fields are emitted in recognizer table order.
func (e *Extractor) Extract(query string) engine.FilterSet {
	var fs engine.FilterSet
	text := Fold(query)
	if text == "" {
		return fs
	}

	for _, d := range e.table.dateMatchers {
		if m := d.re.FindStringSubmatch(text); m != nil {
			fs.Set(d.field, m[1])
		}
	}

	masked := bareDatePattern.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})

	for _, k := range e.table.keywordMatchers {
		m := k.re.FindStringSubmatch(masked)
		if m == nil {
			continue
		}
		alias := strings.Join(strings.Fields(m[1]), " ")
		if value, ok := k.canonical[alias]; ok {
			fs.Set(k.field, value)
		}
	}

	fs.Window = e.window(masked)
	return fs
}

// window returns the leftmost relative window across all patterns.
func (e *Extractor) window(text string) *engine.RelativeWindow {
	best := -1
	var out *engine.RelativeWindow
	for _, re := range e.table.windowMatchers {
		idx := re.FindStringSubmatchIndex(text)
		if idx == nil || (best >= 0 && idx[0] >= best) {
			continue
		}
		count, unit := text[idx[2]:idx[3]], text[idx[4]:idx[5]]
		// either capture order is accepted
		if _, err := strconv.Atoi(count); err != nil {
			count, unit = unit, count
		}
		n, err := strconv.Atoi(count)
		if err != nil || n < 1 {
			continue
		}
		best = idx[0]
		out = &engine.RelativeWindow{Count: n, Unit: windowUnit(unit)}
	}
	return out
}

func windowUnit(s string) string {
	if strings.HasPrefix(s, "mes") || strings.HasPrefix(s, "month") {
		return engine.UnitMonths
	}
	return engine.UnitPeriods
}
