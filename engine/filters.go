package engine

import (
	"fmt"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// FILTERS — Exact-match filtering via RecordView
// ============================================================================
// Single-pass filter: checks ALL field constraints per record in one loop.
// Returns a SubView (index list into parent), zero data copy.
// ============================================================================

// ResolveWindow turns a relative window into a Periodo membership filter
// anchored on the Elaboracion filter. The window is cleared from the result so
// it is never applied twice. Problems are reported as warnings, not errors:
// the window is dropped and the rest of the set still applies.
func ResolveWindow(fs FilterSet) (FilterSet, []string) {
	out := fs.Clone()
	if out.Window == nil {
		return out, nil
	}
	w := *out.Window
	out.Window = nil

	anchor, ok := out.Get(schema.ColPrepDate)
	if !ok {
		return out, []string{fmt.Sprintf("ignored \"last %d %s\": no preparation date to count back from", w.Count, w.Unit)}
	}

	periods, err := PreviousPeriods(anchor, w.Count)
	if err != nil {
		return out, []string{fmt.Sprintf("ignored \"last %d %s\": %v", w.Count, w.Unit, err)}
	}

	// A literal Periodo filter is superseded by the window.
	out = out.Without(schema.ColPeriod)
	out.Filters = append(out.Filters, Filter{Field: schema.ColPeriod, Values: periods})
	return out, nil
}

// ApplyFilters returns a view of records matching all field filters.
// Fields are AND-combined; values within a field are OR-combined.
// An unresolved window is ignored; call ResolveWindow first.
func ApplyFilters(view RecordView, fs FilterSet) RecordView {
	if len(fs.Filters) == 0 {
		return view
	}

	type constraint struct {
		field string
		set   map[string]bool
	}
	constraints := make([]constraint, 0, len(fs.Filters))
	for _, f := range fs.Filters {
		if len(f.Values) == 0 {
			continue
		}
		set := make(map[string]bool, len(f.Values))
		for _, v := range f.Values {
			set[v] = true
		}
		constraints = append(constraints, constraint{field: f.Field, set: set})
	}
	if len(constraints) == 0 {
		return view
	}

	// Single pass: a record passes if it matches ALL constraints
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for _, c := range constraints {
			if !c.set[view.Field(i, c.field)] {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices)
}

// Relaxation is the outcome of ApplyWithRelaxation.
type Relaxation struct {
	View    RecordView
	Applied FilterSet // filters that produced View
	Dropped []Filter  // filters removed, in removal order
	Relaxed bool
}

// ApplyWithRelaxation applies fs and, while the result is empty, drops
// filters one at a time starting from the most recently inserted one. When
// every filter is gone the unfiltered view is returned. Relaxed reports
// whether anything was dropped.
func ApplyWithRelaxation(view RecordView, fs FilterSet) Relaxation {
	current := fs.Clone()
	current.Window = nil

	var dropped []Filter
	for {
		filtered := ApplyFilters(view, current)
		if filtered.Len() > 0 || len(current.Filters) == 0 {
			return Relaxation{
				View:    filtered,
				Applied: current,
				Dropped: dropped,
				Relaxed: len(dropped) > 0,
			}
		}
		last := current.Filters[len(current.Filters)-1]
		current.Filters = current.Filters[:len(current.Filters)-1]
		dropped = append(dropped, last)
	}
}
