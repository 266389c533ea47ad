package engine

import (
	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// FINCHAT ENGINE TYPES — Query-to-Analysis Pipeline
// ============================================================================
// Record (one dataset row) → FilterSet (what the query asked for) →
// Aggregate / ChangeRecord / AnomalyRecord (what the engine found) →
// Result (render-ready output).
// ============================================================================

// ============================================================================
// RECORD — One financial line item
// ============================================================================

// Record is a single cleaned dataset row. Value is NaN when the source cell
// could not be parsed.
type Record struct {
	PrepDate       string  `json:"elaboracion"`
	Period         string  `json:"periodo"`
	Country        string  `json:"pais"`
	BusinessUnit   string  `json:"negocio"`
	Concept        string  `json:"concepto"`
	Classification string  `json:"clasificacion"`
	Cohort         string  `json:"cohort"`
	Scenario       string  `json:"escenario"`
	Value          float64 `json:"valor"`
}

// Field returns the value of a dimension column by its contract name.
func (r Record) Field(column string) string {
	switch column {
	case schema.ColPrepDate:
		return r.PrepDate
	case schema.ColPeriod:
		return r.Period
	case schema.ColCountry:
		return r.Country
	case schema.ColBusinessUnit:
		return r.BusinessUnit
	case schema.ColConcept:
		return r.Concept
	case schema.ColClassification:
		return r.Classification
	case schema.ColCohort:
		return r.Cohort
	case schema.ColScenario:
		return r.Scenario
	}
	return ""
}

// ============================================================================
// FILTER SET — Contract between the extractor and the engine
// ============================================================================

// Filter restricts one column to a set of values (exact match, OR within).
type Filter struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// Window units.
const (
	UnitMonths  = "months"
	UnitPeriods = "periods"
)

// RelativeWindow is an unresolved "last N months/periods" expression.
type RelativeWindow struct {
	Count int    `json:"count"`
	Unit  string `json:"unit"`
}

// FilterSet is an ordered set of field filters plus an optional relative
// window. Order is insertion order and drives relaxation.
type FilterSet struct {
	Filters []Filter        `json:"filters"`
	Window  *RelativeWindow `json:"window,omitempty"`
}

// Get returns the first value of a field filter.
func (fs FilterSet) Get(field string) (string, bool) {
	for _, f := range fs.Filters {
		if f.Field == field && len(f.Values) > 0 {
			return f.Values[0], true
		}
	}
	return "", false
}

// Values returns all values of a field filter.
func (fs FilterSet) Values(field string) []string {
	for _, f := range fs.Filters {
		if f.Field == field {
			return f.Values
		}
	}
	return nil
}

// Has reports whether a field is filtered.
func (fs FilterSet) Has(field string) bool {
	return len(fs.Values(field)) > 0
}

// Set replaces a field filter in place, or appends it when new.
func (fs *FilterSet) Set(field string, values ...string) {
	for i := range fs.Filters {
		if fs.Filters[i].Field == field {
			fs.Filters[i].Values = values
			return
		}
	}
	fs.Filters = append(fs.Filters, Filter{Field: field, Values: values})
}

// Without returns a copy without the named field.
func (fs FilterSet) Without(field string) FilterSet {
	out := FilterSet{Window: fs.Window}
	for _, f := range fs.Filters {
		if f.Field != field {
			out.Filters = append(out.Filters, f)
		}
	}
	return out
}

// Clone returns a deep copy.
func (fs FilterSet) Clone() FilterSet {
	out := FilterSet{Filters: make([]Filter, len(fs.Filters))}
	for i, f := range fs.Filters {
		out.Filters[i] = Filter{Field: f.Field, Values: append([]string(nil), f.Values...)}
	}
	if fs.Window != nil {
		w := *fs.Window
		out.Window = &w
	}
	return out
}

// IsEmpty returns true if no filters and no window are set.
func (fs FilterSet) IsEmpty() bool {
	return len(fs.Filters) == 0 && fs.Window == nil
}

// Fields returns filtered field names in insertion order.
func (fs FilterSet) Fields() []string {
	out := make([]string, 0, len(fs.Filters))
	for _, f := range fs.Filters {
		out = append(out, f.Field)
	}
	return out
}

// ============================================================================
// AGGREGATES
// ============================================================================

// CohortValue is the per-cohort aggregate of a rate concept.
type CohortValue struct {
	Cohort string  `json:"cohort"`
	Value  float64 `json:"value"`
	Groups int     `json:"groups"` // (business unit, period) groups averaged
}

// Aggregate is the aggregate of one concept over a view.
type Aggregate struct {
	Concept string        `json:"concept"`
	Kind    schema.Kind   `json:"kind"`
	Value   float64       `json:"value"`
	Cohorts []CohortValue `json:"cohorts,omitempty"`
	Rows    int           `json:"rows"`
	Valid   bool          `json:"valid"`
}

// Group is a grouped sum used for breakdowns.
type Group struct {
	Key   string     `json:"key"`
	Value float64    `json:"value"`
	Share float64    `json:"share"` // percent of the breakdown total
	Count int        `json:"count"`
	View  RecordView `json:"-"`
}

// Breakdown is a monetary total split by one dimension.
type Breakdown struct {
	Column string  `json:"column"`
	Total  float64 `json:"total"`
	Groups []Group `json:"groups"`
}

// ============================================================================
// CHANGES & ANOMALIES
// ============================================================================

// Direction labels.
const (
	DirectionRose      = "rose"
	DirectionFell      = "fell"
	DirectionGrew      = "grew"
	DirectionShrank    = "shrank"
	DirectionUnchanged = "unchanged"
)

// Change scopes.
const (
	ScopeTrend = "trend" // earliest vs latest point of the chain
	ScopeStep  = "step"  // adjacent points of the chain
)

// ChangeRecord is one significant period-over-period change.
type ChangeRecord struct {
	Concept         string      `json:"concept"`
	BusinessUnit    string      `json:"businessUnit"`
	Cohort          string      `json:"cohort,omitempty"`
	Period          string      `json:"period"`
	ReferencePeriod string      `json:"referencePeriod"`
	From            float64     `json:"from"`
	To              float64     `json:"to"`
	Magnitude       float64     `json:"magnitude"`  // To - From, stored units
	Percentage      float64     `json:"percentage"` // relative change in percent
	Direction       string      `json:"direction"`
	Kind            schema.Kind `json:"kind"`
	Scope           string      `json:"scope"`
}

// Severity levels.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// AnomalyRecord is one outlying period of a (concept, business unit) series.
type AnomalyRecord struct {
	Concept      string  `json:"concept"`
	BusinessUnit string  `json:"businessUnit"`
	Period       string  `json:"period"`
	Value        float64 `json:"value"`
	Deviation    float64 `json:"deviation"` // z-score
	Severity     string  `json:"severity"`
}

// SeriesRequest selects the series analysed by the change and anomaly
// detectors. Periods are ordered most recent first, as PreviousPeriods
// returns them; BasePeriod is the newest point of the chain.
type SeriesRequest struct {
	Concept       string   `json:"concept"`
	BusinessUnits []string `json:"businessUnits"`
	BasePeriod    string   `json:"basePeriod"`
	Periods       []string `json:"periods"`
	Scenario      string   `json:"scenario,omitempty"`
}

// ============================================================================
// VINTAGES — predicted vs realized figures for one period
// ============================================================================

// VintageKey identifies one (preparation date, period) slice.
type VintageKey struct {
	PrepDate string `json:"elaboracion"`
	Period   string `json:"periodo"`
}

// IsRealized reports whether the slice holds realized figures, inferred from
// the preparation date matching the period.
func (k VintageKey) IsRealized() bool {
	return k.PrepDate != "" && k.PrepDate == k.Period
}

// VintageComparison compares a forecast vintage against realized figures.
type VintageComparison struct {
	Concept    string     `json:"concept"`
	Predicted  VintageKey `json:"predicted"`
	Realized   VintageKey `json:"realized"`
	Forecast   float64    `json:"forecast"`
	Actual     float64    `json:"actual"`
	Gap        float64    `json:"gap"`
	GapPercent float64    `json:"gapPercent"`
}

// ============================================================================
// RESULT — Render-ready output
// ============================================================================

// Result statuses.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// Result is the engine's render-ready output.
type Result struct {
	Status  string `json:"status"`
	Reply   string `json:"reply"`
	Title   string `json:"title"`
	Summary string `json:"summary"`

	Filters  FilterSet `json:"filters"` // the set actually applied
	Relaxed  bool      `json:"relaxed"`
	Dropped  []Filter  `json:"dropped,omitempty"`
	Rows     int       `json:"rows"`
	Warnings []string  `json:"warnings,omitempty"`
	Omitted  []string  `json:"omitted,omitempty"` // sections skipped for missing columns

	Aggregates []Aggregate        `json:"aggregates"`
	Changes    []ChangeRecord     `json:"changes"`
	Anomalies  []AnomalyRecord    `json:"anomalies"`
	Breakdowns []Breakdown        `json:"breakdowns,omitempty"`
	Vintage    *VintageComparison `json:"vintage,omitempty"`
	Chain      []string           `json:"chain,omitempty"` // periods analysed, oldest first
	Tables     []*TableData       `json:"tables,omitempty"`
	Chart      *ChartConfig       `json:"chart,omitempty"`
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint represents a single data point.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "percent"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}
