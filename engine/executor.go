package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// EXECUTOR — The query-to-analysis pipeline
// ============================================================================
// Entry point: Analyze(filters, view, opts...)
//
// Pipeline:
//   1. Column presence check → sections that cannot run are listed in Omitted
//   2. Resolve the relative window → relaxation-aware filtering
//   3. Aggregate the requested concepts (or every concept in scope)
//   4. Changes + anomalies over the period chain (Periodo filter lifted)
//   5. Breakdowns, vintage comparison, tables, chart
//   6. Narrative
//
// This function never calls an AI service. All computation is local.
// ============================================================================

// ErrUnknownField is returned when a filter names a column outside the
// dataset contract.
var ErrUnknownField = errors.New("unknown filter field")

// breakdownColumns are the dimensions split in the breakdown section, in
// display order.
var breakdownColumns = []string{
	schema.ColBusinessUnit,
	schema.ColConcept,
	schema.ColCohort,
	schema.ColClassification,
	schema.ColScenario,
	schema.ColPeriod,
}

// Analyze runs a FilterSet against a RecordView and returns a render-ready
// Result. Queries that leave nothing to aggregate produce StatusNoData rather
// than an error; errors are reserved for malformed filter sets.
func Analyze(fs FilterSet, view RecordView, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)
	reg := cfg.Registry

	if err := validateFields(fs); err != nil {
		return nil, err
	}

	if view == nil || view.Len() == 0 {
		cfg.Logger.Warn().Msg("Analyze called with an empty dataset")
		return noData(fs, reg, "The dataset is empty."), nil
	}

	presence := Presence(view)
	if missing := presence.Missing(schema.AggregateColumns...); len(missing) > 0 {
		cfg.Logger.Warn().Strs("missing", missing).Msg("Dataset lacks the columns needed to aggregate")
		return noData(fs, reg, fmt.Sprintf("The dataset has no %s column.", strings.Join(missing, "/"))), nil
	}

	// 1. Window → Periodo filter, then relaxation-aware apply
	resolved, warnings := ResolveWindow(fs)
	relax := ApplyWithRelaxation(view, resolved)

	cfg.Logger.Debug().
		Int("records", view.Len()).
		Int("matched", relax.View.Len()).
		Strs("filters", relax.Applied.Fields()).
		Bool("relaxed", relax.Relaxed).
		Msg("Filters applied")

	res := &Result{
		Status:   StatusOK,
		Filters:  relax.Applied,
		Relaxed:  relax.Relaxed,
		Dropped:  relax.Dropped,
		Rows:     relax.View.Len(),
		Warnings: warnings,
	}

	// 2. Aggregates
	rateReady := presence.Has(schema.RateColumns...)
	for _, concept := range conceptsInScope(relax) {
		if reg.IsRate(concept) && !rateReady {
			res.omit("rate aggregates")
			continue
		}
		res.Aggregates = append(res.Aggregates, AggregateConcept(relax.View, concept, reg))
	}
	if !anyValid(res.Aggregates) {
		res.Status = StatusNoData
		res.Reply = ComposeNarrative(res, reg)
		cfg.Logger.Info().Strs("filters", relax.Applied.Fields()).Msg("No usable values after filtering")
		return res, nil
	}

	// 3. Changes + anomalies
	if cfg.TrendSections {
		if presence.Has(schema.SeriesColumns...) {
			analyzeTrends(res, view, fs.Window != nil && len(warnings) == 0, cfg)
		} else {
			res.omit("changes and anomalies")
		}
	}

	// 4. Breakdowns
	if cfg.Breakdowns {
		for _, col := range breakdownColumns {
			if !presence.Has(col) {
				res.omit("breakdown by " + col)
				continue
			}
			if b := BuildBreakdown(relax.View, col, reg); len(b.Groups) > 0 {
				res.Breakdowns = append(res.Breakdowns, b)
			}
		}
	}

	// 5. Vintage comparison
	if cfg.Vintages {
		if predicted, realized, ok := VintagesFromFilters(relax.Applied); ok {
			if presence.Has(schema.VintageColumns...) {
				scope := ApplyFilters(view, relax.Applied.Without(schema.ColPrepDate).Without(schema.ColPeriod))
				for _, a := range res.Aggregates {
					if cmp, ok := CompareVintages(scope, a.Concept, predicted, realized, reg); ok {
						res.Vintage = &cmp
						break
					}
				}
			} else {
				res.omit("vintage comparison")
			}
		}
	}

	// 6. Render-ready extras
	res.Tables = append(res.Tables, BuildAggregateTable(res.Aggregates, reg))
	if len(res.Changes) > 0 {
		res.Tables = append(res.Tables, BuildChangeTable(res.Changes, reg))
	}
	if len(res.Anomalies) > 0 {
		res.Tables = append(res.Tables, BuildAnomalyTable(res.Anomalies, reg))
	}
	if res.Chart == nil {
		for _, b := range res.Breakdowns {
			if len(b.Groups) > 1 {
				res.Chart = BuildBreakdownChart(b)
				break
			}
		}
	}

	res.Title = buildTitle(res)
	res.Summary = fmt.Sprintf("%d records, %d significant changes, %d anomalies",
		res.Rows, len(res.Changes), len(res.Anomalies))
	res.Reply = ComposeNarrative(res, reg)

	cfg.Logger.Info().
		Int("records", res.Rows).
		Int("aggregates", len(res.Aggregates)).
		Int("changes", len(res.Changes)).
		Int("anomalies", len(res.Anomalies)).
		Bool("relaxed", res.Relaxed).
		Msg("Analysis complete")

	return res, nil
}

// analyzeTrends runs change and anomaly detection for every aggregated
// concept. Detection sees the dataset filtered by everything the query
// applied except Periodo, so the chain can reach periods outside the
// aggregate's own scope.
func analyzeTrends(res *Result, view RecordView, windowed bool, cfg *config) {
	reg := cfg.Registry
	scope := ApplyFilters(view, res.Filters.Without(schema.ColPeriod))
	base, previous := chainAnchors(scope, res.Filters, windowed)
	if base == "" {
		return
	}

	units := res.Filters.Values(schema.ColBusinessUnit)
	for _, a := range res.Aggregates {
		if !a.Valid {
			continue
		}
		req := SeriesRequest{
			Concept:       a.Concept,
			BusinessUnits: units,
			BasePeriod:    base,
			Periods:       previous,
		}
		if res.Chain == nil {
			res.Chain = chainFor(req)
		}
		res.Changes = append(res.Changes, DetectChanges(scope, req, reg)...)
		res.Anomalies = append(res.Anomalies, DetectAnomalies(scope, req, reg)...)
		if res.Chart == nil {
			res.Chart = BuildTrendChart(scope, req, reg)
		}
	}

	if len(res.Chain) < 2 {
		res.Warnings = append(res.Warnings, "Only one period in scope; trends need at least two.")
	}
}

// chainAnchors picks the base period and the earlier periods of the chain,
// most recent first. A resolved window is anchored on its preparation date.
// A literal Periodo filter anchors on its newest value; with a single value
// the earlier periods present in scope complete the chain. Otherwise the
// chain spans every period in scope.
func chainAnchors(scope RecordView, applied FilterSet, windowed bool) (string, []string) {
	if prep, ok := applied.Get(schema.ColPrepDate); ok && windowed && applied.Has(schema.ColPeriod) {
		return prep, applied.Values(schema.ColPeriod)
	}

	periods := append([]string(nil), applied.Values(schema.ColPeriod)...)
	if len(periods) == 0 {
		return ChainFromView(scope)
	}

	SortPeriods(periods)
	base := periods[len(periods)-1]
	var previous []string
	if len(periods) > 1 {
		for i := len(periods) - 2; i >= 0; i-- {
			previous = append(previous, periods[i])
		}
		return base, previous
	}

	_, inScope := ChainFromView(scope)
	for _, p := range inScope {
		if periodOrder(p) < periodOrder(base) {
			previous = append(previous, p)
		}
	}
	return base, previous
}

func conceptsInScope(relax Relaxation) []string {
	if concepts := relax.Applied.Values(schema.ColConcept); len(concepts) > 0 {
		return concepts
	}
	return UniqueValues(relax.View, schema.ColConcept)
}

func anyValid(aggs []Aggregate) bool {
	for _, a := range aggs {
		if a.Valid {
			return true
		}
	}
	return false
}

func validateFields(fs FilterSet) error {
	for _, f := range fs.Filters {
		known := false
		for _, col := range schema.DimensionColumns {
			if f.Field == col {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %q", ErrUnknownField, f.Field)
		}
	}
	return nil
}

func noData(fs FilterSet, reg *schema.Registry, warning string) *Result {
	res := &Result{Status: StatusNoData, Filters: fs, Warnings: []string{warning}}
	res.Reply = ComposeNarrative(res, reg)
	return res
}

func (r *Result) omit(section string) {
	for _, o := range r.Omitted {
		if o == section {
			return
		}
	}
	r.Omitted = append(r.Omitted, section)
}

func buildTitle(res *Result) string {
	names := make([]string, 0, len(res.Aggregates))
	for _, a := range res.Aggregates {
		names = append(names, a.Concept)
	}
	title := strings.Join(names, ", ")
	if unit, ok := res.Filters.Get(schema.ColBusinessUnit); ok {
		title += " · " + unit
	}
	return title
}
