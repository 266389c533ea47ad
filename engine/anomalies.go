package engine

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// ANOMALIES — z-score outliers per (concept, business unit) series
// ============================================================================

const (
	// AnomalyZThreshold is the minimum |z| reported (exclusive).
	AnomalyZThreshold = 2.0
	// HighSeverityZ is the |z| from which an anomaly is high severity.
	HighSeverityZ = 3.0
)

// DetectAnomalies scores each business unit's per-period aggregate across the
// chain of req. Monetary series are scored in log space; non-positive values
// are dropped from both the statistics and the candidates. Series with fewer
// than two usable points, or with no spread, are skipped.
func DetectAnomalies(view RecordView, req SeriesRequest, reg *schema.Registry) []AnomalyRecord {
	chain := chainFor(req)
	if len(chain) < 2 {
		return nil
	}

	rows := scopeRows(view, req)
	logScale := reg.KindOf(req.Concept) == schema.KindMonetary

	var out []AnomalyRecord
	for _, unit := range unitsFor(rows, req) {
		points := seriesPoints(Where(rows, schema.ColBusinessUnit, unit), chain, req.Concept, reg)

		usable := make([]point, 0, len(points))
		xs := make([]float64, 0, len(points))
		for _, p := range points {
			x := p.Value
			if logScale {
				if x <= 0 {
					continue
				}
				x = math.Log(x)
			}
			usable = append(usable, p)
			xs = append(xs, x)
		}
		if len(xs) < 2 {
			continue
		}

		mean, std := stat.MeanStdDev(xs, nil)
		if std == 0 || isMissing(std) {
			continue
		}

		for i, x := range xs {
			z := (x - mean) / std
			if math.Abs(z) <= AnomalyZThreshold {
				continue
			}
			out = append(out, AnomalyRecord{
				Concept:      req.Concept,
				BusinessUnit: unit,
				Period:       usable[i].Period,
				Value:        usable[i].Value,
				Deviation:    z,
				Severity:     SeverityFor(z),
			})
		}
	}
	return out
}

// SeverityFor buckets a z-score. Under the 2.0 detection cutoff the low tier
// is never produced by DetectAnomalies.
func SeverityFor(z float64) string {
	abs := math.Abs(z)
	switch {
	case abs >= HighSeverityZ:
		return SeverityHigh
	case abs >= AnomalyZThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
