// Package finchat answers free-text questions about a monthly financial
// dataset.
//
// Usage:
//
//	import (
//	    "github.com/spektr-org/finchat/engine"
//	    "github.com/spektr-org/finchat/translator"
//	)
//
//	fs := translator.NewExtractor(nil).Extract("originacion pyme ultimos 3 meses elaboracion 08-01-2025")
//	result, err := engine.Analyze(fs, view,
//	    engine.WithTrendSections(true),
//	)
//
// The translator turns a question into a FilterSet using a declarative
// recognizer table; the engine filters, aggregates and scans the records for
// changes and anomalies, and returns a narrative plus render-ready tables and
// a chart. Questions that are not about the data go to an optional Gemini
// fallback, which only ever sees column metadata.
package finchat
