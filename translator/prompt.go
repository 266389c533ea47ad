package translator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// PROMPT BUILDER — Persona + dataset context for the fallback model
// ============================================================================
// The model only ever sees column names, their distinct values and a row
// count. Figures are computed locally by the engine, never by the model.
// ============================================================================

// maxSampleValues caps the distinct values listed per column.
const maxSampleValues = 20

// DataSummary is the metadata the fallback model may see.
type DataSummary struct {
	RecordCount int                 `json:"recordCount"`
	Dimensions  map[string][]string `json:"dimensions"`
}

// BuildDataSummary lists the distinct values of every dimension column
// present in view.
func BuildDataSummary(view engine.RecordView) *DataSummary {
	summary := &DataSummary{Dimensions: map[string][]string{}}
	if view == nil {
		return summary
	}
	summary.RecordCount = view.Len()
	present := engine.Presence(view)
	sch := schema.Default()
	for _, col := range schema.DimensionColumns {
		if !present.Has(col) {
			continue
		}
		vals := engine.UniqueValues(view, col)
		if d, ok := sch.Dimension(col); ok && d.IsTemporal {
			engine.SortPeriods(vals)
		} else {
			sort.Strings(vals)
		}
		if len(vals) > maxSampleValues {
			vals = vals[len(vals)-maxSampleValues:]
		}
		summary.Dimensions[col] = vals
	}
	return summary
}

// BuildSystemPrompt appends the dataset description to the persona prompt.
func BuildSystemPrompt(base string, summary *DataSummary) string {
	if base == "" {
		base = DefaultSystemPrompt
	}
	if summary == nil || summary.RecordCount == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("El usuario tiene cargado un dataset financiero de %d registros.\n", summary.RecordCount))
	b.WriteString("Columnas y valores disponibles:\n")

	sch := schema.Default()
	for _, col := range schema.DimensionColumns {
		vals, ok := summary.Dimensions[col]
		if !ok || len(vals) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("- %s (%s): %s\n", col, sch.DisplayName(col), strings.Join(vals, ", ")))
	}
	b.WriteString("\nNo inventes cifras del dataset. Si la pregunta requiere datos, sugiere una consulta con concepto, negocio y fecha de elaboración (MM-01-YYYY).\n")
	return b.String()
}
