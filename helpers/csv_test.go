package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// AMOUNTS
// ============================================================================

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"1.234.567", 1234567},
		{"0,12", 0.12},
		{"-3,5", -3.5},
		{"$ 2.000", 2000},
		{"42", 42},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	for _, bad := range []string{"", "-", "n/a", "1,2,3"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

// ============================================================================
// CSV
// ============================================================================

const sample = "\ufeffElaboracion,Periodo,Pais,Negocio,Concepto,Clasificación,Cohort_Act,Escenario,Valor\n" +
	"08-01-2025,08-01-2025,CL,PYME,Originacion,Active,2024,Moderado,\"1.234,56\"\n" +
	"08-01-2025,07-01-2025,CL,CORP,Rate All In,Active,2025,Moderado,\"0,12\"\n" +
	"08-01-2025,07-01-2025,CL,CORP,Churn,Active,2025,Moderado,\n" +
	"08-01-2025,07-01-2025,CL,CORP,Churn,Active,2025,Moderado,abc\n"

func TestParseCSV(t *testing.T) {
	records, columns, stats, err := ParseCSV([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, schema.Columns, columns)
	require.Len(t, records, 2)
	assert.Equal(t, "PYME", records[0].BusinessUnit)
	assert.Equal(t, "Active", records[0].Classification)
	assert.InDelta(t, 1234.56, records[0].Value, 1e-9)
	assert.InDelta(t, 0.12, records[1].Value, 1e-12)

	assert.Equal(t, LoadStats{Rows: 4, Loaded: 2, BadValue: 2, Missing: []string{}}, normalise(stats))
}

func TestParseCSVPartialHeader(t *testing.T) {
	data := "Concepto,Valor,Negocio\nOriginacion,100,PYME\n"
	view, stats, err := ParseCSVView([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, 1, view.Len())
	assert.Equal(t, []string{schema.ColBusinessUnit, schema.ColConcept, schema.ColValue}, view.Columns())
	assert.Equal(t, "PYME", view.Field(0, schema.ColBusinessUnit))
	assert.Contains(t, stats.Missing, schema.ColPeriod)
}

func TestParseCSVErrors(t *testing.T) {
	_, _, _, err := ParseCSV([]byte("Concepto,Negocio\nx,y\n"))
	assert.ErrorIs(t, err, ErrNoValueColumn)

	_, _, _, err = ParseCSV(nil)
	assert.Error(t, err)
}

func normalise(s LoadStats) LoadStats {
	if s.Missing == nil {
		s.Missing = []string{}
	}
	return s
}
