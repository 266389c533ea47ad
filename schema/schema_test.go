package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// CONCEPT REGISTRY
// ============================================================================

func TestRegistryKinds(t *testing.T) {
	reg := DefaultRegistry()

	for _, c := range []string{"Rate All In", "Risk Rate", "Fund Rate", "Int Rate", "AD Rate", "Spread", "Term"} {
		assert.Equal(t, KindRate, reg.KindOf(c), c)
	}
	for _, c := range []string{"Originacion", "Gross Revenue", "Clientes", "NTR", "Cost of Risk"} {
		assert.Equal(t, KindMonetary, reg.KindOf(c), c)
	}

	// undeclared concepts still resolve
	assert.Equal(t, KindMonetary, reg.KindOf("Something New"))
	assert.True(t, reg.IsRate("  rate all in "))
}

func TestRegistryDisplayScale(t *testing.T) {
	reg := DefaultRegistry()

	assert.InDelta(t, 12.0, reg.DisplayValue("Rate All In", 0.12), 1e-9)
	assert.InDelta(t, 36.0, reg.DisplayValue("Term", 36), 1e-9)
	assert.InDelta(t, 1500.0, reg.DisplayValue("Originacion", 1500), 1e-9)
}

func TestRegistryRateConceptsOrder(t *testing.T) {
	reg := DefaultRegistry()
	rates := reg.RateConcepts()
	require.Len(t, rates, 7)
	assert.Equal(t, "Rate All In", rates[0])
	assert.Equal(t, "Term", rates[6])
}

func TestNilRegistryIsMonetary(t *testing.T) {
	var reg *Registry
	assert.Equal(t, KindMonetary, reg.KindOf("Rate All In"))
}

// ============================================================================
// COLUMN CONTRACT
// ============================================================================

func TestCheckColumns(t *testing.T) {
	p := CheckColumns([]string{"\ufeffElaboracion", " Periodo", "Negocio", "Concepto", "Valor"})

	assert.True(t, p.Has(ColPrepDate, ColPeriod, ColBusinessUnit, ColConcept, ColValue))
	assert.False(t, p.Complete())
	assert.Equal(t, []string{ColCohort, ColScenario}, p.Missing(ColCohort, ColValue, ColScenario))
	assert.True(t, p.Has(SeriesColumns...))
	assert.False(t, p.Has(RateColumns...))
}

// ============================================================================
// YAML OVERRIDES
// ============================================================================

func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := Load([]byte(`
name: Test data
concepts:
  - name: Rate All In
    kind: rate
    display_scale: 100
  - name: Yield
    kind: rate
`))
	require.NoError(t, err)

	assert.Equal(t, "Test data", cfg.Name)
	assert.Len(t, cfg.Dimensions, len(DimensionColumns))

	reg := cfg.Registry()
	assert.True(t, reg.IsRate("Yield"))
	assert.InDelta(t, 1.0, reg.DisplayScale("Yield"), 1e-9)
	assert.False(t, reg.IsRate("Spread"), "override replaces the default list")
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	_, err := Load([]byte("concepts:\n  - name: X\n    kind: weird\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestDisplayName(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "Business unit", cfg.DisplayName(ColBusinessUnit))
	assert.Equal(t, "Value", cfg.DisplayName(ColValue))
	assert.Equal(t, "Other", cfg.DisplayName("Other"))
}
