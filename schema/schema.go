package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// SCHEMA — The fixed dataset contract consumed by the engine + translator
// ============================================================================
// The ingestion side owns the table; this package only names its columns,
// describes them for prompts, and declares which concepts are rate-typed.
// ============================================================================

// Column names of the financial dataset. The header must use these exactly.
const (
	ColPrepDate       = "Elaboracion"
	ColPeriod         = "Periodo"
	ColCountry        = "Pais"
	ColBusinessUnit   = "Negocio"
	ColConcept        = "Concepto"
	ColClassification = "Clasificación"
	ColCohort         = "Cohort_Act"
	ColScenario       = "Escenario"
	ColValue          = "Valor"
)

// Columns lists every column of the contract in canonical order.
var Columns = []string{
	ColPrepDate,
	ColPeriod,
	ColCountry,
	ColBusinessUnit,
	ColConcept,
	ColClassification,
	ColCohort,
	ColScenario,
	ColValue,
}

// DimensionColumns are the categorical columns (everything except Valor).
var DimensionColumns = Columns[:len(Columns)-1]

// Config describes the dataset for prompts and for concept classification.
type Config struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Dimensions []DimensionMeta `yaml:"dimensions" json:"dimensions"`
	Measures   []MeasureMeta   `yaml:"measures" json:"measures"`
	Concepts   []ConceptMeta   `yaml:"concepts" json:"concepts"`
}

// DimensionMeta describes a categorical column used for filtering and grouping.
type DimensionMeta struct {
	Key            string   `yaml:"key" json:"key"`
	DisplayName    string   `yaml:"display_name" json:"displayName"`
	Description    string   `yaml:"description,omitempty" json:"description,omitempty"`
	SampleValues   []string `yaml:"sample_values,omitempty" json:"sampleValues,omitempty"`
	IsTemporal     bool     `yaml:"temporal,omitempty" json:"isTemporal,omitempty"`
	TemporalFormat string   `yaml:"temporal_format,omitempty" json:"temporalFormat,omitempty"`
}

// MeasureMeta describes a numeric column.
type MeasureMeta struct {
	Key         string `yaml:"key" json:"key"`
	DisplayName string `yaml:"display_name" json:"displayName"`
	Unit        string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// Default returns the built-in description of the financial dataset.
func Default() Config {
	return Config{
		Name:        "Financial line items",
		Description: "Monthly financial figures per business unit, concept, cohort and scenario",
		Dimensions: []DimensionMeta{
			{Key: ColPrepDate, DisplayName: "Preparation date", Description: "month the figures were produced (forecast vintage)", IsTemporal: true, TemporalFormat: "MM-01-YYYY"},
			{Key: ColPeriod, DisplayName: "Period", Description: "month the figures describe", IsTemporal: true, TemporalFormat: "MM-01-YYYY"},
			{Key: ColCountry, DisplayName: "Country", SampleValues: []string{"CL"}},
			{Key: ColBusinessUnit, DisplayName: "Business unit", SampleValues: []string{"PYME", "CORP", "Brokers", "WK"}},
			{Key: ColConcept, DisplayName: "Concept", Description: "metric name"},
			{Key: ColClassification, DisplayName: "Classification", Description: "sub-category of the concept"},
			{Key: ColCohort, DisplayName: "Cohort", Description: "customer acquisition vintage", SampleValues: []string{"<2024", "2024", "2025"}},
			{Key: ColScenario, DisplayName: "Scenario", SampleValues: []string{"Moderado", "Ambicion"}},
		},
		Measures: []MeasureMeta{
			{Key: ColValue, DisplayName: "Value", Unit: "currency"},
		},
		Concepts: DefaultConcepts(),
	}
}

// Load parses a YAML schema document. Sections left empty fall back to Default.
func Load(data []byte) (*Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}

	def := Default()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if len(cfg.Dimensions) == 0 {
		cfg.Dimensions = def.Dimensions
	}
	if len(cfg.Measures) == 0 {
		cfg.Measures = def.Measures
	}
	if len(cfg.Concepts) == 0 {
		cfg.Concepts = def.Concepts
	}

	for _, c := range cfg.Concepts {
		if c.Name == "" {
			return nil, fmt.Errorf("concept entry without a name")
		}
		if c.Kind != KindRate && c.Kind != KindMonetary {
			return nil, fmt.Errorf("concept %q: unknown kind %q", c.Name, c.Kind)
		}
	}
	return &cfg, nil
}

// Registry builds the concept registry declared by this config.
func (c Config) Registry() *Registry {
	return NewRegistry(c.Concepts)
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// Dimension returns the metadata for a column, if declared.
func (c Config) Dimension(key string) (DimensionMeta, bool) {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return DimensionMeta{}, false
}

// DisplayName returns a human label for a column, falling back to the key.
func (c Config) DisplayName(key string) string {
	if d, ok := c.Dimension(key); ok && d.DisplayName != "" {
		return d.DisplayName
	}
	for _, m := range c.Measures {
		if m.Key == key && m.DisplayName != "" {
			return m.DisplayName
		}
	}
	return key
}
