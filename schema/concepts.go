package schema

import (
	"strings"
)

// Kind is the aggregation family of a concept.
type Kind string

const (
	// KindRate concepts are fractions or durations: deduplicated per cohort, averaged.
	KindRate Kind = "rate"
	// KindMonetary concepts are amounts or counts: summed.
	KindMonetary Kind = "monetary"
)

// ConceptMeta declares how one concept is aggregated and displayed.
type ConceptMeta struct {
	Name string `yaml:"name" json:"name"`
	Kind Kind   `yaml:"kind" json:"kind"`
	// DisplayScale multiplies stored values for display (100 for percentages).
	DisplayScale float64 `yaml:"display_scale,omitempty" json:"displayScale,omitempty"`
	Unit         string  `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// DefaultConcepts returns the rate-typed concepts of the dataset. Every other
// concept is monetary.
func DefaultConcepts() []ConceptMeta {
	pct := func(name string) ConceptMeta {
		return ConceptMeta{Name: name, Kind: KindRate, DisplayScale: 100, Unit: "%"}
	}
	return []ConceptMeta{
		pct("Rate All In"),
		pct("Risk Rate"),
		pct("Fund Rate"),
		pct("Int Rate"),
		pct("AD Rate"),
		pct("Spread"),
		{Name: "Term", Kind: KindRate, DisplayScale: 1, Unit: "months"},
	}
}

// Registry is the single concept → rule mapping. It is total: concepts that
// were never declared resolve to KindMonetary.
type Registry struct {
	byName map[string]ConceptMeta
	order  []string
}

// NewRegistry indexes concept declarations. Later duplicates win.
func NewRegistry(concepts []ConceptMeta) *Registry {
	r := &Registry{byName: make(map[string]ConceptMeta, len(concepts))}
	for _, c := range concepts {
		key := conceptKey(c.Name)
		if _, exists := r.byName[key]; !exists {
			r.order = append(r.order, c.Name)
		}
		if c.DisplayScale == 0 {
			c.DisplayScale = 1
		}
		r.byName[key] = c
	}
	return r
}

// DefaultRegistry returns the registry for DefaultConcepts.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultConcepts())
}

// Lookup returns the declaration for a concept. Undeclared concepts get a
// monetary declaration with scale 1.
func (r *Registry) Lookup(concept string) ConceptMeta {
	if r != nil {
		if c, ok := r.byName[conceptKey(concept)]; ok {
			return c
		}
	}
	return ConceptMeta{Name: concept, Kind: KindMonetary, DisplayScale: 1}
}

// KindOf returns the aggregation family of a concept.
func (r *Registry) KindOf(concept string) Kind {
	return r.Lookup(concept).Kind
}

// IsRate reports whether the concept is rate-typed.
func (r *Registry) IsRate(concept string) bool {
	return r.KindOf(concept) == KindRate
}

// DisplayScale returns the display multiplier of a concept.
func (r *Registry) DisplayScale(concept string) float64 {
	return r.Lookup(concept).DisplayScale
}

// DisplayValue converts a stored value to its display unit.
func (r *Registry) DisplayValue(concept string, v float64) float64 {
	return v * r.DisplayScale(concept)
}

// RateConcepts lists the declared rate concepts in declaration order.
func (r *Registry) RateConcepts() []string {
	var out []string
	for _, name := range r.order {
		if r.byName[conceptKey(name)].Kind == KindRate {
			out = append(out, name)
		}
	}
	return out
}

func conceptKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
