package translator

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// RECOGNIZER TABLE — Declarative field → alias → canonical value data
// ============================================================================
// The table is data, not code: recognizers.yaml is embedded as the default
// and a deployment may load its own file. Loading compiles every matcher
// once so extraction itself never fails.
// ============================================================================

//go:embed recognizers.yaml
var defaultRecognizersYAML []byte

// RecognizerTable is the parsed and compiled recognizer data.
type RecognizerTable struct {
	Dates             []DateField    `yaml:"dates"`
	Keywords          []KeywordField `yaml:"keywords"`
	Windows           []string       `yaml:"windows"`
	FinancialKeywords []string       `yaml:"financial_keywords"`

	dateMatchers    []dateMatcher
	keywordMatchers []keywordMatcher
	windowMatchers  []*regexp.Regexp
	financial       *regexp.Regexp
}

// DateField attributes a date token to Field when one of Anchors
// immediately precedes it.
type DateField struct {
	Field   string   `yaml:"field"`
	Anchors []string `yaml:"anchors"`
}

// KeywordField maps aliases to the canonical values of one column.
type KeywordField struct {
	Field  string       `yaml:"field"`
	Values []AliasGroup `yaml:"values"`
}

// AliasGroup lists the spellings of one canonical value.
type AliasGroup struct {
	Value   string   `yaml:"value"`
	Aliases []string `yaml:"aliases"`
}

type dateMatcher struct {
	field string
	re    *regexp.Regexp
}

type keywordMatcher struct {
	field     string
	re        *regexp.Regexp
	canonical map[string]string // folded alias → canonical value
}

// datePattern matches a period token in folded text.
const datePattern = `(?:0[1-9]|1[0-2])-01-\d{4}`

// bareDatePattern matches anything date-shaped; these are masked before
// keyword matching so their digits never read as a cohort.
var bareDatePattern = regexp.MustCompile(`\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}`)

// LoadRecognizers parses and compiles a recognizer table.
func LoadRecognizers(data []byte) (*RecognizerTable, error) {
	var t RecognizerTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse recognizer table: %w", err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultRecognizers returns the embedded table. It panics if the embedded
// file is invalid, which only a broken build can cause.
func DefaultRecognizers() *RecognizerTable {
	t, err := LoadRecognizers(defaultRecognizersYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded recognizer table: %v", err))
	}
	return t
}

// Fields returns the columns the table can emit, in emission order.
func (t *RecognizerTable) Fields() []string {
	out := make([]string, 0, len(t.Dates)+len(t.Keywords))
	for _, d := range t.Dates {
		out = append(out, d.Field)
	}
	for _, k := range t.Keywords {
		out = append(out, k.Field)
	}
	return out
}

func (t *RecognizerTable) compile() error {
	for _, d := range t.Dates {
		if d.Field == "" || len(d.Anchors) == 0 {
			return fmt.Errorf("date field %q needs a name and at least one anchor", d.Field)
		}
		anchors := make([]string, 0, len(d.Anchors))
		for _, a := range d.Anchors {
			anchors = append(anchors, Fold(a))
		}
		alts := quoteLongestFirst(anchors)
		re, err := regexp.Compile(`(?:^|[^\p{L}\p{N}_])(?:` + alts + `)\s*[:=]?\s*(` + datePattern + `)(?:$|[^\p{N}])`)
		if err != nil {
			return fmt.Errorf("date field %s: %w", d.Field, err)
		}
		t.dateMatchers = append(t.dateMatchers, dateMatcher{field: d.Field, re: re})
	}

	for _, k := range t.Keywords {
		m := keywordMatcher{field: k.Field, canonical: make(map[string]string)}
		var aliases []string
		for _, g := range k.Values {
			for _, a := range append([]string{g.Value}, g.Aliases...) {
				folded := Fold(a)
				if folded == "" {
					continue
				}
				if _, dup := m.canonical[folded]; !dup {
					m.canonical[folded] = g.Value
					aliases = append(aliases, folded)
				}
			}
		}
		if len(aliases) == 0 {
			return fmt.Errorf("keyword field %q has no aliases", k.Field)
		}
		re, err := regexp.Compile(`(?:^|[^\p{L}\p{N}_<])(` + quoteLongestFirst(aliases) + `)(?:$|[^\p{L}\p{N}_])`)
		if err != nil {
			return fmt.Errorf("keyword field %s: %w", k.Field, err)
		}
		m.re = re
		t.keywordMatchers = append(t.keywordMatchers, m)
	}

	for _, w := range t.Windows {
		re, err := regexp.Compile(w)
		if err != nil {
			return fmt.Errorf("window pattern %q: %w", w, err)
		}
		if re.NumSubexp() < 2 {
			return fmt.Errorf("window pattern %q must capture the count and the unit", w)
		}
		t.windowMatchers = append(t.windowMatchers, re)
	}

	if len(t.FinancialKeywords) > 0 {
		folded := make([]string, 0, len(t.FinancialKeywords))
		for _, k := range t.FinancialKeywords {
			folded = append(folded, Fold(k))
		}
		re, err := regexp.Compile(`(?:^|[^\p{L}\p{N}_])(?:` + quoteLongestFirst(folded) + `)(?:$|[^\p{L}\p{N}_])`)
		if err != nil {
			return fmt.Errorf("financial keywords: %w", err)
		}
		t.financial = re
	}
	return nil
}

// quoteLongestFirst builds a regexp alternation that tries longer literals
// before their prefixes.
func quoteLongestFirst(literals []string) string {
	sorted := append([]string(nil), literals...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, 0, len(sorted))
	for _, l := range sorted {
		words := strings.Fields(l)
		for i := range words {
			words[i] = regexp.QuoteMeta(words[i])
		}
		quoted = append(quoted, strings.Join(words, `\s+`))
	}
	return strings.Join(quoted, "|")
}
