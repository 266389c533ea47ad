package engine

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// ============================================================================
// PERIODS — Monthly tokens of the form MM-01-YYYY
// ============================================================================
// Arithmetic only moves the month. Going back from January wraps to December
// of the same year token, matching how the dataset labels its cycle.
// ============================================================================

// ErrInvalidPeriod is returned for tokens that are not MM-01-YYYY.
var ErrInvalidPeriod = errors.New("invalid period token")

var periodPattern = regexp.MustCompile(`^(\d{2})-01-(\d{4})$`)

// Period is a parsed period token.
type Period struct {
	Month int
	Year  int
}

// ParsePeriod parses an MM-01-YYYY token.
func ParsePeriod(token string) (Period, error) {
	m := periodPattern.FindStringSubmatch(token)
	if m == nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, token)
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range in %q", ErrInvalidPeriod, month, token)
	}
	return Period{Month: month, Year: year}, nil
}

// String formats the period as MM-01-YYYY.
func (p Period) String() string {
	return fmt.Sprintf("%02d-01-%04d", p.Month, p.Year)
}

// order is a sortable key (YYYYMM).
func (p Period) order() int {
	return p.Year*100 + p.Month
}

// PreviousPeriods returns the count periods before base, most recent first.
//
//	PreviousPeriods("08-01-2025", 3) → [07-01-2025 06-01-2025 05-01-2025]
//	PreviousPeriods("01-01-2025", 1) → [12-01-2025]
func PreviousPeriods(base string, count int) ([]string, error) {
	p, err := ParsePeriod(base)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1, got %d", ErrInvalidPeriod, count)
	}

	out := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		month := ((p.Month-1-i)%12+12)%12 + 1
		out = append(out, Period{Month: month, Year: p.Year}.String())
	}
	return out, nil
}

// SortPeriods sorts tokens chronologically (year, then month). Tokens that do
// not parse sort first, in lexical order.
func SortPeriods(tokens []string) {
	sort.SliceStable(tokens, func(i, j int) bool {
		return periodOrder(tokens[i]) < periodOrder(tokens[j]) ||
			(periodOrder(tokens[i]) == periodOrder(tokens[j]) && tokens[i] < tokens[j])
	})
}

func periodOrder(token string) int {
	p, err := ParsePeriod(token)
	if err != nil {
		return 0
	}
	return p.order()
}

// chainFor builds the analysed chain, oldest first: the request periods
// reversed, then the base period. Duplicates are dropped; the base period
// always closes the chain, even when the request periods repeat it.
func chainFor(req SeriesRequest) []string {
	seen := make(map[string]bool, len(req.Periods)+1)
	chain := make([]string, 0, len(req.Periods)+1)
	if req.BasePeriod != "" {
		seen[req.BasePeriod] = true
	}
	for i := len(req.Periods) - 1; i >= 0; i-- {
		p := req.Periods[i]
		if p != "" && !seen[p] {
			seen[p] = true
			chain = append(chain, p)
		}
	}
	if req.BasePeriod != "" {
		chain = append(chain, req.BasePeriod)
	}
	return chain
}
