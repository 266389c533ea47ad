package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PERIOD ARITHMETIC
// ============================================================================

func TestPreviousPeriods(t *testing.T) {
	tests := []struct {
		base  string
		count int
		want  []string
	}{
		{"08-01-2025", 3, []string{"07-01-2025", "06-01-2025", "05-01-2025"}},
		{"01-01-2025", 1, []string{"12-01-2025"}},
		{"02-01-2025", 3, []string{"01-01-2025", "12-01-2025", "11-01-2025"}},
		{"12-01-2024", 1, []string{"11-01-2024"}},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := PreviousPeriods(tt.base, tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreviousPeriodsFullCycle(t *testing.T) {
	got, err := PreviousPeriods("03-01-2025", 12)
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.Equal(t, "02-01-2025", got[0])
	assert.Equal(t, "03-01-2025", got[11], "twelve steps back lands on the base month token")
}

func TestPreviousPeriodsRejectsBadInput(t *testing.T) {
	for _, base := range []string{"8-01-2025", "13-01-2025", "00-01-2025", "08-02-2025", "2025-08-01", ""} {
		_, err := PreviousPeriods(base, 1)
		assert.ErrorIs(t, err, ErrInvalidPeriod, base)
	}

	_, err := PreviousPeriods("08-01-2025", 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestSortPeriods(t *testing.T) {
	tokens := []string{"12-01-2024", "01-01-2025", "03-01-2024", "junk"}
	SortPeriods(tokens)
	assert.Equal(t, []string{"junk", "03-01-2024", "12-01-2024", "01-01-2025"}, tokens)
}

func TestChainForDeduplicates(t *testing.T) {
	chain := chainFor(SeriesRequest{
		BasePeriod: "08-01-2025",
		Periods:    []string{"07-01-2025", "06-01-2025", "07-01-2025", "08-01-2025"},
	})
	assert.Equal(t, []string{"06-01-2025", "07-01-2025", "08-01-2025"}, chain)
}
