package helpers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// CSV HELPER — Parses the financial CSV into []engine.Record
// ============================================================================
// The caller reads the bytes from wherever they live. This helper matches
// the header against the column contract, cleans Valor ("1.234,56" →
// 1234.56) and drops rows whose Valor does not parse.
// ============================================================================

// ErrNoValueColumn is returned when the header has no Valor column.
var ErrNoValueColumn = errors.New("CSV has no " + schema.ColValue + " column")

// LoadStats describes what ingestion kept and dropped.
type LoadStats struct {
	Rows      int      `json:"rows"`      // data rows read
	Loaded    int      `json:"loaded"`    // rows kept
	BadValue  int      `json:"bad_value"` // dropped: empty or unparseable Valor
	Malformed int      `json:"malformed"` // dropped: unreadable CSV record
	Missing   []string `json:"missing"`   // contract columns absent from the header
}

// ParseCSV parses CSV bytes into Records. The returned column list names
// the contract columns the header carried.
func ParseCSV(data []byte) ([]engine.Record, []string, LoadStats, error) {
	var stats LoadStats

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, stats, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	present := schema.CheckColumns(headers)
	if !present.Has(schema.ColValue) {
		return nil, nil, stats, ErrNoValueColumn
	}
	stats.Missing = present.Missing(schema.Columns...)

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []engine.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		stats.Rows++
		if err != nil {
			stats.Malformed++
			continue
		}

		value, err := ParseAmount(cell(row, schema.ColValue))
		if err != nil {
			stats.BadValue++
			continue
		}

		records = append(records, engine.Record{
			PrepDate:       cell(row, schema.ColPrepDate),
			Period:         cell(row, schema.ColPeriod),
			Country:        cell(row, schema.ColCountry),
			BusinessUnit:   cell(row, schema.ColBusinessUnit),
			Concept:        cell(row, schema.ColConcept),
			Classification: cell(row, schema.ColClassification),
			Cohort:         cell(row, schema.ColCohort),
			Scenario:       cell(row, schema.ColScenario),
			Value:          value,
		})
	}
	stats.Loaded = len(records)

	columns := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		if present[col] {
			columns = append(columns, col)
		}
	}
	return records, columns, stats, nil
}

// ParseCSVView parses CSV into a RecordView (convenience wrapper).
func ParseCSVView(data []byte) (engine.RecordView, LoadStats, error) {
	records, columns, stats, err := ParseCSV(data)
	if err != nil {
		return nil, stats, err
	}
	return engine.NewSliceView(records, columns...), stats, nil
}

// ParseAmount parses a locale-formatted amount: thousands separated by '.',
// decimals by ','. Currency symbols and spaces are ignored. Values that are
// empty or not finite are rejected.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ' ', '\u00a0', '.':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	if cleaned == "" || cleaned == "-" {
		return 0, fmt.Errorf("empty amount %q", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	v := d.InexactFloat64()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
