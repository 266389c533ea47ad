package engine

import (
	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// RECORD VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never owns or mutates the dataset. It reads through this
// interface.
//
// Implementations:
//   SliceView: wraps []Record loaded by the ingestion side
//   SubView:   filtered subset (indices into parent, zero-copy)
// ============================================================================

// RecordView provides indexed, read-only access to the dataset.
type RecordView interface {
	Len() int
	Field(index int, column string) string
	Value(index int) float64
	// Columns lists the contract columns the source actually carried.
	Columns() []string
}

// ============================================================================
// SLICE VIEW
// ============================================================================

// SliceView wraps a []Record slice as a RecordView.
type SliceView struct {
	records []Record
	columns []string
}

// NewSliceView creates a RecordView from records. When columns is empty the
// full contract is assumed present.
func NewSliceView(records []Record, columns ...string) *SliceView {
	if len(columns) == 0 {
		columns = schema.Columns
	}
	return &SliceView{records: records, columns: columns}
}

func (v *SliceView) Len() int { return len(v.records) }

func (v *SliceView) Field(i int, column string) string {
	if i < 0 || i >= len(v.records) {
		return ""
	}
	return v.records[i].Field(column)
}

func (v *SliceView) Value(i int) float64 {
	if i < 0 || i >= len(v.records) {
		return nan()
	}
	return v.records[i].Value
}

func (v *SliceView) Columns() []string { return v.columns }

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a filtered subset of a parent RecordView.
// Holds indices into the parent; no data copy.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Field(i int, column string) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Field(v.indices[i], column)
}

func (v *SubView) Value(i int) float64 {
	if i < 0 || i >= len(v.indices) {
		return nan()
	}
	return v.parent.Value(v.indices[i])
}

func (v *SubView) Columns() []string { return v.parent.Columns() }

// Presence returns the column presence of a view.
func Presence(view RecordView) schema.Presence {
	return schema.CheckColumns(view.Columns())
}

// Where returns the rows of view whose column equals value.
func Where(view RecordView, column, value string) RecordView {
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if view.Field(i, column) == value {
			indices = append(indices, i)
		}
	}
	return newSubView(view, indices)
}
