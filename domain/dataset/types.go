package dataset

import (
	"strconv"
	"time"
)

// ColumnType classifies a column after ingestion coercion.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeDatetime    ColumnType = "datetime"
	TypeBoolean     ColumnType = "boolean"
)

// Record maps a column name to a scalar cell value. Values are one of
// string, float64, bool, time.Time or nil (missing cell).
type Record map[string]any

// Dataset is the full set of uploaded rows held in memory. Row order is the
// original file order and Columns preserves the header order, so iteration
// over a Record is reproducible via Columns rather than map order. A Dataset
// is immutable once loaded; a new upload replaces it wholesale.
type Dataset struct {
	ID          string                `json:"id"`
	Columns     []string              `json:"columns"`
	Rows        []Record              `json:"rows"`
	ColumnTypes map[string]ColumnType `json:"column_types"`
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// ColumnValues returns the values of one column in row order.
func (d *Dataset) ColumnValues(column string) []any {
	values := make([]any, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[column]
	}
	return values
}

// NumericColumn extracts the non-missing float64 values of a column.
func (d *Dataset) NumericColumn(column string) []float64 {
	out := make([]float64, 0, len(d.Rows))
	for _, row := range d.Rows {
		if f, ok := row[column].(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// ColumnsOfType returns column names with the given type, in header order.
func (d *Dataset) ColumnsOfType(t ColumnType) []string {
	var out []string
	for _, col := range d.Columns {
		if d.ColumnTypes[col] == t {
			out = append(out, col)
		}
	}
	return out
}

// Stringify renders a cell value the way filtering, searching and the string
// sort comparator see it. Missing cells compare as the empty string.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// asNumber reports whether a cell value is numeric for sort purposes.
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case time.Time:
		return float64(t.UnixNano()), true
	default:
		return 0, false
	}
}
