package dataset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	return &Dataset{
		ID:      "test",
		Columns: []string{"name", "val"},
		Rows: []Record{
			{"name": "b", "val": float64(2)},
			{"name": "a", "val": float64(1)},
			{"name": "a", "val": float64(3)},
		},
		ColumnTypes: map[string]ColumnType{
			"name": TypeCategorical,
			"val":  TypeNumeric,
		},
	}
}

func numberedDataset(n int) *Dataset {
	rows := make([]Record, n)
	for i := range rows {
		rows[i] = Record{"idx": float64(i), "label": fmt.Sprintf("row-%d", i)}
	}
	return &Dataset{
		Columns:     []string{"idx", "label"},
		Rows:        rows,
		ColumnTypes: map[string]ColumnType{"idx": TypeNumeric, "label": TypeCategorical},
	}
}

func TestDeriveStableSortAscending(t *testing.T) {
	vs := NewViewState()
	vs.SortKey = "name"
	vs.PageSize = 10

	view := Derive(sampleDataset(), vs)
	require.Len(t, view.VisibleRows, 3)

	// The two "a" rows keep their pre-sort relative order.
	assert.Equal(t, "a", view.VisibleRows[0]["name"])
	assert.Equal(t, float64(1), view.VisibleRows[0]["val"])
	assert.Equal(t, "a", view.VisibleRows[1]["name"])
	assert.Equal(t, float64(3), view.VisibleRows[1]["val"])
	assert.Equal(t, "b", view.VisibleRows[2]["name"])
}

func TestDeriveDescendingKeepsTieOrder(t *testing.T) {
	vs := NewViewState()
	vs.SortKey = "name"
	vs.SortDirection = SortDescending

	view := Derive(sampleDataset(), vs)
	require.Len(t, view.VisibleRows, 3)

	assert.Equal(t, "b", view.VisibleRows[0]["name"])
	// Descending reverses the comparator, not the tie order: val=1 stays
	// ahead of val=3 among the equal "a" keys.
	assert.Equal(t, float64(1), view.VisibleRows[1]["val"])
	assert.Equal(t, float64(3), view.VisibleRows[2]["val"])
}

func TestNumericSortUsesNumberComparison(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"n"},
		Rows: []Record{
			{"n": float64(10)},
			{"n": float64(2)},
			{"n": float64(1)},
		},
	}
	vs := NewViewState()
	vs.SortKey = "n"

	view := Derive(ds, vs)
	// Lexicographic order would be 1, 10, 2.
	assert.Equal(t, float64(1), view.VisibleRows[0]["n"])
	assert.Equal(t, float64(2), view.VisibleRows[1]["n"])
	assert.Equal(t, float64(10), view.VisibleRows[2]["n"])
}

func TestMixedColumnFallsBackToStringCompare(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"v"},
		Rows: []Record{
			{"v": "banana"},
			{"v": float64(7)},
			{"v": "Apple"},
		},
	}
	vs := NewViewState()
	vs.SortKey = "v"

	view := Derive(ds, vs)
	// "7" < "apple" < "banana" case-insensitively.
	assert.Equal(t, float64(7), view.VisibleRows[0]["v"])
	assert.Equal(t, "Apple", view.VisibleRows[1]["v"])
	assert.Equal(t, "banana", view.VisibleRows[2]["v"])
}

func TestColumnFilterMatchesSubstringCaseInsensitive(t *testing.T) {
	vs := NewViewState()
	vs.ColumnFilters["name"] = "A"

	view := Derive(sampleDataset(), vs)
	assert.Equal(t, 2, view.TotalFilteredCount)
	for _, row := range view.VisibleRows {
		assert.Equal(t, "a", row["name"])
	}
}

func TestColumnFilterStringifiesNumbers(t *testing.T) {
	vs := NewViewState()
	vs.ColumnFilters["val"] = "3"

	view := Derive(sampleDataset(), vs)
	require.Equal(t, 1, view.TotalFilteredCount)
	assert.Equal(t, float64(3), view.VisibleRows[0]["val"])
}

func TestColumnFiltersCombineWithAND(t *testing.T) {
	vs := NewViewState()
	vs.ColumnFilters["name"] = "a"
	vs.ColumnFilters["val"] = "1"

	view := Derive(sampleDataset(), vs)
	require.Equal(t, 1, view.TotalFilteredCount)
	assert.Equal(t, float64(1), view.VisibleRows[0]["val"])
}

func TestFilteringIsIdempotent(t *testing.T) {
	filters := map[string]string{"name": "a"}
	once := ApplyColumnFilters(sampleDataset().Rows, filters)
	twice := ApplyColumnFilters(once, filters)
	assert.Equal(t, once, twice)
}

func TestNilCellComparesAsEmptyString(t *testing.T) {
	rows := []Record{
		{"name": nil},
		{"name": "x"},
	}
	filtered := ApplyColumnFilters(rows, map[string]string{"name": "x"})
	require.Len(t, filtered, 1)

	// Empty filter matches everything, including nil cells.
	filtered = ApplyColumnFilters(rows, map[string]string{"name": ""})
	assert.Len(t, filtered, 2)
}

func TestGlobalSearchORsAcrossColumns(t *testing.T) {
	vs := NewViewState()
	vs.SearchTerm = "2"

	view := Derive(sampleDataset(), vs)
	require.Equal(t, 1, view.TotalFilteredCount)
	assert.Equal(t, "b", view.VisibleRows[0]["name"])
}

func TestSearchAppliesAfterColumnFilters(t *testing.T) {
	vs := NewViewState()
	vs.ColumnFilters["name"] = "a"
	vs.SearchTerm = "b"

	// "b" only appears in a row filtered out by the column filter.
	view := Derive(sampleDataset(), vs)
	assert.Equal(t, 0, view.TotalFilteredCount)
	assert.Empty(t, view.VisibleRows)
	assert.Equal(t, 1, view.TotalPages)
}

func TestPaginateLastPartialPage(t *testing.T) {
	vs := NewViewState()
	vs.PageSize = 2
	vs.PageIndex = 3

	view := Derive(numberedDataset(5), vs)
	assert.Equal(t, 3, view.TotalPages)
	require.Len(t, view.VisibleRows, 1)
	assert.Equal(t, float64(4), view.VisibleRows[0]["idx"])
}

func TestPaginateClampsOutOfRangePage(t *testing.T) {
	vs := NewViewState()
	vs.PageSize = 2
	vs.PageIndex = 99

	view := Derive(numberedDataset(5), vs)
	assert.Equal(t, 3, view.PageIndex)
	require.Len(t, view.VisibleRows, 1)

	vs.PageIndex = -4
	view = Derive(numberedDataset(5), vs)
	assert.Equal(t, 1, view.PageIndex)
	assert.Len(t, view.VisibleRows, 2)
}

func TestVisibleRowsNeverExceedPageSize(t *testing.T) {
	ds := numberedDataset(37)
	for _, pageSize := range []int{1, 3, 10, 50} {
		vs := NewViewState()
		vs.PageSize = pageSize
		for page := 1; page <= ComputeTotalPages(len(ds.Rows), pageSize); page++ {
			vs.PageIndex = page
			view := Derive(ds, vs)
			assert.LessOrEqual(t, len(view.VisibleRows), pageSize)
		}
	}
}

func TestComputeTotalPages(t *testing.T) {
	assert.Equal(t, 1, ComputeTotalPages(0, 10))
	assert.Equal(t, 1, ComputeTotalPages(10, 10))
	assert.Equal(t, 2, ComputeTotalPages(11, 10))
	assert.Equal(t, 3, ComputeTotalPages(5, 2))
	// Degenerate page size falls back to the default rather than dividing by zero.
	assert.Equal(t, 1, ComputeTotalPages(5, 0))
}

func TestEmptyDatasetYieldsValidView(t *testing.T) {
	view := Derive(&Dataset{}, NewViewState())
	assert.Empty(t, view.VisibleRows)
	assert.Equal(t, 0, view.TotalFilteredCount)
	assert.Equal(t, 1, view.TotalPages)

	view = Derive(nil, NewViewState())
	assert.Empty(t, view.VisibleRows)
	assert.Equal(t, 1, view.TotalPages)
}

func TestClearingFiltersRestoresFullCount(t *testing.T) {
	ds := numberedDataset(20)

	vs := NewViewState()
	vs.SearchTerm = "row-1"
	vs.ColumnFilters["label"] = "row-19"
	filtered := Derive(ds, vs)
	assert.Less(t, filtered.TotalFilteredCount, ds.RowCount())

	vs.SearchTerm = ""
	vs.ColumnFilters = map[string]string{}
	cleared := Derive(ds, vs)
	assert.Equal(t, ds.RowCount(), cleared.TotalFilteredCount)
}

func TestDeriveDoesNotMutateDataset(t *testing.T) {
	ds := sampleDataset()
	vs := NewViewState()
	vs.SortKey = "name"
	vs.SortDirection = SortDescending
	_ = Derive(ds, vs)

	// Original row order is untouched by sorting.
	assert.Equal(t, "b", ds.Rows[0]["name"])
	assert.Equal(t, "a", ds.Rows[1]["name"])
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "2", Stringify(float64(2)))
	assert.Equal(t, "2.5", Stringify(2.5))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "hi", Stringify("hi"))
}
