package ui

import (
	"fmt"
	"sync"
	"testing"

	"datalens/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionDataset(n int) *dataset.Dataset {
	rows := make([]dataset.Record, n)
	for i := range rows {
		rows[i] = dataset.Record{"idx": float64(i), "label": fmt.Sprintf("row-%d", i)}
	}
	return &dataset.Dataset{
		Columns:     []string{"idx", "label"},
		Rows:        rows,
		ColumnTypes: map[string]dataset.ColumnType{"idx": dataset.TypeNumeric, "label": dataset.TypeCategorical},
	}
}

func TestSessionStartsEmpty(t *testing.T) {
	s := NewSession()
	assert.False(t, s.HasData())

	snap := s.View()
	assert.Empty(t, snap.View.VisibleRows)
	assert.Equal(t, 1, snap.View.TotalPages)
	assert.Empty(t, snap.Columns)
}

func TestReplaceResetsViewState(t *testing.T) {
	s := NewSession()
	s.Replace(sessionDataset(30), nil, nil, nil)
	s.SetSearch("row-1")
	s.SetPage(2)

	snap := s.Replace(sessionDataset(5), nil, nil, nil)
	assert.Equal(t, 5, snap.View.TotalFilteredCount)
	assert.Equal(t, 1, snap.View.PageIndex)
	assert.Empty(t, snap.State.SearchTerm)
}

func TestMutatorsRewindToFirstPage(t *testing.T) {
	s := NewSession()
	s.Replace(sessionDataset(50), nil, nil, nil)

	s.SetPage(4)
	require.Equal(t, 4, s.ViewState().PageIndex)

	snap := s.SetSearch("row")
	assert.Equal(t, 1, snap.View.PageIndex)

	s.SetPage(3)
	snap = s.SetFilter("label", "row-1")
	assert.Equal(t, 1, snap.View.PageIndex)

	s.SetPageSize(25)
	assert.Equal(t, 1, s.ViewState().PageIndex)
	assert.Equal(t, 25, s.ViewState().PageSize)
}

func TestSetPageClampPersists(t *testing.T) {
	s := NewSession()
	s.Replace(sessionDataset(25), nil, nil, nil)

	snap := s.SetPage(99)
	assert.Equal(t, 3, snap.View.PageIndex)
	assert.Equal(t, 3, s.ViewState().PageIndex)
}

func TestSortKeepsCurrentPageClamped(t *testing.T) {
	s := NewSession()
	s.Replace(sessionDataset(25), nil, nil, nil)
	s.SetPage(2)

	snap := s.SetSort("idx", dataset.SortDescending)
	assert.Equal(t, 2, snap.View.PageIndex)
	assert.Equal(t, dataset.SortDescending, snap.State.SortDirection)
	// Page 2 descending over 0..24 shows 14..5.
	assert.Equal(t, float64(14), snap.View.VisibleRows[0]["idx"])
}

func TestClearFiltersDropsSearchAndFilters(t *testing.T) {
	s := NewSession()
	s.Replace(sessionDataset(20), nil, nil, nil)
	s.SetSearch("row-1")
	s.SetFilter("label", "row-19")

	snap := s.ClearFilters()
	assert.Equal(t, 20, snap.View.TotalFilteredCount)
	assert.Empty(t, snap.State.SearchTerm)
	assert.Empty(t, snap.State.ColumnFilters)
}

func TestClearingFilterValueRemovesIt(t *testing.T) {
	s := NewSession()
	s.Replace(sessionDataset(10), nil, nil, nil)

	s.SetFilter("label", "row-1")
	require.Len(t, s.ViewState().ColumnFilters, 1)

	s.SetFilter("label", "")
	assert.Empty(t, s.ViewState().ColumnFilters)
}

func TestViewStateCopyIsIsolated(t *testing.T) {
	s := NewSession()
	s.Replace(sessionDataset(10), nil, nil, nil)
	s.SetFilter("label", "row")

	vs := s.ViewState()
	vs.ColumnFilters["label"] = "tampered"
	assert.Equal(t, "row", s.ViewState().ColumnFilters["label"])
}

func TestSnapshotCarriesMatchingColumns(t *testing.T) {
	s := NewSession()
	snap := s.Replace(sessionDataset(5), nil, nil, nil)

	assert.Equal(t, []string{"idx", "label"}, snap.Columns)
	assert.Equal(t, dataset.TypeNumeric, snap.ColumnTypes["idx"])

	other := &dataset.Dataset{
		Columns:     []string{"name"},
		Rows:        []dataset.Record{{"name": "a"}, {"name": "b"}},
		ColumnTypes: map[string]dataset.ColumnType{"name": dataset.TypeCategorical},
	}
	snap = s.Replace(other, nil, nil, nil)
	assert.Equal(t, []string{"name"}, snap.Columns)
	assert.Equal(t, 2, snap.View.TotalFilteredCount)
}

func TestSnapshotConsistentUnderConcurrentReplace(t *testing.T) {
	// Rows, columns and state in one snapshot must all come from the same
	// dataset even while uploads swap the session contents underneath.
	s := NewSession()
	wide := sessionDataset(10)
	narrow := &dataset.Dataset{
		Columns:     []string{"name"},
		Rows:        []dataset.Record{{"name": "a"}, {"name": "b"}, {"name": "c"}},
		ColumnTypes: map[string]dataset.ColumnType{"name": dataset.TypeCategorical},
	}
	s.Replace(wide, nil, nil, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				s.Replace(narrow, nil, nil, nil)
			} else {
				s.Replace(wide, nil, nil, nil)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap := s.View()
			require.NotEmpty(t, snap.View.VisibleRows)
			for _, row := range snap.View.VisibleRows {
				require.Len(t, row, len(snap.Columns))
				for _, col := range snap.Columns {
					_, ok := row[col]
					require.True(t, ok)
				}
			}
		}
	}()
	wg.Wait()
}
