package ui

import (
	"sync"

	"datalens/adapters/tabular"
	"datalens/domain/dataset"
	"datalens/internal/analyzer"
)

// ViewSnapshot pairs a derived view with the column metadata and view state
// it was computed against. Everything in a snapshot comes from one locked
// section, so a concurrent upload can never pair one dataset's rows with
// another's columns.
type ViewSnapshot struct {
	View        dataset.DerivedView
	Columns     []string
	ColumnTypes map[string]dataset.ColumnType
	State       dataset.ViewState
}

// Session owns the single active dataset and its view state. A new upload
// replaces everything; view mutations re-derive the visible slice under the
// same lock so readers never observe a half-updated state.
type Session struct {
	mu     sync.RWMutex
	data   *dataset.Dataset
	view   dataset.ViewState
	stats  *analyzer.Stats
	charts []analyzer.Chart
	file   *tabular.FileInfo
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{view: dataset.NewViewState()}
}

// Replace swaps in a freshly uploaded dataset and resets the view state.
func (s *Session) Replace(ds *dataset.Dataset, stats *analyzer.Stats, charts []analyzer.Chart, file *tabular.FileInfo) ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = ds
	s.stats = stats
	s.charts = charts
	s.file = file
	s.view = dataset.NewViewState()
	return s.deriveLocked()
}

// HasData reports whether a dataset has been uploaded.
func (s *Session) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data != nil
}

// Snapshot returns the dataset and stats for question answering.
func (s *Session) Snapshot() (*dataset.Dataset, *analyzer.Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, nil, false
	}
	return s.data, s.stats, true
}

// View re-derives the current visible slice.
func (s *Session) View() ViewSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(dataset.Derive(s.data, s.view))
}

// ViewState returns a copy of the current view parameters.
func (s *Session) ViewState() dataset.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyViewState(s.view)
}

// SetSearch replaces the global search term and rewinds to the first page.
func (s *Session) SetSearch(term string) ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SearchTerm = term
	s.view.PageIndex = 1
	return s.deriveLocked()
}

// SetFilter sets or clears one column filter and rewinds to the first page.
func (s *Session) SetFilter(column, value string) ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.view.ColumnFilters, column)
	} else {
		s.view.ColumnFilters[column] = value
	}
	s.view.PageIndex = 1
	return s.deriveLocked()
}

// ClearFilters drops every column filter and the search term.
func (s *Session) ClearFilters() ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.ColumnFilters = make(map[string]string)
	s.view.SearchTerm = ""
	s.view.PageIndex = 1
	return s.deriveLocked()
}

// SetSort orders by the given column. The current page is kept and clamped.
func (s *Session) SetSort(key string, direction dataset.SortDirection) ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SortKey = key
	if direction != dataset.SortDescending {
		direction = dataset.SortAscending
	}
	s.view.SortDirection = direction
	return s.deriveLocked()
}

// SetPage moves to the requested page, clamped to the valid range.
func (s *Session) SetPage(page int) ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.PageIndex = page
	return s.deriveLocked()
}

// SetPageSize changes the page size and rewinds to the first page.
func (s *Session) SetPageSize(size int) ViewSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size < 1 {
		size = dataset.DefaultPageSize
	}
	s.view.PageSize = size
	s.view.PageIndex = 1
	return s.deriveLocked()
}

// deriveLocked recomputes the view and writes the clamped page index back so
// the stored state never drifts out of range. Callers hold the write lock.
func (s *Session) deriveLocked() ViewSnapshot {
	view := dataset.Derive(s.data, s.view)
	s.view.PageIndex = view.PageIndex
	s.view.PageSize = view.PageSize
	return s.snapshotLocked(view)
}

// snapshotLocked bundles the view with the dataset metadata and a state
// copy. Callers hold at least the read lock; nothing is mutated here.
func (s *Session) snapshotLocked(view dataset.DerivedView) ViewSnapshot {
	snap := ViewSnapshot{View: view, State: copyViewState(s.view)}
	if s.data != nil {
		snap.Columns = s.data.Columns
		snap.ColumnTypes = s.data.ColumnTypes
	}
	return snap
}

func copyViewState(vs dataset.ViewState) dataset.ViewState {
	filters := make(map[string]string, len(vs.ColumnFilters))
	for k, v := range vs.ColumnFilters {
		filters[k] = v
	}
	vs.ColumnFilters = filters
	return vs
}
