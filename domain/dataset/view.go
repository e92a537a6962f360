package dataset

import (
	"sort"
	"strings"
)

// SortDirection orders sorted rows ascending or descending.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// DefaultPageSize is applied when a ViewState carries no page size.
const DefaultPageSize = 10

// ViewState holds the user-chosen filter, sort and pagination parameters for
// the current Dataset. PageIndex is 1-based.
type ViewState struct {
	SearchTerm    string            `json:"search_term"`
	ColumnFilters map[string]string `json:"column_filters"`
	SortKey       string            `json:"sort_key"`
	SortDirection SortDirection     `json:"sort_direction"`
	PageIndex     int               `json:"page_index"`
	PageSize      int               `json:"page_size"`
}

// NewViewState returns the defaults applied whenever a Dataset is replaced:
// no search, no filters, no sort, first page.
func NewViewState() ViewState {
	return ViewState{
		ColumnFilters: make(map[string]string),
		SortDirection: SortAscending,
		PageIndex:     1,
		PageSize:      DefaultPageSize,
	}
}

// DerivedView is the computed visible slice plus pagination metadata. It is
// recomputed from scratch on every Dataset or ViewState change and never
// persisted.
type DerivedView struct {
	VisibleRows        []Record `json:"visible_rows"`
	TotalFilteredCount int      `json:"total_filtered_count"`
	TotalPages         int      `json:"total_pages"`
	PageIndex          int      `json:"page_index"`
	PageSize           int      `json:"page_size"`
}

// Derive runs the full view pipeline: column filters, then global search,
// then sort, then pagination. The order is fixed because filtering and
// sorting do not commute with pagination. Derive is a total function: any
// combination of inputs, including a nil or empty Dataset and an out-of-range
// page index, yields a valid view.
func Derive(d *Dataset, vs ViewState) DerivedView {
	var rows []Record
	if d != nil {
		rows = d.Rows
	}

	rows = ApplyColumnFilters(rows, vs.ColumnFilters)
	rows = ApplyGlobalSearch(rows, vs.SearchTerm)
	rows = ApplySort(rows, vs.SortKey, vs.SortDirection)

	pageSize := vs.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	totalPages := ComputeTotalPages(len(rows), pageSize)
	pageIndex := clampPage(vs.PageIndex, totalPages)

	return DerivedView{
		VisibleRows:        Paginate(rows, pageIndex, pageSize),
		TotalFilteredCount: len(rows),
		TotalPages:         totalPages,
		PageIndex:          pageIndex,
		PageSize:           pageSize,
	}
}

// ApplyColumnFilters retains rows whose stringified value in every filtered
// column contains that column's filter string, case-insensitively. Filters
// AND together; empty filter strings are ignored.
func ApplyColumnFilters(rows []Record, filters map[string]string) []Record {
	active := make(map[string]string, len(filters))
	for col, f := range filters {
		if f != "" {
			active[col] = strings.ToLower(f)
		}
	}
	if len(active) == 0 {
		return rows
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		keep := true
		for col, f := range active {
			if !strings.Contains(strings.ToLower(Stringify(row[col])), f) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// ApplyGlobalSearch retains rows where at least one column's stringified
// value contains the search term, case-insensitively. An empty term keeps
// every row.
func ApplyGlobalSearch(rows []Record, term string) []Record {
	if term == "" {
		return rows
	}
	needle := strings.ToLower(term)

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		for _, v := range row {
			if strings.Contains(strings.ToLower(Stringify(v)), needle) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// ApplySort returns a new slice sorted by the given column. When both
// compared values are numbers they compare numerically; otherwise their
// stringified values compare case-insensitively. The sort is stable, and
// descending order reverses the comparator output only, never the tie order.
// Column types are coerced wholesale at load time, so mixed numeric/string
// columns only arise from cells the loader could not convert; those pairs
// fall back to the string comparison.
func ApplySort(rows []Record, sortKey string, direction SortDirection) []Record {
	if sortKey == "" {
		return rows
	}

	out := make([]Record, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		c := compareCells(out[i][sortKey], out[j][sortKey])
		if direction == SortDescending {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compareCells(a, b any) int {
	if na, ok := asNumber(a); ok {
		if nb, ok := asNumber(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(strings.ToLower(Stringify(a)), strings.ToLower(Stringify(b)))
}

// Paginate returns the 1-based pageIndex-th slice of pageSize rows, clamped
// to the available range. Out-of-range page indexes clamp rather than error.
func Paginate(rows []Record, pageIndex, pageSize int) []Record {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pageIndex = clampPage(pageIndex, ComputeTotalPages(len(rows), pageSize))

	start := (pageIndex - 1) * pageSize
	if start >= len(rows) {
		return []Record{}
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// ComputeTotalPages is ceil(filteredCount / pageSize), with a minimum of one
// page even for an empty result set.
func ComputeTotalPages(filteredCount, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pages := (filteredCount + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

func clampPage(pageIndex, totalPages int) int {
	if pageIndex < 1 {
		return 1
	}
	if pageIndex > totalPages {
		return totalPages
	}
	return pageIndex
}
