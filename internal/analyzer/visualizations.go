package analyzer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"datalens/domain/dataset"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Chart is one renderable chart configuration. Data rows are generic maps so
// the frontend charting library consumes them directly.
type Chart struct {
	Type   string           `json:"chart_type"`
	Title  string           `json:"title"`
	Data   []map[string]any `json:"data"`
	XAxis  string           `json:"x_axis,omitempty"`
	YAxis  string           `json:"y_axis,omitempty"`
	Series []string         `json:"series,omitempty"`
	Colors []string         `json:"colors,omitempty"`
}

const (
	histogramBins        = 10
	maxHistogramCharts   = 5
	maxCategoricalCharts = 5
	maxCategoryUniques   = 15
	maxCategoryPoints    = 10
	maxTimeSeriesCharts  = 3
	maxScatterCharts     = 3
	scatterCorrThreshold = 0.5
	maxScatterPoints     = 500
	maxAreaColumns       = 3
	maxAreaPoints        = 100
)

var areaColors = []string{"#8b5cf6", "#a78bfa", "#c4b5fd"}

// Visualizations builds the full chart set for a dataset: histograms,
// category breakdowns, time series, correlated scatter plots and a normalized
// trend area chart. Columns that cannot produce a meaningful chart are
// skipped silently.
func (a *Analyzer) Visualizations(ds *dataset.Dataset) []Chart {
	charts := []Chart{}
	charts = append(charts, histogramCharts(ds)...)
	charts = append(charts, categoricalCharts(ds)...)
	charts = append(charts, timeSeriesCharts(ds)...)
	charts = append(charts, scatterCharts(ds)...)
	if c, ok := areaChart(ds); ok {
		charts = append(charts, c)
	}
	return charts
}

func histogramCharts(ds *dataset.Dataset) []Chart {
	var charts []Chart
	for _, col := range ds.ColumnsOfType(dataset.TypeNumeric) {
		if len(charts) >= maxHistogramCharts {
			break
		}
		values := ds.NumericColumn(col)
		if len(values) == 0 {
			continue
		}
		charts = append(charts, Chart{
			Type:  "histogram",
			Title: fmt.Sprintf("Distribution of %s", col),
			Data:  histogramBuckets(values),
			XAxis: "bin",
			YAxis: "count",
		})
	}
	return charts
}

// histogramBuckets bins values into equal-width buckets with the maximum
// value counted in the last bucket.
func histogramBuckets(values []float64) []map[string]any {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	min, max := sorted[0], sorted[len(sorted)-1]

	if min == max {
		return []map[string]any{{
			"bin":   fmt.Sprintf("%.2f - %.2f", min, max),
			"count": len(values),
		}}
	}

	edges := make([]float64, histogramBins+1)
	floats.Span(edges, min, max)

	dividers := append([]float64(nil), edges...)
	dividers[len(dividers)-1] = math.Nextafter(max, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	data := make([]map[string]any, histogramBins)
	for i := 0; i < histogramBins; i++ {
		data[i] = map[string]any{
			"bin":   fmt.Sprintf("%.2f - %.2f", edges[i], edges[i+1]),
			"count": int(counts[i]),
		}
	}
	return data
}

func categoricalCharts(ds *dataset.Dataset) []Chart {
	var charts []Chart
	for _, col := range ds.ColumnsOfType(dataset.TypeCategorical) {
		if len(charts) >= maxCategoricalCharts {
			break
		}
		data, ok := categoryCounts(ds, col)
		if !ok {
			continue
		}
		chartType := "bar"
		if len(data) <= 5 {
			chartType = "pie"
		}
		charts = append(charts, Chart{
			Type:  chartType,
			Title: fmt.Sprintf("Count by %s", col),
			Data:  data,
			XAxis: "category",
			YAxis: "count",
		})
	}
	return charts
}

// categoryCounts tallies values of a categorical column, most frequent first.
// Columns with too many distinct values are rejected; when more than ten
// categories remain, the tail collapses into an "Other" bucket.
func categoryCounts(ds *dataset.Dataset, col string) ([]map[string]any, bool) {
	counts := map[string]int{}
	for _, row := range ds.Rows {
		s, ok := row[col].(string)
		if !ok {
			continue
		}
		counts[s]++
	}
	if len(counts) == 0 || len(counts) > maxCategoryUniques {
		return nil, false
	}

	type kv struct {
		name  string
		count int
	}
	sorted := make([]kv, 0, len(counts))
	for name, n := range counts {
		sorted = append(sorted, kv{name, n})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})

	if len(sorted) > maxCategoryPoints {
		other := 0
		for _, e := range sorted[maxCategoryPoints-1:] {
			other += e.count
		}
		sorted = append(sorted[:maxCategoryPoints-1], kv{"Other", other})
	}

	data := make([]map[string]any, len(sorted))
	for i, e := range sorted {
		data[i] = map[string]any{"category": e.name, "count": e.count}
	}
	return data, true
}

func timeSeriesCharts(ds *dataset.Dataset) []Chart {
	var charts []Chart
	for _, col := range ds.ColumnsOfType(dataset.TypeDatetime) {
		if len(charts) >= maxTimeSeriesCharts {
			break
		}
		data, ok := timeSeriesCounts(ds, col)
		if !ok {
			continue
		}
		charts = append(charts, Chart{
			Type:  "line",
			Title: fmt.Sprintf("Records over time by %s", col),
			Data:  data,
			XAxis: "date",
			YAxis: "count",
		})
	}
	return charts
}

// timeSeriesCounts groups timestamps by day, week or month depending on the
// span of the column. Constant columns produce no chart.
func timeSeriesCounts(ds *dataset.Dataset, col string) ([]map[string]any, bool) {
	var stamps []time.Time
	for _, row := range ds.Rows {
		if ts, ok := row[col].(time.Time); ok {
			stamps = append(stamps, ts)
		}
	}
	if len(stamps) == 0 {
		return nil, false
	}

	min, max := stamps[0], stamps[0]
	for _, ts := range stamps[1:] {
		if ts.Before(min) {
			min = ts
		}
		if ts.After(max) {
			max = ts
		}
	}
	if min.Equal(max) {
		return nil, false
	}

	span := max.Sub(min)
	var bucket func(time.Time) time.Time
	var layout string
	switch {
	case span <= 30*24*time.Hour:
		bucket = startOfDay
		layout = "2006-01-02"
	case span <= 365*24*time.Hour:
		bucket = startOfWeek
		layout = "2006-01-02"
	default:
		bucket = startOfMonth
		layout = "2006-01"
	}

	counts := map[time.Time]int{}
	for _, ts := range stamps {
		counts[bucket(ts)]++
	}
	keys := make([]time.Time, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	data := make([]map[string]any, len(keys))
	for i, k := range keys {
		data[i] = map[string]any{"date": k.Format(layout), "count": counts[k]}
	}
	return data, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek truncates to Monday.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// scatterCharts plots the most strongly correlated numeric pairs, sampled to
// keep payloads small.
func scatterCharts(ds *dataset.Dataset) []Chart {
	var charts []Chart
	for _, pair := range correlationPairs(ds) {
		if len(charts) >= maxScatterCharts {
			break
		}
		if math.Abs(pair.value) <= scatterCorrThreshold {
			break
		}

		var points []map[string]any
		for _, row := range ds.Rows {
			fx, okX := row[pair.colX].(float64)
			fy, okY := row[pair.colY].(float64)
			if okX && okY {
				points = append(points, map[string]any{pair.colX: fx, pair.colY: fy})
			}
		}
		if len(points) == 0 {
			continue
		}
		charts = append(charts, Chart{
			Type:  "scatter",
			Title: fmt.Sprintf("%s vs %s (r=%.2f)", pair.colX, pair.colY, pair.value),
			Data:  sampleEvenly(points, maxScatterPoints),
			XAxis: pair.colX,
			YAxis: pair.colY,
		})
	}
	return charts
}

// areaChart scales up to three numeric columns to the 0..1 range and lays
// them out over the row index for trend comparison.
func areaChart(ds *dataset.Dataset) (Chart, bool) {
	numeric := ds.ColumnsOfType(dataset.TypeNumeric)
	if len(numeric) < 2 || ds.RowCount() == 0 {
		return Chart{}, false
	}
	if len(numeric) > maxAreaColumns {
		numeric = numeric[:maxAreaColumns]
	}

	ranges := map[string][2]float64{}
	for _, col := range numeric {
		values := ds.NumericColumn(col)
		if len(values) == 0 {
			return Chart{}, false
		}
		min, max := values[0], values[0]
		for _, v := range values[1:] {
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
		ranges[col] = [2]float64{min, max}
	}

	points := make([]map[string]any, 0, ds.RowCount())
	for i, row := range ds.Rows {
		point := map[string]any{"index": i}
		for _, col := range numeric {
			f, ok := row[col].(float64)
			if !ok {
				point[col] = 0.0
				continue
			}
			r := ranges[col]
			if r[1] == r[0] {
				point[col] = 0.0
			} else {
				point[col] = (f - r[0]) / (r[1] - r[0])
			}
		}
		points = append(points, point)
	}

	return Chart{
		Type:   "area",
		Title:  "Normalized trends",
		Data:   sampleEvenly(points, maxAreaPoints),
		XAxis:  "index",
		Series: numeric,
		Colors: areaColors,
	}, true
}

// sampleEvenly keeps at most max points, picked at a fixed stride so the
// sample spans the whole input.
func sampleEvenly(points []map[string]any, max int) []map[string]any {
	if len(points) <= max {
		return points
	}
	stride := float64(len(points)) / float64(max)
	out := make([]map[string]any, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, points[int(float64(i)*stride)])
	}
	return out
}
