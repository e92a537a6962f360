package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"datalens/domain/dataset"

	mstats "github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Stats is the dataset-level statistics payload returned from an upload.
type Stats struct {
	RowCount      int              `json:"row_count"`
	ColumnCount   int              `json:"column_count"`
	ColumnTypes   ColumnTypeCounts `json:"column_types"`
	MissingValues int              `json:"missing_values"`
	DuplicateRows int              `json:"duplicate_rows"`
	Correlations  []Correlation    `json:"correlations"`
	Columns       []ColumnInfo     `json:"columns"`
}

// ColumnTypeCounts counts columns per inferred type.
type ColumnTypeCounts struct {
	Numeric     int `json:"numeric"`
	Categorical int `json:"categorical"`
	Datetime    int `json:"datetime"`
	Boolean     int `json:"boolean"`
}

// Correlation is one Pearson coefficient between two numeric columns.
type Correlation struct {
	Columns string  `json:"columns"`
	Value   float64 `json:"value"`
}

// ColumnInfo carries per-column metadata for the stats payload.
type ColumnInfo struct {
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	MissingValues     int     `json:"missing_values"`
	MissingPercentage float64 `json:"missing_percentage"`
}

// Summary holds the numeric descriptors used in AI prompts and profiles.
type Summary struct {
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	StdDev float64
}

// Analyzer computes statistics and chart configurations for a Dataset.
type Analyzer struct{}

// New creates an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Compute derives the full statistics payload. Column profiles are
// independent, so they run concurrently; each goroutine writes only its own
// slice slot.
func (a *Analyzer) Compute(ctx context.Context, ds *dataset.Dataset) (*Stats, error) {
	s := &Stats{
		RowCount:     ds.RowCount(),
		ColumnCount:  len(ds.Columns),
		Columns:      make([]ColumnInfo, len(ds.Columns)),
		Correlations: []Correlation{},
	}

	g, _ := errgroup.WithContext(ctx)
	for i, col := range ds.Columns {
		g.Go(func() error {
			s.Columns[i] = profileColumn(ds, col)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, info := range s.Columns {
		s.MissingValues += info.MissingValues
		switch dataset.ColumnType(info.Type) {
		case dataset.TypeNumeric:
			s.ColumnTypes.Numeric++
		case dataset.TypeCategorical:
			s.ColumnTypes.Categorical++
		case dataset.TypeDatetime:
			s.ColumnTypes.Datetime++
		case dataset.TypeBoolean:
			s.ColumnTypes.Boolean++
		}
	}

	s.DuplicateRows = countDuplicateRows(ds)
	s.Correlations = Correlations(ds)
	return s, nil
}

func profileColumn(ds *dataset.Dataset, col string) ColumnInfo {
	missing := 0
	for _, row := range ds.Rows {
		if row[col] == nil {
			missing++
		}
	}
	pct := 0.0
	if len(ds.Rows) > 0 {
		pct = round2(100 * float64(missing) / float64(len(ds.Rows)))
	}
	return ColumnInfo{
		Name:              col,
		Type:              string(ds.ColumnTypes[col]),
		MissingValues:     missing,
		MissingPercentage: pct,
	}
}

// countDuplicateRows counts rows identical to an earlier row across every
// column, in header order.
func countDuplicateRows(ds *dataset.Dataset) int {
	seen := make(map[string]struct{}, len(ds.Rows))
	dups := 0
	var sb strings.Builder
	for _, row := range ds.Rows {
		sb.Reset()
		for _, col := range ds.Columns {
			sb.WriteString(dataset.Stringify(row[col]))
			sb.WriteByte(0x1f)
		}
		key := sb.String()
		if _, ok := seen[key]; ok {
			dups++
		} else {
			seen[key] = struct{}{}
		}
	}
	return dups
}

type corrPair struct {
	colX  string
	colY  string
	value float64
}

// correlationPairs computes the upper triangle of the Pearson correlation
// matrix over numeric columns, pairwise-complete (rows missing either value
// are dropped), sorted by absolute value descending. NaN coefficients
// (constant columns, too few points) are skipped.
func correlationPairs(ds *dataset.Dataset) []corrPair {
	numeric := ds.ColumnsOfType(dataset.TypeNumeric)
	var out []corrPair
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			x, y := pairwiseComplete(ds, numeric[i], numeric[j])
			if len(x) < 2 {
				continue
			}
			r := stat.Correlation(x, y, nil)
			if math.IsNaN(r) {
				continue
			}
			out = append(out, corrPair{colX: numeric[i], colY: numeric[j], value: r})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].value) > math.Abs(out[j].value)
	})
	return out
}

// Correlations renders the correlation pairs in payload form.
func Correlations(ds *dataset.Dataset) []Correlation {
	pairs := correlationPairs(ds)
	out := make([]Correlation, len(pairs))
	for i, p := range pairs {
		out[i] = Correlation{
			Columns: fmt.Sprintf("%s - %s", p.colX, p.colY),
			Value:   p.value,
		}
	}
	return out
}

func pairwiseComplete(ds *dataset.Dataset, colX, colY string) (x, y []float64) {
	for _, row := range ds.Rows {
		fx, okX := row[colX].(float64)
		fy, okY := row[colY].(float64)
		if okX && okY {
			x = append(x, fx)
			y = append(y, fy)
		}
	}
	return x, y
}

// NumericSummary computes the descriptors for one numeric sample.
func NumericSummary(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("empty sample")
	}
	min, err := mstats.Min(values)
	if err != nil {
		return Summary{}, err
	}
	max, _ := mstats.Max(values)
	mean, _ := mstats.Mean(values)
	median, _ := mstats.Median(values)
	stdDev, _ := mstats.StandardDeviation(values)

	return Summary{Min: min, Max: max, Mean: mean, Median: median, StdDev: stdDev}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
