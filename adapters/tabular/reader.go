package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"datalens/domain/dataset"
	"datalens/internal/errors"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// FileInfo describes the uploaded file for the stats payload.
type FileInfo struct {
	FileName     string `json:"file_name"`
	FileType     string `json:"file_type"`
	FileSize     string `json:"file_size"`
	LastModified string `json:"last_modified"`
}

// Reader parses uploaded CSV and Excel content into a Dataset.
type Reader struct{}

// NewReader creates a new upload reader.
func NewReader() *Reader {
	return &Reader{}
}

// coercion thresholds, matching the loader behavior the stats layer expects
const (
	numericCoerceRatio  = 0.9
	datetimeSampleSize  = 100
	maxCoercibleUniques = 1000
)

var datetimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`),          // YYYY-MM-DD
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`),          // MM/DD/YYYY
	regexp.MustCompile(`^\d{1,2}\s[A-Za-z]{3}\s\d{4}`), // DD MMM YYYY
}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2 Jan 2006",
}

// ParseUpload converts uploaded file content into a Dataset plus file info.
// Supported extensions are .csv, .xlsx and .xls; anything else is rejected
// before any parsing is attempted.
func (r *Reader) ParseUpload(content []byte, filename string) (*dataset.Dataset, *FileInfo, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	var (
		rows     [][]string
		fileType string
		err      error
	)
	switch ext {
	case "csv":
		rows, err = readCSV(content)
		fileType = "CSV"
	case "xlsx", "xls":
		rows, err = readExcel(content)
		fileType = "Excel"
	default:
		return nil, nil, errors.UnsupportedFormat("Unsupported file format. Please upload a CSV or Excel file.")
	}
	if err != nil {
		return nil, nil, errors.ParseFailed(fmt.Sprintf("failed to parse %s file", fileType), err)
	}
	if len(rows) < 2 {
		return nil, nil, errors.ParseFailed("file must have a header row and at least one data row", nil)
	}

	columns := normalizeHeaders(rows[0])
	raw := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(columns))
		for j, col := range columns {
			if j < len(row) {
				record[col] = strings.TrimSpace(row[j])
			} else {
				record[col] = ""
			}
		}
		raw = append(raw, record)
	}

	ds := coerceColumns(columns, raw)

	info := &FileInfo{
		FileName:     filename,
		FileType:     fileType,
		FileSize:     humanSize(len(content)),
		LastModified: time.Now().Format("2006-01-02 15:04:05"),
	}
	return ds, info, nil
}

// readCSV tolerates the delimiter and encoding variants seen in the wild:
// UTF-8 or Latin-1 content with comma, semicolon or tab delimiters. Every
// candidate is parsed and the one splitting the header into the most columns
// wins, with earlier candidates winning ties.
func readCSV(content []byte) ([][]string, error) {
	utf8OK := utf8.Valid(content)
	attempts := []struct {
		comma  rune
		latin1 bool
	}{
		{comma: ','},
		{comma: ',', latin1: true},
		{comma: ';'},
		{comma: ';', latin1: true},
		{comma: '\t'},
		{comma: '\t', latin1: true},
	}

	var (
		best    [][]string
		lastErr error
	)
	for _, attempt := range attempts {
		if !attempt.latin1 && !utf8OK {
			continue
		}
		var reader io.Reader = bytes.NewReader(content)
		if attempt.latin1 {
			reader = charmap.ISO8859_1.NewDecoder().Reader(reader)
		}
		cr := csv.NewReader(reader)
		cr.Comma = attempt.comma
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1

		rows, err := cr.ReadAll()
		if err != nil {
			lastErr = err
			continue
		}
		if len(rows) < 2 || len(rows[0]) == 0 {
			lastErr = fmt.Errorf("no tabular content detected")
			continue
		}
		if best == nil || len(rows[0]) > len(best[0]) {
			best = rows
		}
	}
	if best == nil {
		return nil, lastErr
	}
	return best, nil
}

// readExcel reads the first sheet of an xlsx/xls workbook.
func readExcel(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// normalizeHeaders lowercases header names, replaces dots and spaces with
// underscores and deduplicates repeated names with numeric suffixes.
func normalizeHeaders(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))

	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		name = strings.ToLower(name)
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, " ", "_")

		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}

// coerceColumns decides one type per column and converts every cell to it.
// Numeric wins when at least 90% of non-empty values parse; datetime when the
// sampled values match a known date pattern; integer 0/1 columns become
// boolean; everything else stays a categorical string. Cells that resist the
// chosen conversion become nil, as do empty cells.
func coerceColumns(columns []string, raw []map[string]string) *dataset.Dataset {
	types := make(map[string]dataset.ColumnType, len(columns))
	converted := make([]dataset.Record, len(raw))
	for i := range converted {
		converted[i] = make(dataset.Record, len(columns))
	}

	for _, col := range columns {
		values := make([]string, len(raw))
		uniques := make(map[string]struct{})
		nonEmpty := 0
		for i, row := range raw {
			values[i] = row[col]
			if values[i] != "" {
				nonEmpty++
				if len(uniques) <= maxCoercibleUniques {
					uniques[values[i]] = struct{}{}
				}
			}
		}

		colType := dataset.TypeCategorical
		if nonEmpty > 0 && len(uniques) <= maxCoercibleUniques {
			switch {
			case looksDatetime(values):
				colType = dataset.TypeDatetime
			case numericRatio(values) >= numericCoerceRatio:
				if isBooleanColumn(values) {
					colType = dataset.TypeBoolean
				} else {
					colType = dataset.TypeNumeric
				}
			}
		}
		types[col] = colType

		for i, v := range values {
			converted[i][col] = convertCell(v, colType)
		}
	}

	return &dataset.Dataset{
		Columns:     columns,
		Rows:        converted,
		ColumnTypes: types,
	}
}

// numericRatio is the share of values parsing to finite numbers, over the
// values that are neither empty nor non-finite markers. Spreadsheet exports
// write missing cells as "NaN" or "Inf"; those read as missing, the same way
// pandas coerces them, so they neither pass nor fail the threshold.
func numericRatio(values []string) float64 {
	parsed, considered := 0, 0
	for _, v := range values {
		if v == "" || isNonFiniteToken(v) {
			continue
		}
		considered++
		if _, ok := parseFinite(v); ok {
			parsed++
		}
	}
	if considered == 0 {
		return 0
	}
	return float64(parsed) / float64(considered)
}

// parseFinite parses a numeric token, rejecting NaN and the infinities that
// strconv.ParseFloat otherwise accepts.
func parseFinite(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isNonFiniteToken(v string) bool {
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && (math.IsNaN(f) || math.IsInf(f, 0))
}

// isBooleanColumn reports whether every parseable value is integer 0 or 1.
func isBooleanColumn(values []string) bool {
	found := false
	for _, v := range values {
		if v == "" {
			continue
		}
		f, ok := parseFinite(v)
		if !ok {
			continue
		}
		if f != 0 && f != 1 {
			return false
		}
		found = true
	}
	return found
}

// looksDatetime samples the first non-empty values and checks them against
// the supported date patterns; a single counter-example rejects the column.
func looksDatetime(values []string) bool {
	sampled := 0
	matched := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		sampled++
		for _, pattern := range datetimePatterns {
			if pattern.MatchString(v) {
				matched++
				break
			}
		}
		if sampled >= datetimeSampleSize {
			break
		}
	}
	return sampled > 0 && matched == sampled
}

func convertCell(v string, t dataset.ColumnType) any {
	if v == "" {
		return nil
	}
	switch t {
	case dataset.TypeNumeric:
		if f, ok := parseFinite(v); ok {
			return f
		}
		return nil
	case dataset.TypeBoolean:
		if f, ok := parseFinite(v); ok {
			return f == 1
		}
		return nil
	case dataset.TypeDatetime:
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts
			}
		}
		return nil
	default:
		return v
	}
}

// humanSize renders a byte count as bytes, KB or MB.
func humanSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
