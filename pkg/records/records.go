// Package records reads entity tables (one row per find or annotation) and
// resolves the WGS84 position of each row from whichever coordinate columns
// it carries.
package records

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/menta2k/mapcrop/pkg/projection"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv
var ErrUnsupportedFormat = errors.New("unsupported table format")

// coordinate columns, in the order they are tried
var (
	degreeColumns   = [2]string{"lat", "lng"}
	mercatorColumns = [][2]string{
		{"y_webmercator", "x_webmercator"},
		{"lat (Web Mercator)", "lon (Web Mercator)"},
	}
)

// Record is one non-empty table row
type Record struct {
	Row    int
	Values map[string]string
}

// Get returns the trimmed cell value of a column
func (r Record) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// Table is a header row plus its records
type Table struct {
	Headers []string
	Records []Record
}

// Load reads a table from an .xlsx/.xlsm workbook or a .csv file. sheet
// selects the worksheet and defaults to the first one.
func Load(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadWorkbook(path, sheet)
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open table: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

func loadWorkbook(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return fromRows(rows), nil
}

// ReadCSV reads a comma or semicolon separated table
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	firstLine, _, _ := strings.Cut(text, "\n")

	cr := csv.NewReader(strings.NewReader(text))
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return fromRows(rows), nil
}

func fromRows(rows [][]string) *Table {
	t := &Table{}
	if len(rows) == 0 {
		return t
	}

	t.Headers = lo.Map(rows[0], func(h string, _ int) string { return strings.TrimSpace(h) })

	for i, row := range rows[1:] {
		values := make(map[string]string, len(t.Headers))
		for c, h := range t.Headers {
			if h == "" || c >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[c]); v != "" {
				values[h] = v
			}
		}
		if len(values) == 0 {
			continue
		}
		// header is row 1
		t.Records = append(t.Records, Record{Row: i + 2, Values: values})
	}
	return t
}

// Locate resolves the WGS84 position of a record. lat/lng columns are used
// first; values outside the degree range there are treated as Web Mercator
// meters and disambiguated with window. Labelled Mercator columns follow.
func Locate(r Record, window orb.Bound) (projection.Result, bool) {
	if res, ok := projection.ParsePair(r.Get(degreeColumns[0]), r.Get(degreeColumns[1]), window); ok {
		return res, true
	}

	for _, cols := range mercatorColumns {
		northing, okN := projection.ParseNumber(r.Get(cols[0]))
		easting, okE := projection.ParseNumber(r.Get(cols[1]))
		if okN && okE {
			lat, lng := projection.InverseMercator(easting, northing)
			return projection.Result{Lat: lat, Lng: lng, Mercator: true}, true
		}
	}
	return projection.Result{}, false
}

// Meta describes a converted table
type Meta struct {
	Source     string `json:"source,omitempty"`
	TotalCount int    `json:"total_count"`
	Located    int    `json:"located"`
}

// Document is the JSON form of a table with resolved positions
type Document struct {
	Meta  Meta             `json:"meta"`
	Items []map[string]any `json:"items"`
}

// Convert turns every record into an item with lat/lng set (when a position
// could be resolved) and the source coordinate columns removed.
func Convert(t *Table, source string, window orb.Bound) Document {
	skip := map[string]bool{degreeColumns[0]: true, degreeColumns[1]: true}
	for _, cols := range mercatorColumns {
		skip[cols[0]], skip[cols[1]] = true, true
	}

	doc := Document{
		Meta:  Meta{Source: source},
		Items: make([]map[string]any, 0, len(t.Records)),
	}

	for _, rec := range t.Records {
		item := make(map[string]any, len(rec.Values)+2)
		if pos, ok := Locate(rec, window); ok {
			item["lat"] = pos.Lat
			item["lng"] = pos.Lng
			if pos.LowConfidence {
				item["low_confidence"] = true
			}
			doc.Meta.Located++
		}
		for k, v := range rec.Values {
			if !skip[k] {
				item[k] = v
			}
		}
		if len(item) > 0 {
			doc.Items = append(doc.Items, item)
		}
	}
	doc.Meta.TotalCount = len(doc.Items)
	return doc
}

// WriteJSON writes the document indented, keeping non-ASCII text readable
func (d Document) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
