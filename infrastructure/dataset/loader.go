package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kpidashboard/models"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrInvalidValue  = errors.New("invalid value")
	ErrDuplicateID   = errors.New("duplicate id")
	ErrEmptyFile     = errors.New("empty file")
)

// LoadError reports why a dataset could not be loaded. Line is the
// 1-based line in the file, 0 when the problem is not tied to a row.
type LoadError struct {
	Path   string
	Line   int
	Column string
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load ")
	b.WriteString(e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

var ProductionColumns = []string{
	"Date", "Shift", "Planned_Quantity", "Produced_Quantity",
	"OEE", "Performance", "Availability", "Quality",
	"Downtime_Minutes", "Available_Time_Minutes",
}

var NonconformityColumns = []string{
	"id", "date", "status", "severity", "type_nonconformity", "product", "customer",
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// Datasets holds both tables. They are read-only after Load.
type Datasets struct {
	Production      []models.ProductionRecord
	Nonconformities []models.NonconformityRecord
}

// Load reads both files, resolving them against dir.
func Load(dir, productionFile, occurrencesFile string) (*Datasets, error) {
	prod, err := LoadProduction(resolve(dir, productionFile))
	if err != nil {
		return nil, err
	}
	nc, err := LoadNonconformities(resolve(dir, occurrencesFile))
	if err != nil {
		return nil, err
	}
	return &Datasets{Production: prod, Nonconformities: nc}, nil
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func LoadProduction(path string) ([]models.ProductionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	return ReadProduction(f, path)
}

func LoadNonconformities(path string) ([]models.NonconformityRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	return ReadNonconformities(f, path)
}

// ReadProduction parses a production table. name is only used in errors.
func ReadProduction(r io.Reader, name string) ([]models.ProductionRecord, error) {
	t, err := newTable(r, name, ProductionColumns)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ProductionRecord, 0)
	clamped := 0
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var row models.ProductionRecord
		if row.Date, err = t.date(rec, "Date"); err != nil {
			return nil, err
		}
		row.Shift = t.text(rec, "Shift")
		counts := []struct {
			col string
			dst *float64
		}{
			{"Planned_Quantity", &row.PlannedQuantity},
			{"Produced_Quantity", &row.ProducedQuantity},
			{"Downtime_Minutes", &row.DowntimeMinutes},
			{"Available_Time_Minutes", &row.AvailableTimeMinutes},
		}
		for _, c := range counts {
			v, err := t.number(rec, c.col)
			if err != nil {
				return nil, err
			}
			if v < 0 {
				return nil, t.errorf(c.col, "negative value %v", v)
			}
			*c.dst = v
		}
		ratios := []struct {
			col string
			dst *float64
		}{
			{"OEE", &row.OEE},
			{"Performance", &row.Performance},
			{"Availability", &row.Availability},
			{"Quality", &row.Quality},
		}
		for _, c := range ratios {
			v, err := t.number(rec, c.col)
			if err != nil {
				return nil, err
			}
			if v < 0 || v > 1 {
				clamped++
				v = min(max(v, 0), 1)
			}
			*c.dst = v
		}
		rows = append(rows, row)
	}

	if clamped > 0 {
		slog.Warn("ratio values outside [0,1] were clamped", slog.String("path", name), slog.Int("cells", clamped))
	}
	return rows, nil
}

// ReadNonconformities parses an occurrences table. Ids must be unique and
// severities must be one of models.Severities.
func ReadNonconformities(r io.Reader, name string) ([]models.NonconformityRecord, error) {
	t, err := newTable(r, name, NonconformityColumns)
	if err != nil {
		return nil, err
	}

	rows := make([]models.NonconformityRecord, 0)
	seen := make(map[string]int)
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var row models.NonconformityRecord
		row.ID = t.text(rec, "id")
		if row.ID == "" {
			return nil, t.errorf("id", "empty id")
		}
		if first, ok := seen[row.ID]; ok {
			return nil, &LoadError{Path: name, Line: t.line, Column: "id", Err: fmt.Errorf("%w %q (first on line %d)", ErrDuplicateID, row.ID, first)}
		}
		seen[row.ID] = t.line

		if row.Date, err = t.date(rec, "date"); err != nil {
			return nil, err
		}
		sev, ok := models.ParseSeverity(t.text(rec, "severity"))
		if !ok {
			return nil, t.errorf("severity", "unknown severity %q", sev)
		}
		row.Severity = sev
		row.Status = t.text(rec, "status")
		row.Type = t.text(rec, "type_nonconformity")
		row.Product = t.text(rec, "product")
		row.Customer = t.text(rec, "customer")
		rows = append(rows, row)
	}
	return rows, nil
}

type table struct {
	name string
	r    *csv.Reader
	cols map[string]int
	line int
}

func newTable(r io.Reader, name string, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &LoadError{Path: name, Err: ErrEmptyFile}
	}
	if err != nil {
		return nil, &LoadError{Path: name, Line: 1, Err: fmt.Errorf("read header: %w", err)}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, &LoadError{Path: name, Line: 1, Column: c, Err: ErrMissingColumn}
		}
	}
	return &table{name: name, r: cr, cols: cols, line: 1}, nil
}

func (t *table) next() ([]string, error) {
	for {
		rec, err := t.r.Read()
		if err == io.EOF {
			return nil, err
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				t.line = perr.Line
			}
			return nil, &LoadError{Path: t.name, Line: t.line, Err: err}
		}
		t.line, _ = t.r.FieldPos(0)
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		return rec, nil
	}
}

func (t *table) text(rec []string, col string) string {
	i := t.cols[col]
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) number(rec []string, col string) (float64, error) {
	raw := t.text(rec, col)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, t.errorf(col, "not a number: %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, t.errorf(col, "not a finite number: %q", raw)
	}
	return v, nil
}

func (t *table) date(rec []string, col string) (time.Time, error) {
	raw := t.text(rec, col)
	d, ok := ParseDate(raw)
	if !ok {
		return time.Time{}, t.errorf(col, "not a date: %q", raw)
	}
	return d, nil
}

func (t *table) errorf(col, format string, args ...any) error {
	return &LoadError{Path: t.name, Line: t.line, Column: col, Err: fmt.Errorf("%w: %s", ErrInvalidValue, fmt.Sprintf(format, args...))}
}

// ParseDate accepts the dataset date layouts and drops the time of day.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			y, m, day := d.Date()
			return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
