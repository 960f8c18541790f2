package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kpidashboard/models"
)

var ErrInvalidDateRange = errors.New("invalid date range")

// FacetMode decides how a categorical selection narrows a table.
type FacetMode int

const (
	// FacetModeParity filters only when the selection is non-empty and
	// smaller than the column's distinct values, so selecting every value
	// and selecting none both leave the table untouched.
	FacetModeParity FacetMode = iota
	// FacetModeStrict treats an empty selection as "match nothing".
	FacetModeStrict
)

func ParseFacetMode(raw string) (FacetMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "parity":
		return FacetModeParity, nil
	case "strict":
		return FacetModeStrict, nil
	}
	return FacetModeParity, fmt.Errorf("unknown facet mode %q", raw)
}

func (m FacetMode) String() string {
	if m == FacetModeStrict {
		return "strict"
	}
	return "parity"
}

// DateRange bounds are inclusive calendar dates. It only applies when
// both bounds are set.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) Active() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// ParseDateRange validates raw form input ("2006-01-02"). Both empty means
// no range; one bound alone, an unparsable bound or start after end is
// rejected.
func ParseDateRange(start, end string) (DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return DateRange{}, nil
	}
	if start == "" || end == "" {
		return DateRange{}, fmt.Errorf("%w: both start and end are required", ErrInvalidDateRange)
	}
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidDateRange, start)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidDateRange, end)
	}
	if s.After(e) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidDateRange, start, end)
	}
	return DateRange{Start: s, End: e}, nil
}

// Spec is the set of user selections applied to both tables. Shifts only
// narrows production rows; Statuses and Severities only narrow
// nonconformity rows.
type Spec struct {
	Dates      DateRange `json:"dates"`
	Shifts     []string  `json:"shifts"`
	Statuses   []string  `json:"statuses"`
	Severities []string  `json:"severities"`
}

// Engine applies a Spec. It holds no table state, so one Engine can be
// shared by every session.
type Engine struct {
	mode FacetMode
}

func New(mode FacetMode) *Engine {
	return &Engine{mode: mode}
}

func (e *Engine) Mode() FacetMode { return e.mode }

// Production returns the production rows matching spec. The result is a
// new slice; records is never modified.
func (e *Engine) Production(records []models.ProductionRecord, spec Spec) []models.ProductionRecord {
	preds := []func(models.ProductionRecord) bool{
		datePredicate[models.ProductionRecord](spec.Dates),
		facetPredicate(e.mode, records, spec.Shifts, func(r models.ProductionRecord) string { return r.Shift }),
	}
	return apply(records, preds)
}

// Nonconformities returns the nonconformity rows matching spec.
func (e *Engine) Nonconformities(records []models.NonconformityRecord, spec Spec) []models.NonconformityRecord {
	preds := []func(models.NonconformityRecord) bool{
		datePredicate[models.NonconformityRecord](spec.Dates),
		facetPredicate(e.mode, records, spec.Statuses, func(r models.NonconformityRecord) string { return r.Status }),
		facetPredicate(e.mode, records, spec.Severities, func(r models.NonconformityRecord) string { return string(r.Severity) }),
	}
	return apply(records, preds)
}

type dated interface {
	RecordDate() time.Time
}

func datePredicate[T dated](r DateRange) func(T) bool {
	if !r.Active() {
		return nil
	}
	return func(rec T) bool { return r.Contains(rec.RecordDate()) }
}

// facetPredicate returns nil when the facet does not filter. Distinct
// values are taken from the unfiltered column in all.
func facetPredicate[T any](mode FacetMode, all []T, selected []string, value func(T) string) func(T) bool {
	want := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		want[s] = struct{}{}
	}

	switch mode {
	case FacetModeStrict:
		if len(want) == 0 {
			return func(T) bool { return false }
		}
	default:
		if len(want) == 0 {
			return nil
		}
		distinct := Distinct(all, value)
		present := 0
		for _, v := range distinct {
			if _, ok := want[v]; ok {
				present++
			}
		}
		// Values absent from the column do not count toward "all selected".
		if present == len(distinct) {
			return nil
		}
	}
	return func(rec T) bool {
		_, ok := want[value(rec)]
		return ok
	}
}

func apply[T any](records []T, preds []func(T) bool) []T {
	out := make([]T, 0, len(records))
next:
	for _, rec := range records {
		for _, p := range preds {
			if p != nil && !p(rec) {
				continue next
			}
		}
		out = append(out, rec)
	}
	return out
}

// Distinct returns the distinct values of a column in first-seen order.
func Distinct[T any](records []T, value func(T) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range records {
		v := value(rec)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
