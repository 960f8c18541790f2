package filter

import (
	"errors"
	"testing"
	"time"

	"kpidashboard/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleProduction() []models.ProductionRecord {
	return []models.ProductionRecord{
		{Date: day(2025, 1, 1), Shift: "Morning", PlannedQuantity: 10},
		{Date: day(2025, 1, 15), Shift: "Afternoon", PlannedQuantity: 20},
		{Date: day(2025, 2, 1), Shift: "Night", PlannedQuantity: 30},
		{Date: day(2025, 2, 20), Shift: "Morning", PlannedQuantity: 40},
	}
}

func sampleNonconformities() []models.NonconformityRecord {
	return []models.NonconformityRecord{
		{ID: "1", Date: day(2025, 1, 2), Status: "Open", Severity: models.SeverityHigh},
		{ID: "2", Date: day(2025, 1, 20), Status: "Closed", Severity: models.SeverityLow},
		{ID: "3", Date: day(2025, 2, 3), Status: "Open", Severity: models.SeverityMedium},
		{ID: "4", Date: day(2025, 3, 1), Status: "In Progress", Severity: models.SeverityLow},
	}
}

func ids(rows []models.NonconformityRecord) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParity_AllSelectedEqualsNoneSelected(t *testing.T) {
	e := New(FacetModeParity)
	rows := sampleNonconformities()

	none := e.Nonconformities(rows, Spec{})
	all := e.Nonconformities(rows, Spec{
		Statuses:   []string{"Open", "Closed", "In Progress"},
		Severities: []string{"High", "Medium", "Low"},
	})
	if !equalStrings(ids(none), ids(all)) || len(all) != len(rows) {
		t.Fatalf("expected all == none == full table, got none=%v all=%v", ids(none), ids(all))
	}

	prodAll := e.Production(sampleProduction(), Spec{Shifts: []string{"Night", "Morning", "Afternoon"}})
	if len(prodAll) != 4 {
		t.Fatalf("expected all shifts to leave production untouched, got %d rows", len(prodAll))
	}
}

func TestParity_SubsetFilters(t *testing.T) {
	e := New(FacetModeParity)
	got := e.Nonconformities(sampleNonconformities(), Spec{Statuses: []string{"Open"}})
	if !equalStrings(ids(got), []string{"1", "3"}) {
		t.Fatalf("unexpected rows: %v", ids(got))
	}

	prod := e.Production(sampleProduction(), Spec{Shifts: []string{"Morning"}})
	if len(prod) != 2 || prod[0].PlannedQuantity != 10 || prod[1].PlannedQuantity != 40 {
		t.Fatalf("unexpected production rows: %+v", prod)
	}
}

func TestParity_DuplicateSelectionsCountOnce(t *testing.T) {
	e := New(FacetModeParity)
	// Three entries but only two distinct values out of three: still a filter.
	got := e.Nonconformities(sampleNonconformities(), Spec{Statuses: []string{"Open", "Open", "Closed"}})
	if !equalStrings(ids(got), []string{"1", "2", "3"}) {
		t.Fatalf("unexpected rows: %v", ids(got))
	}
}

func TestParity_UnknownValuesDoNotDisableFilter(t *testing.T) {
	e := New(FacetModeParity)
	rows := sampleNonconformities()

	got := e.Nonconformities(rows, Spec{Statuses: []string{"Open", "Closed", "Bogus"}})
	if want := []string{"1", "2", "3"}; !equalStrings(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}

	got = e.Nonconformities(rows, Spec{Statuses: []string{"Bogus"}})
	if len(got) != 0 {
		t.Fatalf("expected no rows for an unknown value, got %v", ids(got))
	}

	got = e.Nonconformities(rows, Spec{Statuses: []string{"Open", "Closed", "In Progress", "Bogus"}})
	if len(got) != len(rows) {
		t.Fatalf("every real value selected must not filter, got %v", ids(got))
	}
}

func TestStrict_EmptySelectionMatchesNothing(t *testing.T) {
	e := New(FacetModeStrict)
	if got := e.Nonconformities(sampleNonconformities(), Spec{}); len(got) != 0 {
		t.Fatalf("expected no rows, got %v", ids(got))
	}
	got := e.Nonconformities(sampleNonconformities(), Spec{
		Statuses:   []string{"Open", "Closed", "In Progress"},
		Severities: []string{"High", "Medium", "Low"},
	})
	if len(got) != 4 {
		t.Fatalf("expected all rows when every value is selected, got %v", ids(got))
	}
}

func TestDateRangeIsInclusiveAndCombinesWithFacets(t *testing.T) {
	e := New(FacetModeParity)
	spec := Spec{
		Dates:      DateRange{Start: day(2025, 1, 2), End: day(2025, 2, 3)},
		Severities: []string{"High", "Medium"},
	}
	got := e.Nonconformities(sampleNonconformities(), spec)
	if !equalStrings(ids(got), []string{"1", "3"}) {
		t.Fatalf("unexpected rows: %v", ids(got))
	}
}

func TestHalfOpenDateRangeDoesNotFilter(t *testing.T) {
	e := New(FacetModeParity)
	got := e.Production(sampleProduction(), Spec{Dates: DateRange{Start: day(2025, 2, 1)}})
	if len(got) != 4 {
		t.Fatalf("expected no date filtering with a single bound, got %d rows", len(got))
	}
}

func TestFilteringDoesNotMutateInput(t *testing.T) {
	e := New(FacetModeParity)
	rows := sampleNonconformities()
	before := ids(rows)

	got := e.Nonconformities(rows, Spec{Statuses: []string{"Closed"}})
	if len(got) != 1 {
		t.Fatalf("expected one row, got %v", ids(got))
	}
	got[0].ID = "changed"
	if !equalStrings(ids(rows), before) {
		t.Fatalf("input modified: %v", ids(rows))
	}
}

func TestFiltersCommute(t *testing.T) {
	e := New(FacetModeParity)
	rows := sampleNonconformities()
	dates := DateRange{Start: day(2025, 1, 1), End: day(2025, 2, 28)}

	combined := e.Nonconformities(rows, Spec{Dates: dates, Statuses: []string{"Open"}})

	// Status first (against the full table), then date.
	statusOnly := e.Nonconformities(rows, Spec{Statuses: []string{"Open"}})
	var sequential []models.NonconformityRecord
	for _, r := range statusOnly {
		if dates.Contains(r.Date) {
			sequential = append(sequential, r)
		}
	}
	if !equalStrings(ids(combined), ids(sequential)) {
		t.Fatalf("expected %v, got %v", ids(sequential), ids(combined))
	}
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2025-01-01", "2025-01-31")
	if err != nil || !r.Active() {
		t.Fatalf("expected active range, got %+v, %v", r, err)
	}
	if r, err := ParseDateRange("", ""); err != nil || r.Active() {
		t.Fatalf("expected empty inactive range, got %+v, %v", r, err)
	}
	for _, tc := range [][2]string{{"2025-01-01", ""}, {"2025-13-01", "2025-01-31"}, {"2025-02-01", "2025-01-01"}} {
		if _, err := ParseDateRange(tc[0], tc[1]); !errors.Is(err, ErrInvalidDateRange) {
			t.Fatalf("ParseDateRange(%q, %q): expected ErrInvalidDateRange, got %v", tc[0], tc[1], err)
		}
	}
}

func TestDistinctKeepsFirstSeenOrder(t *testing.T) {
	got := Distinct(sampleProduction(), func(r models.ProductionRecord) string { return r.Shift })
	if !equalStrings(got, []string{"Morning", "Afternoon", "Night"}) {
		t.Fatalf("unexpected distinct order: %v", got)
	}
}
