package models

import "testing"

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"High":    SeverityHigh,
		" medium": SeverityMedium,
		"LOW":     SeverityLow,
	}
	for raw, want := range cases {
		got, ok := ParseSeverity(raw)
		if !ok || got != want {
			t.Fatalf("ParseSeverity(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	if _, ok := ParseSeverity("Critical"); ok {
		t.Fatalf("expected Critical to be rejected")
	}
}

func TestSeverityRankOrdersHighFirst(t *testing.T) {
	if !(SeverityHigh.Rank() < SeverityMedium.Rank() && SeverityMedium.Rank() < SeverityLow.Rank()) {
		t.Fatalf("unexpected ranking: high=%d medium=%d low=%d", SeverityHigh.Rank(), SeverityMedium.Rank(), SeverityLow.Rank())
	}
	if Severity("Other").Rank() != len(Severities) {
		t.Fatalf("unknown severity should rank last")
	}
}
