package models

import "strings"

// Severity of a nonconformity. The ranking in Severities drives sort
// order, tally default-fill and the filter options order.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// Rank returns 0 for High, 1 for Medium, 2 for Low and len(Severities)
// for anything else so unknown values sort last.
func (s Severity) Rank() int {
	for i, v := range Severities {
		if v == s {
			return i
		}
	}
	return len(Severities)
}

func (s Severity) Valid() bool {
	return s.Rank() < len(Severities)
}

func (s Severity) String() string { return string(s) }

// Color is the badge colour used by the severity cards and table.
func (s Severity) Color() string {
	switch s {
	case SeverityHigh:
		return "#e74c3c"
	case SeverityMedium:
		return "#f39c12"
	case SeverityLow:
		return "#27ae60"
	}
	return "#95a5a6"
}

// ParseSeverity matches raw case-insensitively against the known severities.
func ParseSeverity(raw string) (Severity, bool) {
	raw = strings.TrimSpace(raw)
	for _, v := range Severities {
		if strings.EqualFold(raw, string(v)) {
			return v, true
		}
	}
	return Severity(raw), false
}
