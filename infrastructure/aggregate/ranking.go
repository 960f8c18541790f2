package aggregate

import (
	"sort"

	"kpidashboard/models"
)

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type ParetoRow struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percent    float64 `json:"percent"`
	Cumulative float64 `json:"cumulative"`
}

type SeverityCount struct {
	Severity models.Severity `json:"severity"`
	Count    int             `json:"count"`
}

// ValueCountsRanked counts distinct values, highest count first. Equal
// counts keep first-seen order.
func ValueCountsRanked[T any](records []T, value func(T) string) []CategoryCount {
	index := make(map[string]int)
	out := make([]CategoryCount, 0)
	for _, rec := range records {
		v := value(rec)
		i, ok := index[v]
		if !ok {
			i = len(out)
			index[v] = i
			out = append(out, CategoryCount{Value: v})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Pareto ranks values like ValueCountsRanked and adds each value's share
// of the total and the running share. The running share is computed from
// the running count, so the last row is exactly 100.
func Pareto[T any](records []T, value func(T) string) []ParetoRow {
	ranked := ValueCountsRanked(records, value)
	total := 0
	for _, c := range ranked {
		total += c.Count
	}
	out := make([]ParetoRow, 0, len(ranked))
	if total == 0 {
		return out
	}
	running := 0
	for _, c := range ranked {
		running += c.Count
		out = append(out, ParetoRow{
			Value:      c.Value,
			Count:      c.Count,
			Percent:    100 * float64(c.Count) / float64(total),
			Cumulative: 100 * float64(running) / float64(total),
		})
	}
	return out
}

// SeverityTally always returns one entry per models.Severities, in rank
// order, with 0 for severities that do not occur.
func SeverityTally(records []models.NonconformityRecord) []SeverityCount {
	out := make([]SeverityCount, len(models.Severities))
	for i, s := range models.Severities {
		out[i].Severity = s
	}
	for _, r := range records {
		if rank := r.Severity.Rank(); rank < len(out) {
			out[rank].Count++
		}
	}
	return out
}

// SortBySeverity returns a copy ordered High to Low, stable within a severity.
func SortBySeverity[T any](records []T, severity func(T) models.Severity) []T {
	out := make([]T, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return severity(out[i]).Rank() < severity(out[j]).Rank() })
	return out
}

func ByType(r models.NonconformityRecord) string     { return r.Type }
func ByProduct(r models.NonconformityRecord) string  { return r.Product }
func ByCustomer(r models.NonconformityRecord) string { return r.Customer }
