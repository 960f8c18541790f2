package aggregate

import (
	"math"
	"sort"
	"time"

	"kpidashboard/models"
)

// Dated is implemented by every record type that can be bucketed by month.
type Dated interface {
	RecordDate() time.Time
}

// MonthBucket groups rows by calendar month. Buckets order by Start,
// never by Label.
type MonthBucket struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"`
}

func BucketOf(t time.Time) MonthBucket {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return MonthBucket{Start: start, Label: start.Format("Jan 2006")}
}

// Field names a numeric column of T.
type Field[T any] struct {
	Name  string
	Value func(T) float64
}

var (
	PlannedQuantity      = Field[models.ProductionRecord]{"Planned_Quantity", func(r models.ProductionRecord) float64 { return r.PlannedQuantity }}
	ProducedQuantity     = Field[models.ProductionRecord]{"Produced_Quantity", func(r models.ProductionRecord) float64 { return r.ProducedQuantity }}
	DowntimeMinutes      = Field[models.ProductionRecord]{"Downtime_Minutes", func(r models.ProductionRecord) float64 { return r.DowntimeMinutes }}
	AvailableTimeMinutes = Field[models.ProductionRecord]{"Available_Time_Minutes", func(r models.ProductionRecord) float64 { return r.AvailableTimeMinutes }}
)

// KPIField returns the ratio column for kpi.
func KPIField(kpi models.KPI) Field[models.ProductionRecord] {
	return Field[models.ProductionRecord]{
		Name: string(kpi),
		Value: func(r models.ProductionRecord) float64 {
			v, _ := r.KPIValue(kpi)
			return v
		},
	}
}

// KPIFields returns one field per KPI in models.KPIs order.
func KPIFields() []Field[models.ProductionRecord] {
	fields := make([]Field[models.ProductionRecord], 0, len(models.KPIs))
	for _, k := range models.KPIs {
		fields = append(fields, KPIField(k))
	}
	return fields
}

// MonthlyRow holds one value per requested field for a month.
type MonthlyRow struct {
	Bucket MonthBucket        `json:"bucket"`
	Values map[string]float64 `json:"values"`
}

type MonthlyCount struct {
	Bucket MonthBucket `json:"bucket"`
	Count  int         `json:"count"`
}

type monthGroup[T any] struct {
	bucket MonthBucket
	rows   []T
}

func groupByMonth[T Dated](records []T) []monthGroup[T] {
	index := make(map[time.Time]int)
	groups := make([]monthGroup[T], 0)
	for _, rec := range records {
		b := BucketOf(rec.RecordDate())
		i, ok := index[b.Start]
		if !ok {
			i = len(groups)
			index[b.Start] = i
			groups = append(groups, monthGroup[T]{bucket: b})
		}
		groups[i].rows = append(groups[i].rows, rec)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].bucket.Start.Before(groups[j].bucket.Start) })
	return groups
}

// MonthlySums sums each field per month, chronologically.
func MonthlySums[T Dated](records []T, fields ...Field[T]) []MonthlyRow {
	groups := groupByMonth(records)
	out := make([]MonthlyRow, 0, len(groups))
	for _, g := range groups {
		row := MonthlyRow{Bucket: g.bucket, Values: make(map[string]float64, len(fields))}
		for _, f := range fields {
			var sum float64
			for _, rec := range g.rows {
				sum += f.Value(rec)
			}
			row.Values[f.Name] = sum
		}
		out = append(out, row)
	}
	return out
}

// MonthlyMean averages each field per month, rounded to 2 decimals.
func MonthlyMean[T Dated](records []T, fields ...Field[T]) []MonthlyRow {
	groups := groupByMonth(records)
	out := make([]MonthlyRow, 0, len(groups))
	for _, g := range groups {
		row := MonthlyRow{Bucket: g.bucket, Values: make(map[string]float64, len(fields))}
		for _, f := range fields {
			row.Values[f.Name] = Round2(mean(g.rows, f.Value))
		}
		out = append(out, row)
	}
	return out
}

// MonthlyCounts counts rows per month, chronologically.
func MonthlyCounts[T Dated](records []T) []MonthlyCount {
	groups := groupByMonth(records)
	out := make([]MonthlyCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, MonthlyCount{Bucket: g.bucket, Count: len(g.rows)})
	}
	return out
}

func mean[T any](rows []T, value func(T) float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += value(r)
	}
	return sum / float64(len(rows))
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
