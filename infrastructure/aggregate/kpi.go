package aggregate

import (
	"sort"
	"time"

	"kpidashboard/models"
)

// Gauge feeds the half-donut indicator of one KPI.
type Gauge struct {
	KPI       models.KPI `json:"kpi"`
	Value     float64    `json:"value"`
	Goal      float64    `json:"goal"`
	Color     string     `json:"color"`
	MeetsGoal bool       `json:"meets_goal"`
}

type TrendPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Trend is the time series of one KPI with its goal line.
type Trend struct {
	KPI    models.KPI   `json:"kpi"`
	Goal   float64      `json:"goal"`
	Points []TrendPoint `json:"points"`
}

// Means returns the mean of each KPI over records, rounded to 2 decimals.
// No rows yields 0 for every KPI.
func Means(records []models.ProductionRecord, kpis ...models.KPI) map[models.KPI]float64 {
	if len(kpis) == 0 {
		kpis = models.KPIs
	}
	out := make(map[models.KPI]float64, len(kpis))
	for _, k := range kpis {
		out[k] = Round2(mean(records, KPIField(k).Value))
	}
	return out
}

// Gauges returns one gauge per KPI in models.KPIs order. KPIs missing
// from goals fall back to models.DefaultGoals.
func Gauges(records []models.ProductionRecord, goals map[models.KPI]float64) []Gauge {
	means := Means(records)
	out := make([]Gauge, 0, len(models.KPIs))
	for _, k := range models.KPIs {
		goal, ok := goals[k]
		if !ok {
			goal = models.DefaultGoals[k]
		}
		out = append(out, Gauge{
			KPI:       k,
			Value:     means[k],
			Goal:      goal,
			Color:     k.Color(),
			MeetsGoal: len(records) > 0 && means[k] >= goal,
		})
	}
	return out
}

// KPITrend returns the KPI value of every row ordered by date. Rows on the
// same date keep their input order.
func KPITrend(records []models.ProductionRecord, kpi models.KPI, goal float64) Trend {
	points := make([]TrendPoint, 0, len(records))
	for _, r := range records {
		v, ok := r.KPIValue(kpi)
		if !ok {
			continue
		}
		points = append(points, TrendPoint{Date: r.Date, Value: v})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return Trend{KPI: kpi, Goal: goal, Points: points}
}
