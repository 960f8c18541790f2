package exports

import (
	"encoding/csv"
	"io"
	"strconv"

	"kpidashboard/infrastructure/aggregate"
	"kpidashboard/models"
)

var nonconformityHeader = []string{"id", "date", "status", "severity", "type_nonconformity", "product", "customer", "corrective_action"}

func writeNonconformitiesCSV(w io.Writer, rows []models.AnnotatedNonconformity) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(nonconformityHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.ID,
			r.Date.Format("2006-01-02"),
			r.Status,
			string(r.Severity),
			r.Type,
			r.Product,
			r.Customer,
			r.CorrectiveAction,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// writeProductionMonthlyCSV joins the monthly sums and KPI means on the
// month bucket. The three series share buckets because they come from the
// same filtered rows.
func writeProductionMonthlyCSV(w io.Writer, sums, downtime, means []aggregate.MonthlyRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	sumFields := []string{aggregate.PlannedQuantity.Name, aggregate.ProducedQuantity.Name}
	downtimeFields := []string{aggregate.DowntimeMinutes.Name, aggregate.AvailableTimeMinutes.Name}
	header := append([]string{"month"}, sumFields...)
	header = append(header, downtimeFields...)
	for _, k := range models.KPIs {
		header = append(header, "mean_"+string(k))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	byStart := func(rows []aggregate.MonthlyRow) map[int64]map[string]float64 {
		out := make(map[int64]map[string]float64, len(rows))
		for _, r := range rows {
			out[r.Bucket.Start.Unix()] = r.Values
		}
		return out
	}
	downtimeByMonth := byStart(downtime)
	meansByMonth := byStart(means)

	for _, row := range sums {
		key := row.Bucket.Start.Unix()
		record := []string{row.Bucket.Start.Format("2006-01")}
		for _, f := range sumFields {
			record = append(record, formatFloat(row.Values[f]))
		}
		for _, f := range downtimeFields {
			record = append(record, formatFloat(downtimeByMonth[key][f]))
		}
		for _, k := range models.KPIs {
			record = append(record, strconv.FormatFloat(meansByMonth[key][string(k)], 'f', 2, 64))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
