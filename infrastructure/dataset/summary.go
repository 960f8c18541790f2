package dataset

import (
	"log/slog"
	"time"
)

// Summary describes what was loaded, for the startup log line.
type Summary struct {
	ProductionRows    int
	NonconformityRows int
	From              time.Time
	To                time.Time
}

func (d *Datasets) Summary() Summary {
	s := Summary{ProductionRows: len(d.Production), NonconformityRows: len(d.Nonconformities)}
	span := func(t time.Time) {
		if s.From.IsZero() || t.Before(s.From) {
			s.From = t
		}
		if t.After(s.To) {
			s.To = t
		}
	}
	for _, r := range d.Production {
		span(r.Date)
	}
	for _, r := range d.Nonconformities {
		span(r.Date)
	}
	return s
}

func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("production_rows", s.ProductionRows),
		slog.Int("nonconformity_rows", s.NonconformityRows),
		slog.String("from", s.From.Format("2006-01-02")),
		slog.String("to", s.To.Format("2006-01-02")),
	)
}
