package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ProductionRecord is one row of the production dataset.
type ProductionRecord struct {
	Date                 time.Time `json:"date"`
	Shift                string    `json:"shift"`
	PlannedQuantity      float64   `json:"planned_quantity"`
	ProducedQuantity     float64   `json:"produced_quantity"`
	OEE                  float64   `json:"oee"`
	Performance          float64   `json:"performance"`
	Availability         float64   `json:"availability"`
	Quality              float64   `json:"quality"`
	DowntimeMinutes      float64   `json:"downtime_minutes"`
	AvailableTimeMinutes float64   `json:"available_time_minutes"`
}

func (r ProductionRecord) RecordDate() time.Time { return r.Date }

// KPIValue returns the ratio stored for kpi, or false for an unknown KPI.
func (r ProductionRecord) KPIValue(kpi KPI) (float64, bool) {
	switch kpi {
	case KPIOEE:
		return r.OEE, true
	case KPIPerformance:
		return r.Performance, true
	case KPIAvailability:
		return r.Availability, true
	case KPIQuality:
		return r.Quality, true
	}
	return 0, false
}

// NonconformityRecord is one occurrence from the nonconformity dataset.
type NonconformityRecord struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Status   string    `json:"status"`
	Severity Severity  `json:"severity"`
	Type     string    `json:"type_nonconformity"`
	Product  string    `json:"product"`
	Customer string    `json:"customer"`
}

func (r NonconformityRecord) RecordDate() time.Time { return r.Date }

// AnnotatedNonconformity is a nonconformity row merged with its corrective action.
type AnnotatedNonconformity struct {
	NonconformityRecord
	CorrectiveAction string `json:"corrective_action"`
}

// AuditLog captures the journal of corrective action submissions.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	SessionID  string    `bun:"session_id,notnull"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ExportRun records one CSV or PDF download.
type ExportRun struct {
	bun.BaseModel `bun:"table:export_runs,alias:er"`

	ID         int64     `bun:"id,pk,autoincrement"`
	SessionID  string    `bun:"session_id"`
	ExportType string    `bun:"export_type,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
