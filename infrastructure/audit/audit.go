package audit

import (
	"context"
	"encoding/json"

	"github.com/uptrace/bun"

	"kpidashboard/infrastructure/sqlite"
	"kpidashboard/models"
)

const (
	ActionCorrectiveSet   = "corrective_action.set"
	ActionCorrectiveClear = "corrective_action.clear"

	EntityNonconformity = "nonconformity"
)

// Service writes audit records inside the caller transaction.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Write(ctx context.Context, tx bun.Tx, sessionID, action, entityType, entityID string, before, after any) error {
	beforeJSON, err := marshal(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshal(after)
	if err != nil {
		return err
	}
	log := &models.AuditLog{
		SessionID:  sessionID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
	}
	_, err = tx.NewInsert().Model(log).Exec(ctx)
	return err
}

// RecordExport notes a download in export_runs.
func (s *Service) RecordExport(ctx context.Context, db *sqlite.DB, sessionID, exportType string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&models.ExportRun{
			SessionID:  sessionID,
			ExportType: exportType,
		}).Exec(ctx)
		return err
	})
}

// History returns the journal for one entity, newest first. A limit <= 0
// returns every entry.
func History(ctx context.Context, db *sqlite.DB, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	rows := make([]models.AuditLog, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&rows).
			Where("al.entity_type = ?", entityType).
			Where("al.entity_id = ?", entityID).
			OrderExpr("al.id DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExportCounts returns the number of recorded downloads per export type.
func ExportCounts(ctx context.Context, db *sqlite.DB) (map[string]int, error) {
	type row struct {
		ExportType string `bun:"export_type"`
		Total      int    `bun:"total"`
	}
	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT export_type, COUNT(*) AS total FROM export_runs GROUP BY export_type`).Scan(ctx, &rows)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ExportType] = r.Total
	}
	return out, nil
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
