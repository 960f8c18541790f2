package exports

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	sessioncontext "kpidashboard/frontend/shared/context"
	"kpidashboard/infrastructure/audit"
	"kpidashboard/infrastructure/pipeline"
	"kpidashboard/infrastructure/sqlite"
)

const (
	exportNonconformitiesCSV   = "nonconformities_csv"
	exportProductionMonthlyCSV = "production_monthly_csv"
	exportQualityReportPDF     = "quality_report_pdf"
	exportHoldTagPDF           = "hold_tag_pdf"
)

func NonconformitiesCSVHandler(p *pipeline.Pipeline, db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		res := p.Run(s)
		var buf bytes.Buffer
		if err := writeNonconformitiesCSV(&buf, res.Quality.Annotated); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=nonconformities.csv")
		_, _ = w.Write(buf.Bytes())
		recordExportRun(r, db, auditSvc, s.ID, exportNonconformitiesCSV)
	}
}

func ProductionMonthlyCSVHandler(p *pipeline.Pipeline, db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		prod := p.Run(s).Production
		var buf bytes.Buffer
		if err := writeProductionMonthlyCSV(&buf, prod.PlannedVsProduced, prod.Downtime, prod.MonthlyKPIs); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=production-monthly.csv")
		_, _ = w.Write(buf.Bytes())
		recordExportRun(r, db, auditSvc, s.ID, exportProductionMonthlyCSV)
	}
}

func QualityReportPDFHandler(p *pipeline.Pipeline, db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		pdfBytes, err := renderQualityReportPDF(p.Run(s), time.Now())
		if err != nil {
			slog.Error("render quality report failed", slog.Any("err", err))
			http.Error(w, "failed to render report", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename=quality-report.pdf")
		_, _ = w.Write(pdfBytes)
		recordExportRun(r, db, auditSvc, s.ID, exportQualityReportPDF)
	}
}

func HoldTagPDFHandler(p *pipeline.Pipeline, db *sqlite.DB, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		record, found := p.Record(id)
		if !found {
			http.Error(w, "nonconformity not found", http.StatusNotFound)
			return
		}
		// Rows outside the current selection have no annotation in view.
		action, err := p.Action(s, id)
		if err != nil {
			action = ""
		}
		pdfBytes, err := renderHoldTagPDF(HoldTagData{Record: record, CorrectiveAction: action}, time.Now())
		if err != nil {
			slog.Error("render hold tag failed", slog.String("id", id), slog.Any("err", err))
			http.Error(w, "failed to render hold tag", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename=hold-tag-"+sanitizeFilename(id)+".pdf")
		_, _ = w.Write(pdfBytes)
		recordExportRun(r, db, auditSvc, s.ID, exportHoldTagPDF)
	}
}

func recordExportRun(r *http.Request, db *sqlite.DB, auditSvc *audit.Service, sessionID, exportType string) {
	if db == nil || auditSvc == nil {
		return
	}
	if err := auditSvc.RecordExport(r.Context(), db, sessionID, exportType); err != nil {
		slog.Error("record export run failed", slog.String("type", exportType), slog.Any("err", err))
	}
}

func sanitizeFilename(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, v)
}
