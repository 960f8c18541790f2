package http

import (
	"github.com/go-chi/chi/v5"

	"kpidashboard/frontend/dashboard"
	exportspage "kpidashboard/frontend/exports"
)

// RegisterDashboardRoutes registers the dashboard page and its commands.
func (s *Server) RegisterDashboardRoutes(r chi.Router) {
	r.Get("/dashboard", dashboard.DashboardPageQueryHandler(s.Pipeline, s.DB))
	r.Post("/dashboard/filters", dashboard.UpdateFiltersCommandHandler(s.Pipeline))
	r.Post("/dashboard/kpi", dashboard.SelectKPICommandHandler(s.Pipeline))
	r.Post("/dashboard/actions", dashboard.SubmitActionCommandHandler(s.Pipeline, s.DB))
	r.Get("/api/dashboard", dashboard.DashboardJSONQueryHandler(s.Pipeline))
}

func (s *Server) RegisterExportRoutes(r chi.Router) {
	r.Get("/exports/nonconformities.csv", exportspage.NonconformitiesCSVHandler(s.Pipeline, s.DB, s.Audit))
	r.Get("/exports/production-monthly.csv", exportspage.ProductionMonthlyCSVHandler(s.Pipeline, s.DB, s.Audit))
	r.Get("/exports/quality-report.pdf", exportspage.QualityReportPDFHandler(s.Pipeline, s.DB, s.Audit))
	r.Get("/exports/nonconformities/{id}/tag.pdf", exportspage.HoldTagPDFHandler(s.Pipeline, s.DB, s.Audit))
}
