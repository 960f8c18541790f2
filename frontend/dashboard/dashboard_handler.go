package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	sessioncontext "kpidashboard/frontend/shared/context"
	"kpidashboard/frontend/shared/nav"
	"kpidashboard/infrastructure/audit"
	"kpidashboard/infrastructure/filter"
	"kpidashboard/infrastructure/pipeline"
	"kpidashboard/infrastructure/sqlite"
	"kpidashboard/models"
)

const historyLimit = 10

func DashboardPageQueryHandler(p *pipeline.Pipeline, db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		tab := nav.NormalizeTab(r.URL.Query().Get("tab"))
		res := p.Run(s)

		var exportCounts map[string]int
		if db != nil {
			counts, err := audit.ExportCounts(r.Context(), db)
			if err != nil {
				slog.Error("load export counts failed", slog.Any("err", err))
			}
			exportCounts = counts
		}

		data := PageData{
			Nav:          nav.BuildTopNavData(tab, p.Summary(), exportCounts),
			Status:       strings.TrimSpace(r.URL.Query().Get("status")),
			Options:      p.Options(),
			Filters:      filterForm(res.Filters),
			StrictFacets: p.FacetMode() == filter.FacetModeStrict,
			Result:       res,
			Selected:     selectedAction(res, strings.TrimSpace(r.URL.Query().Get("id"))),
		}
		if db != nil && data.Selected.ID != "" {
			history, err := loadHistory(r, db, data.Selected.ID)
			if err != nil {
				slog.Error("load corrective action history failed", slog.String("id", data.Selected.ID), slog.Any("err", err))
			}
			data.History = history
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := DashboardPage(data).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
			return
		}
	}
}

func UpdateFiltersCommandHandler(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		tab := nav.NormalizeTab(r.FormValue("tab"))

		if r.FormValue("reset") != "" {
			p.SetFilters(s, p.DefaultFilters())
			redirect(w, r, tab, "", "Filters reset")
			return
		}

		dates, err := filter.ParseDateRange(r.FormValue("start"), r.FormValue("end"))
		if err != nil {
			redirect(w, r, tab, "", "Invalid date range")
			return
		}
		p.SetFilters(s, filter.Spec{
			Dates:      dates,
			Shifts:     formValues(r, "shift"),
			Statuses:   formValues(r, "status"),
			Severities: formValues(r, "severity"),
		})
		redirect(w, r, tab, "", "Filters applied")
	}
}

func SelectKPICommandHandler(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		if err := p.SetKPI(s, models.KPI(r.FormValue("kpi"))); err != nil {
			redirect(w, r, nav.TabProduction, "", "Unknown KPI")
			return
		}
		redirect(w, r, nav.TabProduction, "", "")
	}
}

func SubmitActionCommandHandler(p *pipeline.Pipeline, db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		id := strings.TrimSpace(r.FormValue("id"))
		text := strings.TrimSpace(r.FormValue("text"))
		if id == "" {
			redirect(w, r, nav.TabQuality, "", "Select a nonconformity first")
			return
		}

		err := p.SubmitAction(r.Context(), s, id, text, db)
		if errors.Is(err, pipeline.ErrUnknownNonconformity) {
			redirect(w, r, nav.TabQuality, "", "Nonconformity "+id+" is not in the current selection")
			return
		}
		if err != nil {
			slog.Error("submit corrective action failed", slog.String("id", id), slog.String("session_id", s.ID), slog.Any("err", err))
			http.Error(w, "failed to save corrective action", http.StatusInternalServerError)
			return
		}
		slog.Info("corrective action saved", slog.String("id", id), slog.String("session_id", s.ID))
		redirect(w, r, nav.TabQuality, id, "Successfully saved!")
	}
}

func DashboardJSONQueryHandler(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok {
			http.Error(w, "session missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(APIResponse{Options: p.Options(), Result: p.Run(s)}); err != nil {
			slog.Error("encode dashboard json failed", slog.Any("err", err))
		}
	}
}

func redirect(w http.ResponseWriter, r *http.Request, tab, id, status string) {
	q := url.Values{}
	q.Set("tab", tab)
	if id != "" {
		q.Set("id", id)
	}
	if status != "" {
		q.Set("status", status)
	}
	http.Redirect(w, r, "/dashboard?"+q.Encode(), http.StatusSeeOther)
}

func formValues(r *http.Request, key string) []string {
	out := make([]string, 0, len(r.Form[key]))
	for _, v := range r.Form[key] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func filterForm(spec filter.Spec) FilterForm {
	f := FilterForm{
		Shifts:     spec.Shifts,
		Statuses:   spec.Statuses,
		Severities: spec.Severities,
	}
	if spec.Dates.Active() {
		f.Start = spec.Dates.Start.Format("2006-01-02")
		f.End = spec.Dates.End.Format("2006-01-02")
	}
	return f
}

// selectedAction resolves the id shown in the action editor, falling back
// to the first row of the view.
func selectedAction(res pipeline.Result, id string) SelectedAction {
	rows := res.Quality.Annotated
	for _, r := range rows {
		if r.ID == id {
			return SelectedAction{ID: r.ID, Text: r.CorrectiveAction}
		}
	}
	if len(rows) == 0 {
		return SelectedAction{}
	}
	return SelectedAction{ID: rows[0].ID, Text: rows[0].CorrectiveAction}
}

func loadHistory(r *http.Request, db *sqlite.DB, id string) ([]HistoryEntry, error) {
	logs, err := audit.History(r.Context(), db, audit.EntityNonconformity, id, historyLimit)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(logs))
	for _, l := range logs {
		var after struct {
			CorrectiveAction string `json:"corrective_action"`
		}
		if l.AfterJSON != "" {
			if err := json.Unmarshal([]byte(l.AfterJSON), &after); err != nil {
				slog.Warn("malformed audit payload", slog.Int64("audit_id", l.ID), slog.Any("err", err))
			}
		}
		out = append(out, HistoryEntry{
			At:     l.CreatedAt.Format("02/01/2006 15:04"),
			Action: l.Action,
			Text:   after.CorrectiveAction,
		})
	}
	return out, nil
}
