package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"kpidashboard/frontend/shared/html"
	"kpidashboard/frontend/shared/nav"
	"kpidashboard/models"
)

// htmlWriter keeps the first write error so view code can stay linear.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) printf(format string, args ...any) {
	if h.err == nil {
		_, h.err = fmt.Fprintf(h.w, format, args...)
	}
}

func (h *htmlWriter) component(ctx context.Context, c templ.Component) {
	if h.err == nil {
		h.err = c.Render(ctx, h.w)
	}
}

func DashboardPage(data PageData) templ.Component {
	return html.Layout("KPI Dashboard", dashboardBody(data))
}

func dashboardBody(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.component(ctx, nav.TopNav(data.Nav))
		h.raw(`<div class="layout">`)
		filterSidebar(h, data)
		h.raw(`<main class="content">`)
		if data.Status != "" {
			h.raw(`<div class="alert" role="status">`)
			h.text(data.Status)
			h.raw(`</div>`)
		}
		if data.Nav.Active == nav.TabQuality {
			qualityTab(h, data)
		} else {
			productionTab(h, data)
		}
		h.raw(`</main></div>`)
		h.component(ctx, templ.JSONScript("dashboard-data", data.Result))
		return h.err
	})
}

func filterSidebar(h *htmlWriter, data PageData) {
	h.raw(`<aside class="sidebar"><form method="post" action="/dashboard/filters">`)
	h.printf(`<input type="hidden" name="tab" value="%s">`, templ.EscapeString(data.Nav.Active))
	h.raw(`<h2>Filters</h2><label>Start date<input type="date" name="start" value="`)
	h.text(data.Filters.Start)
	h.raw(`"></label><label>End date<input type="date" name="end" value="`)
	h.text(data.Filters.End)
	h.raw(`"></label>`)

	checkboxGroup(h, data, "Shift", "shift", data.Options.Shifts, data.Filters.Shifts)
	checkboxGroup(h, data, "Status", "status", data.Options.Statuses, data.Filters.Statuses)
	severities := make([]string, len(data.Options.Severities))
	for i, s := range data.Options.Severities {
		severities[i] = string(s)
	}
	checkboxGroup(h, data, "Severity", "severity", severities, data.Filters.Severities)

	h.raw(`<div class="actions"><button class="btn btn-primary" type="submit">Apply</button>` +
		`<button class="btn" type="submit" name="reset" value="1">Reset</button></div></form>`)
	h.raw(`<h2>Exports</h2><ul class="exports">` +
		`<li><a href="/exports/nonconformities.csv">Nonconformities CSV</a></li>` +
		`<li><a href="/exports/production-monthly.csv">Monthly production CSV</a></li>` +
		`<li><a href="/exports/quality-report.pdf">Quality report PDF</a></li></ul></aside>`)
}

func checkboxGroup(h *htmlWriter, data PageData, legend, name string, options, selected []string) {
	h.raw(`<fieldset><legend>`)
	h.text(legend)
	h.raw(`</legend>`)
	for _, v := range options {
		checked := ""
		if data.Checked(selected, v) {
			checked = " checked"
		}
		h.printf(`<label class="check"><input type="checkbox" name="%s" value="%s"%s>%s</label>`,
			name, templ.EscapeString(v), checked, templ.EscapeString(v))
	}
	h.raw(`</fieldset>`)
}

func productionTab(h *htmlWriter, data PageData) {
	prod := data.Result.Production
	h.raw(`<section class="tab-panel" id="production"><h1>Production</h1>`)
	h.printf(`<p class="muted">%d production records in view</p>`, prod.Rows)

	h.raw(`<div class="grid gauges">`)
	for _, g := range prod.Gauges {
		state := "below-goal"
		if g.MeetsGoal {
			state = "meets-goal"
		}
		h.printf(`<div class="card gauge %s"><canvas id="gauge-%s" class="gauge-canvas"></canvas>`+
			`<div class="gauge-label">%s <strong>%s</strong> (goal %s)</div></div>`,
			state, g.KPI, templ.EscapeString(string(g.KPI)), percent(g.Value), percent(g.Goal))
	}
	h.raw(`</div>`)

	h.raw(`<div class="grid two">`)
	h.raw(`<div class="card"><h3>Planned vs Produced Quantity</h3><canvas id="chart-planned"></canvas></div>`)
	h.raw(`<div class="card"><h3>Downtime vs Available Time (min)</h3><canvas id="chart-downtime"></canvas></div>`)
	h.raw(`</div>`)

	h.raw(`<div class="card"><div class="card-head"><h3>KPI Tendency</h3>` +
		`<form method="post" action="/dashboard/kpi" class="inline"><select name="kpi" onchange="this.form.submit()">`)
	for _, k := range models.KPIs {
		selected := ""
		if k == data.Result.KPI {
			selected = " selected"
		}
		h.printf(`<option value="%s"%s>%s</option>`, k, selected, k)
	}
	h.raw(`</select><noscript><button class="btn" type="submit">Show</button></noscript></form></div>` +
		`<canvas id="chart-trend"></canvas></div>`)

	h.raw(`<div class="card"><h3>Monthly KPI averages</h3><canvas id="chart-monthly-kpis"></canvas>`)
	h.raw(`<table class="table"><thead><tr><th>Month</th>`)
	for _, k := range models.KPIs {
		h.printf(`<th>%s</th>`, k)
	}
	h.raw(`</tr></thead><tbody>`)
	for _, row := range prod.MonthlyKPIs {
		h.raw(`<tr><td>`)
		h.text(row.Bucket.Label)
		h.raw(`</td>`)
		for _, k := range models.KPIs {
			h.printf(`<td>%s</td>`, strconv.FormatFloat(row.Values[string(k)], 'f', 2, 64))
		}
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table></div></section>`)
}

func qualityTab(h *htmlWriter, data PageData) {
	q := data.Result.Quality
	h.raw(`<section class="tab-panel" id="quality"><h1>Quality Control</h1>`)

	h.raw(`<div class="grid three">`)
	h.raw(`<div class="card"><h3>Nonconformities per month</h3><canvas id="chart-occurrences"></canvas></div>`)
	h.raw(`<div class="card"><h3>Nonconformities by Severity</h3>`)
	for _, s := range q.Severity {
		h.printf(`<div class="metric" style="border-left-color:%s"><span>%s Severity</span><strong>%d</strong></div>`,
			s.Severity.Color(), templ.EscapeString(string(s.Severity)), s.Count)
	}
	h.raw(`</div>`)
	h.raw(`<div class="card"><h3>Nonconformities by Product</h3><canvas id="chart-products"></canvas></div>`)
	h.raw(`</div>`)

	h.raw(`<div class="grid two">`)
	h.raw(`<div class="card"><h3>Pareto by Type</h3><canvas id="chart-pareto"></canvas></div>`)
	h.raw(`<div class="card"><h3>Occurrences by Customer</h3><canvas id="chart-customers"></canvas></div>`)
	h.raw(`</div>`)

	h.raw(`<div class="card"><h3>Nonconformities by severity</h3><table class="table"><thead><tr>` +
		`<th>ID</th><th>Date</th><th>Status</th><th>Severity</th><th>Type</th><th>Product</th><th>Customer</th>` +
		`</tr></thead><tbody>`)
	for _, r := range q.BySeverity {
		h.raw(`<tr>`)
		cell(h, r.ID)
		cell(h, r.Date.Format("2006-01-02"))
		cell(h, r.Status)
		h.printf(`<td class="severity severity-%s">%s</td>`, r.Severity, templ.EscapeString(string(r.Severity)))
		cell(h, r.Type)
		cell(h, r.Product)
		cell(h, r.Customer)
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table></div>`)

	actionEditor(h, data)

	h.raw(`<div class="card"><h3>Nonconformities with Corrective Action</h3><table class="table"><thead><tr>` +
		`<th>ID</th><th>Date</th><th>Status</th><th>Severity</th><th>Type</th><th>Product</th><th>Customer</th><th>Corrective Action</th><th></th>` +
		`</tr></thead><tbody>`)
	for _, r := range q.Annotated {
		h.raw(`<tr>`)
		cell(h, r.ID)
		cell(h, r.Date.Format("2006-01-02"))
		cell(h, r.Status)
		cell(h, string(r.Severity))
		cell(h, r.Type)
		cell(h, r.Product)
		cell(h, r.Customer)
		cell(h, r.CorrectiveAction)
		h.printf(`<td><a href="/exports/nonconformities/%s/tag.pdf">Hold tag</a></td>`, templ.EscapeString(url.PathEscape(r.ID)))
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table></div></section>`)
}

func actionEditor(h *htmlWriter, data PageData) {
	h.raw(`<div class="card" id="corrective-action"><h3>Add Corrective Action</h3>`)
	if len(data.Result.Quality.IDs) == 0 {
		h.raw(`<p class="muted">No nonconformities in the current selection.</p></div>`)
		return
	}

	h.raw(`<form method="get" action="/dashboard" class="inline"><input type="hidden" name="tab" value="quality">` +
		`<label>Select ID: <select name="id" onchange="this.form.submit()">`)
	for _, id := range data.Result.Quality.IDs {
		selected := ""
		if id == data.Selected.ID {
			selected = " selected"
		}
		h.printf(`<option value="%s"%s>%s</option>`, templ.EscapeString(id), selected, templ.EscapeString(id))
	}
	h.raw(`</select></label><noscript><button class="btn" type="submit">Select</button></noscript></form>`)

	h.raw(`<form method="post" action="/dashboard/actions">`)
	h.printf(`<input type="hidden" name="id" value="%s">`, templ.EscapeString(data.Selected.ID))
	h.raw(`<label>Describe Corrective Action:<textarea name="text" rows="4">`)
	h.text(data.Selected.Text)
	h.raw(`</textarea></label><button class="btn btn-primary" type="submit">Submit Action</button></form>`)

	if len(data.History) > 0 {
		h.raw(`<h4>History</h4><ul class="history">`)
		for _, e := range data.History {
			h.raw(`<li><span class="muted">`)
			h.text(e.At)
			h.raw(`</span> `)
			if e.Text == "" {
				h.raw(`<em>cleared</em>`)
			} else {
				h.text(e.Text)
			}
			h.raw(`</li>`)
		}
		h.raw(`</ul>`)
	}
	h.raw(`</div>`)
}

func cell(h *htmlWriter, v string) {
	h.raw(`<td>`)
	h.text(v)
	h.raw(`</td>`)
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 0, 64) + "%"
}
