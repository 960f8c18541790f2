package nav

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"kpidashboard/infrastructure/dataset"
)

const (
	TabProduction = "production"
	TabQuality    = "quality"
)

// TopNavData is shared with page renderers.
type TopNavData struct {
	Active  string
	Summary dataset.Summary
	// Exports counts recorded downloads across all export types.
	Exports int
}

func BuildTopNavData(tab string, summary dataset.Summary, exportCounts map[string]int) TopNavData {
	total := 0
	for _, n := range exportCounts {
		total += n
	}
	return TopNavData{Active: NormalizeTab(tab), Summary: summary, Exports: total}
}

// NormalizeTab maps unknown tab names to the production tab.
func NormalizeTab(tab string) string {
	if tab == TabQuality {
		return TabQuality
	}
	return TabProduction
}

func TopNav(data TopNavData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		link := func(tab, label string) string {
			class := "tab"
			if data.Active == tab {
				class += " tab-active"
			}
			return fmt.Sprintf(`<a class="%s" href="/dashboard?tab=%s">%s</a>`, class, tab, templ.EscapeString(label))
		}
		span := "no data"
		if !data.Summary.From.IsZero() {
			span = data.Summary.From.Format("02/01/2006") + " - " + data.Summary.To.Format("02/01/2006")
		}
		_, err := fmt.Fprintf(w,
			`<nav class="topnav"><span class="brand">KPI Dashboard</span><div class="tabs">%s%s</div>`+
				`<span class="data-span">%d production rows, %d nonconformities (%s), %d exports</span></nav>`,
			link(TabProduction, "Production"),
			link(TabQuality, "Quality Control"),
			data.Summary.ProductionRows,
			data.Summary.NonconformityRows,
			templ.EscapeString(span),
			data.Exports,
		)
		return err
	})
}
