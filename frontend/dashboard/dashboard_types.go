package dashboard

import (
	"slices"

	"kpidashboard/frontend/shared/nav"
	"kpidashboard/infrastructure/pipeline"
)

type PageData struct {
	Nav          nav.TopNavData
	Status       string
	Options      pipeline.Options
	Filters      FilterForm
	StrictFacets bool
	Result       pipeline.Result
	Selected     SelectedAction
	History      []HistoryEntry
}

// FilterForm is the sidebar state echoed back into the form.
type FilterForm struct {
	Start      string
	End        string
	Shifts     []string
	Statuses   []string
	Severities []string
}

type SelectedAction struct {
	ID   string
	Text string
}

type HistoryEntry struct {
	At     string
	Action string
	Text   string
}

// Checked reports whether option v is ticked. An empty selection in parity
// mode means every option is in effect.
func (d PageData) Checked(selected []string, v string) bool {
	if len(selected) == 0 {
		return !d.StrictFacets
	}
	return slices.Contains(selected, v)
}

// APIResponse is the JSON body of the dashboard API.
type APIResponse struct {
	Options pipeline.Options `json:"options"`
	Result  pipeline.Result  `json:"result"`
}
