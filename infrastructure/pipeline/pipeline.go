package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"kpidashboard/infrastructure/actions"
	"kpidashboard/infrastructure/aggregate"
	"kpidashboard/infrastructure/audit"
	"kpidashboard/infrastructure/dataset"
	"kpidashboard/infrastructure/filter"
	"kpidashboard/infrastructure/sqlite"
	"kpidashboard/models"
)

var ErrUnknownNonconformity = errors.New("nonconformity not in current view")

// Pipeline turns the shared datasets into per-session dashboard results.
// It holds no session state.
type Pipeline struct {
	data   *dataset.Datasets
	engine *filter.Engine
	goals  map[models.KPI]float64
	audit  *audit.Service
}

func New(data *dataset.Datasets, engine *filter.Engine, goals map[models.KPI]float64) *Pipeline {
	if goals == nil {
		goals = models.DefaultGoals
	}
	return &Pipeline{
		data:   data,
		engine: engine,
		goals:  goals,
		audit:  audit.NewService(),
	}
}

func (p *Pipeline) Goal(kpi models.KPI) float64 {
	if g, ok := p.goals[kpi]; ok {
		return g
	}
	return models.DefaultGoals[kpi]
}

// Options are the sidebar choices, taken from the unfiltered tables.
type Options struct {
	Shifts     []string          `json:"shifts"`
	Statuses   []string          `json:"statuses"`
	Severities []models.Severity `json:"severities"`
	KPIs       []models.KPI      `json:"kpis"`
}

func (p *Pipeline) Options() Options {
	present := make(map[models.Severity]bool)
	for _, r := range p.data.Nonconformities {
		present[r.Severity] = true
	}
	severities := make([]models.Severity, 0, len(models.Severities))
	for _, s := range models.Severities {
		if present[s] {
			severities = append(severities, s)
		}
	}
	return Options{
		Shifts:     filter.Distinct(p.data.Production, func(r models.ProductionRecord) string { return r.Shift }),
		Statuses:   filter.Distinct(p.data.Nonconformities, func(r models.NonconformityRecord) string { return r.Status }),
		Severities: severities,
		KPIs:       models.KPIs,
	}
}

func (p *Pipeline) FacetMode() filter.FacetMode { return p.engine.Mode() }

// DefaultFilters selects every available option, the sidebar state of a
// fresh dashboard.
func (p *Pipeline) DefaultFilters() filter.Spec {
	opts := p.Options()
	severities := make([]string, len(opts.Severities))
	for i, s := range opts.Severities {
		severities[i] = string(s)
	}
	return filter.Spec{
		Shifts:     opts.Shifts,
		Statuses:   opts.Statuses,
		Severities: severities,
	}
}

// NewSession returns a session with every option selected.
func (p *Pipeline) NewSession(id string, mode actions.Mode) *Session {
	s := NewSession(id, mode)
	p.SetFilters(s, p.DefaultFilters())
	return s
}

// ProductionView feeds the Production tab.
type ProductionView struct {
	Rows              int                    `json:"rows"`
	PlannedVsProduced []aggregate.MonthlyRow `json:"planned_vs_produced"`
	Downtime          []aggregate.MonthlyRow `json:"downtime"`
	MonthlyKPIs       []aggregate.MonthlyRow `json:"monthly_kpis"`
	Gauges            []aggregate.Gauge      `json:"gauges"`
	Trend             aggregate.Trend        `json:"trend"`
}

// QualityView feeds the Quality tab. Annotated keeps the filtered order the
// action store is aligned with; BySeverity is the same rows ordered
// High to Low.
type QualityView struct {
	Annotated     []models.AnnotatedNonconformity `json:"annotated"`
	BySeverity    []models.AnnotatedNonconformity `json:"by_severity"`
	IDs           []string                        `json:"ids"`
	MonthlyCounts []aggregate.MonthlyCount        `json:"monthly_counts"`
	ParetoByType  []aggregate.ParetoRow           `json:"pareto_by_type"`
	Severity      []aggregate.SeverityCount       `json:"severity"`
	ByProduct     []aggregate.CategoryCount       `json:"by_product"`
	ByCustomer    []aggregate.CategoryCount       `json:"by_customer"`
}

type Result struct {
	Filters    filter.Spec    `json:"filters"`
	KPI        models.KPI     `json:"kpi"`
	Production ProductionView `json:"production"`
	Quality    QualityView    `json:"quality"`
}

// Run filters both tables with the session selections, aggregates them and
// merges the session's corrective actions into the nonconformity rows.
func (p *Pipeline) Run(s *Session) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.run(s)
}

// run requires s.mu.
func (p *Pipeline) run(s *Session) Result {
	prod := p.engine.Production(p.data.Production, s.filters)
	ncs := p.engine.Nonconformities(p.data.Nonconformities, s.filters)

	ids := make([]string, len(ncs))
	for i, r := range ncs {
		ids[i] = r.ID
	}
	s.actions.Sync(ids)
	column := s.actions.Column()

	annotated := make([]models.AnnotatedNonconformity, len(ncs))
	for i, r := range ncs {
		annotated[i] = models.AnnotatedNonconformity{NonconformityRecord: r, CorrectiveAction: column[i]}
	}

	return Result{
		Filters: cloneSpec(s.filters),
		KPI:     s.kpi,
		Production: ProductionView{
			Rows:              len(prod),
			PlannedVsProduced: aggregate.MonthlySums(prod, aggregate.PlannedQuantity, aggregate.ProducedQuantity),
			Downtime:          aggregate.MonthlySums(prod, aggregate.DowntimeMinutes, aggregate.AvailableTimeMinutes),
			MonthlyKPIs:       aggregate.MonthlyMean(prod, aggregate.KPIFields()...),
			Gauges:            aggregate.Gauges(prod, p.goals),
			Trend:             aggregate.KPITrend(prod, s.kpi, p.Goal(s.kpi)),
		},
		Quality: QualityView{
			Annotated:     annotated,
			BySeverity:    aggregate.SortBySeverity(annotated, func(r models.AnnotatedNonconformity) models.Severity { return r.Severity }),
			IDs:           ids,
			MonthlyCounts: aggregate.MonthlyCounts(ncs),
			ParetoByType:  aggregate.Pareto(ncs, aggregate.ByType),
			Severity:      aggregate.SeverityTally(ncs),
			ByProduct:     aggregate.ValueCountsRanked(ncs, aggregate.ByProduct),
			ByCustomer:    aggregate.ValueCountsRanked(ncs, aggregate.ByCustomer),
		},
	}
}

// SetFilters replaces the session selections. The action store is resynced
// against the new view, which in positional mode discards every annotation
// when the row count changes.
func (p *Pipeline) SetFilters(s *Session, spec filter.Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = cloneSpec(spec)
	s.actions.Sync(p.viewIDs(s.filters))
}

func (p *Pipeline) SetKPI(s *Session, kpi models.KPI) error {
	parsed, ok := models.ParseKPI(string(kpi))
	if !ok {
		return fmt.Errorf("unknown kpi %q", kpi)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kpi = parsed
	return nil
}

// Action returns the corrective action stored for id in the current view.
func (p *Pipeline) Action(s *Session, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := p.viewIDs(s.filters)
	s.actions.Sync(ids)
	i := actions.IndexOf(ids, id)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownNonconformity, id)
	}
	return s.actions.Get(i), nil
}

// SubmitAction stores text as the corrective action for id. The journal
// entry is written first; a journal failure leaves the store unchanged.
// journal may be nil.
func (p *Pipeline) SubmitAction(ctx context.Context, s *Session, id, text string, journal *sqlite.DB) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := p.viewIDs(s.filters)
	s.actions.Sync(ids)
	i := actions.IndexOf(ids, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownNonconformity, id)
	}
	before := s.actions.Get(i)

	if journal != nil {
		action := audit.ActionCorrectiveSet
		if text == "" {
			action = audit.ActionCorrectiveClear
		}
		err := journal.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			return p.audit.Write(ctx, tx, s.ID, action, audit.EntityNonconformity, id,
				actionState{CorrectiveAction: before},
				actionState{CorrectiveAction: text},
			)
		})
		if err != nil {
			return fmt.Errorf("journal corrective action: %w", err)
		}
	}

	s.actions.Set(i, text)
	return nil
}

type actionState struct {
	CorrectiveAction string `json:"corrective_action"`
}

func (p *Pipeline) viewIDs(spec filter.Spec) []string {
	ncs := p.engine.Nonconformities(p.data.Nonconformities, spec)
	ids := make([]string, len(ncs))
	for i, r := range ncs {
		ids[i] = r.ID
	}
	return ids
}

// Record returns the unfiltered nonconformity with id.
func (p *Pipeline) Record(id string) (models.NonconformityRecord, bool) {
	for _, r := range p.data.Nonconformities {
		if r.ID == id {
			return r, true
		}
	}
	return models.NonconformityRecord{}, false
}

// Summary describes the loaded datasets.
func (p *Pipeline) Summary() dataset.Summary {
	return p.data.Summary()
}
