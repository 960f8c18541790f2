package pipeline

import (
	"sync"
	"time"

	"kpidashboard/infrastructure/actions"
	"kpidashboard/infrastructure/filter"
	"kpidashboard/models"
)

// Session is the dashboard state owned by one browser session. Every
// Pipeline method that touches it holds mu, so one session runs one
// pipeline at a time.
type Session struct {
	ID string

	mu       sync.Mutex
	filters  filter.Spec
	kpi      models.KPI
	actions  actions.Store
	lastSeen time.Time
}

func NewSession(id string, mode actions.Mode) *Session {
	return &Session{
		ID:       id,
		kpi:      models.KPIOEE,
		actions:  actions.New(mode),
		lastSeen: time.Now(),
	}
}

// Touch marks the session as used now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Filters returns a copy of the current selections.
func (s *Session) Filters() filter.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSpec(s.filters)
}

func (s *Session) KPI() models.KPI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kpi
}

func cloneSpec(spec filter.Spec) filter.Spec {
	return filter.Spec{
		Dates:      spec.Dates,
		Shifts:     append([]string(nil), spec.Shifts...),
		Statuses:   append([]string(nil), spec.Statuses...),
		Severities: append([]string(nil), spec.Severities...),
	}
}
