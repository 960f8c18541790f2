package cache

import (
	"sync"
	"time"

	"kpidashboard/infrastructure/pipeline"
)

// DashboardSessionCache stores dashboard sessions by token and forgets
// sessions idle for longer than ttl.
type DashboardSessionCache struct {
	mu       sync.RWMutex
	sessions map[string]*pipeline.Session
	ttl      time.Duration
	now      func() time.Time
}

func NewDashboardSessionCache(ttl time.Duration) *DashboardSessionCache {
	return &DashboardSessionCache{
		sessions: make(map[string]*pipeline.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *DashboardSessionCache) AddSession(s *pipeline.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Touch(c.now())
	c.sessions[s.ID] = s
}

// FindSessionBySessionToken returns the live session for token and marks
// it used. Expired sessions are dropped and reported as missing.
func (c *DashboardSessionCache) FindSessionBySessionToken(token string) (*pipeline.Session, bool) {
	c.mu.RLock()
	s, ok := c.sessions[token]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := c.now()
	if c.expired(s, now) {
		c.DeleteSessionBySessionToken(token)
		return nil, false
	}
	s.Touch(now)
	return s, true
}

func (c *DashboardSessionCache) DeleteSessionBySessionToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
}

// Evict removes every expired session and returns how many were removed.
func (c *DashboardSessionCache) Evict() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for token, s := range c.sessions {
		if c.expired(s, now) {
			delete(c.sessions, token)
			removed++
		}
	}
	return removed
}

func (c *DashboardSessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *DashboardSessionCache) expired(s *pipeline.Session, now time.Time) bool {
	return c.ttl > 0 && now.Sub(s.LastSeen()) > c.ttl
}
