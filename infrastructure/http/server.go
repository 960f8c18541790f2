package http

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	sessioncontext "kpidashboard/frontend/shared/context"
	"kpidashboard/infrastructure/actions"
	"kpidashboard/infrastructure/audit"
	"kpidashboard/infrastructure/cache"
	"kpidashboard/infrastructure/pipeline"
	sessioncookie "kpidashboard/infrastructure/session"
	"kpidashboard/infrastructure/sqlite"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed assets/*
var assets embed.FS

var ShutdownTimeout = 2 * time.Second

// Server bundles dependencies and route wiring.
type Server struct {
	Addr   string
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	DB           *sqlite.DB
	Pipeline     *pipeline.Pipeline
	SessionCache *cache.DashboardSessionCache
	Audit        *audit.Service
	ActionMode   actions.Mode
	SessionTTL   time.Duration
}

// NewServer creates a new http server.
func NewServer(addr string, db *sqlite.DB, p *pipeline.Pipeline, sessionCache *cache.DashboardSessionCache, auditSvc *audit.Service, actionMode actions.Mode, sessionTTL time.Duration) *Server {
	s := &Server{
		Addr:         addr,
		router:       chi.NewRouter(),
		DB:           db,
		Pipeline:     p,
		SessionCache: sessionCache,
		Audit:        auditSvc,
		ActionMode:   actionMode,
		SessionTTL:   sessionTTL,
		server: &http.Server{
			MaxHeaderBytes: 1 << 20,
		},
	}

	// Secure headers first.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.CSRFMiddleware)

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Serve assets from embedded FS.
	var assetsFS fs.FS = assets
	if sub, err := fs.Sub(assets, "assets"); err == nil {
		assetsFS = sub
	} else {
		slog.Error("assets subfs init failed; serving fallback fs", slog.Any("err", err))
	}
	s.router.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(assetsFS))))

	s.router.Group(func(r chi.Router) {
		r.Use(s.SessionMiddleware)
		s.RegisterDashboardRoutes(r)
		s.RegisterExportRoutes(r)
	})

	s.server.Handler = s.router
	return s
}

// SessionMiddleware resolves the dashboard session from its cookie and
// starts a new one for unknown or expired tokens.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var session *pipeline.Session
		if c, err := r.Cookie(sessioncookie.CookieName); err == nil && c.Value != "" {
			if found, ok := s.SessionCache.FindSessionBySessionToken(c.Value); ok {
				session = found
			} else {
				slog.Debug("session not found in cache", slog.String("method", r.Method), slog.String("path", r.URL.Path))
			}
		}

		if session == nil {
			session = s.Pipeline.NewSession(sessioncookie.NewToken(), s.ActionMode)
			s.SessionCache.AddSession(session)
			http.SetCookie(w, sessioncookie.SessionCookie(session.ID, sessioncookie.MaxAge(s.SessionTTL)))
			slog.Info("dashboard session started", slog.String("session_id", session.ID))
		}

		ctx := sessioncontext.NewContextWithSession(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RunSessionJanitor evicts idle sessions every interval until ctx is done.
func (s *Server) RunSessionJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SessionCache.Evict(); n > 0 {
				slog.Info("evicted idle sessions", slog.Int("count", n), slog.Int("remaining", s.SessionCache.Len()))
			}
		}
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	var err error
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go s.server.Serve(s.ln)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.ln == nil {
		return fmt.Errorf("HTTP server has not been started or is already stopped")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	s.ln = nil
	return nil
}
