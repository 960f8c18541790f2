package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"kpidashboard/infrastructure/actions"
	"kpidashboard/infrastructure/audit"
	"kpidashboard/infrastructure/cache"
	"kpidashboard/infrastructure/config"
	"kpidashboard/infrastructure/dataset"
	"kpidashboard/infrastructure/filter"
	httpserver "kpidashboard/infrastructure/http"
	"kpidashboard/infrastructure/pipeline"
	"kpidashboard/infrastructure/sqlite"
)

const janitorInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load("kpidash.yaml", os.Getenv)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	data, err := dataset.Load(cfg.DataDir, cfg.ProductionFile, cfg.OccurrencesFile)
	if err != nil {
		log.Fatalf("cannot load data: %v", err)
	}
	slog.Info("datasets loaded", slog.Any("summary", data.Summary()))

	facetMode, err := filter.ParseFacetMode(cfg.FacetMode)
	if err != nil {
		log.Fatalf("facet mode: %v", err)
	}
	actionMode, err := actions.ParseMode(cfg.ActionMode)
	if err != nil {
		log.Fatalf("action mode: %v", err)
	}

	db, err := openJournal(context.Background(), cfg.SQLitePath, "")
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer db.Close()
	slog.Info("journal ready", slog.String("path", filepath.Clean(db.Path)), slog.Bool("ephemeral", db.Ephemeral()))

	p := pipeline.New(data, filter.New(facetMode), cfg.KPIGoals())
	sessionCache := cache.NewDashboardSessionCache(cfg.SessionTTL)
	server := httpserver.NewServer(cfg.Addr, db, p, sessionCache, audit.NewService(), actionMode, cfg.SessionTTL)
	if err := server.Start(); err != nil {
		log.Fatalf("start server: %v", err)
	}
	slog.Info("kpi dashboard listening",
		slog.String("addr", cfg.Addr),
		slog.String("facet_mode", facetMode.String()),
		slog.String("action_mode", actionMode.String()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.RunSessionJanitor(ctx, janitorInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	if err := server.Stop(); err != nil {
		slog.Error("graceful shutdown error", slog.Any("err", err))
	}
}

// openJournal opens the journal and applies migrations. The handle is
// closed on failure so an ephemeral journal leaves no temp dir behind.
func openJournal(ctx context.Context, path, migrationsDir string) (*sqlite.DB, error) {
	db, err := sqlite.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlite.ApplyMigrations(ctx, db, migrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return db, nil
}

func logLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
