package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eargollo/mediasort/internal/api"
	"github.com/eargollo/mediasort/internal/cache"
	"github.com/eargollo/mediasort/internal/config"
	"github.com/eargollo/mediasort/internal/db"
	"github.com/eargollo/mediasort/internal/media"
	"github.com/eargollo/mediasort/internal/organize"
	"github.com/eargollo/mediasort/internal/scan"
	"github.com/eargollo/mediasort/internal/scheduler"
	"github.com/eargollo/mediasort/internal/trash"
	"github.com/eargollo/mediasort/internal/undo"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── Logging (initial — overridden below once config is loaded) ─────────
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// ── Config ─────────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	// Re-configure logging with the level from config (default: info).
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("mediasort starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"scan_paths", cfg.ScanPaths)

	// ── Database ───────────────────────────────────────────────────────────
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	if dbSettings, err := db.LoadSettings(database); err == nil {
		config.MergeDBSettings(cfg, dbSettings)
	}

	// ── Cache, scanner, organizer ────────────────────────────────────────────
	cacheStore := cache.New(database, cfg.DBPath)
	scanner := scan.New(cacheStore, scan.Config{Walkers: cfg.ScanWorkers.Walkers})

	var undoMgr *undo.Manager
	if cfg.Organize.UndoEnabled {
		undoMgr, err = undo.New(cfg.Organize.UndoHistoryPath)
		if err != nil {
			slog.Error("load undo history", "error", err)
			os.Exit(1)
		}
	}
	organizer := organize.New(undoMgr)
	metadataProvider := media.NewProvider()

	// ── Trash manager ──────────────────────────────────────────────────────
	trashMgr := trash.New(database, cfg.TrashDir)

	// ── HTTP server ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New()
	srv := api.New(cfg.HTTPAddr, database, cfg, cacheStore, scanner, organizer, undoMgr, trashMgr, sched, metadataProvider, version)

	if !cfg.ScanPaused && cfg.Schedule != "" {
		if err := sched.SetScanJob(cfg.Schedule, func() {
			slog.Info("scheduled scan triggered")
			srv.StartScan(context.Background())
		}); err != nil {
			slog.Warn("invalid cron expression", "expr", cfg.Schedule, "error", err)
		}
	}

	if err := sched.AddJob("0 3 * * *", func() {
		slog.Info("auto-purge triggered")
		if err := trashMgr.AutoPurge(context.Background()); err != nil {
			slog.Error("auto-purge failed", "error", err)
		}
	}); err != nil {
		slog.Warn("failed to register auto-purge job", "error", err)
	}

	sched.Start()
	defer sched.Stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("mediasort stopped")
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
