package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eargollo/mediasort/internal/cache"
	"github.com/eargollo/mediasort/internal/config"
	"github.com/eargollo/mediasort/internal/model"
	"github.com/eargollo/mediasort/internal/organize"
	"github.com/eargollo/mediasort/internal/scan"
	"github.com/eargollo/mediasort/internal/scheduler"
	"github.com/eargollo/mediasort/internal/trash"
	"github.com/eargollo/mediasort/internal/undo"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server

	// Orchestrator exposed so main can drive a scheduled scan through the
	// same run registry the HTTP API reads from.
	Orchestrator *orchestrator
}

// New wires every /api route to the CORE collaborators and returns a Server
// ready to Run. undoMgr may be nil when organize.undo_enabled is off.
func New(
	addr string,
	db *sql.DB,
	cfg *config.Config,
	cacheStore *cache.Cache,
	scanner *scan.Scanner,
	organizer *organize.Organizer,
	undoMgr *undo.Manager,
	trashMgr *trash.Manager,
	sched *scheduler.Scheduler,
	metadata model.MetadataProvider,
	version string,
) *Server {
	orch := &orchestrator{
		db:        db,
		cache:     cacheStore,
		scanner:   scanner,
		organizer: organizer,
		cfg:       cfg,
		registry:  newRunRegistry(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	statusH := &statusHandler{registry: orch.registry, sched: sched, version: version}
	scansH := &scansHandler{orch: orch}
	groupsH := &groupsHandler{orch: orch, metadata: metadata}
	organizeH := &organizeHandler{orch: orch}
	undoH := &undoHandler{mgr: undoMgr}
	trashH := &trashHandler{mgr: trashMgr}
	statsH := &statsHandler{db: db}
	configH := &configHandler{db: db, cfg: cfg}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/scans", scansH.Create)
		r.Get("/scans", scansH.List)
		r.Get("/scans/{id}", scansH.Get)

		r.Get("/groups", groupsH.List)

		r.Post("/organize", organizeH.Create)

		r.Post("/undo", undoH.Undo)
		r.Post("/redo", undoH.Redo)

		r.Get("/trash", trashH.List)
		r.Post("/trash/{id}/restore", trashH.Restore)
		r.Post("/trash/purge", trashH.Purge)

		r.Get("/stats", statsH.ServeHTTP)

		r.Get("/config", configH.Get)
		r.Put("/config", configH.Update)
	})

	return &Server{
		addr:         addr,
		srv:          &http.Server{Addr: addr, Handler: r},
		Orchestrator: orch,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// StartScan triggers a scan through the same path /api/scans uses; the
// scheduler calls this directly rather than making an HTTP request to itself.
func (s *Server) StartScan(ctx context.Context) {
	s.Orchestrator.startScan(ctx)
}

// Handler returns the underlying http.Handler, for tests that want to drive
// the API through httptest.NewServer without binding a real port.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
