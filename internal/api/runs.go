package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eargollo/mediasort/internal/cache"
	"github.com/eargollo/mediasort/internal/config"
	"github.com/eargollo/mediasort/internal/duplicate"
	"github.com/eargollo/mediasort/internal/model"
	"github.com/eargollo/mediasort/internal/organize"
	"github.com/eargollo/mediasort/internal/progress"
	"github.com/eargollo/mediasort/internal/scan"
)

// maxKeptRuns bounds the in-memory run registry so a long-lived server
// doesn't accumulate every scan's full file list forever.
const maxKeptRuns = 20

// scanStatus mirrors the donor's scan_history.status values.
type scanStatus string

const (
	statusRunning   scanStatus = "running"
	statusCompleted scanStatus = "completed"
	statusFailed    scanStatus = "failed"
)

// run holds one scan's full in-memory result (the DuplicateGroup detail the
// DB's scan_history table only summarizes) plus the organize outcome that
// followed it, if any. CORE treats DuplicateStats as a transient result of a
// single Detect call; the API layer is the one place that needs it to
// outlive a single request, so it's kept here rather than added to the
// schema.
type run struct {
	mu         sync.Mutex
	id         int64
	startedAt  time.Time
	finishedAt time.Time
	status     scanStatus
	files      []model.MediaFile
	duplicates model.DuplicateStats
	organized  *model.OrganizeResult
	err        string
	progress   *progress.Sink
}

// runSnapshot is a lock-free copy of a run's shareable fields. run itself
// embeds sync.Mutex, so copying it by value (even read-only) would copy the
// lock; callers that need to read a run's state across a request boundary
// take a runSnapshot instead.
type runSnapshot struct {
	id         int64
	startedAt  time.Time
	finishedAt time.Time
	status     scanStatus
	files      []model.MediaFile
	duplicates model.DuplicateStats
	organized  *model.OrganizeResult
	err        string
	progress   *progress.Sink
}

func (r *run) snapshot() runSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return runSnapshot{
		id:         r.id,
		startedAt:  r.startedAt,
		finishedAt: r.finishedAt,
		status:     r.status,
		files:      r.files,
		duplicates: r.duplicates,
		organized:  r.organized,
		err:        r.err,
		progress:   r.progress,
	}
}

// runRegistry tracks scan runs across requests: the most recent one (for
// /api/groups and /api/organize) and a bounded history (for /api/scans and
// /api/scans/{id}).
type runRegistry struct {
	mu     sync.Mutex
	runs   []*run
	byID   map[int64]*run
	nextID int64
	latest *run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{byID: make(map[int64]*run)}
}

func (reg *runRegistry) start() *run {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.nextID++
	r := &run{
		id:        reg.nextID,
		startedAt: time.Now(),
		status:    statusRunning,
		progress:  progress.New(0, "starting"),
	}
	reg.byID[r.id] = r
	reg.runs = append(reg.runs, r)
	if len(reg.runs) > maxKeptRuns {
		evicted := reg.runs[0]
		delete(reg.byID, evicted.id)
		reg.runs = reg.runs[1:]
	}
	reg.latest = r
	return r
}

func (reg *runRegistry) get(id int64) (*run, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.byID[id]
	return r, ok
}

func (reg *runRegistry) latestRun() (*run, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.latest, reg.latest != nil
}

func (reg *runRegistry) list() []*run {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*run, len(reg.runs))
	copy(out, reg.runs)
	return out
}

// orchestrator wires the run registry to the CORE Scanner/Organizer and
// persists a summary row to scan_history once each run completes.
type orchestrator struct {
	db        *sql.DB
	cache     *cache.Cache
	scanner   *scan.Scanner
	organizer *organize.Organizer
	cfg       *config.Config
	registry  *runRegistry
}

// startScan launches ScanWithDuplicates against every configured root in the
// background and returns the run immediately in "running" state.
func (o *orchestrator) startScan(ctx context.Context) *run {
	r := o.registry.start()

	go func() {
		bgCtx := context.Background()
		var allFiles []model.MediaFile
		settings := model.ScanSettings{
			OrganizeBy:    model.OrganizeBy(o.cfg.Organize.OrganizeBy),
			Parallel:      true,
			WorkerThreads: o.cfg.ScanWorkers.Walkers,
		}

		for _, root := range o.cfg.ScanPaths {
			files, err := o.scanner.Scan(bgCtx, root, true, settings, r.progress)
			if err != nil {
				o.finishFailed(r, fmt.Errorf("scan %q: %w", root, err))
				return
			}
			allFiles = append(allFiles, files...)
		}

		detector := duplicate.New(o.cache)
		stats, err := detector.Detect(bgCtx, allFiles, r.progress)
		if err != nil {
			o.finishFailed(r, err)
			return
		}

		r.mu.Lock()
		r.files = allFiles
		r.duplicates = stats
		r.status = statusCompleted
		r.finishedAt = time.Now()
		r.mu.Unlock()

		o.persistSummary(r)
	}()

	return r
}

func (o *orchestrator) finishFailed(r *run, err error) {
	r.mu.Lock()
	r.status = statusFailed
	r.err = err.Error()
	r.finishedAt = time.Now()
	r.mu.Unlock()
	slog.Error("scan run failed", "run_id", r.id, "error", err)
	o.persistSummary(r)
}

func (o *orchestrator) persistSummary(r *run) {
	snap := r.snapshot()
	var reclaimable int64
	duplicateFiles := 0
	if snap.status == statusCompleted {
		reclaimable = snap.duplicates.TotalWasted
		duplicateFiles = snap.duplicates.TotalDuplicates
	}
	var errText any
	if snap.err != "" {
		errText = snap.err
	}
	// scan_history's own id is a separate, DB-assigned sequence from the
	// in-memory run id: the registry resets on every process restart, so
	// forcing them to match would collide with rows from a prior run.
	_, err := o.db.Exec(`
		INSERT INTO scan_history
			(started_at, finished_at, status, triggered_by, files_discovered,
			 duplicate_groups, duplicate_files, reclaimable_bytes, error, created_at)
		VALUES (?, ?, ?, 'manual', ?, ?, ?, ?, ?, ?)`,
		snap.startedAt.Unix(), snap.finishedAt.Unix(), string(snap.status),
		len(snap.files), snap.duplicates.TotalGroups, duplicateFiles, reclaimable, errText,
		snap.startedAt.Unix())
	if err != nil {
		slog.Error("persist scan_history row failed", "run_id", snap.id, "error", err)
	}
}

// organizeLatest runs the Organizer against the most recent completed scan's
// survivors and stores the result on that run.
func (o *orchestrator) organizeLatest(ctx context.Context) (model.OrganizeResult, error) {
	r, ok := o.registry.latestRun()
	if !ok {
		return model.OrganizeResult{}, fmt.Errorf("no scan has been run yet")
	}
	snap := r.snapshot()
	if snap.status != statusCompleted {
		return model.OrganizeResult{}, fmt.Errorf("most recent scan is not completed (status=%s)", snap.status)
	}

	result, err := o.organizer.Organize(ctx, snap.files, snap.duplicates, o.cfg.Organize.Settings(), nil)
	if err != nil {
		return model.OrganizeResult{}, err
	}

	r.mu.Lock()
	r.organized = &result
	r.mu.Unlock()

	return result, nil
}
