package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/eargollo/mediasort/internal/config"
	dbpkg "github.com/eargollo/mediasort/internal/db"
	"github.com/eargollo/mediasort/internal/model"
	"github.com/eargollo/mediasort/internal/scheduler"
	"github.com/eargollo/mediasort/internal/trash"
	"github.com/eargollo/mediasort/internal/undo"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ── /api/status ──────────────────────────────────────────────────────────

type statusHandler struct {
	registry *runRegistry
	sched    *scheduler.Scheduler
	version  string
}

type statusResponse struct {
	Version     string  `json:"version"`
	ActiveScan  *runDTO `json:"active_scan,omitempty"`
	LastScan    *runDTO `json:"last_scan,omitempty"`
	NextRunAt   string  `json:"scheduler_next_run_at,omitempty"`
	SchedulerOn bool    `json:"scheduler_enabled"`
}

func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Version: h.version, SchedulerOn: h.sched != nil}
	if h.sched != nil {
		if next := h.sched.NextRunAt(); next != nil {
			resp.NextRunAt = next.Format(time.RFC3339)
		}
	}

	if latest, ok := h.registry.latestRun(); ok {
		snap := latest.snapshot()
		dto := toRunDTO(snap, false)
		if snap.status == statusRunning {
			resp.ActiveScan = &dto
		} else {
			resp.LastScan = &dto
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── /api/scans ───────────────────────────────────────────────────────────

type scansHandler struct {
	orch *orchestrator
}

type runDTO struct {
	ID               int64  `json:"id"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at,omitempty"`
	Status           string `json:"status"`
	FilesDiscovered  int    `json:"files_discovered"`
	DuplicateGroups  int    `json:"duplicate_groups"`
	DuplicateFiles   int    `json:"duplicate_files"`
	ReclaimableBytes int64  `json:"reclaimable_bytes"`
	Error            string `json:"error,omitempty"`
	ProgressCurrent  int64  `json:"progress_current"`
	ProgressTotal    int64  `json:"progress_total"`
	ProgressMessage  string `json:"progress_message,omitempty"`
}

func toRunDTO(snap runSnapshot, includeProgress bool) runDTO {
	dto := runDTO{
		ID:               snap.id,
		StartedAt:        snap.startedAt.Format(time.RFC3339),
		Status:           string(snap.status),
		FilesDiscovered:  len(snap.files),
		DuplicateGroups:  snap.duplicates.TotalGroups,
		DuplicateFiles:   snap.duplicates.TotalDuplicates,
		ReclaimableBytes: snap.duplicates.TotalWasted,
		Error:            snap.err,
	}
	if !snap.finishedAt.IsZero() {
		dto.FinishedAt = snap.finishedAt.Format(time.RFC3339)
	}
	if includeProgress || snap.status == statusRunning {
		p := snap.progress.Snapshot()
		dto.ProgressCurrent = p.Current
		dto.ProgressTotal = p.Total
		dto.ProgressMessage = p.Message
	}
	return dto
}

func (h *scansHandler) Create(w http.ResponseWriter, r *http.Request) {
	if existing, ok := h.orch.registry.latestRun(); ok {
		if existing.snapshot().status == statusRunning {
			writeError(w, http.StatusConflict, "a scan is already running")
			return
		}
	}
	run := h.orch.startScan(r.Context())
	writeJSON(w, http.StatusAccepted, toRunDTO(run.snapshot(), true))
}

func (h *scansHandler) List(w http.ResponseWriter, r *http.Request) {
	runs := h.orch.registry.list()
	out := make([]runDTO, 0, len(runs))
	for _, rn := range runs {
		out = append(out, toRunDTO(rn.snapshot(), false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *scansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}
	rn, ok := h.orch.registry.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(rn.snapshot(), true))
}

// ── /api/groups ──────────────────────────────────────────────────────────

type groupsHandler struct {
	orch     *orchestrator
	metadata model.MetadataProvider
}

type fileDTO struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Modified    string `json:"modified"`
	Hash        string `json:"hash,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
}

type groupDTO struct {
	Files            []fileDTO `json:"files"`
	WastedBytes      int64     `json:"wasted_bytes"`
	WastedBytesHuman string    `json:"wasted_bytes_human"`
}

func (h *groupsHandler) List(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.orch.registry.latestRun()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"groups": []groupDTO{}, "total": 0})
		return
	}
	snap := latest.snapshot()

	page, perPage := pagination(r, 50)
	groups := snap.duplicates.Groups
	start := (page - 1) * perPage
	if start > len(groups) {
		start = len(groups)
	}
	end := start + perPage
	if end > len(groups) {
		end = len(groups)
	}

	out := make([]groupDTO, 0, end-start)
	for _, g := range groups[start:end] {
		files := make([]fileDTO, 0, len(g.Files))
		for _, f := range g.Files {
			files = append(files, h.describeFile(r.Context(), f))
		}
		out = append(out, groupDTO{Files: files, WastedBytes: g.WastedBytes, WastedBytesHuman: humanize.Bytes(uint64(g.WastedBytes))})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"groups": out,
		"total":  len(groups),
		"page":   page,
	})
}

// describeFile builds a fileDTO, enriching it with MetadataProvider output
// when one is configured. Each call is bounded to 3 seconds per §6.3 so a
// slow EXIF read on one file never stalls the whole listing.
func (h *groupsHandler) describeFile(ctx context.Context, f model.MediaFile) fileDTO {
	dto := fileDTO{Path: f.Path, Name: f.Name, Size: f.Size, Modified: f.Modified.Format(time.RFC3339), Hash: f.Hash}
	if h.metadata == nil {
		return dto
	}

	describeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	meta, err := h.metadata.Describe(describeCtx, f)
	if err != nil {
		return dto
	}
	dto.Width = meta.Width
	dto.Height = meta.Height
	dto.CameraModel = meta.CameraModel
	return dto
}

func pagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			perPage = n
		}
	}
	return page, perPage
}

// ── /api/organize ────────────────────────────────────────────────────────

type organizeHandler struct {
	orch *orchestrator
}

func (h *organizeHandler) Create(w http.ResponseWriter, r *http.Request) {
	result, err := h.orch.organizeLatest(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// ── /api/undo, /api/redo ─────────────────────────────────────────────────

type undoHandler struct {
	mgr *undo.Manager
}

func (h *undoHandler) Undo(w http.ResponseWriter, r *http.Request) {
	if h.mgr == nil {
		writeError(w, http.StatusConflict, "undo is not enabled")
		return
	}
	result, ok, err := h.mgr.Undo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "nothing to undo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func (h *undoHandler) Redo(w http.ResponseWriter, r *http.Request) {
	if h.mgr == nil {
		writeError(w, http.StatusConflict, "undo is not enabled")
		return
	}
	result, ok, err := h.mgr.Redo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "nothing to redo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

// ── /api/trash ───────────────────────────────────────────────────────────

type trashHandler struct {
	mgr *trash.Manager
}

func (h *trashHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.mgr.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *trashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trash id")
		return
	}
	if err := h.mgr.Restore(r.Context(), id); err != nil {
		var conflict *trash.ErrRestoreConflict
		switch {
		case err == trash.ErrNotTrashed:
			writeError(w, http.StatusNotFound, err.Error())
		case asRestoreConflict(err, &conflict):
			writeError(w, http.StatusConflict, conflict.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func asRestoreConflict(err error, target **trash.ErrRestoreConflict) bool {
	if c, ok := err.(*trash.ErrRestoreConflict); ok {
		*target = c
		return true
	}
	return false
}

func (h *trashHandler) Purge(w http.ResponseWriter, r *http.Request) {
	count, bytesFreed, err := h.mgr.PurgeAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"purged":            count,
		"bytes_freed":       bytesFreed,
		"bytes_freed_human": humanize.Bytes(uint64(bytesFreed)),
	})
}

// ── /api/stats ───────────────────────────────────────────────────────────

type statsHandler struct {
	db *sql.DB
}

type statsResponse struct {
	TotalScans       int    `json:"total_scans"`
	TotalGroupsFound int    `json:"total_groups_found"`
	TotalFilesFound  int    `json:"total_duplicate_files_found"`
	TotalBytesFreed  int64  `json:"total_reclaimable_bytes"`
	TotalBytesHuman  string `json:"total_reclaimable_human"`
}

func (h *statsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse
	row := h.db.QueryRowContext(r.Context(), `
		SELECT COUNT(*),
		       COALESCE(SUM(duplicate_groups), 0),
		       COALESCE(SUM(duplicate_files), 0),
		       COALESCE(SUM(reclaimable_bytes), 0)
		FROM scan_history WHERE status = 'completed'`)
	if err := row.Scan(&resp.TotalScans, &resp.TotalGroupsFound, &resp.TotalFilesFound, &resp.TotalBytesFreed); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.TotalBytesHuman = humanize.Bytes(uint64(resp.TotalBytesFreed))
	writeJSON(w, http.StatusOK, resp)
}

// ── /api/config ──────────────────────────────────────────────────────────

type configHandler struct {
	db  *sql.DB
	cfg *config.Config
}

func (h *configHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg)
}

type configUpdateRequest struct {
	ScanPaths           *[]string `json:"scan_paths"`
	ExcludePaths        *[]string `json:"exclude_paths"`
	Schedule            *string   `json:"schedule"`
	ScanPaused          *bool     `json:"scan_paused"`
	TrashRetentionDays  *int      `json:"trash_retention_days"`
	Destination         *string   `json:"destination"`
	OrganizeBy          *string   `json:"organize_by"`
	SeparateVideos      *bool     `json:"separate_videos"`
	LowercaseExtensions *bool     `json:"lowercase_extensions"`
	RenameDuplicates    *bool     `json:"rename_duplicates"`
	UndoEnabled         *bool     `json:"undo_enabled"`
}

func (h *configHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := map[string]string{}
	jsonInto(settings, "scan_paths", req.ScanPaths)
	jsonInto(settings, "exclude_paths", req.ExcludePaths)
	stringInto(settings, "schedule", req.Schedule)
	boolInto(settings, "scan_paused", req.ScanPaused)
	intInto(settings, "trash_retention_days", req.TrashRetentionDays)
	stringInto(settings, "organize_destination", req.Destination)
	stringInto(settings, "organize_by", req.OrganizeBy)
	boolInto(settings, "separate_videos", req.SeparateVideos)
	boolInto(settings, "lowercase_extensions", req.LowercaseExtensions)
	boolInto(settings, "rename_duplicates", req.RenameDuplicates)
	boolInto(settings, "undo_enabled", req.UndoEnabled)

	for k, v := range settings {
		if err := dbpkg.SaveSetting(h.db, k, v); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	merged, err := dbpkg.LoadSettings(h.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	config.MergeDBSettings(h.cfg, merged)

	writeJSON(w, http.StatusOK, h.cfg)
}

func jsonInto(settings map[string]string, key string, v *[]string) {
	if v == nil {
		return
	}
	b, err := json.Marshal(*v)
	if err != nil {
		return
	}
	settings[key] = string(b)
}

func stringInto(settings map[string]string, key string, v *string) {
	if v != nil {
		settings[key] = *v
	}
}

func boolInto(settings map[string]string, key string, v *bool) {
	if v != nil {
		settings[key] = strconv.FormatBool(*v)
	}
}

func intInto(settings map[string]string, key string, v *int) {
	if v != nil {
		settings[key] = strconv.Itoa(*v)
	}
}
