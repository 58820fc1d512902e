package regression_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/eargollo/mediasort/internal/api"
	"github.com/eargollo/mediasort/internal/cache"
	"github.com/eargollo/mediasort/internal/config"
	"github.com/eargollo/mediasort/internal/db"
	"github.com/eargollo/mediasort/internal/media"
	"github.com/eargollo/mediasort/internal/organize"
	"github.com/eargollo/mediasort/internal/scan"
	"github.com/eargollo/mediasort/internal/scheduler"
	"github.com/eargollo/mediasort/internal/trash"
)

// testServer wraps an in-process instance of the whole stack, built the same
// way cmd/mediasort/main.go wires it, so these tests exercise real routing
// and real collaborators rather than a hand-rolled double.
type testServer struct {
	*httptest.Server
	client *http.Client
}

// newTestServer builds a fresh DB, trash dir, and organize destination under
// t.TempDir() and starts an httptest.Server in front of the full API, scanning
// scanRoot on demand.
func newTestServer(t *testing.T, scanRoot string) *testServer {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "mediasort.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := &config.Config{
		ScanPaths: []string{scanRoot},
		TrashDir:  filepath.Join(t.TempDir(), "trash"),
		Organize: config.Organize{
			Destination: filepath.Join(t.TempDir(), "organized"),
			OrganizeBy:  "monthly",
		},
		ScanWorkers: config.ScanWorkers{Walkers: 2},
	}

	cacheStore := cache.New(database, dbPath)
	scanner := scan.New(cacheStore, scan.Config{Walkers: cfg.ScanWorkers.Walkers})
	organizer := organize.New(nil)
	trashMgr := trash.New(database, cfg.TrashDir)
	sched := scheduler.New()

	srv := api.New("", database, cfg, cacheStore, scanner, organizer, nil, trashMgr, sched, media.NewProvider(), "test")

	hts := httptest.NewServer(srv.Handler())
	t.Cleanup(hts.Close)

	return &testServer{Server: hts, client: &http.Client{Timeout: 10 * time.Second}}
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (ts *testServer) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Post(ts.URL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// waitForScan polls /api/scans/{id} until it reaches a terminal status or the
// timeout elapses.
func waitForScan(t *testing.T, ts *testServer, id int64, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp := ts.get(t, "/api/scans/"+strconv.FormatInt(id, 10))
		var body map[string]any
		decodeJSON(t, resp, &body)
		if status, _ := body["status"].(string); status == "completed" || status == "failed" {
			return body
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("scan %d did not complete within %s", id, timeout)
	return nil
}
