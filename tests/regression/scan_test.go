package regression_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMediaFile(t *testing.T, dir, name string, content []byte, modified time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, modified, modified); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	return path
}

func TestManualScan_StartsAndCompletes(t *testing.T) {
	root := t.TempDir()
	writeMediaFile(t, root, "a.jpg", []byte("photo one"), time.Now())
	writeMediaFile(t, root, "b.jpg", []byte("photo two"), time.Now())

	ts := newTestServer(t, root)

	resp := ts.post(t, "/api/scans")
	requireStatus(t, resp, 202)

	resp = ts.get(t, "/api/status")
	var status struct {
		ActiveScan map[string]any `json:"active_scan"`
	}
	decodeJSON(t, resp, &status)

	// Whether we caught it running or already finished, /api/scans must list it.
	listResp := ts.get(t, "/api/scans")
	var runs []map[string]any
	decodeJSON(t, listResp, &runs)
	if len(runs) == 0 {
		t.Fatal("expected at least one scan run listed")
	}

	id := int64(runs[0]["id"].(float64))
	final := waitForScan(t, ts, id, 5*time.Second)
	if final["status"] != "completed" {
		t.Fatalf("expected scan to complete, got status=%v error=%v", final["status"], final["error"])
	}
	if discovered, _ := final["files_discovered"].(float64); discovered != 2 {
		t.Fatalf("expected 2 files discovered, got %v", final["files_discovered"])
	}
}

func TestManualScan_DetectsDuplicates(t *testing.T) {
	root := t.TempDir()
	content := []byte("identical bytes")
	writeMediaFile(t, root, "original.jpg", content, time.Now().Add(-time.Hour))
	writeMediaFile(t, root, "copy.jpg", content, time.Now())

	ts := newTestServer(t, root)

	resp := ts.post(t, "/api/scans")
	requireStatus(t, resp, 202)

	listResp := ts.get(t, "/api/scans")
	var runs []map[string]any
	decodeJSON(t, listResp, &runs)
	id := int64(runs[0]["id"].(float64))
	final := waitForScan(t, ts, id, 5*time.Second)

	if groups, _ := final["duplicate_groups"].(float64); groups != 1 {
		t.Fatalf("expected 1 duplicate group, got %v", final["duplicate_groups"])
	}

	groupsResp := ts.get(t, "/api/groups")
	var body struct {
		Groups []struct {
			WastedBytes int64 `json:"wasted_bytes"`
			Files       []struct {
				Path string `json:"path"`
			} `json:"files"`
		} `json:"groups"`
		Total int `json:"total"`
	}
	decodeJSON(t, groupsResp, &body)
	if body.Total != 1 {
		t.Fatalf("expected 1 group in listing, got %d", body.Total)
	}
	if len(body.Groups[0].Files) != 2 {
		t.Fatalf("expected 2 files in the group, got %d", len(body.Groups[0].Files))
	}
}
