package regression_test

import (
	"testing"
	"time"
)

func TestOrganize_RequiresCompletedScan(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp := ts.post(t, "/api/organize")
	requireStatus(t, resp, 409)
}

func TestOrganize_MovesScannedFiles(t *testing.T) {
	root := t.TempDir()
	writeMediaFile(t, root, "vacation.jpg", []byte("beach photo"), time.Now())

	ts := newTestServer(t, root)

	resp := ts.post(t, "/api/scans")
	requireStatus(t, resp, 202)

	listResp := ts.get(t, "/api/scans")
	var runs []map[string]any
	decodeJSON(t, listResp, &runs)
	id := int64(runs[0]["id"].(float64))
	waitForScan(t, ts, id, 5*time.Second)

	resp = ts.post(t, "/api/organize")
	requireStatus(t, resp, 202)

	var result struct {
		FilesOrganized int  `json:"FilesOrganized"`
		Success        bool `json:"Success"`
	}
	decodeJSON(t, resp, &result)
	if !result.Success || result.FilesOrganized != 1 {
		t.Fatalf("expected 1 file organized successfully, got %+v", result)
	}
}
