package regression_test

import "testing"

func TestStatus_ReturnsOK(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp := ts.get(t, "/api/status")
	requireStatus(t, resp, 200)
}

func TestStatus_Shape(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp := ts.get(t, "/api/status")

	var body struct {
		Version     string `json:"version"`
		SchedulerOn bool   `json:"scheduler_enabled"`
	}
	decodeJSON(t, resp, &body)

	if body.Version == "" {
		t.Error("expected version to be non-empty")
	}
}
