package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/eargollo/mediasort/internal/model"
)

func TestGetMissesOnAnyMismatch(t *testing.T) {
	c := mustOpenCache(t)
	mtime := time.Unix(1000, 0)
	if err := c.Insert(model.CacheEntry{
		Path: "/a.jpg", Name: "a.jpg", Ext: ".jpg", Size: 100, Modified: mtime,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, ok, err := c.Get("/a.jpg", 100, mtime); err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := c.Get("/a.jpg", 101, mtime); ok {
		t.Fatal("size mismatch should miss")
	}
	if _, ok, _ := c.Get("/a.jpg", 100, time.Unix(2000, 0)); ok {
		t.Fatal("modified mismatch should miss")
	}
	if _, ok, _ := c.Get("/missing.jpg", 100, mtime); ok {
		t.Fatal("unknown path should miss")
	}
}

func TestGetBumpsAccessStats(t *testing.T) {
	c := mustOpenCache(t)
	mtime := time.Unix(1000, 0)
	if err := c.Insert(model.CacheEntry{Path: "/a.jpg", Name: "a.jpg", Ext: ".jpg", Size: 100, Modified: mtime}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	entry, ok, err := c.Get("/a.jpg", 100, mtime)
	if err != nil || !ok {
		t.Fatalf("first get: ok=%v err=%v", ok, err)
	}
	if entry.AccessCount != 2 { // 1 from insert + 1 from this get
		t.Errorf("access_count = %d, want 2", entry.AccessCount)
	}

	entry, _, _ = c.Get("/a.jpg", 100, mtime)
	if entry.AccessCount != 3 {
		t.Errorf("access_count = %d, want 3", entry.AccessCount)
	}
}

func TestUpdateHashLeavesAccessStatsAlone(t *testing.T) {
	c := mustOpenCache(t)
	mtime := time.Unix(1000, 0)
	c.Insert(model.CacheEntry{Path: "/a.jpg", Name: "a.jpg", Ext: ".jpg", Size: 100, Modified: mtime})

	if err := c.UpdateHash("/a.jpg", "deadbeef"); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	entry, ok, err := c.Get("/a.jpg", 100, mtime)
	if err != nil || !ok {
		t.Fatalf("get after update: ok=%v err=%v", ok, err)
	}
	if entry.Hash != "deadbeef" {
		t.Errorf("hash = %q, want deadbeef", entry.Hash)
	}
	if entry.AccessCount != 2 {
		t.Errorf("access_count after backfill+get = %d, want 2", entry.AccessCount)
	}
}

func TestGetByHashesEmptyInputNoRoundtrip(t *testing.T) {
	c := mustOpenCache(t)
	got, err := c.GetByHashes(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil result for empty input, got %v", got)
	}
}

func TestGetByHashesBatched(t *testing.T) {
	c := mustOpenCache(t)
	for i := 0; i < 5; i++ {
		c.Insert(model.CacheEntry{
			Path: fmt.Sprintf("/f%d.jpg", i), Name: "f.jpg", Ext: ".jpg",
			Size: int64(i), Modified: time.Unix(int64(i), 0), Hash: fmt.Sprintf("hash%d", i%2),
		})
	}
	got, err := c.GetByHashes([]string{"hash0"})
	if err != nil {
		t.Fatalf("get by hashes: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d entries, want 3", len(got))
	}
}

func TestEvictionTriggerAtMaxEntries(t *testing.T) {
	// Configure a tiny bound by inserting directly against a cache whose
	// migration trigger fires at MaxEntries — verified here via the
	// public Insert path using a temporary table-level override.
	c := mustOpenCache(t)
	if _, err := c.db.Exec(`DROP TRIGGER limit_entries`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	if _, err := c.db.Exec(`
		CREATE TRIGGER limit_entries
		BEFORE INSERT ON file_cache
		WHEN (SELECT COUNT(*) FROM file_cache) >= 5
		BEGIN
			DELETE FROM file_cache WHERE path IN (
				SELECT path FROM file_cache ORDER BY last_accessed ASC LIMIT 1
			);
		END`); err != nil {
		t.Fatalf("create test trigger: %v", err)
	}

	for i := 0; i < 6; i++ {
		err := c.Insert(model.CacheEntry{
			Path: fmt.Sprintf("/f%d.jpg", i), Name: "f.jpg", Ext: ".jpg",
			Size: 1, Modified: time.Unix(int64(i), 0),
			LastAccessed: time.Unix(int64(i), 0),
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.TotalEntries != 5 {
		t.Errorf("total entries = %d, want 5", stats.TotalEntries)
	}
	if _, ok, _ := c.Get("/f0.jpg", 1, time.Unix(0, 0)); ok {
		t.Error("oldest entry should have been evicted")
	}
}

func TestRemoveStaleEntries(t *testing.T) {
	c := mustOpenCache(t)
	c.Insert(model.CacheEntry{Path: "/keep.jpg", Name: "keep.jpg", Ext: ".jpg", Size: 1, Modified: time.Unix(1, 0)})
	c.Insert(model.CacheEntry{Path: "/gone.jpg", Name: "gone.jpg", Ext: ".jpg", Size: 1, Modified: time.Unix(1, 0)})

	n, err := c.RemoveStaleEntries(func(path string) bool { return path == "/keep.jpg" })
	if err != nil {
		t.Fatalf("remove stale: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if _, ok, _ := c.Get("/keep.jpg", 1, time.Unix(1, 0)); !ok {
		t.Error("/keep.jpg should remain")
	}
	if _, ok, _ := c.Get("/gone.jpg", 1, time.Unix(1, 0)); ok {
		t.Error("/gone.jpg should be removed")
	}
}

func TestPerformAutomaticCleanupIdempotent(t *testing.T) {
	c := mustOpenCache(t)
	for i := 0; i < 20; i++ {
		c.Insert(model.CacheEntry{
			Path: fmt.Sprintf("/f%d.jpg", i), Name: "f.jpg", Ext: ".jpg",
			Size: 1024, Modified: time.Now(), LastAccessed: time.Now(),
		})
	}

	if err := c.PerformAutomaticCleanup(TargetSizeAfterMB * 1024 * 1024 * 2); err != nil {
		t.Fatalf("first cleanup: %v", err)
	}
	statsAfterFirst, err := c.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if err := c.PerformAutomaticCleanup(TargetSizeAfterMB * 1024 * 1024 * 2); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	statsAfterSecond, err := c.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if statsAfterSecond.TotalEntries > statsAfterFirst.TotalEntries {
		t.Errorf("second cleanup grew entries: %d > %d", statsAfterSecond.TotalEntries, statsAfterFirst.TotalEntries)
	}
}
