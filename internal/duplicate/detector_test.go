package duplicate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/eargollo/mediasort/internal/model"
)

func writeTempFile(t *testing.T, dir, name string, content []byte) model.MediaFile {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", name, err)
	}
	return model.NewMediaFile(path, info.Size(), info.ModTime(), info.ModTime())
}

func TestDetectGroupsExactDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.jpg", []byte("hello world"))
	b := writeTempFile(t, dir, "b.jpg", []byte("hello world"))
	c := writeTempFile(t, dir, "c.jpg", []byte("something else"))

	d := New(nil)
	stats, err := d.Detect(context.Background(), []model.MediaFile{a, b, c}, nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	if stats.TotalGroups != 1 {
		t.Fatalf("total groups = %d, want 1", stats.TotalGroups)
	}
	if stats.TotalDuplicates != 1 {
		t.Fatalf("total duplicates = %d, want 1", stats.TotalDuplicates)
	}
	wantWasted := int64(len("hello world"))
	if stats.TotalWasted != wantWasted {
		t.Fatalf("total wasted = %d, want %d", stats.TotalWasted, wantWasted)
	}
	if len(stats.Groups[0].Files) != 2 {
		t.Fatalf("group size = %d, want 2", len(stats.Groups[0].Files))
	}
}

func TestDetectDiscardsSingletonSizeBuckets(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.jpg", []byte("unique content one"))
	b := writeTempFile(t, dir, "b.jpg", []byte("unique content two!"))

	d := New(nil)
	stats, err := d.Detect(context.Background(), []model.MediaFile{a, b}, nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if stats.TotalGroups != 0 {
		t.Fatalf("total groups = %d, want 0", stats.TotalGroups)
	}
}

func TestDetectEveryGroupInvariants(t *testing.T) {
	dir := t.TempDir()
	files := []model.MediaFile{
		writeTempFile(t, dir, "a.jpg", []byte("dup-content")),
		writeTempFile(t, dir, "b.jpg", []byte("dup-content")),
		writeTempFile(t, dir, "c.jpg", []byte("dup-content")),
		writeTempFile(t, dir, "d.jpg", []byte("not-a-dup-at-all")),
	}

	d := New(nil)
	stats, err := d.Detect(context.Background(), files, nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	for _, g := range stats.Groups {
		if len(g.Files) < 2 {
			t.Errorf("group has %d files, want >= 2", len(g.Files))
		}
		size := g.Files[0].Size
		hash := g.Files[0].Hash
		for _, f := range g.Files[1:] {
			if f.Size != size {
				t.Errorf("group member %s has size %d, want %d", f.Path, f.Size, size)
			}
			if f.Hash != hash {
				t.Errorf("group member %s has hash %q, want %q", f.Path, f.Hash, hash)
			}
		}
	}
}

func TestDetectEmptyInput(t *testing.T) {
	d := New(nil)
	stats, err := d.Detect(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if stats.TotalGroups != 0 || stats.TotalDuplicates != 0 || stats.TotalWasted != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}
