package organize

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eargollo/mediasort/internal/model"
)

func writeFile(t *testing.T, dir, name string, content []byte, modified time.Time) model.MediaFile {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := os.Chtimes(path, modified, modified); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	f := model.NewMediaFile(path, int64(len(content)), modified, modified)
	return f
}

func TestOrganizeMonthly(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	modified := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	f := writeFile(t, src, "image.jpg", []byte("data"), modified)

	o := New(nil)
	settings := model.OrganizeSettings{Destination: dest, OrganizeBy: model.OrganizeByMonthly}
	result, err := o.Organize(context.Background(), []model.MediaFile{f}, model.DuplicateStats{}, settings, nil)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	if result.FilesOrganized != 1 || !result.Success {
		t.Fatalf("result = %+v", result)
	}

	want := filepath.Join(dest, "2024", "03-March", "image.jpg")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected file at %s: %v", want, err)
	}
	if _, err := os.Stat(f.Path); !os.IsNotExist(err) {
		t.Fatalf("source file still exists at %s", f.Path)
	}
}

func TestOrganizeSkipsDuplicatesByDefault(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	older := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

	a := writeFile(t, src, "a.jpg", []byte("dup"), older)
	b := writeFile(t, src, "b.jpg", []byte("dup"), newer)
	a = a.WithHash("samehash")
	b = b.WithHash("samehash")

	duplicates := model.NewDuplicateStats([]model.DuplicateGroup{
		{Files: []model.MediaFile{a, b}, WastedBytes: a.Size},
	})

	o := New(nil)
	settings := model.OrganizeSettings{Destination: dest, OrganizeBy: model.OrganizeByType, RenameDuplicates: false}
	result, err := o.Organize(context.Background(), []model.MediaFile{a, b}, duplicates, settings, nil)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	if result.FilesOrganized != 1 {
		t.Fatalf("files organized = %d, want 1", result.FilesOrganized)
	}
	if result.SkippedDuplicates != 1 {
		t.Fatalf("skipped duplicates = %d, want 1", result.SkippedDuplicates)
	}
	if _, err := os.Stat(filepath.Join(dest, "Images", "a.jpg")); err != nil {
		t.Fatalf("expected oldest file organized: %v", err)
	}
	if _, err := os.Stat(b.Path); err != nil {
		t.Fatalf("newer duplicate should be left in place: %v", err)
	}
}

func TestGenerateUniqueNameCollision(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	name, err := generateUniqueName(dir, "photo.jpg", fileExists)
	if err != nil {
		t.Fatalf("generateUniqueName: %v", err)
	}
	if name != "photo (1).jpg" {
		t.Fatalf("name = %q, want %q", name, "photo (1).jpg")
	}
}

func TestTargetDirSeparateVideos(t *testing.T) {
	modified := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	f := model.MediaFile{Type: model.FileTypeVideo, Modified: modified}
	settings := model.OrganizeSettings{OrganizeBy: model.OrganizeByMonthly, SeparateVideos: true}

	dir, err := targetDir(f, "/dest", settings)
	if err != nil {
		t.Fatalf("targetDir: %v", err)
	}
	want := filepath.Join("/dest", "Videos", "2024", "03-March")
	if dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}
}

func TestTargetDirSeparateVideosIgnoredForType(t *testing.T) {
	modified := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	f := model.MediaFile{Type: model.FileTypeVideo, Modified: modified}
	settings := model.OrganizeSettings{OrganizeBy: model.OrganizeByType, SeparateVideos: true}

	dir, err := targetDir(f, "/dest", settings)
	if err != nil {
		t.Fatalf("targetDir: %v", err)
	}
	want := filepath.Join("/dest", "Videos")
	if dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}
}
