package undo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eargollo/mediasort/internal/model"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "undo_history.json")
	m, err := New(historyPath)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, dir
}

func TestRecordMoveUndoRedo(t *testing.T) {
	m, dir := newTestManager(t)

	src := filepath.Join(dir, "a.jpg")
	dst := filepath.Join(dir, "sub", "a.jpg")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(src, dst); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordMove(src, dst); err != nil {
		t.Fatalf("record move: %v", err)
	}

	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected file at destination: %v", err)
	}

	result, ok, err := m.Undo()
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !ok {
		t.Fatal("expected undo to apply")
	}
	if result == "" {
		t.Fatal("expected non-empty result message")
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file restored to source: %v", err)
	}
	// empty parent dir should have been cleaned up
	if _, err := os.Stat(filepath.Dir(dst)); !os.IsNotExist(err) {
		t.Fatalf("expected empty destination dir to be removed")
	}

	result, ok, err = m.Redo()
	if err != nil {
		t.Fatalf("redo: %v", err)
	}
	if !ok {
		t.Fatal("expected redo to apply")
	}
	if result == "" {
		t.Fatal("expected non-empty redo result")
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected file moved back to destination: %v", err)
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	m, _ := newTestManager(t)
	_, ok, err := m.Undo()
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if ok {
		t.Fatal("expected no-op on empty history")
	}
}

func TestRecordOrganizeUndoCleansEmptyTree(t *testing.T) {
	m, dir := newTestManager(t)

	destDir := filepath.Join(dir, "2024", "03-March")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "photo.jpg")
	dst := filepath.Join(destDir, "photo.jpg")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(src, dst); err != nil {
		t.Fatal(err)
	}

	ops := []model.PrimitiveOp{model.MoveOperand(model.MoveOp{Source: src, Destination: dst})}
	if err := m.RecordOrganize(ops); err != nil {
		t.Fatalf("record organize: %v", err)
	}

	if _, _, err := m.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}

	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected file restored: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2024")); !os.IsNotExist(err) {
		t.Fatalf("expected empty year/month tree to be cleaned up")
	}
}

func TestPersistenceRoundtrip(t *testing.T) {
	m, dir := newTestManager(t)
	historyPath := filepath.Join(dir, "undo_history.json")

	src := filepath.Join(dir, "a.jpg")
	dst := filepath.Join(dir, "b.jpg")
	if err := os.WriteFile(dst, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordMove(src, dst); err != nil {
		t.Fatalf("record move: %v", err)
	}

	reloaded, err := New(historyPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.History()) != 1 {
		t.Fatalf("history length = %d, want 1", len(reloaded.History()))
	}
}
