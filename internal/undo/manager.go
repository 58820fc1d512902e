// Package undo implements the Undo Manager: an append-only, disk-persisted
// log of file operations performed by the Organizer, with the ability to
// reverse (Undo) or replay (Redo) the most recent entry.
package undo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eargollo/mediasort/internal/model"
)

// maxHistory bounds the in-memory and on-disk log; the oldest entries are
// trimmed once it's exceeded.
const maxHistory = 10000

// Manager serializes all reads and writes of the undo/redo log behind a
// single RWMutex and persists every change to historyPath.
type Manager struct {
	mu          sync.RWMutex
	history     []model.UndoableOperation
	redoStack   []model.UndoableOperation
	historyPath string
}

// New creates a Manager backed by historyPath, loading any existing log.
// A missing file is not an error; it means "empty history".
func New(historyPath string) (*Manager, error) {
	m := &Manager{historyPath: historyPath}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.historyPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("undo: read history: %w", err)
	}
	var ops []model.UndoableOperation
	if err := json.Unmarshal(data, &ops); err != nil {
		return fmt.Errorf("undo: parse history: %w", err)
	}
	if len(ops) > maxHistory {
		ops = ops[len(ops)-maxHistory:]
	}
	m.history = ops
	return nil
}

// save writes the history atomically: it writes to a temp file in the same
// directory, then renames over historyPath, so a crash mid-write never
// leaves a truncated log.
func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.historyPath), 0o755); err != nil {
		return fmt.Errorf("undo: create history dir: %w", err)
	}
	data, err := json.MarshalIndent(m.history, "", "  ")
	if err != nil {
		return fmt.Errorf("undo: marshal history: %w", err)
	}
	tmp := m.historyPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("undo: write temp history: %w", err)
	}
	if err := os.Rename(tmp, m.historyPath); err != nil {
		return fmt.Errorf("undo: commit history: %w", err)
	}
	return nil
}

// recordOperation appends op to the history, clears the redo stack (a fresh
// operation invalidates any previously-undone branch), trims to maxHistory,
// and persists.
func (m *Manager) recordOperation(op model.Operation, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.redoStack = nil
	m.history = append(m.history, model.UndoableOperation{
		ID:          uuid.NewString(),
		Operation:   op,
		Timestamp:   time.Now(),
		Description: description,
	})
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	return m.save()
}

// RecordMove logs a single file move.
func (m *Manager) RecordMove(source, destination string) error {
	return m.recordOperation(
		model.NewMoveOperation(source, destination),
		fmt.Sprintf("Moved %s to %s", source, destination),
	)
}

// RecordOrganize logs a batch of moves/copies/deletes produced by one
// Organize run, undone/redone together as a unit.
func (m *Manager) RecordOrganize(ops []model.PrimitiveOp) error {
	return m.recordOperation(
		model.NewOrganizeFilesOperation(ops),
		fmt.Sprintf("Organized %d files", len(ops)),
	)
}

// Undo reverses the most recent non-undone operation and returns a
// human-readable result message. ok is false when there's nothing to undo.
func (m *Manager) Undo() (result string, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := -1
	for i := len(m.history) - 1; i >= 0; i-- {
		if !m.history[i].Undone {
			pos = i
			break
		}
	}
	if pos == -1 {
		return "", false, nil
	}

	result, err = undoOperation(m.history[pos].Operation)
	if err != nil {
		return "", false, err
	}

	m.history[pos].Undone = true
	m.redoStack = append(m.redoStack, m.history[pos])

	if err := m.save(); err != nil {
		return "", false, err
	}
	return result, true, nil
}

// Redo replays the most recently undone operation. ok is false when the
// redo stack is empty.
func (m *Manager) Redo() (result string, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.redoStack) == 0 {
		return "", false, nil
	}
	op := m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]

	result, err = redoOperation(op.Operation)
	if err != nil {
		return "", false, err
	}

	for i := range m.history {
		if m.history[i].ID == op.ID {
			m.history[i].Undone = false
			break
		}
	}

	if err := m.save(); err != nil {
		return "", false, err
	}
	return result, true, nil
}

// History returns a snapshot of the full log, oldest first.
func (m *Manager) History() []model.UndoableOperation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.UndoableOperation, len(m.history))
	copy(out, m.history)
	return out
}
