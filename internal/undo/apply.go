package undo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/eargollo/mediasort/internal/model"
	"github.com/eargollo/mediasort/internal/trash"
)

// cleanupDepth bounds how far cleanupEmptyDirectories walks up from a
// vacated destination before giving up.
const cleanupDepth = 4

// undoOperation reverses a single recorded Operation. Individual primitive
// failures inside a batch are collected into the result message rather than
// aborting the whole undo.
func undoOperation(op model.Operation) (string, error) {
	switch op.Kind {
	case model.OpMove:
		return undoMove(*op.Move)
	case model.OpCopy:
		return undoCopy(*op.Copy)
	case model.OpDelete:
		return undoDelete(*op.Delete)
	case model.OpBatchMove:
		return undoBatch(reverseMoves(op.BatchMove))
	case model.OpBatchDelete:
		return undoBatchDelete(op.BatchDelete)
	case model.OpOrganizeFiles:
		return undoPrimitiveBatch(reversePrimitives(op.OrganizeFiles))
	default:
		return "", fmt.Errorf("undo: unknown operation kind %q", op.Kind)
	}
}

// redoOperation replays a single recorded Operation in forward direction.
func redoOperation(op model.Operation) (string, error) {
	switch op.Kind {
	case model.OpMove:
		m := *op.Move
		return redoMove(m)
	case model.OpCopy:
		c := *op.Copy
		return redoCopy(c)
	case model.OpDelete:
		return redoDelete(*op.Delete)
	case model.OpBatchMove:
		return redoBatch(op.BatchMove)
	case model.OpBatchDelete:
		return redoBatchDelete(op.BatchDelete)
	case model.OpOrganizeFiles:
		return redoPrimitiveBatch(op.OrganizeFiles)
	default:
		return "", fmt.Errorf("undo: unknown operation kind %q", op.Kind)
	}
}

func undoMove(m model.MoveOp) (string, error) {
	if !fileExists(m.Destination) {
		return "", fmt.Errorf("undo: cannot undo move, %q no longer exists", m.Destination)
	}
	if err := trash.MoveFile(m.Destination, m.Source); err != nil {
		return "", err
	}
	cleanupEmptyDirectories(filepath.Dir(m.Destination), cleanupDepth)
	return fmt.Sprintf("Restored %s to original location", m.Source), nil
}

func redoMove(m model.MoveOp) (string, error) {
	if err := os.MkdirAll(filepath.Dir(m.Destination), 0o755); err != nil {
		return "", err
	}
	if err := trash.MoveFile(m.Source, m.Destination); err != nil {
		return "", err
	}
	return fmt.Sprintf("Moved %s to %s", m.Source, m.Destination), nil
}

func undoCopy(c model.CopyOp) (string, error) {
	if !fileExists(c.Destination) {
		return "Copy already removed", nil
	}
	if err := os.Remove(c.Destination); err != nil {
		return "", err
	}
	cleanupEmptyDirectories(filepath.Dir(c.Destination), cleanupDepth)
	return fmt.Sprintf("Removed copy at %s", c.Destination), nil
}

func redoCopy(c model.CopyOp) (string, error) {
	if err := copyFile(c.Source, c.Destination); err != nil {
		return "", err
	}
	return fmt.Sprintf("Copied %s to %s", c.Source, c.Destination), nil
}

func undoDelete(d model.DeleteOp) (string, error) {
	if d.BackupPath == "" {
		return "", fmt.Errorf("undo: no backup available for deleted file %q", d.Path)
	}
	if !fileExists(d.BackupPath) {
		return "", fmt.Errorf("undo: backup file %q not found", d.BackupPath)
	}
	if err := trash.MoveFile(d.BackupPath, d.Path); err != nil {
		return "", err
	}
	return fmt.Sprintf("Restored %s from backup", d.Path), nil
}

func redoDelete(d model.DeleteOp) (string, error) {
	if d.BackupPath == "" {
		if err := os.Remove(d.Path); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted %s", d.Path), nil
	}
	if err := trash.MoveFile(d.Path, d.BackupPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s (backed up)", d.Path), nil
}

// undoBatch reverses a list of moves already reversed into (from=dest,
// to=source) order by the caller, in last-recorded-first order.
func undoBatch(reversed []model.MoveOp) (string, error) {
	success := 0
	var errs []string
	cleaned := make(map[string]bool)

	for _, m := range reversed {
		if !fileExists(m.Source) {
			continue
		}
		if err := trash.MoveFile(m.Source, m.Destination); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		success++
		cleaned[filepath.Dir(m.Source)] = true
	}
	for dir := range cleaned {
		cleanupEmptyDirectories(dir, cleanupDepth)
	}

	if len(errs) == 0 {
		return fmt.Sprintf("Restored %d files to original locations", success), nil
	}
	return fmt.Sprintf("Restored %d files (%d errors)", success, len(errs)), nil
}

func redoBatch(ops []model.MoveOp) (string, error) {
	success := 0
	var errs []string
	for _, m := range ops {
		if err := os.MkdirAll(filepath.Dir(m.Destination), 0o755); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if err := trash.MoveFile(m.Source, m.Destination); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		success++
	}
	if len(errs) == 0 {
		return fmt.Sprintf("Moved %d files", success), nil
	}
	return fmt.Sprintf("Moved %d files (%d errors)", success, len(errs)), nil
}

func undoBatchDelete(ops []model.DeleteOp) (string, error) {
	restored := 0
	var errs []string
	for _, d := range ops {
		if d.BackupPath == "" || !fileExists(d.BackupPath) {
			continue
		}
		if err := trash.MoveFile(d.BackupPath, d.Path); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		restored++
	}
	if len(errs) == 0 {
		return fmt.Sprintf("Restored %d deleted files", restored), nil
	}
	return fmt.Sprintf("Restored %d deleted files (%d errors)", restored, len(errs)), nil
}

func redoBatchDelete(ops []model.DeleteOp) (string, error) {
	deleted := 0
	for _, d := range ops {
		if err := os.Remove(d.Path); err != nil {
			continue
		}
		deleted++
	}
	return fmt.Sprintf("Deleted %d files", deleted), nil
}

// undoPrimitiveBatch reverses an OrganizeFiles batch in reverse-recorded
// order, dispatching each primitive by kind.
func undoPrimitiveBatch(reversed []model.PrimitiveOp) (string, error) {
	success := 0
	var errs []string
	cleaned := make(map[string]bool)

	for _, p := range reversed {
		switch p.Kind {
		case model.OpMove:
			m := *p.Move
			if !fileExists(m.Destination) {
				continue
			}
			if err := trash.MoveFile(m.Destination, m.Source); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			success++
			cleaned[filepath.Dir(m.Destination)] = true
		case model.OpCopy:
			c := *p.Copy
			if !fileExists(c.Destination) {
				continue
			}
			if err := os.Remove(c.Destination); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			success++
			cleaned[filepath.Dir(c.Destination)] = true
		case model.OpDelete:
			d := *p.Delete
			if d.BackupPath == "" || !fileExists(d.BackupPath) {
				continue
			}
			if err := trash.MoveFile(d.BackupPath, d.Path); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			success++
		}
	}
	for dir := range cleaned {
		cleanupEmptyDirectories(dir, cleanupDepth)
	}

	if len(errs) == 0 {
		return fmt.Sprintf("Undid organization of %d files", success), nil
	}
	return fmt.Sprintf("Undid %d operations (%d errors)", success, len(errs)), nil
}

func redoPrimitiveBatch(ops []model.PrimitiveOp) (string, error) {
	success := 0
	var errs []string
	for _, p := range ops {
		switch p.Kind {
		case model.OpMove:
			m := *p.Move
			if err := os.MkdirAll(filepath.Dir(m.Destination), 0o755); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			if err := trash.MoveFile(m.Source, m.Destination); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			success++
		case model.OpCopy:
			c := *p.Copy
			if err := copyFile(c.Source, c.Destination); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			success++
		case model.OpDelete:
			d := *p.Delete
			var err error
			if d.BackupPath != "" {
				err = trash.MoveFile(d.Path, d.BackupPath)
			} else {
				err = os.Remove(d.Path)
			}
			if err != nil {
				errs = append(errs, err.Error())
				continue
			}
			success++
		}
	}
	if len(errs) == 0 {
		return fmt.Sprintf("Organized %d files", success), nil
	}
	return fmt.Sprintf("Organized %d files (%d errors)", success, len(errs)), nil
}

// reverseMoves flips Source/Destination and walks in reverse-recorded order,
// so the last move applied is the first one undone.
func reverseMoves(ops []model.MoveOp) []model.MoveOp {
	out := make([]model.MoveOp, len(ops))
	for i, m := range ops {
		out[len(ops)-1-i] = model.MoveOp{Source: m.Destination, Destination: m.Source}
	}
	return out
}

// reversePrimitives walks an OrganizeFiles batch in reverse-recorded order;
// per-kind field flipping happens in undoPrimitiveBatch since Delete ops
// aren't simply invertible the way Move/Copy are.
func reversePrimitives(ops []model.PrimitiveOp) []model.PrimitiveOp {
	out := make([]model.PrimitiveOp, len(ops))
	for i, p := range ops {
		out[len(ops)-1-i] = p
	}
	return out
}

// cleanupEmptyDirectories removes path and walks upward through its parents
// while each is empty, stopping at the first non-empty directory or after
// maxDepth steps. A read or remove failure just stops the walk; it is not
// reported to the caller.
func cleanupEmptyDirectories(path string, maxDepth int) {
	current := path
	for depth := 0; depth < maxDepth; depth++ {
		entries, err := os.ReadDir(current)
		if err != nil {
			return
		}
		if len(entries) != 0 {
			return
		}
		if err := os.Remove(current); err != nil {
			return
		}
		parent := filepath.Dir(current)
		if parent == current {
			return
		}
		current = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
