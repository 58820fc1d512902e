package organize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/eargollo/mediasort/internal/model"
	"github.com/eargollo/mediasort/internal/progress"
	"github.com/eargollo/mediasort/internal/trash"
	"github.com/eargollo/mediasort/internal/undo"
)

// Organizer moves MediaFile records into a destination tree and records
// every successful move with an undo Manager.
type Organizer struct {
	undo *undo.Manager
}

// New creates an Organizer. undoMgr may be nil, in which case organized
// batches are never recorded and Undo/Redo have nothing to act on.
func New(undoMgr *undo.Manager) *Organizer {
	return &Organizer{undo: undoMgr}
}

// Organize files files into settings.Destination, skipping duplicates per
// settings.RenameDuplicates, and returns a summary. Per-file failures are
// collected in the result's Errors and never abort the batch.
func (o *Organizer) Organize(ctx context.Context, files []model.MediaFile, duplicates model.DuplicateStats, settings model.OrganizeSettings, p *progress.Sink) (model.OrganizeResult, error) {
	if settings.Destination == "" {
		return model.OrganizeResult{}, fmt.Errorf("organize: destination not configured")
	}
	switch settings.OrganizeBy {
	case model.OrganizeByYearly, model.OrganizeByMonthly, model.OrganizeByType:
	default:
		return model.OrganizeResult{}, fmt.Errorf("organize: invalid organize_by %q", settings.OrganizeBy)
	}

	filesTotal := len(files)
	toOrganize, skipped := filterDuplicates(files, duplicates, settings)

	p.Set(0, int64(len(toOrganize)), "organizing files")

	var ops []model.PrimitiveOp
	var errs []string
	var combined error
	moved := 0

	for i, f := range toOrganize {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err().Error())
			combined = multierr.Append(combined, ctx.Err())
			break
		}
		destPath, err := o.organizeOne(f, settings)
		if err != nil {
			fileErr := fmt.Errorf("%s: %w", f.Name, err)
			combined = multierr.Append(combined, fileErr)
			errs = append(errs, fileErr.Error())
		} else {
			ops = append(ops, model.MoveOperand(model.MoveOp{Source: f.Path, Destination: destPath}))
			moved++
			slog.Info("organize: moved file", "from", f.Path, "to", destPath)
		}
		p.Advance(1, fmt.Sprintf("organized %d/%d", i+1, len(toOrganize)))
	}
	if combined != nil {
		slog.Error("organize: batch completed with per-file errors", "errors", multierr.Errors(combined), "failed_count", len(multierr.Errors(combined)))
	}

	if len(ops) > 0 && settings.UndoEnabled && o.undo != nil {
		if err := o.undo.RecordOrganize(ops); err != nil {
			slog.Error("organize: failed to record undo batch", "error", err)
		}
	}

	return model.OrganizeResult{
		FilesOrganized:    moved,
		FilesTotal:        filesTotal,
		Destination:       settings.Destination,
		Success:           len(errs) == 0,
		Timestamp:         time.Now(),
		SkippedDuplicates: skipped,
		Errors:            errs,
	}, nil
}

// filterDuplicates applies the rename_duplicates policy: when true, every
// file is organized; when false, only the oldest-by-modified file in each
// duplicate group survives, plus every file that isn't part of any group.
func filterDuplicates(files []model.MediaFile, duplicates model.DuplicateStats, settings model.OrganizeSettings) ([]model.MediaFile, int) {
	if settings.RenameDuplicates || len(duplicates.Groups) == 0 {
		return files, 0
	}

	inGroup := make(map[string]bool)
	survivors := make(map[string]bool)
	skipped := 0

	for _, g := range duplicates.Groups {
		if len(g.Files) < 2 {
			continue
		}
		oldest := g.Files[0]
		for _, f := range g.Files[1:] {
			if f.Modified.Before(oldest.Modified) {
				oldest = f
			} else if f.Modified.Equal(oldest.Modified) && f.Path < oldest.Path {
				oldest = f
			}
		}
		survivors[oldest.Path] = true
		skipped += len(g.Files) - 1
		for _, f := range g.Files {
			inGroup[f.Path] = true
		}
	}

	var result []model.MediaFile
	for _, f := range files {
		if !inGroup[f.Path] || survivors[f.Path] {
			result = append(result, f)
		}
	}

	return result, skipped
}

// organizeOne plans the destination, creates the target directory, resolves
// naming, and moves the file. Returns the final destination path.
func (o *Organizer) organizeOne(f model.MediaFile, settings model.OrganizeSettings) (string, error) {
	dir, err := targetDir(f, settings.Destination, settings)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create target dir: %w", err)
	}

	name, err := finalName(dir, f.Name, settings, fileExists)
	if err != nil {
		return "", err
	}

	destPath := filepath.Join(dir, name)
	if err := trash.MoveFile(f.Path, destPath); err != nil {
		return "", fmt.Errorf("move: %w", err)
	}
	return destPath, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
