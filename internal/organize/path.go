// Package organize implements the Organizer: it moves MediaFile records into
// a destination tree laid out by year, month, or type, skipping duplicates
// according to policy and recording every move for later undo.
package organize

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eargollo/mediasort/internal/model"
)

const maxUniqueNameAttempts = 999

// targetDir returns the directory f should be filed under, relative to
// destination, per settings.OrganizeBy. separate_videos prepends a "Videos"
// segment ahead of the date path, but only for video files and only when
// organize_by isn't already "type" (which has its own Videos folder).
func targetDir(f model.MediaFile, destination string, settings model.OrganizeSettings) (string, error) {
	path := destination

	if settings.SeparateVideos && f.Type == model.FileTypeVideo && settings.OrganizeBy != model.OrganizeByType {
		path = filepath.Join(path, "Videos")
	}

	switch settings.OrganizeBy {
	case model.OrganizeByYearly:
		path = filepath.Join(path, f.Modified.Format("2006"))
	case model.OrganizeByMonthly:
		path = filepath.Join(path, f.Modified.Format("2006"), f.Modified.Format("01-January"))
	case model.OrganizeByType:
		path = filepath.Join(path, f.Type.TypeFolder())
	default:
		return "", fmt.Errorf("organize: invalid organize_by %q", settings.OrganizeBy)
	}
	return path, nil
}

// finalName applies rename-on-collision and extension lowercasing, in that
// order, matching the donor's organize_file pipeline.
func finalName(dir, name string, settings model.OrganizeSettings, exists func(string) bool) (string, error) {
	candidate := name
	if settings.RenameDuplicates {
		if exists(filepath.Join(dir, candidate)) {
			unique, err := generateUniqueName(dir, candidate, exists)
			if err != nil {
				return "", err
			}
			candidate = unique
		}
	}

	if settings.LowercaseExtension {
		ext := filepath.Ext(candidate)
		if ext != "" {
			stem := strings.TrimSuffix(candidate, ext)
			candidate = stem + strings.ToLower(ext)
		}
	}

	return candidate, nil
}

// generateUniqueName appends " (N)" before the extension, trying N = 1..999
// until a name that doesn't exist in dir is found.
func generateUniqueName(dir, originalName string, exists func(string) bool) (string, error) {
	ext := filepath.Ext(originalName)
	stem := strings.TrimSuffix(originalName, ext)

	for counter := 1; counter <= maxUniqueNameAttempts; counter++ {
		var candidate string
		if ext == "" {
			candidate = fmt.Sprintf("%s (%d)", stem, counter)
		} else {
			candidate = fmt.Sprintf("%s (%d)%s", stem, counter, ext)
		}
		if !exists(filepath.Join(dir, candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("organize: too many duplicate filenames for %q", originalName)
}
