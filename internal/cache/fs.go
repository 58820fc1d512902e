package cache

import "os"

// pathExistsOnDisk is the default existence predicate used by
// PerformAutomaticCleanup; exposed as a package-level func (rather than
// inlined) so tests can substitute RemoveStaleEntries with a fake directly.
func pathExistsOnDisk(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
