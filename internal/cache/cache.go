// Package cache implements the durable, concurrent-access-safe map from
// file path to CacheEntry that every subsystem consults before re-reading
// or re-hashing a file, plus the maintenance routines that keep the
// backing SQLite database bounded.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eargollo/mediasort/internal/model"
)

// Size-bound constants, carried over exactly from the original
// implementation's database_cache module.
const (
	MaxDBSizeMB           = 500
	MaxEntries            = 1_000_000
	CleanupThresholdMB    = 400
	TargetSizeAfterMB     = 300
	staleEntryBatchSize   = 500
	evictionChunkSize     = 1_000
	unaccessedPurgeDays   = 90
	nullHashPurgeAgeDays  = 30
	maxProportionalPurge  = 0.25
)

// Cache wraps a *sql.DB already migrated to the file_cache schema.
type Cache struct {
	db   *sql.DB
	path string // underlying database file path, for size checks
}

// New wraps an already-open, already-migrated database handle.
func New(db *sql.DB, dbPath string) *Cache {
	return &Cache{db: db, path: dbPath}
}

// Get returns the cache entry for path iff (path, size, modified) matches
// verbatim. On a hit, LastAccessed and AccessCount are bumped as a side
// effect.
func (c *Cache) Get(path string, size int64, modified time.Time) (model.CacheEntry, bool, error) {
	row := c.db.QueryRow(`
		SELECT name, extension, size, modified, hash, metadata, last_accessed, access_count
		FROM file_cache WHERE path = ? AND size = ? AND modified = ?`,
		path, size, modified.Unix())

	entry, err := scanEntry(path, row)
	if err == sql.ErrNoRows {
		return model.CacheEntry{}, false, nil
	}
	if err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("cache get %q: %w", path, err)
	}

	now := time.Now()
	if _, err := c.db.Exec(
		`UPDATE file_cache SET last_accessed = ?, access_count = access_count + 1 WHERE path = ?`,
		now.Unix(), path,
	); err != nil {
		return entry, true, fmt.Errorf("cache bump access %q: %w", path, err)
	}
	entry.LastAccessed = now
	entry.AccessCount++
	return entry, true, nil
}

// Insert upserts entry by primary key. The size-guard trigger on file_cache
// handles MaxEntries eviction automatically.
func (c *Cache) Insert(entry model.CacheEntry) error {
	metaJSON, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("cache insert %q: %w", entry.Path, err)
	}
	if entry.LastAccessed.IsZero() {
		entry.LastAccessed = time.Now()
	}
	if entry.AccessCount == 0 {
		entry.AccessCount = 1
	}
	_, err = c.db.Exec(`
		INSERT INTO file_cache (path, name, extension, size, modified, hash, metadata, last_accessed, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name, extension = excluded.extension, size = excluded.size,
			modified = excluded.modified, hash = excluded.hash, metadata = excluded.metadata,
			last_accessed = excluded.last_accessed, access_count = excluded.access_count`,
		entry.Path, entry.Name, entry.Ext, entry.Size, entry.Modified.Unix(),
		nullIfEmpty(entry.Hash), metaJSON, entry.LastAccessed.Unix(), entry.AccessCount)
	if err != nil {
		return fmt.Errorf("cache insert %q: %w", entry.Path, err)
	}
	return nil
}

// UpdateHash backfills only the hash column; access stats are untouched.
func (c *Cache) UpdateHash(path, hash string) error {
	_, err := c.db.Exec(`UPDATE file_cache SET hash = ? WHERE path = ?`, hash, path)
	if err != nil {
		return fmt.Errorf("cache update hash %q: %w", path, err)
	}
	return nil
}

// GetByHashes returns every cache entry whose hash is in hashes. An empty
// input returns an empty result without a round trip.
func (c *Cache) GetByHashes(hashes []string) ([]model.CacheEntry, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	query, args := inClauseQuery(`
		SELECT path, name, extension, size, modified, hash, metadata, last_accessed, access_count
		FROM file_cache WHERE hash IN (%s)`, hashes)
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("cache get by hashes: %w", err)
	}
	defer rows.Close()

	var out []model.CacheEntry
	for rows.Next() {
		entry, err := scanEntryRows(rows)
		if err != nil {
			return nil, fmt.Errorf("cache get by hashes: scan: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// GetStats aggregates row count, hash-count, total size, and average access
// count across the whole cache.
func (c *Cache) GetStats() (model.CacheStats, error) {
	var stats model.CacheStats
	err := c.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(hash),
		       COALESCE(SUM(size), 0),
		       COALESCE(AVG(access_count), 0)
		FROM file_cache`,
	).Scan(&stats.TotalEntries, &stats.HashedEntries, &stats.TotalSize, &stats.AvgAccesses)
	if err != nil {
		return model.CacheStats{}, fmt.Errorf("cache get stats: %w", err)
	}
	return stats, nil
}

// RemoveStaleEntries deletes every cached path that no longer exists on
// disk, tested in batches and removed in a single transaction.
func (c *Cache) RemoveStaleEntries(exists func(path string) bool) (int64, error) {
	rows, err := c.db.Query(`SELECT path FROM file_cache`)
	if err != nil {
		return 0, fmt.Errorf("cache remove stale: list: %w", err)
	}
	var all []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("cache remove stale: scan: %w", err)
		}
		all = append(all, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var stale []string
	for i := 0; i < len(all); i += staleEntryBatchSize {
		end := min(i+staleEntryBatchSize, len(all))
		for _, p := range all[i:end] {
			if !exists(p) {
				stale = append(stale, p)
			}
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("cache remove stale: begin tx: %w", err)
	}
	query, args := inClauseQuery(`DELETE FROM file_cache WHERE path IN (%s)`, stale)
	res, err := tx.Exec(query, args...)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("cache remove stale: delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cache remove stale: commit: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ── maintenance ──────────────────────────────────────────────────────────

// CheckAndCleanup runs PerformAutomaticCleanup iff the database file has
// grown to at least CleanupThresholdMB.
func (c *Cache) CheckAndCleanup(fileSizeBytes int64) error {
	if fileSizeBytes < CleanupThresholdMB*1024*1024 {
		return nil
	}
	return c.PerformAutomaticCleanup(fileSizeBytes)
}

// PerformAutomaticCleanup runs the fixed five-step sequence: purge
// long-unaccessed rows, purge stale paths, purge stale NULL-hash rows,
// proportionally purge by LRU if still over target, then VACUUM.
func (c *Cache) PerformAutomaticCleanup(fileSizeBytes int64) error {
	now := time.Now()

	if _, err := c.db.Exec(`DELETE FROM file_cache WHERE last_accessed < ?`,
		now.Add(-unaccessedPurgeDays*24*time.Hour).Unix()); err != nil {
		return fmt.Errorf("cleanup: purge unaccessed: %w", err)
	}

	if _, err := c.RemoveStaleEntries(pathExistsOnDisk); err != nil {
		return fmt.Errorf("cleanup: remove stale: %w", err)
	}

	if _, err := c.db.Exec(`DELETE FROM file_cache WHERE hash IS NULL AND modified < ?`,
		now.Add(-nullHashPurgeAgeDays*24*time.Hour).Unix()); err != nil {
		return fmt.Errorf("cleanup: purge null-hash: %w", err)
	}

	if fileSizeBytes > TargetSizeAfterMB*1024*1024 {
		if err := c.removeLeastRecentlyUsed(fileSizeBytes); err != nil {
			return fmt.Errorf("cleanup: LRU purge: %w", err)
		}
	}

	if _, err := c.db.Exec(`PRAGMA incremental_vacuum`); err != nil {
		return fmt.Errorf("cleanup: vacuum: %w", err)
	}
	return nil
}

// removeLeastRecentlyUsed deletes the lowest-last_accessed rows, bounded by
// both the estimated byte excess over target and 25% of the row count, in
// chunks of evictionChunkSize.
func (c *Cache) removeLeastRecentlyUsed(fileSizeBytes int64) error {
	var rowCount int64
	var totalSize int64
	if err := c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size),0) FROM file_cache`).
		Scan(&rowCount, &totalSize); err != nil {
		return err
	}
	if rowCount == 0 {
		return nil
	}

	avgEntrySize := totalSize / rowCount
	if avgEntrySize == 0 {
		avgEntrySize = 1
	}
	excessBytes := fileSizeBytes - TargetSizeAfterMB*1024*1024
	if excessBytes <= 0 {
		return nil
	}

	byBytes := excessBytes / avgEntrySize
	byProportion := int64(float64(rowCount) * maxProportionalPurge)
	toRemove := min(byBytes, byProportion)
	if toRemove <= 0 {
		return nil
	}

	for toRemove > 0 {
		chunk := min(toRemove, int64(evictionChunkSize))
		res, err := c.db.Exec(`
			DELETE FROM file_cache WHERE path IN (
				SELECT path FROM file_cache ORDER BY last_accessed ASC LIMIT ?
			)`, chunk)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			break
		}
		toRemove -= n
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(path string, row rowScanner) (model.CacheEntry, error) {
	var (
		name, ext          string
		size, lastAccessed int64
		modified           int64
		hash, metaJSON     sql.NullString
		accessCount        int64
	)
	if err := row.Scan(&name, &ext, &size, &modified, &hash, &metaJSON, &lastAccessed, &accessCount); err != nil {
		return model.CacheEntry{}, err
	}
	meta, err := unmarshalMetadata(metaJSON)
	if err != nil {
		return model.CacheEntry{}, err
	}
	return model.CacheEntry{
		Path: path, Name: name, Ext: ext, Size: size,
		Modified: time.Unix(modified, 0), Hash: hash.String, Metadata: meta,
		LastAccessed: time.Unix(lastAccessed, 0), AccessCount: accessCount,
	}, nil
}

func scanEntryRows(rows *sql.Rows) (model.CacheEntry, error) {
	var (
		path, name, ext    string
		size, lastAccessed int64
		modified           int64
		hash, metaJSON     sql.NullString
		accessCount        int64
	)
	if err := rows.Scan(&path, &name, &ext, &size, &modified, &hash, &metaJSON, &lastAccessed, &accessCount); err != nil {
		return model.CacheEntry{}, err
	}
	meta, err := unmarshalMetadata(metaJSON)
	if err != nil {
		return model.CacheEntry{}, err
	}
	return model.CacheEntry{
		Path: path, Name: name, Ext: ext, Size: size,
		Modified: time.Unix(modified, 0), Hash: hash.String, Metadata: meta,
		LastAccessed: time.Unix(lastAccessed, 0), AccessCount: accessCount,
	}, nil
}

func marshalMetadata(m *model.Metadata) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalMetadata(ns sql.NullString) (*model.Metadata, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m model.Metadata
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// inClauseQuery builds a query with a `(?, ?, ...)` placeholder list for an
// IN clause, formatted into queryTemplate's single %s verb.
func inClauseQuery(queryTemplate string, values []string) (string, []any) {
	placeholders := ""
	args := make([]any, len(values))
	for i, v := range values {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = v
	}
	return fmt.Sprintf(queryTemplate, placeholders), args
}
