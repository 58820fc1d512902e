package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eargollo/mediasort/internal/cache"
	"github.com/eargollo/mediasort/internal/duplicate"
	"github.com/eargollo/mediasort/internal/model"
	"github.com/eargollo/mediasort/internal/progress"
)

// progressEvery controls how often a discovery progress update is emitted,
// per the spec's "emit a progress update every 100 accepted paths" rule.
const progressEvery = 100

// Config holds walker concurrency tuning.
type Config struct {
	Walkers int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Walkers: 4}
}

// Scanner walks a root directory and produces MediaFile records, consulting
// and updating the shared Cache. It never computes content hashes.
type Scanner struct {
	cache *cache.Cache
	cfg   Config
}

// New creates a Scanner backed by c.
func New(c *cache.Cache, cfg Config) *Scanner {
	return &Scanner{cache: c, cfg: cfg}
}

// Scan discovers media files under root and returns them as a set (order is
// unspecified). filterSet may be nil, meaning "accept everything".
func (s *Scanner) Scan(ctx context.Context, root string, recursive bool, settings model.ScanSettings, p *progress.Sink) ([]model.MediaFile, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("scan root %q: %w", root, err)
	}

	organizeByType := settings.OrganizeBy == model.OrganizeByType
	candidates := make(chan candidate, 1024)

	if recursive {
		go walkRecursive(ctx, root, s.cfg.Walkers, settings.SkipHidden, organizeByType, candidates)
	} else {
		go walkShallow(ctx, root, settings.SkipHidden, organizeByType, candidates)
	}

	return s.processCandidates(ctx, candidates, settings, p)
}

// ScanWithDuplicates runs Scan and then feeds the result through the
// Duplicate Detector in one call, matching the exposed
// Scanner::scan_with_duplicates collaborator interface.
func (s *Scanner) ScanWithDuplicates(ctx context.Context, root string, recursive bool, settings model.ScanSettings, p *progress.Sink) ([]model.MediaFile, model.DuplicateStats, error) {
	files, err := s.Scan(ctx, root, recursive, settings, p)
	if err != nil {
		return nil, model.DuplicateStats{}, err
	}
	detector := duplicate.New(s.cache)
	stats, err := detector.Detect(ctx, files, p)
	if err != nil {
		return files, model.DuplicateStats{}, err
	}
	return files, stats, nil
}

// processCandidates stats and cache-checks every candidate. When
// settings.Parallel and WorkerThreads > 1, candidates are processed in
// chunks of WorkerThreads*10, each chunk fully awaited before the next
// starts; otherwise candidates are processed one at a time as they arrive.
func (s *Scanner) processCandidates(ctx context.Context, candidates <-chan candidate, settings model.ScanSettings, p *progress.Sink) ([]model.MediaFile, error) {
	var (
		mu       sync.Mutex
		results  []model.MediaFile
		accepted atomic.Int64
	)

	emit := func(f model.MediaFile) {
		if settings.FilterSet != nil && !settings.FilterSet.Matches(f) {
			return
		}
		mu.Lock()
		results = append(results, f)
		mu.Unlock()
	}

	process := func(c candidate) {
		f, err := s.processOne(c.Path)
		if err != nil {
			slog.Warn("scan: skipping file", "path", c.Path, "error", err)
			return
		}
		emit(f)
		n := accepted.Add(1)
		if n%progressEvery == 0 {
			p.Advance(progressEvery, fmt.Sprintf("scanned %d files", n))
		}
	}

	if settings.Parallel && settings.WorkerThreads > 1 {
		chunkSize := settings.WorkerThreads * 10
		chunk := make([]candidate, 0, chunkSize)
		for c := range candidates {
			chunk = append(chunk, c)
			if len(chunk) == chunkSize {
				s.processChunk(chunk, process)
				chunk = chunk[:0]
			}
		}
		if len(chunk) > 0 {
			s.processChunk(chunk, process)
		}
	} else {
		for c := range candidates {
			process(c)
		}
	}

	if ctx.Err() != nil {
		return results, ctx.Err()
	}
	return results, nil
}

func (s *Scanner) processChunk(chunk []candidate, process func(candidate)) {
	var wg sync.WaitGroup
	wg.Add(len(chunk))
	for _, c := range chunk {
		go func(c candidate) {
			defer wg.Done()
			process(c)
		}(c)
	}
	wg.Wait()
}

// processOne stats path, consults the cache, and returns the MediaFile,
// inserting into the cache on a miss.
func (s *Scanner) processOne(path string) (model.MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.MediaFile{}, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return model.MediaFile{}, fmt.Errorf("not a regular file")
	}

	modified := info.ModTime()
	size := info.Size()

	if s.cache != nil {
		if entry, ok, err := s.cache.Get(path, size, modified); err != nil {
			slog.Warn("scan: cache get failed, degrading to cache-less mode", "path", path, "error", err)
		} else if ok {
			return entry.ToMediaFile(), nil
		}
	}

	// created falls back to modified: Go's os.FileInfo does not portably
	// expose a file's birth time.
	f := model.NewMediaFile(path, size, modified, modified)

	if s.cache != nil {
		entry := model.CacheEntryFromMediaFile(f, time.Now())
		if err := s.cache.Insert(entry); err != nil {
			slog.Warn("scan: cache insert failed, continuing cache-less", "path", path, "error", err)
		}
	}
	return f, nil
}
