package duplicate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eargollo/mediasort/internal/cache"
	"github.com/eargollo/mediasort/internal/model"
	"github.com/eargollo/mediasort/internal/progress"
)

// maxConcurrentHashers bounds the errgroup fan-out so a detection run
// against a huge candidate set doesn't open thousands of file descriptors
// at once.
const maxConcurrentHashers = 8

// Detector partitions a MediaFile set into DuplicateStats.
type Detector struct {
	cache *cache.Cache
}

// New creates a Detector. cache may be nil, in which case computed hashes
// are not backfilled. Either way every candidate is hashed from its content
// on every detection run; a Hash already set on a MediaFile is not reused.
func New(c *cache.Cache) *Detector {
	return &Detector{cache: c}
}

// Detect buckets files by size, hashes each surviving bucket's members
// concurrently, and groups by hash. Hashing errors drop only the affected
// file from grouping, never the whole run.
func (d *Detector) Detect(ctx context.Context, files []model.MediaFile, p *progress.Sink) (model.DuplicateStats, error) {
	buckets := make(map[int64][]model.MediaFile)
	for _, f := range files {
		buckets[f.Size] = append(buckets[f.Size], f)
	}

	var toHash []model.MediaFile
	for _, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		toHash = append(toHash, bucket...)
	}
	p.Set(0, int64(len(toHash)), "hashing candidates")

	hashed := d.hashAll(ctx, toHash, p)

	hashBuckets := make(map[hashKey][]model.MediaFile)
	for _, f := range hashed {
		if f.Hash == "" {
			continue
		}
		key := hashKey{size: f.Size, hash: f.Hash}
		hashBuckets[key] = append(hashBuckets[key], f)
	}

	var groups []model.DuplicateGroup
	for _, members := range hashBuckets {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, model.DuplicateGroup{
			Files:       members,
			WastedBytes: int64(len(members)-1) * members[0].Size,
		})
	}

	return model.NewDuplicateStats(groups), nil
}

type hashKey struct {
	size int64
	hash string
}

// hashAll computes contentHash for every file concurrently (bounded
// fan-out), backfilling the cache on success and logging+dropping on
// failure. Results preserve no particular order.
func (d *Detector) hashAll(ctx context.Context, files []model.MediaFile, p *progress.Sink) []model.MediaFile {
	if len(files) == 0 {
		return nil
	}

	results := make([]model.MediaFile, 0, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentHashers)

	for _, f := range files {
		f := f
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			hash, err := contentHash(f.Path, f.Size)
			if err != nil {
				slog.Warn("duplicate: hash failed, excluding from grouping", "path", f.Path, "error", err)
				p.Advance(1, "")
				return nil
			}
			hf := f.WithHash(hash)
			if d.cache != nil {
				if err := d.cache.UpdateHash(f.Path, hash); err != nil {
					slog.Warn("duplicate: cache backfill failed", "path", f.Path, "error", err)
				}
			}
			mu.Lock()
			results = append(results, hf)
			mu.Unlock()
			p.Advance(1, fmt.Sprintf("hashed %s", f.Name))
			return nil
		})
	}
	// Errors here only ever propagate context cancellation; per-file
	// hashing failures are handled inline above and never abort the run.
	_ = g.Wait()

	return results
}
