// Package downloader runs media downloads through a bounded worker pool
// with content-hash deduplication.
package downloader

import (
	"bytes"
	"context"
	"crypto/md5"
	"io"
	"sync"
	"time"

	"mediagrab/pkg/logger"
	"mediagrab/pkg/media"
)

// Status classifies the terminal state of a single download attempt.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusSkippedExisting  Status = "skipped_existing"
	StatusSkippedDuplicate Status = "skipped_duplicate"
	StatusFailed           Status = "failed"
)

// Outcome records what happened to one media item during a run.
type Outcome struct {
	Item     media.Item
	Status   Status
	Path     string
	Size     int64
	Err      error
	Duration time.Duration
}

// Stats aggregates outcomes for reporting.
type Stats struct {
	Success          int
	SkippedExisting  int
	SkippedDuplicate int
	Failed           int
}

// Total returns the number of items accounted for.
func (s Stats) Total() int {
	return s.Success + s.SkippedExisting + s.SkippedDuplicate + s.Failed
}

// Merge returns the element-wise sum of two stat sets.
func (s Stats) Merge(other Stats) Stats {
	return Stats{
		Success:          s.Success + other.Success,
		SkippedExisting:  s.SkippedExisting + other.SkippedExisting,
		SkippedDuplicate: s.SkippedDuplicate + other.SkippedDuplicate,
		Failed:           s.Failed + other.Failed,
	}
}

// MediaFetcher retrieves the full contents of a media URL.
type MediaFetcher interface {
	FetchBytes(ctx context.Context, mediaURL string) ([]byte, error)
}

// MediaStore resolves destination paths and persists downloaded bytes.
type MediaStore interface {
	ItemPath(item media.Item) string
	Exists(path string) bool
	Save(r io.Reader, path string) (int64, error)
}

// fingerprintSet tracks content hashes seen during a single run.
type fingerprintSet struct {
	mu   sync.Mutex
	seen map[[md5.Size]byte]struct{}
}

func newFingerprintSet() *fingerprintSet {
	return &fingerprintSet{seen: make(map[[md5.Size]byte]struct{})}
}

// add records the fingerprint and reports whether it was new.
func (f *fingerprintSet) add(sum [md5.Size]byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[sum]; ok {
		return false
	}
	f.seen[sum] = struct{}{}
	return true
}

func (f *fingerprintSet) remove(sum [md5.Size]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, sum)
}

// Engine downloads media items concurrently, skipping files that already
// exist on disk and collapsing byte-identical content to a single write.
type Engine struct {
	concurrency  int
	skipExisting bool
	fetcher      MediaFetcher
	store        MediaStore
	logger       logger.Logger
}

// NewEngine creates an engine that runs at most concurrency downloads at
// once. Concurrency values below 1 are clamped to 1.
func NewEngine(concurrency int, fetcher MediaFetcher, store MediaStore, skipExisting bool, log logger.Logger) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{
		concurrency:  concurrency,
		skipExisting: skipExisting,
		fetcher:      fetcher,
		store:        store,
		logger:       log,
	}
}

// Run downloads the given items and returns one outcome per item along
// with aggregate stats. Items whose destination file already exists are
// resolved before entering the worker pool, so they never occupy a
// download slot. Deduplication state is scoped to this call.
func (e *Engine) Run(ctx context.Context, items []media.Item) ([]Outcome, Stats) {
	outcomes := make([]Outcome, 0, len(items))
	pending := make([]media.Item, 0, len(items))

	for _, item := range items {
		path := e.store.ItemPath(item)
		if e.skipExisting && e.store.Exists(path) {
			e.logger.DebugWithFields("skipping existing file", map[string]interface{}{"path": path})
			outcomes = append(outcomes, Outcome{Item: item, Status: StatusSkippedExisting, Path: path})
			continue
		}
		pending = append(pending, item)
	}

	if len(pending) > 0 {
		jobs := make(chan media.Item)
		results := make(chan Outcome, len(pending))
		fingerprints := newFingerprintSet()

		var wg sync.WaitGroup
		for i := 0; i < e.concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for item := range jobs {
					results <- e.process(ctx, item, fingerprints)
				}
			}()
		}

		submitted := 0
	submit:
		for _, item := range pending {
			select {
			case jobs <- item:
				submitted++
			case <-ctx.Done():
				break submit
			}
		}
		close(jobs)
		wg.Wait()
		close(results)

		for outcome := range results {
			outcomes = append(outcomes, outcome)
		}
		// Items never submitted because the context was cancelled.
		for i := submitted; i < len(pending); i++ {
			outcomes = append(outcomes, Outcome{Item: pending[i], Status: StatusFailed, Err: ctx.Err()})
		}
	}

	var stats Stats
	for _, o := range outcomes {
		switch o.Status {
		case StatusSuccess:
			stats.Success++
		case StatusSkippedExisting:
			stats.SkippedExisting++
		case StatusSkippedDuplicate:
			stats.SkippedDuplicate++
		case StatusFailed:
			stats.Failed++
		}
	}
	return outcomes, stats
}

func (e *Engine) process(ctx context.Context, item media.Item, fingerprints *fingerprintSet) Outcome {
	start := time.Now()
	path := e.store.ItemPath(item)

	if err := ctx.Err(); err != nil {
		return Outcome{Item: item, Status: StatusFailed, Path: path, Err: err, Duration: time.Since(start)}
	}

	data, err := e.fetcher.FetchBytes(ctx, item.SourceURL)
	if err != nil {
		e.logger.WithError(err).DebugWithFields("download failed", map[string]interface{}{"url": item.SourceURL})
		return Outcome{Item: item, Status: StatusFailed, Path: path, Err: err, Duration: time.Since(start)}
	}

	sum := md5.Sum(data)
	if !fingerprints.add(sum) {
		e.logger.DebugWithFields("duplicate content, skipping write", map[string]interface{}{
			"post_id": item.PostID,
			"ordinal": item.Ordinal,
		})
		return Outcome{Item: item, Status: StatusSkippedDuplicate, Path: path, Duration: time.Since(start)}
	}

	written, err := e.store.Save(bytes.NewReader(data), path)
	if err != nil {
		fingerprints.remove(sum)
		return Outcome{Item: item, Status: StatusFailed, Path: path, Err: err, Duration: time.Since(start)}
	}

	e.logger.DebugWithFields("saved media file", map[string]interface{}{"path": path, "bytes": written})
	return Outcome{Item: item, Status: StatusSuccess, Path: path, Size: written, Duration: time.Since(start)}
}
