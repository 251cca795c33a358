// Package core assembles the response cache, the stream session
// manager, and the lazy document loader into one runtime object with a
// shared maintenance loop.
package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/inkwell-ai/inkwell/internal/aicache"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/lazydoc"
	"github.com/inkwell-ai/inkwell/internal/streammgr"
)

const (
	// cacheSweepInterval is how often expired response-cache entries
	// are collected.
	cacheSweepInterval = 5 * time.Minute

	// docSweepInterval is how often idle document chunks are
	// collected and the LRU bound is enforced.
	docSweepInterval = time.Minute
)

// Snapshot aggregates the statistics of all three components at one
// point in time.
type Snapshot struct {
	Cache     aicache.Stats      `json:"cache"`
	Streams   streammgr.Stats    `json:"streams"`
	Documents lazydoc.CacheStats `json:"documents"`
}

// CleanupReport tallies what one forced maintenance pass removed.
type CleanupReport struct {
	ExpiredCacheEntries int `json:"expired_cache_entries"`
	RemovedStreams      int `json:"removed_streams"`
	ExpiredChunks       int `json:"expired_chunks"`
	EvictedChunks       int `json:"evicted_chunks"`
}

// Runtime owns the three resource-management components and their
// background sweeps. All methods are safe for concurrent use.
type Runtime struct {
	cfg config.Config
	log *slog.Logger

	cache   *aicache.Cache
	streams *streammgr.Manager
	docs    *lazydoc.Loader

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	wg        sync.WaitGroup
}

// NewRuntime builds a runtime from an assembled configuration. The
// background sweeps do not run until Start.
func NewRuntime(cfg config.Config, log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "core")

	return &Runtime{
		cfg:     cfg,
		log:     log,
		cache:   aicache.New(cfg.Cache, log),
		streams: streammgr.New(cfg.Streaming, log),
		docs:    lazydoc.New(cfg.LazyLoading, log),
		quit:    make(chan struct{}),
	}
}

// Cache returns the AI response cache.
func (r *Runtime) Cache() *aicache.Cache {
	return r.cache
}

// Streams returns the stream session manager.
func (r *Runtime) Streams() *streammgr.Manager {
	return r.streams
}

// Documents returns the lazy document loader.
func (r *Runtime) Documents() *lazydoc.Loader {
	return r.docs
}

// Start launches the background maintenance loops. It is idempotent.
func (r *Runtime) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(3)
		go r.sweepLoop(
			cacheSweepInterval, "cache", func() int {
				return r.cache.CleanupExpired()
			},
		)
		go r.sweepLoop(
			r.cfg.Streaming.CleanupInterval, "streams",
			func() int {
				return r.streams.CleanupIdleStreams()
			},
		)
		go r.sweepLoop(
			docSweepInterval, "documents", func() int {
				n := r.docs.CleanupExpiredChunks()
				return n + r.docs.EvictLRUChunks()
			},
		)

		r.log.Info("runtime started",
			"cache_max_size", r.cfg.Cache.MaxSize,
			"max_concurrent_streams",
			r.cfg.Streaming.MaxConcurrentStreams,
			"chunk_size", r.cfg.LazyLoading.ChunkSize)
	})
}

// Stop terminates the maintenance loops and waits for them to exit. It
// is idempotent and safe to call without Start.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
	r.wg.Wait()

	r.log.Info("runtime stopped")
}

// sweepLoop runs one maintenance function on a fixed interval until
// the runtime stops.
func (r *Runtime) sweepLoop(
	interval time.Duration, name string, sweep func() int,
) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := sweep(); n > 0 {
				r.log.Debug("maintenance sweep",
					"target", name, "removed", n)
			}

		case <-r.quit:
			return
		}
	}
}

// Snapshot reads the statistics of all components.
func (r *Runtime) Snapshot() Snapshot {
	return Snapshot{
		Cache:     r.cache.Stats(),
		Streams:   r.streams.Stats(),
		Documents: r.docs.CacheStats(),
	}
}

// ForceCleanup runs every maintenance action immediately and reports
// what was removed.
func (r *Runtime) ForceCleanup() CleanupReport {
	report := CleanupReport{
		ExpiredCacheEntries: r.cache.CleanupExpired(),
		RemovedStreams:      r.streams.CleanupIdleStreams(),
		ExpiredChunks:       r.docs.CleanupExpiredChunks(),
		EvictedChunks:       r.docs.EvictLRUChunks(),
	}

	r.log.Info("forced cleanup",
		"cache_entries", report.ExpiredCacheEntries,
		"streams", report.RemovedStreams,
		"expired_chunks", report.ExpiredChunks,
		"evicted_chunks", report.EvictedChunks)

	return report
}

// ClearCache empties the response cache and resets its counters.
func (r *Runtime) ClearCache() {
	r.cache.Clear()
}

// ClearStreams removes every stream session and frees all admission
// permits.
func (r *Runtime) ClearStreams() {
	r.streams.Clear()
}

// ClearDocument drops one document's chunks, metadata, and stats.
func (r *Runtime) ClearDocument(documentID string) {
	r.docs.ClearDocumentCache(documentID)
}
