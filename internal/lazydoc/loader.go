// Package lazydoc splits large documents into word-boundary-aligned
// chunks and caches them with LRU eviction and neighbor prefetching,
// so that virtual-scrolling editors never hold a whole manuscript in
// memory.
package lazydoc

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultChunkSize is the default chunk size in bytes.
	DefaultChunkSize = 10000

	// DefaultMaxChunksInMemory is the default chunk-cache capacity.
	DefaultMaxChunksInMemory = 50

	// DefaultPreloadChunks is the default prefetch window on each
	// side of the current chunk.
	DefaultPreloadChunks = 3

	// DefaultCacheTTL is how long an idle chunk stays cached.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultMinDocumentSize is the size floor below which documents
	// are not chunked.
	DefaultMinDocumentSize = 50000
)

// Config holds the lazy-loading tunables.
type Config struct {
	// ChunkSize is the maximum chunk size in bytes.
	ChunkSize int

	// MaxChunksInMemory caps the chunk cache; LRU eviction trims back
	// to this bound.
	MaxChunksInMemory int

	// PreloadChunks is the prefetch window radius around the current
	// chunk.
	PreloadChunks int

	// CacheTTL is how long an idle chunk stays cached.
	CacheTTL time.Duration

	// MinDocumentSize is the lazy-loading size floor.
	MinDocumentSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         DefaultChunkSize,
		MaxChunksInMemory: DefaultMaxChunksInMemory,
		PreloadChunks:     DefaultPreloadChunks,
		CacheTTL:          DefaultCacheTTL,
		MinDocumentSize:   DefaultMinDocumentSize,
	}
}

// CacheStats is a point-in-time view of chunk-cache effectiveness.
type CacheStats struct {
	// TotalChunks is the number of cached chunks.
	TotalChunks int `json:"total_chunks"`

	// MaxChunks is the configured cache capacity.
	MaxChunks int `json:"max_chunks"`

	// MemoryBytes sums the cached chunk content sizes.
	MemoryBytes uint64 `json:"memory_bytes"`

	// TotalAccesses is hits plus misses across all documents.
	TotalAccesses uint64 `json:"total_accesses"`

	// CacheHits counts chunk loads served from the cache.
	CacheHits uint64 `json:"cache_hits"`

	// CacheMisses counts chunk loads that fell through.
	CacheMisses uint64 `json:"cache_misses"`

	// HitRate is hits/(hits+misses), zero when no loads happened.
	HitRate float64 `json:"hit_rate"`
}

// docStats tracks per-document access counters.
type docStats struct {
	totalAccesses uint64
	cacheHits     uint64
	cacheMisses   uint64
	lastAccess    time.Time
}

// Loader caches document chunks and metadata under independent shared
// locks. Metadata is immutable after initialization; chunks carry
// access statistics and are subject to TTL cleanup and LRU eviction.
type Loader struct {
	cfg Config
	log *slog.Logger

	chunkMu sync.RWMutex
	chunks  map[string]*Chunk

	metaMu sync.RWMutex
	meta   map[string]*Metadata

	statsMu sync.Mutex
	stats   map[string]*docStats
}

// New creates a lazy document loader. A nil logger falls back to
// slog.Default.
func New(cfg Config, log *slog.Logger) *Loader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxChunksInMemory <= 0 {
		cfg.MaxChunksInMemory = DefaultMaxChunksInMemory
	}
	if cfg.PreloadChunks < 0 {
		cfg.PreloadChunks = DefaultPreloadChunks
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MinDocumentSize <= 0 {
		cfg.MinDocumentSize = DefaultMinDocumentSize
	}
	if log == nil {
		log = slog.Default()
	}

	return &Loader{
		cfg:    cfg,
		log:    log.With("component", "lazydoc"),
		chunks: make(map[string]*Chunk),
		meta:   make(map[string]*Metadata),
		stats:  make(map[string]*docStats),
	}
}

// ShouldUseLazyLoading reports whether a document of the given size is
// large enough to be worth chunking.
func (l *Loader) ShouldUseLazyLoading(size int) bool {
	return size >= l.cfg.MinDocumentSize
}

// InitializeDocument partitions content into chunks, caches every
// chunk plus the document metadata, and zeroes the document's access
// counters. Documents below the size floor fail with
// ErrDocumentTooSmall.
func (l *Loader) InitializeDocument(
	documentID, content string,
) (Metadata, error) {

	if !l.ShouldUseLazyLoading(len(content)) {
		return Metadata{}, fmt.Errorf(
			"document %q (%d bytes): %w",
			documentID, len(content), ErrDocumentTooSmall,
		)
	}

	chunks := partition(documentID, content, l.cfg.ChunkSize)

	chunkMap := make([]ChunkInfo, len(chunks))
	for i, c := range chunks {
		chunkMap[i] = ChunkInfo{
			ChunkID:       c.ChunkID,
			StartPosition: c.StartPosition,
			EndPosition:   c.EndPosition,
			WordCount:     c.WordCount,
			LineCount:     c.LineCount,
		}
	}

	meta := Metadata{
		DocumentID:  documentID,
		TotalSize:   len(content),
		TotalChunks: len(chunks),
		WordCount:   len(strings.Fields(content)),
		LineCount:   countLines(content),
		ChunkMap:    chunkMap,
	}

	l.chunkMu.Lock()
	for i := range chunks {
		c := chunks[i]
		l.chunks[c.ChunkID] = &c
	}
	l.chunkMu.Unlock()

	l.metaMu.Lock()
	metaCopy := meta
	l.meta[documentID] = &metaCopy
	l.metaMu.Unlock()

	l.statsMu.Lock()
	l.stats[documentID] = &docStats{lastAccess: time.Now()}
	l.statsMu.Unlock()

	l.log.Debug("Initialized document",
		"document_id", documentID,
		"size", len(content),
		"chunks", len(chunks),
	)

	return meta, nil
}

// DocumentMetadata returns the chunk map for a document.
func (l *Loader) DocumentMetadata(documentID string) (Metadata, error) {
	l.metaMu.RLock()
	defer l.metaMu.RUnlock()

	meta, ok := l.meta[documentID]
	if !ok {
		return Metadata{}, fmt.Errorf(
			"document %q: %w", documentID, ErrDocumentNotFound,
		)
	}

	return *meta, nil
}

// LoadChunkAtPosition loads the chunk whose [start,end) range contains
// the given byte position.
func (l *Loader) LoadChunkAtPosition(
	documentID string, position int,
) (Chunk, error) {

	meta, err := l.DocumentMetadata(documentID)
	if err != nil {
		return Chunk{}, err
	}

	for _, info := range meta.ChunkMap {
		if position >= info.StartPosition &&
			position < info.EndPosition {

			return l.LoadChunk(info.ChunkID)
		}
	}

	return Chunk{}, fmt.Errorf(
		"document %q position %d: %w",
		documentID, position, ErrPositionOutOfRange,
	)
}

// LoadChunk returns a copy of a cached chunk, bumping its access
// statistics. A miss fails with ErrChunkNotFound; refetching from the
// durable store is the caller's responsibility.
func (l *Loader) LoadChunk(id string) (Chunk, error) {
	l.chunkMu.Lock()
	chunk, ok := l.chunks[id]
	if ok {
		chunk.AccessCount++
		chunk.LastAccessed = time.Now()
		result := *chunk
		l.chunkMu.Unlock()

		l.recordAccess(documentOfChunk(id), true)
		return result, nil
	}
	l.chunkMu.Unlock()

	l.recordAccess(documentOfChunk(id), false)
	return Chunk{}, fmt.Errorf("chunk %q: %w", id, ErrChunkNotFound)
}

// LoadChunksAroundPosition loads an inclusive window of PreloadChunks
// chunks on each side of the chunk containing position, clamped to the
// document's chunk range. Chunks missing from the cache are skipped.
func (l *Loader) LoadChunksAroundPosition(
	documentID string, position int,
) ([]Chunk, error) {

	meta, err := l.DocumentMetadata(documentID)
	if err != nil {
		return nil, err
	}

	current := -1
	for i, info := range meta.ChunkMap {
		if position >= info.StartPosition &&
			position < info.EndPosition {

			current = i
			break
		}
	}
	if current < 0 {
		return nil, fmt.Errorf(
			"document %q position %d: %w",
			documentID, position, ErrPositionOutOfRange,
		)
	}

	first := current - l.cfg.PreloadChunks
	if first < 0 {
		first = 0
	}
	last := current + l.cfg.PreloadChunks
	if last >= len(meta.ChunkMap) {
		last = len(meta.ChunkMap) - 1
	}

	chunks := make([]Chunk, 0, last-first+1)
	for i := first; i <= last; i++ {
		chunk, err := l.LoadChunk(meta.ChunkMap[i].ChunkID)
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// recordAccess updates the owning document's hit/miss counters.
func (l *Loader) recordAccess(documentID string, hit bool) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()

	stats, ok := l.stats[documentID]
	if !ok {
		stats = &docStats{}
		l.stats[documentID] = stats
	}

	stats.totalAccesses++
	stats.lastAccess = time.Now()
	if hit {
		stats.cacheHits++
	} else {
		stats.cacheMisses++
	}
}

// CleanupExpiredChunks evicts chunks idle beyond the configured TTL.
// It returns the number of chunks removed.
func (l *Loader) CleanupExpiredChunks() int {
	now := time.Now()

	l.chunkMu.Lock()
	defer l.chunkMu.Unlock()

	removed := 0
	for id, chunk := range l.chunks {
		if now.Sub(chunk.LastAccessed) >= l.cfg.CacheTTL {
			delete(l.chunks, id)
			removed++
		}
	}

	if removed > 0 {
		l.log.Debug("Expired idle chunks", "count", removed)
	}

	return removed
}

// EvictLRUChunks trims the chunk cache back to MaxChunksInMemory by
// removing the least-recently-accessed chunks. Victims are computed
// from a snapshot taken under the read lock so the write lock is never
// held across the sort.
func (l *Loader) EvictLRUChunks() int {
	type candidate struct {
		id           string
		lastAccessed time.Time
	}

	l.chunkMu.RLock()
	overflow := len(l.chunks) - l.cfg.MaxChunksInMemory
	if overflow <= 0 {
		l.chunkMu.RUnlock()
		return 0
	}

	candidates := make([]candidate, 0, len(l.chunks))
	for id, chunk := range l.chunks {
		candidates = append(candidates, candidate{
			id:           id,
			lastAccessed: chunk.LastAccessed,
		})
	}
	l.chunkMu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccessed.Before(
			candidates[j].lastAccessed,
		)
	})

	l.chunkMu.Lock()
	defer l.chunkMu.Unlock()

	removed := 0
	for _, c := range candidates {
		// Recheck under the write lock: loads may have landed
		// between the snapshot and now.
		if len(l.chunks) <= l.cfg.MaxChunksInMemory {
			break
		}
		if _, ok := l.chunks[c.id]; ok {
			delete(l.chunks, c.id)
			removed++
		}
	}

	if removed > 0 {
		l.log.Debug("Evicted LRU chunks", "count", removed)
	}

	return removed
}

// CacheStats returns a point-in-time view of chunk-cache
// effectiveness across all documents.
func (l *Loader) CacheStats() CacheStats {
	l.chunkMu.RLock()
	totalChunks := len(l.chunks)
	var memBytes uint64
	for _, chunk := range l.chunks {
		memBytes += uint64(len(chunk.Content))
	}
	l.chunkMu.RUnlock()

	l.statsMu.Lock()
	var accesses, hits, misses uint64
	for _, s := range l.stats {
		accesses += s.totalAccesses
		hits += s.cacheHits
		misses += s.cacheMisses
	}
	l.statsMu.Unlock()

	hitRate := 0.0
	if accesses > 0 {
		hitRate = float64(hits) / float64(accesses)
	}

	return CacheStats{
		TotalChunks:   totalChunks,
		MaxChunks:     l.cfg.MaxChunksInMemory,
		MemoryBytes:   memBytes,
		TotalAccesses: accesses,
		CacheHits:     hits,
		CacheMisses:   misses,
		HitRate:       hitRate,
	}
}

// ClearDocumentCache drops all chunks, metadata, and stats for one
// document.
func (l *Loader) ClearDocumentCache(documentID string) {
	l.chunkMu.Lock()
	for id, chunk := range l.chunks {
		if chunk.DocumentID == documentID {
			delete(l.chunks, id)
		}
	}
	l.chunkMu.Unlock()

	l.metaMu.Lock()
	delete(l.meta, documentID)
	l.metaMu.Unlock()

	l.statsMu.Lock()
	delete(l.stats, documentID)
	l.statsMu.Unlock()
}

// CachedChunks returns the number of chunks currently cached.
func (l *Loader) CachedChunks() int {
	l.chunkMu.RLock()
	defer l.chunkMu.RUnlock()

	return len(l.chunks)
}
