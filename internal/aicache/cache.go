// Package aicache memoizes AI text-generation results so that repeated
// requests with identical prompt, model, provider, parameters, and
// surrounding story context never hit the provider twice.
package aicache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultMaxSize is the default maximum number of cached entries.
	DefaultMaxSize = 1000

	// DefaultTTL is the default time-to-live for cached entries.
	DefaultTTL = time.Hour
)

// Config holds configuration for the response cache.
type Config struct {
	// MaxSize is the maximum number of entries held at once. When the
	// cache is full, one entry is evicted per insert.
	MaxSize int

	// DefaultTTL is the time-to-live applied to entries inserted
	// without an explicit override.
	DefaultTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:    DefaultMaxSize,
		DefaultTTL: DefaultTTL,
	}
}

// Key identifies a generation request. Two requests with the same key
// fields produce the same fingerprint and therefore share a cache slot.
type Key struct {
	// Prompt is the full prompt text sent to the provider.
	Prompt string

	// Model is the model identifier.
	Model string

	// Provider is the AI provider name.
	Provider string

	// Temperature is the sampling temperature, if set.
	Temperature fn.Option[float64]

	// MaxTokens is the generation token limit, if set.
	MaxTokens fn.Option[uint32]

	// ContextHash is a hash of the external context (story bible
	// state etc.) the prompt was built against. Identical prompt text
	// under different context must never collide.
	ContextHash fn.Option[string]
}

// HashContext returns the sha256 hex digest of raw context data, for
// use as a Key.ContextHash.
func HashContext(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// NewKey builds a Key from request parameters, hashing the raw context
// data if present.
func NewKey(prompt, model, provider string, temperature fn.Option[float64],
	maxTokens fn.Option[uint32], contextData fn.Option[string]) Key {

	var ctxHash fn.Option[string]
	if contextData.IsSome() {
		ctxHash = fn.Some(HashContext(contextData.UnwrapOr("")))
	}

	return Key{
		Prompt:      prompt,
		Model:       model,
		Provider:    provider,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		ContextHash: ctxHash,
	}
}

// Fingerprint returns the deterministic lookup key for this Key. Each
// field is written with a length prefix so that no two distinct keys
// can produce the same digest by field concatenation.
func (k Key) Fingerprint() string {
	h := sha256.New()

	writeField := func(s string) {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}

	writeField(k.Prompt)
	writeField(k.Model)
	writeField(k.Provider)

	if k.Temperature.IsSome() {
		var buf [8]byte
		bits := math.Float64bits(k.Temperature.UnwrapOr(0))
		binary.BigEndian.PutUint64(buf[:], bits)
		h.Write([]byte{1})
		h.Write(buf[:])
	} else {
		h.Write([]byte{0})
	}

	if k.MaxTokens.IsSome() {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], k.MaxTokens.UnwrapOr(0))
		h.Write([]byte{1})
		h.Write(buf[:])
	} else {
		h.Write([]byte{0})
	}

	if k.ContextHash.IsSome() {
		h.Write([]byte{1})
		writeField(k.ContextHash.UnwrapOr(""))
	} else {
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Entry is a cached generation result together with its reuse
// statistics. TTL is always positive.
type Entry struct {
	// Response is the generated text.
	Response string

	// Model is the model that produced the response.
	Model string

	// Provider is the provider that produced the response.
	Provider string

	// TokenCount is the number of tokens the generation consumed.
	TokenCount uint32

	// CostEstimate is the estimated cost of the generation in USD.
	CostEstimate float64

	// CreatedAt is when the entry was inserted.
	CreatedAt time.Time

	// AccessCount counts inserts plus hits.
	AccessCount uint64

	// LastAccessed is the time of the most recent hit or insert.
	LastAccessed time.Time

	// TTL is how long the entry remains valid after CreatedAt.
	TTL time.Duration
}

// SetParams carries the provider result being inserted into the cache.
type SetParams struct {
	// Response is the generated text.
	Response string

	// Model is the model that produced the response.
	Model string

	// Provider is the provider that produced the response.
	Provider string

	// TokenCount is the number of tokens consumed.
	TokenCount uint32

	// CostEstimate is the estimated generation cost in USD.
	CostEstimate float64

	// TTL overrides the configured default TTL when set.
	TTL fn.Option[time.Duration]
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	// Size is the current number of entries.
	Size int `json:"size"`

	// MaxSize is the configured capacity.
	MaxSize int `json:"max_size"`

	// HitCount is the total number of cache hits.
	HitCount uint64 `json:"hit_count"`

	// MissCount is the total number of cache misses.
	MissCount uint64 `json:"miss_count"`

	// HitRate is hits/(hits+misses), zero when no requests were made.
	HitRate float64 `json:"hit_rate"`

	// TotalCostSaved sums (access_count-1) * cost_estimate over all
	// entries reused at least once.
	TotalCostSaved float64 `json:"total_cost_saved"`

	// TotalTokensSaved sums (access_count-1) * token_count over all
	// entries reused at least once.
	TotalTokensSaved uint64 `json:"total_tokens_saved"`

	// MemoryEstimateBytes sums the response sizes of all entries.
	MemoryEstimateBytes uint64 `json:"memory_estimate_bytes"`
}

// Cache is an in-memory response cache with TTL expiry and score-based
// eviction. A single exclusive lock guards the entry map: even reads
// mutate access statistics, so there is no shared read path.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry

	cfg Config
	log *slog.Logger

	hitCount  uint64
	missCount uint64
}

// New creates a response cache. A nil logger falls back to
// slog.Default.
func New(cfg Config, log *slog.Logger) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &Cache{
		entries: make(map[string]*Entry),
		cfg:     cfg,
		log:     log.With("component", "aicache"),
	}
}

// Get returns a copy of the cached entry for key if one exists and has
// not expired. A hit bumps the entry's access statistics. Expired
// entries are removed on the spot. A miss is not an error.
func (c *Cache) Get(key Key) fn.Option[Entry] {
	fp := key.Fingerprint()
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fp]
	if ok {
		if now.Sub(entry.CreatedAt) < entry.TTL {
			entry.AccessCount++
			entry.LastAccessed = now
			c.hitCount++

			return fn.Some(*entry)
		}

		// Expired entry: drop it and fall through to a miss.
		delete(c.entries, fp)
	}

	c.missCount++
	return fn.None[Entry]()
}

// Set inserts a provider result under key. If the cache is at
// capacity, the entry with the lowest eviction score is removed first.
func (c *Cache) Set(key Key, params SetParams) {
	fp := key.Fingerprint()
	now := time.Now()

	ttl := params.TTL.UnwrapOr(c.cfg.DefaultTTL)
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.cfg.MaxSize {
		c.evictOne(now)
	}

	c.entries[fp] = &Entry{
		Response:     params.Response,
		Model:        params.Model,
		Provider:     params.Provider,
		TokenCount:   params.TokenCount,
		CostEstimate: params.CostEstimate,
		CreatedAt:    now,
		AccessCount:  1,
		LastAccessed: now,
		TTL:          ttl,
	}
}

// evictionScore weighs an entry for eviction. The score is the age in
// hours since last access, damped by how often the entry was reused.
// The entry with the lowest score is evicted on a full insert.
func evictionScore(ageSinceAccess time.Duration, accessCount uint64) float64 {
	ageHours := ageSinceAccess.Hours()
	accessWeight := 1.0 / (float64(accessCount) + 1.0)

	return ageHours * accessWeight
}

// evictOne removes the entry with the lowest eviction score. The
// caller must hold c.mu.
func (c *Cache) evictOne(now time.Time) {
	if len(c.entries) == 0 {
		return
	}

	lowest := math.MaxFloat64
	victim := ""

	for fp, entry := range c.entries {
		score := evictionScore(
			now.Sub(entry.LastAccessed), entry.AccessCount,
		)
		if score < lowest {
			lowest = score
			victim = fp
		}
	}

	if victim != "" {
		delete(c.entries, victim)
		c.log.Debug("Evicted cache entry",
			"fingerprint", victim, "score", lowest,
		)
	}
}

// CleanupExpired removes all entries whose age has reached their TTL.
// It returns the number of entries removed.
func (c *Cache) CleanupExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, entry := range c.entries {
		if now.Sub(entry.CreatedAt) >= entry.TTL {
			delete(c.entries, fp)
			removed++
		}
	}

	if removed > 0 {
		c.log.Debug("Removed expired cache entries", "count", removed)
	}

	return removed
}

// RemoveOlderThan removes all entries created at or before now-age. It
// returns the number of entries removed.
func (c *Cache) RemoveOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, entry := range c.entries {
		if !entry.CreatedAt.After(cutoff) {
			delete(c.entries, fp)
			removed++
		}
	}

	return removed
}

// Clear drops all entries and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.hitCount = 0
	c.missCount = 0
}

// PreloadEntry pairs a key with a fully formed entry for warm-start
// loading.
type PreloadEntry struct {
	Key   Key
	Entry Entry
}

// Preload bulk-inserts entries, typically to warm the cache from a
// durable store at startup. Entries with a non-positive TTL get the
// configured default.
func (c *Cache) Preload(entries []PreloadEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pe := range entries {
		entry := pe.Entry
		if entry.TTL <= 0 {
			entry.TTL = c.cfg.DefaultTTL
		}
		c.entries[pe.Key.Fingerprint()] = &entry
	}
}

// Stats returns a point-in-time view of cache effectiveness.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hitCount + c.missCount
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hitCount) / float64(total)
	}

	var (
		costSaved   float64
		tokensSaved uint64
		memBytes    uint64
	)
	for _, entry := range c.entries {
		memBytes += uint64(len(entry.Response))

		if entry.AccessCount > 1 {
			reuses := entry.AccessCount - 1
			costSaved += float64(reuses) * entry.CostEstimate
			tokensSaved += reuses * uint64(entry.TokenCount)
		}
	}

	return Stats{
		Size:                len(c.entries),
		MaxSize:             c.cfg.MaxSize,
		HitCount:            c.hitCount,
		MissCount:           c.missCount,
		HitRate:             hitRate,
		TotalCostSaved:      costSaved,
		TotalTokensSaved:    tokensSaved,
		MemoryEstimateBytes: memBytes,
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
