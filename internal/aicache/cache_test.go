package aicache

import (
	"fmt"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

func testKey(prompt string) Key {
	return Key{
		Prompt:      prompt,
		Model:       "claude-sonnet-4-5",
		Provider:    "anthropic",
		Temperature: fn.Some(0.7),
		MaxTokens:   fn.Some(uint32(1000)),
	}
}

func testParams(response string) SetParams {
	return SetParams{
		Response:     response,
		Model:        "claude-sonnet-4-5",
		Provider:     "anthropic",
		TokenCount:   100,
		CostEstimate: 0.01,
	}
}

// TestGetAfterSet verifies that a set entry is immediately retrievable
// and that hit/miss accounting matches the call sequence.
func TestGetAfterSet(t *testing.T) {
	cache := New(Config{MaxSize: 10, DefaultTTL: time.Hour}, nil)

	key := testKey("Describe the castle at dawn")

	// Miss before set.
	require.True(t, cache.Get(key).IsNone())

	cache.Set(key, testParams("The castle rose out of the mist"))

	entry := cache.Get(key)
	require.True(t, entry.IsSome())
	require.Equal(
		t, "The castle rose out of the mist",
		entry.UnwrapOr(Entry{}).Response,
	)

	// One hit, one miss, one entry: Scenario A accounting.
	stats := cache.Stats()
	require.Equal(t, uint64(1), stats.HitCount)
	require.Equal(t, uint64(1), stats.MissCount)
	require.Equal(t, 1, stats.Size)

	// Insert counts as the first access, the hit as the second.
	require.Equal(
		t, uint64(2), entry.UnwrapOr(Entry{}).AccessCount,
	)

	// Removing everything older than zero age empties the cache.
	cache.RemoveOlderThan(0)
	require.Equal(t, 0, cache.Len())
}

// TestTTLOverride verifies that an entry with a short TTL override is
// present before expiry and gone after: Scenario B.
func TestTTLOverride(t *testing.T) {
	cache := New(Config{MaxSize: 10, DefaultTTL: time.Second}, nil)

	key := testKey("Name the dragon")
	params := testParams("Vermithrax")
	params.TTL = fn.Some(time.Second)

	cache.Set(key, params)

	// Immediate get hits.
	require.True(t, cache.Get(key).IsSome())

	time.Sleep(2 * time.Second)

	// Expired: the get misses and the entry is removed.
	require.True(t, cache.Get(key).IsNone())
	require.Equal(t, 0, cache.Len())
}

// TestFingerprintContextSensitivity verifies that identical prompt
// text under different context never collides.
func TestFingerprintContextSensitivity(t *testing.T) {
	base := testKey("Continue the scene")

	withCtx := base
	withCtx.ContextHash = fn.Some(HashContext("story bible v1"))

	otherCtx := base
	otherCtx.ContextHash = fn.Some(HashContext("story bible v2"))

	require.NotEqual(t, base.Fingerprint(), withCtx.Fingerprint())
	require.NotEqual(t, withCtx.Fingerprint(), otherCtx.Fingerprint())

	// Same fields always produce the same fingerprint.
	require.Equal(t, base.Fingerprint(), testKey("Continue the scene").Fingerprint())
}

// TestFingerprintOptionalFields verifies that absent and present
// optional parameters hash differently.
func TestFingerprintOptionalFields(t *testing.T) {
	key := testKey("prompt")

	noTemp := key
	noTemp.Temperature = fn.None[float64]()
	require.NotEqual(t, key.Fingerprint(), noTemp.Fingerprint())

	noMax := key
	noMax.MaxTokens = fn.None[uint32]()
	require.NotEqual(t, key.Fingerprint(), noMax.Fingerprint())
}

// TestEvictionScore pins down the eviction policy formula:
// age_hours_since_last_access * 1/(access_count+1).
func TestEvictionScore(t *testing.T) {
	// Older entries score higher.
	require.Greater(
		t,
		evictionScore(2*time.Hour, 0),
		evictionScore(time.Hour, 0),
	)

	// Reuse damps the score.
	require.Less(
		t,
		evictionScore(time.Hour, 9),
		evictionScore(time.Hour, 0),
	)

	// Exact values: 1 hour, never reused => 0.5; 1 hour, 9 reuses
	// => 0.1.
	require.InDelta(t, 0.5, evictionScore(time.Hour, 1), 1e-9)
	require.InDelta(t, 0.1, evictionScore(time.Hour, 9), 1e-9)
}

// TestCapacityEviction verifies that inserting past capacity evicts
// exactly one entry and never grows the cache beyond MaxSize.
func TestCapacityEviction(t *testing.T) {
	cache := New(Config{MaxSize: 5, DefaultTTL: time.Hour}, nil)

	for i := 0; i < 20; i++ {
		key := testKey(fmt.Sprintf("prompt %d", i))
		cache.Set(key, testParams(fmt.Sprintf("response %d", i)))
		require.LessOrEqual(t, cache.Len(), 5)
	}

	require.Equal(t, 5, cache.Len())
}

// TestStatsSavings verifies the reuse-value aggregation: entries with
// access_count > 1 contribute (access_count-1) * cost and tokens.
func TestStatsSavings(t *testing.T) {
	cache := New(Config{MaxSize: 10, DefaultTTL: time.Hour}, nil)

	key := testKey("reused prompt")
	cache.Set(key, testParams("reused response"))

	// Three hits on top of the insert.
	for i := 0; i < 3; i++ {
		require.True(t, cache.Get(key).IsSome())
	}

	stats := cache.Stats()
	require.InDelta(t, 3*0.01, stats.TotalCostSaved, 1e-9)
	require.Equal(t, uint64(3*100), stats.TotalTokensSaved)

	// An entry that was never reused contributes nothing.
	cache.Set(testKey("single use"), testParams("unused"))
	stats = cache.Stats()
	require.InDelta(t, 3*0.01, stats.TotalCostSaved, 1e-9)
}

// TestHitRateAccounting verifies hit_rate == hits/(hits+misses), and
// zero before any request.
func TestHitRateAccounting(t *testing.T) {
	cache := New(DefaultConfig(), nil)

	require.Zero(t, cache.Stats().HitRate)

	key := testKey("rate prompt")
	cache.Get(key) // miss
	cache.Set(key, testParams("resp"))
	cache.Get(key) // hit
	cache.Get(key) // hit

	stats := cache.Stats()
	require.Equal(t, uint64(2), stats.HitCount)
	require.Equal(t, uint64(1), stats.MissCount)
	require.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

// TestCleanupExpired verifies that only entries past their TTL are
// swept.
func TestCleanupExpired(t *testing.T) {
	cache := New(Config{MaxSize: 10, DefaultTTL: time.Hour}, nil)

	short := testKey("short lived")
	shortParams := testParams("gone soon")
	shortParams.TTL = fn.Some(time.Millisecond)
	cache.Set(short, shortParams)

	cache.Set(testKey("long lived"), testParams("stays"))

	time.Sleep(10 * time.Millisecond)

	removed := cache.CleanupExpired()
	require.Equal(t, 1, removed)
	require.Equal(t, 1, cache.Len())
}

// TestPreload verifies warm-start bulk insertion.
func TestPreload(t *testing.T) {
	cache := New(Config{MaxSize: 10, DefaultTTL: time.Hour}, nil)

	now := time.Now()
	entries := []PreloadEntry{
		{
			Key: testKey("warm 1"),
			Entry: Entry{
				Response:     "warm response 1",
				Model:        "claude-sonnet-4-5",
				Provider:     "anthropic",
				TokenCount:   50,
				CreatedAt:    now,
				AccessCount:  1,
				LastAccessed: now,
				TTL:          time.Hour,
			},
		},
		{
			Key: testKey("warm 2"),
			Entry: Entry{
				Response:     "warm response 2",
				Model:        "claude-sonnet-4-5",
				Provider:     "anthropic",
				TokenCount:   60,
				CreatedAt:    now,
				AccessCount:  1,
				LastAccessed: now,
				// Zero TTL picks up the configured default.
			},
		},
	}

	cache.Preload(entries)
	require.Equal(t, 2, cache.Len())

	got := cache.Get(testKey("warm 2"))
	require.True(t, got.IsSome())
	require.Equal(t, time.Hour, got.UnwrapOr(Entry{}).TTL)
}

// TestClear verifies that Clear drops entries and resets counters.
func TestClear(t *testing.T) {
	cache := New(DefaultConfig(), nil)

	key := testKey("cleared")
	cache.Set(key, testParams("resp"))
	cache.Get(key)
	cache.Get(testKey("missing"))

	cache.Clear()

	require.Equal(t, 0, cache.Len())
	stats := cache.Stats()
	require.Zero(t, stats.HitCount)
	require.Zero(t, stats.MissCount)
	require.Zero(t, stats.HitRate)
}
