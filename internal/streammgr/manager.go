// Package streammgr bounds the number of concurrently active AI
// output-streaming sessions and the memory their buffered chunks may
// occupy. Admission is gated by a counting semaphore; per-stream
// buffers apply a secondary capacity limit to individual producers.
package streammgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxConcurrentStreams is the default admission bound.
	DefaultMaxConcurrentStreams = 10

	// DefaultBufferSize is the default per-stream chunk capacity.
	DefaultBufferSize = 1024

	// DefaultMemoryLimit is the default global buffered-byte ceiling.
	DefaultMemoryLimit = 128 * 1024 * 1024

	// DefaultBackpressureThreshold is the fraction of the memory
	// limit above which stream creation first runs a cleanup pass.
	DefaultBackpressureThreshold = 0.8

	// DefaultCleanupInterval is the intended sweep cadence.
	DefaultCleanupInterval = 30 * time.Second

	// DefaultMaxStreamDuration is the default maximum session age.
	DefaultMaxStreamDuration = 5 * time.Minute
)

// Config holds the streaming manager tunables.
type Config struct {
	// MaxConcurrentStreams is the number of admission permits.
	MaxConcurrentStreams int

	// BufferSize is the maximum number of pending chunks per stream.
	BufferSize int

	// MemoryLimit is the global buffered-byte ceiling used for the
	// memory-pressure ratio.
	MemoryLimit int64

	// BackpressureThreshold is the fraction of MemoryLimit above
	// which admission triggers a proactive cleanup pass.
	BackpressureThreshold float64

	// CleanupInterval is the intended cadence of cleanup sweeps. A
	// stream idle for more than twice this interval is reclaimed.
	CleanupInterval time.Duration

	// MaxStreamDuration is the maximum age of any stream before it is
	// reclaimed regardless of activity.
	MaxStreamDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentStreams:  DefaultMaxConcurrentStreams,
		BufferSize:            DefaultBufferSize,
		MemoryLimit:           DefaultMemoryLimit,
		BackpressureThreshold: DefaultBackpressureThreshold,
		CleanupInterval:       DefaultCleanupInterval,
		MaxStreamDuration:     DefaultMaxStreamDuration,
	}
}

// Stats is a point-in-time view of streaming activity.
type Stats struct {
	// ActiveStreams is the number of currently tracked sessions.
	ActiveStreams int `json:"active_streams"`

	// TotalStreamsCreated counts all sessions ever admitted.
	TotalStreamsCreated uint64 `json:"total_streams_created"`

	// TotalStreamsCompleted counts sessions marked complete.
	TotalStreamsCompleted uint64 `json:"total_streams_completed"`

	// TotalMemoryUsage is the current global buffered byte count.
	TotalMemoryUsage int64 `json:"total_memory_usage"`

	// PeakMemoryUsage is the high-water mark of TotalMemoryUsage.
	PeakMemoryUsage int64 `json:"peak_memory_usage"`

	// BackpressureEvents counts cleanup passes triggered by admission
	// under memory pressure.
	BackpressureEvents uint64 `json:"backpressure_events"`

	// CleanupEvents counts cleanup sweeps that ran.
	CleanupEvents uint64 `json:"cleanup_events"`

	// AverageStreamDurationMs is the running average lifetime of
	// completed sessions.
	AverageStreamDurationMs float64 `json:"average_stream_duration_ms"`
}

// Info describes one session for monitoring.
type Info struct {
	StreamID    string        `json:"stream_id"`
	BufferLen   int           `json:"buffer_len"`
	MemoryUsage int64         `json:"memory_usage"`
	Complete    bool          `json:"complete"`
	Age         time.Duration `json:"age"`
	IdleTime    time.Duration `json:"idle_time"`
}

// Manager admits, buffers, and reclaims AI output-streaming sessions.
// A counting semaphore enforces the concurrency bound; a shared lock
// guards the stream map and the global byte counter. FIFO order holds
// within a stream, never across streams.
type Manager struct {
	cfg Config
	log *slog.Logger

	// sem holds one permit per live session. Permits are released
	// when a session is closed or reclaimed by a cleanup sweep, so
	// admission suspends callers at the configured bound.
	sem *semaphore.Weighted

	mu          sync.RWMutex
	streams     map[string]*buffer
	memoryUsage int64

	created            uint64
	completed          uint64
	peakMemory         int64
	backpressureEvents uint64
	cleanupEvents      uint64
	avgDurationMs      float64
}

// New creates a streaming session manager. A nil logger falls back to
// slog.Default.
func New(cfg Config, log *slog.Logger) *Manager {
	if cfg.MaxConcurrentStreams <= 0 {
		cfg.MaxConcurrentStreams = DefaultMaxConcurrentStreams
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultMemoryLimit
	}
	if cfg.BackpressureThreshold <= 0 {
		cfg.BackpressureThreshold = DefaultBackpressureThreshold
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MaxStreamDuration <= 0 {
		cfg.MaxStreamDuration = DefaultMaxStreamDuration
	}
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		cfg:     cfg,
		log:     log.With("component", "streammgr"),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrentStreams)),
		streams: make(map[string]*buffer),
	}
}

// CreateStream admits a new session. The call suspends until an
// admission permit frees up or ctx is cancelled. When global buffered
// memory exceeds the backpressure threshold, a cleanup pass runs
// before the session is admitted.
func (m *Manager) CreateStream(ctx context.Context, id string) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire stream permit: %w", err)
	}

	threshold := int64(
		float64(m.cfg.MemoryLimit) * m.cfg.BackpressureThreshold,
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.streams[id]; ok {
		m.sem.Release(1)
		return fmt.Errorf("create stream %q: %w", id, ErrStreamExists)
	}

	if m.memoryUsage > threshold {
		m.backpressureEvents++
		reclaimed := m.cleanupLocked()
		m.log.Warn("Backpressure cleanup before admission",
			"memory_usage", m.memoryUsage,
			"threshold", threshold,
			"reclaimed", reclaimed,
		)
	}

	m.streams[id] = newBuffer(id, m.cfg.BufferSize)
	m.created++

	return nil
}

// Push appends an output chunk to a session's buffer. A full buffer
// fails with ErrBufferFull and leaves the buffer unchanged; this is
// the per-stream flow-control signal, distinct from admission control.
func (m *Manager) Push(id, chunk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.streams[id]
	if !ok {
		return fmt.Errorf("push to stream %q: %w", id, ErrStreamNotFound)
	}

	if len(buf.chunks) >= m.cfg.BufferSize {
		return fmt.Errorf("push to stream %q: %w", id, ErrBufferFull)
	}

	buf.push(chunk)
	m.memoryUsage += int64(len(chunk))
	if m.memoryUsage > m.peakMemory {
		m.peakMemory = m.memoryUsage
	}

	return nil
}

// Consume pops the oldest pending chunk, or None when the buffer is
// empty. An empty buffer is not an error.
func (m *Manager) Consume(id string) (fn.Option[string], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.streams[id]
	if !ok {
		return fn.None[string](), fmt.Errorf(
			"consume from stream %q: %w", id, ErrStreamNotFound,
		)
	}

	chunk := buf.pop()
	if chunk.IsSome() {
		m.memoryUsage -= int64(len(chunk.UnwrapOr("")))
	}

	return chunk, nil
}

// Complete marks a session's producer as finished. The consumer may
// still drain remaining chunks afterwards.
func (m *Manager) Complete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.streams[id]
	if !ok {
		return fmt.Errorf("complete stream %q: %w", id, ErrStreamNotFound)
	}

	if !buf.complete {
		buf.complete = true
		m.completed++

		// Running average: avg = (avg*(n-1) + d) / n.
		durationMs := float64(buf.age().Milliseconds())
		n := float64(m.completed)
		m.avgDurationMs = (m.avgDurationMs*(n-1) + durationMs) / n
	}

	return nil
}

// IsFinished reports whether a session is complete and fully drained.
func (m *Manager) IsFinished(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buf, ok := m.streams[id]
	if !ok {
		return false, fmt.Errorf(
			"stream %q: %w", id, ErrStreamNotFound,
		)
	}

	return buf.complete && buf.empty(), nil
}

// StreamInfo returns a monitoring view of one session.
func (m *Manager) StreamInfo(id string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buf, ok := m.streams[id]
	if !ok {
		return Info{}, fmt.Errorf(
			"stream %q: %w", id, ErrStreamNotFound,
		)
	}

	return Info{
		StreamID:    buf.streamID,
		BufferLen:   len(buf.chunks),
		MemoryUsage: buf.totalBytes,
		Complete:    buf.complete,
		Age:         buf.age(),
		IdleTime:    buf.idleTime(),
	}, nil
}

// CloseStream removes a session immediately, freeing its buffered
// memory and releasing its admission permit. This bounds resource
// retention more tightly than waiting for an idle sweep.
func (m *Manager) CloseStream(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.streams[id]
	if !ok {
		return fmt.Errorf("close stream %q: %w", id, ErrStreamNotFound)
	}

	m.memoryUsage -= buf.totalBytes
	delete(m.streams, id)
	m.sem.Release(1)

	return nil
}

// CleanupIdleStreams reclaims every session that is finished, older
// than MaxStreamDuration, or idle for more than twice the cleanup
// interval. It returns the number of sessions reclaimed.
func (m *Manager) CleanupIdleStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cleanupLocked()
}

// cleanupLocked performs a reclaim pass. The caller must hold m.mu for
// writing.
func (m *Manager) cleanupLocked() int {
	maxIdle := 2 * m.cfg.CleanupInterval

	removed := 0
	var freed int64
	for id, buf := range m.streams {
		finished := buf.complete && buf.empty()
		expired := buf.age() > m.cfg.MaxStreamDuration
		idle := buf.idleTime() > maxIdle

		if finished || expired || idle {
			freed += buf.totalBytes
			delete(m.streams, id)
			removed++
		}
	}

	m.memoryUsage -= freed
	m.cleanupEvents++

	if removed > 0 {
		m.sem.Release(int64(removed))
		m.log.Debug("Reclaimed idle streams",
			"count", removed, "bytes_freed", freed,
		)
	}

	return removed
}

// Clear removes all sessions and releases every held permit.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := len(m.streams)
	m.streams = make(map[string]*buffer)
	m.memoryUsage = 0

	if active > 0 {
		m.sem.Release(int64(active))
	}
}

// MemoryPressure returns current buffered bytes divided by the
// configured memory limit.
func (m *Manager) MemoryPressure() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return float64(m.memoryUsage) / float64(m.cfg.MemoryLimit)
}

// Stats returns a point-in-time view of streaming activity.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ActiveStreams:           len(m.streams),
		TotalStreamsCreated:     m.created,
		TotalStreamsCompleted:   m.completed,
		TotalMemoryUsage:        m.memoryUsage,
		PeakMemoryUsage:         m.peakMemory,
		BackpressureEvents:      m.backpressureEvents,
		CleanupEvents:           m.cleanupEvents,
		AverageStreamDurationMs: m.avgDurationMs,
	}
}
