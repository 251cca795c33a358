package streammgr

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// buffer holds the pending output chunks of one streaming session in
// FIFO order. It is not safe for concurrent use; the Manager's lock
// guards all access.
type buffer struct {
	// streamID identifies the owning session.
	streamID string

	// chunks is the pending FIFO of output chunks.
	chunks []string

	// totalBytes is the byte size of all pending chunks. len() on the
	// chunk strings gives exact UTF-8 byte counts.
	totalBytes int64

	// createdAt is when the session started.
	createdAt time.Time

	// lastActivity is the time of the most recent push or pop.
	lastActivity time.Time

	// complete marks that the producer finished. The buffer may still
	// hold unread chunks.
	complete bool

	// consumerPos counts chunks handed to the consumer so far.
	consumerPos uint64
}

func newBuffer(streamID string, capacity int) *buffer {
	now := time.Now()

	return &buffer{
		streamID:     streamID,
		chunks:       make([]string, 0, capacity),
		createdAt:    now,
		lastActivity: now,
	}
}

// push appends a chunk. Capacity checks are the Manager's job.
func (b *buffer) push(chunk string) {
	b.chunks = append(b.chunks, chunk)
	b.totalBytes += int64(len(chunk))
	b.lastActivity = time.Now()
}

// pop removes and returns the oldest chunk, or None when empty.
func (b *buffer) pop() fn.Option[string] {
	if len(b.chunks) == 0 {
		return fn.None[string]()
	}

	chunk := b.chunks[0]
	b.chunks = b.chunks[1:]
	b.totalBytes -= int64(len(chunk))
	b.consumerPos++
	b.lastActivity = time.Now()

	return fn.Some(chunk)
}

func (b *buffer) empty() bool {
	return len(b.chunks) == 0
}

func (b *buffer) age() time.Duration {
	return time.Since(b.createdAt)
}

func (b *buffer) idleTime() time.Duration {
	return time.Since(b.lastActivity)
}
