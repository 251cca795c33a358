package streammgr

import "errors"

var (
	// ErrStreamNotFound is returned when an operation references a
	// stream id that is not currently tracked.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrStreamExists is returned when creating a stream with an id
	// that is already active.
	ErrStreamExists = errors.New("stream already exists")

	// ErrBufferFull is returned when a push would exceed the
	// configured per-stream buffer capacity. The producer should back
	// off and retry after the consumer drains the buffer.
	ErrBufferFull = errors.New("stream buffer full")
)
