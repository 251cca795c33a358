package lazydoc

import "errors"

var (
	// ErrChunkNotFound is returned when a chunk is not in the cache.
	// The caller is expected to refetch from the durable document
	// store and re-initialize.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrDocumentNotFound is returned when no metadata exists for a
	// document id.
	ErrDocumentNotFound = errors.New("document metadata not found")

	// ErrDocumentTooSmall is returned when a document is below the
	// configured lazy-loading size floor.
	ErrDocumentTooSmall = errors.New("document too small for lazy loading")

	// ErrPositionOutOfRange is returned when a position falls outside
	// every chunk of a document.
	ErrPositionOutOfRange = errors.New("position not found in document")
)
