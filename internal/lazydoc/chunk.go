package lazydoc

import (
	"fmt"
	"strings"
	"time"
)

// Chunk is a contiguous sub-range of a document's content, the unit of
// lazy loading. For any document, the ordered union of chunk
// [Start,End) ranges reconstructs the content exactly, with no gaps or
// overlaps.
type Chunk struct {
	// ChunkID identifies this chunk within the loader.
	ChunkID string `json:"chunk_id"`

	// DocumentID is the owning document.
	DocumentID string `json:"document_id"`

	// StartPosition is the byte offset of the first byte.
	StartPosition int `json:"start_position"`

	// EndPosition is the byte offset one past the last byte.
	EndPosition int `json:"end_position"`

	// Content is the chunk text.
	Content string `json:"content"`

	// WordCount is the number of whitespace-separated words.
	WordCount int `json:"word_count"`

	// LineCount is the number of lines.
	LineCount int `json:"line_count"`

	// LoadedAt is when the chunk entered the cache.
	LoadedAt time.Time `json:"loaded_at"`

	// AccessCount counts loads of this chunk.
	AccessCount uint64 `json:"access_count"`

	// LastAccessed is the time of the most recent load.
	LastAccessed time.Time `json:"last_accessed"`
}

// ChunkInfo is the per-chunk slice of a document's chunk map: offsets
// and size statistics without the content itself.
type ChunkInfo struct {
	ChunkID       string `json:"chunk_id"`
	StartPosition int    `json:"start_position"`
	EndPosition   int    `json:"end_position"`
	WordCount     int    `json:"word_count"`
	LineCount     int    `json:"line_count"`
}

// Metadata describes a chunked document. It is immutable after
// initialization; the only mutation is full removal.
type Metadata struct {
	// DocumentID identifies the document.
	DocumentID string `json:"document_id"`

	// TotalSize is the document size in bytes.
	TotalSize int `json:"total_size"`

	// TotalChunks is the number of chunks the document split into.
	TotalChunks int `json:"total_chunks"`

	// WordCount is the whole-document word count.
	WordCount int `json:"word_count"`

	// LineCount is the whole-document line count.
	LineCount int `json:"line_count"`

	// ChunkMap lists the chunks in document order.
	ChunkMap []ChunkInfo `json:"chunk_map"`
}

// chunkID derives the cache key for a document chunk.
func chunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}

// documentOfChunk recovers the document id from a chunk id.
func documentOfChunk(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[:i]
	}
	return id
}

// boundaryChars are the whitespace bytes a chunk boundary may snap to.
const boundaryChars = " \t\n\r"

// partition splits content into chunks of at most chunkSize bytes,
// snapping every boundary except the last back to the nearest
// preceding whitespace so that no chunk splits a word. A window with
// no whitespace at all is split hard at chunkSize.
func partition(documentID, content string, chunkSize int) []Chunk {
	now := time.Now()

	var chunks []Chunk
	start := 0
	index := 0

	for start < len(content) {
		end := start + chunkSize
		if end > len(content) {
			end = len(content)
		} else if end < len(content) {
			cut := strings.LastIndexAny(
				content[start:end], boundaryChars,
			)
			if cut > 0 {
				end = start + cut
			}
		}

		// A boundary snapped all the way back would stall the
		// walk; fall back to the hard split.
		if end <= start {
			end = start + chunkSize
			if end > len(content) {
				end = len(content)
			}
		}

		text := content[start:end]
		chunks = append(chunks, Chunk{
			ChunkID:       chunkID(documentID, index),
			DocumentID:    documentID,
			StartPosition: start,
			EndPosition:   end,
			Content:       text,
			WordCount:     len(strings.Fields(text)),
			LineCount:     countLines(text),
			LoadedAt:      now,
			LastAccessed:  now,
		})

		start = end
		index++
	}

	return chunks
}

// countLines counts newline-separated lines the way a text editor
// does: empty content has zero lines, trailing newlines do not add an
// empty final line.
func countLines(s string) int {
	if s == "" {
		return 0
	}

	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}

	return n
}
