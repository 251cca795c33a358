package web

import (
	"bytes"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders chunk previews. Writers keep documents in Markdown,
// so the preview endpoint returns the chunk as display-ready HTML.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// previewResponse is the rendered form of one chunk.
type previewResponse struct {
	ChunkID       string `json:"chunk_id"`
	StartPosition int    `json:"start_position"`
	EndPosition   int    `json:"end_position"`
	HTML          string `json:"html"`
}

func (s *Server) handleDocumentPreview(w http.ResponseWriter,
	r *http.Request, docID string) {

	pos, ok := positionParam(r)
	if !ok {
		writeError(
			w, http.StatusBadRequest, "validation",
			"position must be a non-negative integer",
		)
		return
	}

	if _, err := s.documentMetadata(r, docID); err != nil {
		writeDomainError(w, err)
		return
	}

	chunk, err := s.rt.Documents().LoadChunkAtPosition(docID, pos)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(chunk.Content), &buf); err != nil {
		writeError(
			w, http.StatusInternalServerError, "render_failed",
			err.Error(),
		)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Data: previewResponse{
			ChunkID:       chunk.ChunkID,
			StartPosition: chunk.StartPosition,
			EndPosition:   chunk.EndPosition,
			HTML:          buf.String(),
		},
	})
}
