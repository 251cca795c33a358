package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/inkwell-ai/inkwell/internal/aicache"
	"github.com/inkwell-ai/inkwell/internal/docstore"
	"github.com/inkwell-ai/inkwell/internal/lazydoc"
	"github.com/inkwell-ai/inkwell/internal/provider"
	"github.com/inkwell-ai/inkwell/internal/streammgr"
)

// APIResponse wraps API responses.
type APIResponse struct {
	Data any `json:"data"`
}

// APIError represents an API error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error details.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// registerAPIV1Routes registers all /api/v1/ routes.
func (s *Server) registerAPIV1Routes() {
	// JSON middleware for API routes.
	jsonMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next(w, r)
		}
	}

	// Rate-limit middleware for API routes.
	limitMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !s.limiter.Allow() {
				writeError(
					w, http.StatusTooManyRequests,
					"rate_limited", "Too many requests",
				)
				return
			}

			next(w, r)
		}
	}

	api := func(handler http.HandlerFunc) http.HandlerFunc {
		return limitMiddleware(jsonMiddleware(handler))
	}

	// Health check.
	s.mux.HandleFunc("/api/v1/health", api(s.handleHealth))

	// Runtime statistics.
	s.mux.HandleFunc("/api/v1/stats", api(s.handleStats))

	// Maintenance.
	s.mux.HandleFunc("/api/v1/maintenance/cleanup", api(s.handleCleanup))
	s.mux.HandleFunc(
		"/api/v1/maintenance/clear-cache", api(s.handleClearCache),
	)
	s.mux.HandleFunc(
		"/api/v1/maintenance/clear-streams",
		api(s.handleClearStreams),
	)

	// Cached generation.
	s.mux.HandleFunc("/api/v1/generate", api(s.handleGenerate))

	// Documents.
	s.mux.HandleFunc("/api/v1/documents", api(s.handleDocuments))
	s.mux.HandleFunc("/api/v1/documents/", api(s.handleDocumentByID))

	// Streams.
	s.mux.HandleFunc("/api/v1/streams", api(s.handleStreams))
	s.mux.HandleFunc("/api/v1/streams/", api(s.handleStreamByID))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)

	// The status line is already written, so a failed encode has no
	// recovery path.
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{
		Error: APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeDomainError maps component errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lazydoc.ErrChunkNotFound),
		errors.Is(err, lazydoc.ErrDocumentNotFound),
		errors.Is(err, docstore.ErrDocumentNotFound),
		errors.Is(err, streammgr.ErrStreamNotFound):

		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, streammgr.ErrStreamExists),
		errors.Is(err, streammgr.ErrBufferFull):

		writeError(w, http.StatusConflict, "capacity", err.Error())

	case errors.Is(err, lazydoc.ErrPositionOutOfRange),
		errors.Is(err, lazydoc.ErrDocumentTooSmall):

		writeError(w, http.StatusBadRequest, "validation", err.Error())

	default:
		writeError(
			w, http.StatusInternalServerError, "internal",
			err.Error(),
		)
	}
}

// decodeBody parses a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(
			w, http.StatusBadRequest, "validation",
			"Invalid JSON body",
		)
		return false
	}

	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: s.rt.Snapshot()})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: s.rt.ForceCleanup()})
}

func (s *Server) handleClearCache(w http.ResponseWriter,
	r *http.Request) {

	if r.Method != http.MethodPost {
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
		return
	}

	s.rt.ClearCache()
	writeJSON(w, http.StatusOK, APIResponse{Data: "cache cleared"})
}

func (s *Server) handleClearStreams(w http.ResponseWriter,
	r *http.Request) {

	if r.Method != http.MethodPost {
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
		return
	}

	s.rt.ClearStreams()
	writeJSON(w, http.StatusOK, APIResponse{Data: "streams cleared"})
}

// generateRequest is the body of POST /api/v1/generate.
type generateRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *uint32  `json:"max_tokens,omitempty"`
	Context     *string  `json:"context,omitempty"`
}

// generateResponse is the reply, flagging whether the cache served it.
type generateResponse struct {
	Text         string  `json:"text"`
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	TokenCount   uint32  `json:"token_count"`
	CostEstimate float64 `json:"cost_estimate"`
	Cached       bool    `json:"cached"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
		return
	}
	if s.gen == nil {
		writeError(
			w, http.StatusServiceUnavailable, "no_provider",
			"No generation provider configured",
		)
		return
	}

	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Prompt == "" || req.Model == "" {
		writeError(
			w, http.StatusBadRequest, "validation",
			"prompt and model are required",
		)
		return
	}

	temperature := fn.None[float64]()
	if req.Temperature != nil {
		temperature = fn.Some(*req.Temperature)
	}
	maxTokens := fn.None[uint32]()
	if req.MaxTokens != nil {
		maxTokens = fn.Some(*req.MaxTokens)
	}
	contextData := fn.None[string]()
	if req.Context != nil {
		contextData = fn.Some(*req.Context)
	}

	key := aicache.NewKey(
		req.Prompt, req.Model, s.gen.Name(), temperature, maxTokens,
		contextData,
	)

	if entry := s.rt.Cache().Get(key); entry.IsSome() {
		cached := entry.UnwrapOr(aicache.Entry{})
		writeJSON(w, http.StatusOK, APIResponse{
			Data: generateResponse{
				Text:         cached.Response,
				Model:        cached.Model,
				Provider:     cached.Provider,
				TokenCount:   cached.TokenCount,
				CostEstimate: cached.CostEstimate,
				Cached:       true,
			},
		})
		return
	}

	resp, err := s.gen.Generate(r.Context(), provider.Request{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Context:     contextData,
	})
	if err != nil {
		writeError(
			w, http.StatusBadGateway, "provider_error",
			err.Error(),
		)
		return
	}

	s.rt.Cache().Set(key, aicache.SetParams{
		Response:     resp.Text,
		Model:        resp.Model,
		Provider:     resp.Provider,
		TokenCount:   resp.TokenCount,
		CostEstimate: resp.CostEstimate,
	})

	writeJSON(w, http.StatusOK, APIResponse{
		Data: generateResponse{
			Text:         resp.Text,
			Model:        resp.Model,
			Provider:     resp.Provider,
			TokenCount:   resp.TokenCount,
			CostEstimate: resp.CostEstimate,
		},
	})
}

// saveDocumentRequest is the body of POST /api/v1/documents.
type saveDocumentRequest struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// saveDocumentResponse reports how the document will be served.
type saveDocumentResponse struct {
	ID          string            `json:"id"`
	LazyLoading bool              `json:"lazy_loading"`
	Metadata    *lazydoc.Metadata `json:"metadata,omitempty"`
}

func (s *Server) handleDocuments(w http.ResponseWriter,
	r *http.Request) {

	switch r.Method {
	case http.MethodGet:
		if s.store == nil {
			writeError(
				w, http.StatusServiceUnavailable, "no_store",
				"No document store configured",
			)
			return
		}

		docs, err := s.store.ListDocuments(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: docs})

	case http.MethodPost:
		var req saveDocumentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ID == "" || req.Content == "" {
			writeError(
				w, http.StatusBadRequest, "validation",
				"id and content are required",
			)
			return
		}

		if s.store != nil {
			err := s.store.SaveDocument(r.Context(),
				docstore.Document{
					ID:      req.ID,
					Title:   req.Title,
					Content: req.Content,
				})
			if err != nil {
				writeDomainError(w, err)
				return
			}
		}

		resp := saveDocumentResponse{ID: req.ID}

		loader := s.rt.Documents()
		if loader.ShouldUseLazyLoading(len(req.Content)) {
			meta, err := loader.InitializeDocument(
				req.ID, req.Content,
			)
			if err != nil {
				writeDomainError(w, err)
				return
			}

			resp.LazyLoading = true
			resp.Metadata = &meta
		}

		writeJSON(w, http.StatusOK, APIResponse{Data: resp})

	default:
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
	}
}

// handleDocumentByID routes
// /api/v1/documents/{id}[/chunk|/window|/preview].
func (s *Server) handleDocumentByID(w http.ResponseWriter,
	r *http.Request) {

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/documents/")
	docID, action, _ := strings.Cut(rest, "/")
	if docID == "" {
		writeError(
			w, http.StatusBadRequest, "validation",
			"Document id is required",
		)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		meta, err := s.documentMetadata(r, docID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: meta})

	case action == "" && r.Method == http.MethodDelete:
		s.rt.ClearDocument(docID)
		if s.store != nil {
			err := s.store.DeleteDocument(r.Context(), docID)
			if err != nil &&
				!errors.Is(err, docstore.ErrDocumentNotFound) {

				writeDomainError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: "deleted"})

	case action == "chunk" && r.Method == http.MethodGet:
		s.handleDocumentChunk(w, r, docID)

	case action == "window" && r.Method == http.MethodGet:
		s.handleDocumentWindow(w, r, docID)

	case action == "preview" && r.Method == http.MethodGet:
		s.handleDocumentPreview(w, r, docID)

	default:
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
	}
}

// documentMetadata returns the chunk map, rehydrating the document
// from the store when the loader has dropped it.
func (s *Server) documentMetadata(r *http.Request,
	docID string) (lazydoc.Metadata, error) {

	loader := s.rt.Documents()

	meta, err := loader.DocumentMetadata(docID)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, lazydoc.ErrDocumentNotFound) || s.store == nil {
		return lazydoc.Metadata{}, err
	}

	doc, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		return lazydoc.Metadata{}, err
	}

	return loader.InitializeDocument(doc.ID, doc.Content)
}

// positionParam parses the ?position query parameter.
func positionParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("position")
	if raw == "" {
		return 0, true
	}

	pos, err := strconv.Atoi(raw)
	if err != nil || pos < 0 {
		return 0, false
	}

	return pos, true
}

func (s *Server) handleDocumentChunk(w http.ResponseWriter,
	r *http.Request, docID string) {

	pos, ok := positionParam(r)
	if !ok {
		writeError(
			w, http.StatusBadRequest, "validation",
			"position must be a non-negative integer",
		)
		return
	}

	// Make sure the document is resident before the chunk lookup.
	if _, err := s.documentMetadata(r, docID); err != nil {
		writeDomainError(w, err)
		return
	}

	chunk, err := s.rt.Documents().LoadChunkAtPosition(docID, pos)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: chunk})
}

func (s *Server) handleDocumentWindow(w http.ResponseWriter,
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

	chunks, err := s.rt.Documents().LoadChunksAroundPosition(docID, pos)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: chunks})
}

// createStreamRequest is the body of POST /api/v1/streams.
type createStreamRequest struct {
	ID string `json:"id,omitempty"`
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
		return
	}

	var req createStreamRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := s.rt.Streams().CreateStream(r.Context(), req.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Data: map[string]string{"id": req.ID},
	})
}

// pushChunkRequest is the body of POST /api/v1/streams/{id}/chunks.
type pushChunkRequest struct {
	Chunk string `json:"chunk"`
}

// handleStreamByID routes /api/v1/streams/{id}[/chunks|/complete].
func (s *Server) handleStreamByID(w http.ResponseWriter,
	r *http.Request) {

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/streams/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(
			w, http.StatusBadRequest, "validation",
			"Stream id is required",
		)
		return
	}

	mgr := s.rt.Streams()

	switch {
	case action == "" && r.Method == http.MethodGet:
		info, err := mgr.StreamInfo(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: info})

	case action == "" && r.Method == http.MethodDelete:
		if err := mgr.CloseStream(id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: "closed"})

	case action == "chunks" && r.Method == http.MethodPost:
		var req pushChunkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := mgr.Push(id, req.Chunk); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: "queued"})

	case action == "complete" && r.Method == http.MethodPost:
		if err := mgr.Complete(id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: "completed"})

	default:
		writeError(
			w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed",
		)
	}
}
