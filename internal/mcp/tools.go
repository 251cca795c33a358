package mcp

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkwell-ai/inkwell/internal/aicache"
	"github.com/inkwell-ai/inkwell/internal/core"
	"github.com/inkwell-ai/inkwell/internal/docstore"
	"github.com/inkwell-ai/inkwell/internal/lazydoc"
	"github.com/inkwell-ai/inkwell/internal/provider"
)

// ErrNoGenerator is returned when generate_text is called without a
// configured provider.
var ErrNoGenerator = errors.New("no generation provider configured")

// GenerateTextArgs are the arguments for the generate_text tool.
type GenerateTextArgs struct {
	// Prompt is the generation prompt.
	Prompt string `json:"prompt" jsonschema:"Generation prompt"`

	// Model is the model to generate with.
	Model string `json:"model" jsonschema:"Model name"`

	// Temperature optionally overrides the provider default.
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"Optional sampling temperature"`

	// MaxTokens optionally caps the response length.
	MaxTokens *uint32 `json:"max_tokens,omitempty" jsonschema:"Optional response token cap"`

	// Context is optional story context sent with the prompt.
	Context *string `json:"context,omitempty" jsonschema:"Optional story context"`
}

// GenerateTextResult is the result of the generate_text tool.
type GenerateTextResult struct {
	Text         string  `json:"text"`
	TokenCount   uint32  `json:"token_count"`
	CostEstimate float64 `json:"cost_estimate"`
	Cached       bool    `json:"cached"`
}

func (s *Server) handleGenerateText(ctx context.Context,
	req *mcp.CallToolRequest,
	args GenerateTextArgs) (*mcp.CallToolResult, GenerateTextResult,
	error) {

	if s.gen == nil {
		return nil, GenerateTextResult{}, ErrNoGenerator
	}

	temperature := fn.None[float64]()
	if args.Temperature != nil {
		temperature = fn.Some(*args.Temperature)
	}
	maxTokens := fn.None[uint32]()
	if args.MaxTokens != nil {
		maxTokens = fn.Some(*args.MaxTokens)
	}
	contextData := fn.None[string]()
	if args.Context != nil {
		contextData = fn.Some(*args.Context)
	}

	key := aicache.NewKey(
		args.Prompt, args.Model, s.gen.Name(), temperature,
		maxTokens, contextData,
	)

	if entry := s.rt.Cache().Get(key); entry.IsSome() {
		cached := entry.UnwrapOr(aicache.Entry{})
		return nil, GenerateTextResult{
			Text:         cached.Response,
			TokenCount:   cached.TokenCount,
			CostEstimate: cached.CostEstimate,
			Cached:       true,
		}, nil
	}

	resp, err := s.gen.Generate(ctx, provider.Request{
		Prompt:      args.Prompt,
		Model:       args.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Context:     contextData,
	})
	if err != nil {
		return nil, GenerateTextResult{}, err
	}

	s.rt.Cache().Set(key, aicache.SetParams{
		Response:     resp.Text,
		Model:        resp.Model,
		Provider:     resp.Provider,
		TokenCount:   resp.TokenCount,
		CostEstimate: resp.CostEstimate,
	})

	return nil, GenerateTextResult{
		Text:         resp.Text,
		TokenCount:   resp.TokenCount,
		CostEstimate: resp.CostEstimate,
	}, nil
}

// SaveDocumentArgs are the arguments for the save_document tool.
type SaveDocumentArgs struct {
	// DocumentID identifies the document.
	DocumentID string `json:"document_id" jsonschema:"Document id"`

	// Title is the optional document title.
	Title string `json:"title,omitempty" jsonschema:"Optional document title"`

	// Content is the full document text.
	Content string `json:"content" jsonschema:"Full document text"`
}

// SaveDocumentResult is the result of the save_document tool.
type SaveDocumentResult struct {
	DocumentID  string `json:"document_id"`
	LazyLoading bool   `json:"lazy_loading"`
	TotalChunks int    `json:"total_chunks"`
}

func (s *Server) handleSaveDocument(ctx context.Context,
	req *mcp.CallToolRequest,
	args SaveDocumentArgs) (*mcp.CallToolResult, SaveDocumentResult,
	error) {

	if s.store != nil {
		err := s.store.SaveDocument(ctx, docstore.Document{
			ID:      args.DocumentID,
			Title:   args.Title,
			Content: args.Content,
		})
		if err != nil {
			return nil, SaveDocumentResult{}, err
		}
	}

	result := SaveDocumentResult{DocumentID: args.DocumentID}

	loader := s.rt.Documents()
	if loader.ShouldUseLazyLoading(len(args.Content)) {
		meta, err := loader.InitializeDocument(
			args.DocumentID, args.Content,
		)
		if err != nil {
			return nil, SaveDocumentResult{}, err
		}

		result.LazyLoading = true
		result.TotalChunks = meta.TotalChunks
	}

	return nil, result, nil
}

// LoadChunkArgs are the arguments for the load_chunk tool.
type LoadChunkArgs struct {
	// DocumentID identifies the document.
	DocumentID string `json:"document_id" jsonschema:"Document id"`

	// Position is the byte position to load around.
	Position int `json:"position" jsonschema:"Byte position within the document"`
}

// LoadChunkResult is the result of the load_chunk tool.
type LoadChunkResult struct {
	ChunkID       string `json:"chunk_id"`
	StartPosition int    `json:"start_position"`
	EndPosition   int    `json:"end_position"`
	Content       string `json:"content"`
	WordCount     int    `json:"word_count"`
}

func (s *Server) handleLoadChunk(ctx context.Context,
	req *mcp.CallToolRequest,
	args LoadChunkArgs) (*mcp.CallToolResult, LoadChunkResult, error) {

	if err := s.ensureResident(ctx, args.DocumentID); err != nil {
		return nil, LoadChunkResult{}, err
	}

	chunk, err := s.rt.Documents().LoadChunkAtPosition(
		args.DocumentID, args.Position,
	)
	if err != nil {
		return nil, LoadChunkResult{}, err
	}

	return nil, LoadChunkResult{
		ChunkID:       chunk.ChunkID,
		StartPosition: chunk.StartPosition,
		EndPosition:   chunk.EndPosition,
		Content:       chunk.Content,
		WordCount:     chunk.WordCount,
	}, nil
}

// LoadWindowArgs are the arguments for the load_window tool.
type LoadWindowArgs struct {
	// DocumentID identifies the document.
	DocumentID string `json:"document_id" jsonschema:"Document id"`

	// Position is the byte position the window centers on.
	Position int `json:"position" jsonschema:"Byte position within the document"`
}

// LoadWindowResult is the result of the load_window tool.
type LoadWindowResult struct {
	Chunks []LoadChunkResult `json:"chunks"`
}

func (s *Server) handleLoadWindow(ctx context.Context,
	req *mcp.CallToolRequest,
	args LoadWindowArgs) (*mcp.CallToolResult, LoadWindowResult,
	error) {

	if err := s.ensureResident(ctx, args.DocumentID); err != nil {
		return nil, LoadWindowResult{}, err
	}

	chunks, err := s.rt.Documents().LoadChunksAroundPosition(
		args.DocumentID, args.Position,
	)
	if err != nil {
		return nil, LoadWindowResult{}, err
	}

	result := LoadWindowResult{
		Chunks: make([]LoadChunkResult, 0, len(chunks)),
	}
	for _, chunk := range chunks {
		result.Chunks = append(result.Chunks, LoadChunkResult{
			ChunkID:       chunk.ChunkID,
			StartPosition: chunk.StartPosition,
			EndPosition:   chunk.EndPosition,
			Content:       chunk.Content,
			WordCount:     chunk.WordCount,
		})
	}

	return nil, result, nil
}

// ensureResident rehydrates a document from the store when the loader
// has dropped it.
func (s *Server) ensureResident(ctx context.Context, docID string) error {
	_, err := s.rt.Documents().DocumentMetadata(docID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, lazydoc.ErrDocumentNotFound) || s.store == nil {
		return err
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	_, err = s.rt.Documents().InitializeDocument(doc.ID, doc.Content)
	return err
}

// RuntimeStatsArgs are the arguments for the runtime_stats tool.
type RuntimeStatsArgs struct{}

func (s *Server) handleRuntimeStats(ctx context.Context,
	req *mcp.CallToolRequest,
	args RuntimeStatsArgs) (*mcp.CallToolResult, core.Snapshot, error) {

	return nil, s.rt.Snapshot(), nil
}

// ForceCleanupArgs are the arguments for the force_cleanup tool.
type ForceCleanupArgs struct{}

func (s *Server) handleForceCleanup(ctx context.Context,
	req *mcp.CallToolRequest,
	args ForceCleanupArgs) (*mcp.CallToolResult, core.CleanupReport,
	error) {

	return nil, s.rt.ForceCleanup(), nil
}
