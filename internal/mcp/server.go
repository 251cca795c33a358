// Package mcp exposes the inkwell runtime to AI coding agents over the
// Model Context Protocol.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inkwell-ai/inkwell/internal/core"
	"github.com/inkwell-ai/inkwell/internal/docstore"
	"github.com/inkwell-ai/inkwell/internal/provider"
)

// Server wraps the MCP server with runtime dependencies.
type Server struct {
	server *mcp.Server
	rt     *core.Runtime
	store  *docstore.Store
	gen    provider.Generator
}

// Config holds configuration for the MCP server.
type Config struct {
	// Runtime is the resource-management runtime. Required.
	Runtime *core.Runtime

	// Store is the optional durable document store.
	Store *docstore.Store

	// Generator is the optional text-generation provider.
	Generator provider.Generator
}

// NewServer creates a new MCP server with all runtime tools
// registered.
func NewServer(cfg Config) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "inkwell",
		Version: "0.1.0",
	}, nil)

	s := &Server{
		server: mcpServer,
		rt:     cfg.Runtime,
		store:  cfg.Store,
		gen:    cfg.Generator,
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on the given transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// registerTools registers all runtime tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_text",
		Description: "Generate text with response caching",
	}, s.handleGenerateText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "save_document",
		Description: "Save a document and prepare it for chunked access",
	}, s.handleSaveDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "load_chunk",
		Description: "Load the document chunk covering a byte position",
	}, s.handleLoadChunk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "load_window",
		Description: "Load the chunks around a byte position",
	}, s.handleLoadWindow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "runtime_stats",
		Description: "Read cache, stream, and document statistics",
	}, s.handleRuntimeStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "force_cleanup",
		Description: "Run all maintenance sweeps immediately",
	}, s.handleForceCleanup)
}
