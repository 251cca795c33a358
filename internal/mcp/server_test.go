package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/core"
	"github.com/inkwell-ai/inkwell/internal/docstore"
	"github.com/inkwell-ai/inkwell/internal/provider"
)

// testServer wires a runtime, a temp document store, and the offline
// generator.
func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.LazyLoading.MinDocumentSize = 20
	cfg.LazyLoading.ChunkSize = 100

	rt := core.NewRuntime(cfg, nil)
	t.Cleanup(rt.Stop)

	store, err := docstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewServer(Config{
		Runtime:   rt,
		Store:     store,
		Generator: provider.NewStatic(""),
	})
}

// TestGenerateTextTool verifies the cache round trip through the tool
// handler.
func TestGenerateTextTool(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	args := GenerateTextArgs{
		Prompt: "Continue the scene.",
		Model:  "claude-3-sonnet",
	}

	_, first, err := s.handleGenerateText(ctx, nil, args)
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.NotEmpty(t, first.Text)

	_, second, err := s.handleGenerateText(ctx, nil, args)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.Text, second.Text)
}

// TestGenerateTextNoProvider verifies the tool refuses without a
// generator.
func TestGenerateTextNoProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	rt := core.NewRuntime(cfg, nil)
	t.Cleanup(rt.Stop)

	s := NewServer(Config{Runtime: rt})

	_, _, err := s.handleGenerateText(
		context.Background(), nil,
		GenerateTextArgs{Prompt: "p", Model: "m"},
	)
	require.ErrorIs(t, err, ErrNoGenerator)
}

// TestDocumentTools exercises save, chunk load, window load, and the
// store-backed rehydration path.
func TestDocumentTools(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	content := strings.Repeat("ink flows where attention goes ", 20)
	_, saved, err := s.handleSaveDocument(ctx, nil, SaveDocumentArgs{
		DocumentID: "novel-1",
		Content:    content,
	})
	require.NoError(t, err)
	require.True(t, saved.LazyLoading)
	require.Greater(t, saved.TotalChunks, 1)

	_, chunk, err := s.handleLoadChunk(ctx, nil, LoadChunkArgs{
		DocumentID: "novel-1",
		Position:   0,
	})
	require.NoError(t, err)
	require.Zero(t, chunk.StartPosition)
	require.NotEmpty(t, chunk.Content)

	_, window, err := s.handleLoadWindow(ctx, nil, LoadWindowArgs{
		DocumentID: "novel-1",
		Position:   0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, window.Chunks)

	// Drop the in-memory copy and load again through the store.
	s.rt.ClearDocument("novel-1")

	_, chunk, err = s.handleLoadChunk(ctx, nil, LoadChunkArgs{
		DocumentID: "novel-1",
		Position:   0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunk.Content)
}

// TestStatsAndCleanupTools verifies the observability tools answer.
func TestStatsAndCleanupTools(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	_, snap, err := s.handleRuntimeStats(ctx, nil, RuntimeStatsArgs{})
	require.NoError(t, err)
	require.Equal(t, 1000, snap.Cache.MaxSize)

	_, report, err := s.handleForceCleanup(ctx, nil, ForceCleanupArgs{})
	require.NoError(t, err)
	require.Zero(t, report.RemovedStreams)
}
