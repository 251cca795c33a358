package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testStore creates a temporary test database with migrations applied.
func testStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

// TestSaveAndGetDocument verifies the round trip, including the
// derived word count.
func TestSaveAndGetDocument(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	doc := Document{
		ID:      "novel-1",
		Title:   "The Long Rain",
		Content: "It had been raining for seven years.",
	}
	require.NoError(t, store.SaveDocument(ctx, doc))

	got, err := store.GetDocument(ctx, "novel-1")
	require.NoError(t, err)
	require.Equal(t, doc.Title, got.Title)
	require.Equal(t, doc.Content, got.Content)
	require.Equal(t, 7, got.WordCount)
	require.False(t, got.CreatedAt.IsZero())
}

// TestSaveUpsert verifies that re-saving replaces content in place.
func TestSaveUpsert(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, Document{
		ID: "draft", Content: "first pass",
	}))
	require.NoError(t, store.SaveDocument(ctx, Document{
		ID: "draft", Title: "Draft", Content: "second pass revised",
	}))

	got, err := store.GetDocument(ctx, "draft")
	require.NoError(t, err)
	require.Equal(t, "Draft", got.Title)
	require.Equal(t, "second pass revised", got.Content)
	require.Equal(t, 3, got.WordCount)

	infos, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
}

// TestGetMissingDocument verifies the NotFound contract.
func TestGetMissingDocument(t *testing.T) {
	store := testStore(t)

	_, err := store.GetDocument(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

// TestDeleteDocument verifies deletion and its NotFound case.
func TestDeleteDocument(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, Document{
		ID: "novel-1", Content: "text",
	}))

	require.NoError(t, store.DeleteDocument(ctx, "novel-1"))
	require.ErrorIs(
		t, store.DeleteDocument(ctx, "novel-1"),
		ErrDocumentNotFound,
	)

	_, err := store.GetDocument(ctx, "novel-1")
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

// TestListDocuments verifies the listing shape and sizes.
func TestListDocuments(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDocument(ctx, Document{
		ID: "a", Content: "alpha beta",
	}))
	require.NoError(t, store.SaveDocument(ctx, Document{
		ID: "b", Content: "gamma",
	}))

	infos, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byID := make(map[string]DocumentInfo)
	for _, info := range infos {
		byID[info.ID] = info
	}
	require.Equal(t, len("alpha beta"), byID["a"].Size)
	require.Equal(t, 2, byID["a"].WordCount)
	require.Equal(t, 1, byID["b"].WordCount)
}

// TestMigrationsIdempotent verifies a reopened database migrates
// cleanly to the same version.
func TestMigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveDocument(
		context.Background(), Document{ID: "a", Content: "x"},
	))
	require.NoError(t, store.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetDocument(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "x", got.Content)
}
