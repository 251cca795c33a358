package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/core"
	"github.com/inkwell-ai/inkwell/internal/docstore"
	"github.com/inkwell-ai/inkwell/internal/provider"
)

// testServer wires a runtime, a document store, and the offline
// generator behind an httptest server.
func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.LazyLoading.MinDocumentSize = 20
	cfg.LazyLoading.ChunkSize = 100

	rt := core.NewRuntime(cfg, nil)
	t.Cleanup(rt.Stop)

	store, err := docstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := NewServer(
		DefaultConfig(), rt, store, provider.NewStatic(""), nil,
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return srv, ts
}

// getJSON issues a GET and decodes the body.
func getJSON(t *testing.T, url string, v any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))

	return resp.StatusCode
}

// postJSON issues a POST with a JSON body and decodes the reply.
func postJSON(t *testing.T, url string, body, v any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}

	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, ts := testServer(t)

	var reply map[string]string
	code := getJSON(t, ts.URL+"/api/v1/health", &reply)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", reply["status"])
}

// TestGenerateCaching verifies the second identical request is served
// from the cache and shows up in the stats.
func TestGenerateCaching(t *testing.T) {
	_, ts := testServer(t)

	req := map[string]any{
		"prompt": "Continue the scene.",
		"model":  "gpt-4",
	}

	var first struct {
		Data generateResponse `json:"data"`
	}
	code := postJSON(t, ts.URL+"/api/v1/generate", req, &first)
	require.Equal(t, http.StatusOK, code)
	require.False(t, first.Data.Cached)
	require.NotEmpty(t, first.Data.Text)

	var second struct {
		Data generateResponse `json:"data"`
	}
	code = postJSON(t, ts.URL+"/api/v1/generate", req, &second)
	require.Equal(t, http.StatusOK, code)
	require.True(t, second.Data.Cached)
	require.Equal(t, first.Data.Text, second.Data.Text)

	var stats struct {
		Data core.Snapshot `json:"data"`
	}
	code = getJSON(t, ts.URL+"/api/v1/stats", &stats)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(1), stats.Data.Cache.HitCount)
	require.Equal(t, uint64(1), stats.Data.Cache.MissCount)
}

// TestGenerateValidation verifies required fields are enforced.
func TestGenerateValidation(t *testing.T) {
	_, ts := testServer(t)

	code := postJSON(
		t, ts.URL+"/api/v1/generate",
		map[string]any{"prompt": "no model"}, nil,
	)
	require.Equal(t, http.StatusBadRequest, code)
}

// TestDocumentLifecycle exercises save, metadata, chunk, window, and
// delete end to end.
func TestDocumentLifecycle(t *testing.T) {
	_, ts := testServer(t)

	content := strings.Repeat("the quick brown fox jumps ", 40)
	var saved struct {
		Data saveDocumentResponse `json:"data"`
	}
	code := postJSON(t, ts.URL+"/api/v1/documents", map[string]any{
		"id":      "novel-1",
		"title":   "Novel",
		"content": content,
	}, &saved)
	require.Equal(t, http.StatusOK, code)
	require.True(t, saved.Data.LazyLoading)
	require.NotNil(t, saved.Data.Metadata)
	require.Greater(t, saved.Data.Metadata.TotalChunks, 1)

	var meta struct {
		Data struct {
			TotalSize int `json:"total_size"`
		} `json:"data"`
	}
	code = getJSON(t, ts.URL+"/api/v1/documents/novel-1", &meta)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, len(content), meta.Data.TotalSize)

	var chunk struct {
		Data struct {
			ChunkID       string `json:"chunk_id"`
			StartPosition int    `json:"start_position"`
			Content       string `json:"content"`
		} `json:"data"`
	}
	code = getJSON(
		t, ts.URL+"/api/v1/documents/novel-1/chunk?position=0",
		&chunk,
	)
	require.Equal(t, http.StatusOK, code)
	require.Zero(t, chunk.Data.StartPosition)
	require.NotEmpty(t, chunk.Data.Content)

	var window struct {
		Data []json.RawMessage `json:"data"`
	}
	code = getJSON(
		t, ts.URL+"/api/v1/documents/novel-1/window?position=0",
		&window,
	)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, window.Data)

	req, err := http.NewRequest(
		http.MethodDelete, ts.URL+"/api/v1/documents/novel-1", nil,
	)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code = getJSON(t, ts.URL+"/api/v1/documents/novel-1", &meta)
	require.Equal(t, http.StatusNotFound, code)
}

// TestDocumentRehydration verifies a document dropped from the loader
// is refetched from the store on the next chunk request.
func TestDocumentRehydration(t *testing.T) {
	srv, ts := testServer(t)

	content := strings.Repeat("ink and paper all the way down ", 20)
	code := postJSON(t, ts.URL+"/api/v1/documents", map[string]any{
		"id": "novel-2", "content": content,
	}, nil)
	require.Equal(t, http.StatusOK, code)

	// Drop the in-memory state, keeping only the durable copy.
	srv.rt.ClearDocument("novel-2")

	var chunk struct {
		Data struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	code = getJSON(
		t, ts.URL+"/api/v1/documents/novel-2/chunk?position=0",
		&chunk,
	)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, chunk.Data.Content)
}

// TestDocumentPreview verifies Markdown chunks render to HTML.
func TestDocumentPreview(t *testing.T) {
	_, ts := testServer(t)

	content := "# Chapter One\n\nIt was a dark and stormy night. " +
		strings.Repeat("The rain fell. ", 10)
	code := postJSON(t, ts.URL+"/api/v1/documents", map[string]any{
		"id": "md-doc", "content": content,
	}, nil)
	require.Equal(t, http.StatusOK, code)

	var preview struct {
		Data previewResponse `json:"data"`
	}
	code = getJSON(
		t, ts.URL+"/api/v1/documents/md-doc/preview?position=0",
		&preview,
	)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, preview.Data.HTML, "<h1")
}

// TestStreamEndpoints exercises create, push, info, complete, and the
// conflict cases.
func TestStreamEndpoints(t *testing.T) {
	_, ts := testServer(t)

	var created struct {
		Data map[string]string `json:"data"`
	}
	code := postJSON(t, ts.URL+"/api/v1/streams", nil, &created)
	require.Equal(t, http.StatusOK, code)
	id := created.Data["id"]
	require.NotEmpty(t, id)

	// Named duplicates conflict.
	code = postJSON(
		t, ts.URL+"/api/v1/streams", map[string]string{"id": id}, nil,
	)
	require.Equal(t, http.StatusConflict, code)

	base := ts.URL + "/api/v1/streams/" + id
	code = postJSON(
		t, base+"/chunks", map[string]string{"chunk": "hello "}, nil,
	)
	require.Equal(t, http.StatusOK, code)

	var info struct {
		Data struct {
			BufferLen int `json:"buffer_len"`
		} `json:"data"`
	}
	code = getJSON(t, base, &info)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, info.Data.BufferLen)

	code = postJSON(t, base+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, code)

	// Unknown streams are 404.
	code = postJSON(
		t, ts.URL+"/api/v1/streams/ghost/chunks",
		map[string]string{"chunk": "x"}, nil,
	)
	require.Equal(t, http.StatusNotFound, code)
}

// TestStreamWebSocket verifies a consumer receives the buffered chunks
// in order followed by a done marker.
func TestStreamWebSocket(t *testing.T) {
	_, ts := testServer(t)

	var created struct {
		Data map[string]string `json:"data"`
	}
	code := postJSON(t, ts.URL+"/api/v1/streams", nil, &created)
	require.Equal(t, http.StatusOK, code)
	id := created.Data["id"]

	base := ts.URL + "/api/v1/streams/" + id
	for _, chunk := range []string{"It was", " a dark", " night."} {
		code = postJSON(
			t, base+"/chunks",
			map[string]string{"chunk": chunk}, nil,
		)
		require.Equal(t, http.StatusOK, code)
	}
	code = postJSON(t, base+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, code)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/ws/streams/" + id
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var got strings.Builder
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))

		if msg.Type == WSMsgTypeDone {
			break
		}

		require.Equal(t, WSMsgTypeChunk, msg.Type)
		text, ok := msg.Payload.(string)
		require.True(t, ok)
		got.WriteString(text)
	}

	require.Equal(t, "It was a dark night.", got.String())
}

// TestMaintenanceEndpoints verifies the cleanup and clear routes.
func TestMaintenanceEndpoints(t *testing.T) {
	_, ts := testServer(t)

	code := postJSON(
		t, ts.URL+"/api/v1/streams",
		map[string]string{"id": "s1"}, nil,
	)
	require.Equal(t, http.StatusOK, code)

	var report struct {
		Data core.CleanupReport `json:"data"`
	}
	code = postJSON(t, ts.URL+"/api/v1/maintenance/cleanup", nil, &report)
	require.Equal(t, http.StatusOK, code)

	code = postJSON(
		t, ts.URL+"/api/v1/maintenance/clear-streams", nil, nil,
	)
	require.Equal(t, http.StatusOK, code)

	var stats struct {
		Data core.Snapshot `json:"data"`
	}
	code = getJSON(t, ts.URL+"/api/v1/stats", &stats)
	require.Equal(t, http.StatusOK, code)
	require.Zero(t, stats.Data.Streams.ActiveStreams)
}

// TestRateLimiting verifies the limiter rejects a burst overflow.
func TestRateLimiting(t *testing.T) {
	cfg := config.DefaultConfig()
	rt := core.NewRuntime(cfg, nil)
	t.Cleanup(rt.Stop)

	webCfg := DefaultConfig()
	webCfg.RateLimit = rate.Limit(1)
	webCfg.RateBurst = 2

	srv := NewServer(webCfg, rt, nil, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		resp, err := http.Get(
			fmt.Sprintf("%s/api/v1/health", ts.URL),
		)
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	require.Contains(t, codes, http.StatusTooManyRequests)
}
