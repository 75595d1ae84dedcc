package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func fakeServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		atomic.AddInt32(calls, 1)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// reply in reverse order so the client has to reorder by index
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedBatchesAndPreservesOrder(t *testing.T) {
	var calls int32
	srv := fakeServer(t, &calls)
	c := newClient("test", Config{BaseURL: srv.URL + "/v1", Model: "text-embedding-3-small", BatchSize: 2})

	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "openai:text-embedding-3-small", c.Name())
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	var calls int32
	srv := fakeServer(t, &calls)
	c := newClient("test", Config{BaseURL: srv.URL + "/v1"})

	_, err := c.Embed(context.Background(), []string{"ok", ""})
	assert.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEmbedSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()
	c := newClient("test", Config{BaseURL: srv.URL + "/v1"})

	_, err := c.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("FARMCOPILOT_TEST_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "FARMCOPILOT_TEST_KEY"})
	assert.Error(t, err)
}
