package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "design-workers/internal/common/errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingServer(t *testing.T, status int, data []map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "text-embedding-3-small", req.Model)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"unavailable","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
}

func testOpenAIClient(url string) openai.Client {
	return openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(url+"/v1/"),
		option.WithMaxRetries(0),
	)
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := newEmbeddingServer(t, http.StatusOK, []map[string]interface{}{
		{"object": "embedding", "index": 1, "embedding": []float64{0, 1}},
		{"object": "embedding", "index": 0, "embedding": []float64{0.5, 0.25}},
	})
	defer srv.Close()

	e := NewOpenAIEmbedder(testOpenAIClient(srv.URL), "text-embedding-3-small")
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.5, 0.25}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		srv := newEmbeddingServer(t, http.StatusInternalServerError, nil)
		defer srv.Close()

		e := NewOpenAIEmbedder(testOpenAIClient(srv.URL), "text-embedding-3-small")
		_, err := e.Embed(context.Background(), []string{"a"})
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEmbeddingFailed))
	})

	t.Run("count mismatch", func(t *testing.T) {
		srv := newEmbeddingServer(t, http.StatusOK, []map[string]interface{}{
			{"object": "embedding", "index": 0, "embedding": []float64{1}},
		})
		defer srv.Close()

		e := NewOpenAIEmbedder(testOpenAIClient(srv.URL), "text-embedding-3-small")
		_, err := e.Embed(context.Background(), []string{"a", "b"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEmbeddingFailed))
	})

	t.Run("no input", func(t *testing.T) {
		e := NewOpenAIEmbedder(openai.NewClient(option.WithAPIKey("unused")), "m")
		vecs, err := e.Embed(context.Background(), nil)
		assert.NoError(t, err)
		assert.Nil(t, vecs)
	})
}
