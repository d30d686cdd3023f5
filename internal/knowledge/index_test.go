package knowledge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type esRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

func newFakeES(t *testing.T, status int, response string) (*Index, *[]esRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []esRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		req := esRequest{Method: r.Method, Path: r.URL.Path}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &req.Body)
		}
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndex(es, "knowledge_objects", logger.NewTestLogger(t)), &seen
}

func TestIndex_IndexObject(t *testing.T) {
	ix, seen := newFakeES(t, http.StatusCreated, `{"result":"created"}`)

	obj := validMotif()
	obj.Tags = []string{"Leaf"}
	obj.Embedding = []float32{0.1, 0.2}
	require.NoError(t, ix.IndexObject(context.Background(), obj))

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/knowledge_objects/_doc/k1", req.Path)
	assert.Equal(t, []interface{}{"leaf"}, req.Body["tags"])
	assert.Equal(t, "experimental", req.Body["status"])

	stored, ok := req.Body["object"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, stored, "embedding")
}

func TestIndex_SearchByTags(t *testing.T) {
	hit := validMotif()
	hit.Status = models.StatusActive
	source, err := json.Marshal(map[string]interface{}{"id": hit.ID, "object": hit})
	require.NoError(t, err)
	response := `{"took":1,"hits":{"total":{"value":1},"hits":[{"_id":"k1","_source":` + string(source) + `}]}}`

	ix, seen := newFakeES(t, http.StatusOK, response)

	objs, err := ix.SearchByTags(context.Background(), []string{"Leaf", "circle"}, 0.3, 50)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "k1", objs[0].ID)
	assert.Equal(t, models.MotifBody{Name: "leaf", Primitive: "path"}, objs[0].Body)

	require.Len(t, *seen, 1)
	assert.True(t, strings.HasSuffix((*seen)[0].Path, "/knowledge_objects/_search"))
	assert.EqualValues(t, 50, (*seen)[0].Body["size"])
	raw, _ := json.Marshal((*seen)[0].Body["query"])
	assert.Contains(t, string(raw), `"tags":["leaf","circle"]`)
	assert.Contains(t, string(raw), `"status":"active"`)
}

func TestIndex_SearchByTags_Error(t *testing.T) {
	ix, _ := newFakeES(t, http.StatusInternalServerError, `{"error":"boom"}`)

	_, err := ix.SearchByTags(context.Background(), []string{"leaf"}, 0.3, 10)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSearchQueryFailed))
}
