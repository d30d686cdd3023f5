package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// Index keeps a searchable copy of knowledge objects in Elasticsearch for
// tag lookups. Embeddings are not indexed.
type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "knowledge-index"}),
	}
}

type indexDoc struct {
	ID           string                 `json:"id"`
	Kind         string                 `json:"kind"`
	Title        string                 `json:"title"`
	Tags         []string               `json:"tags"`
	Status       string                 `json:"status"`
	QualityScore float64                `json:"quality_score"`
	SearchText   string                 `json:"search_text"`
	Object       models.KnowledgeObject `json:"object"`
}

func (ix *Index) IndexObject(ctx context.Context, obj models.KnowledgeObject) error {
	tags := make([]string, len(obj.Tags))
	for i, t := range obj.Tags {
		tags[i] = strings.ToLower(t)
	}
	stored := obj
	stored.Embedding = nil

	body, err := json.Marshal(indexDoc{
		ID:           obj.ID,
		Kind:         string(obj.Kind),
		Title:        obj.Title,
		Tags:         tags,
		Status:       string(obj.Status),
		QualityScore: obj.QualityScore,
		SearchText:   obj.SearchText(),
		Object:       stored,
	})
	if err != nil {
		return fmt.Errorf("marshal index document: %w", err)
	}

	res, err := ix.client.Index(ix.index, bytes.NewReader(body),
		ix.client.Index.WithContext(ctx),
		ix.client.Index.WithDocumentID(obj.ID),
	)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewSearchQueryFailedError(fmt.Errorf("index %s: %s", obj.ID, res.Status()))
	}
	return nil
}

// SearchByTags returns active objects carrying any of terms as a tag, best
// quality first.
func (ix *Index) SearchByTags(ctx context.Context, terms []string, minQuality float64, limit int) ([]models.KnowledgeObject, error) {
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	query := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"status": string(models.StatusActive)}},
					map[string]interface{}{"range": map[string]interface{}{"quality_score": map[string]interface{}{"gte": minQuality}}},
					map[string]interface{}{"terms": map[string]interface{}{"tags": lowered}},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"quality_score": map[string]interface{}{"order": "desc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(ix.index),
		ix.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("search: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source struct {
					Object models.KnowledgeObject `json:"object"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("decode search response: %w", err))
	}

	out := make([]models.KnowledgeObject, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source.Object)
	}
	ix.logger.Debug("tag search", map[string]interface{}{"terms": len(terms), "hits": len(out)})
	return out, nil
}
