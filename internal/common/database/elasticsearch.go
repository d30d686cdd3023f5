// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"strings"

	"design-workers/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

const knowledgeIndexMapping = `{
  "mappings": {
    "properties": {
      "id":            {"type": "keyword"},
      "kind":          {"type": "keyword"},
      "title":         {"type": "text"},
      "tags":          {"type": "keyword"},
      "status":        {"type": "keyword"},
      "quality_score": {"type": "float"},
      "search_text":   {"type": "text"},
      "object":        {"type": "object", "enabled": false}
    }
  }
}`

// NewElasticsearch creates a new Elasticsearch client
func NewElasticsearch(cfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}

	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return es, nil
}

// EnsureIndex creates the knowledge index with its mapping when missing.
func EnsureIndex(ctx context.Context, es *elasticsearch.Client, index string) error {
	res, err := es.Indices.Exists([]string{index}, es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch exists check failed: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = es.Indices.Create(index,
		es.Indices.Create.WithContext(ctx),
		es.Indices.Create.WithBody(strings.NewReader(knowledgeIndexMapping)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch create index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch create index error: %s", res.Status())
	}
	return nil
}
