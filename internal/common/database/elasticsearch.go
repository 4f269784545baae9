package database

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"leadflow/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// projectsMapping mirrors the projects table. location and property_type
// carry keyword subfields for substring filters.
const projectsMapping = `{
  "mappings": {
    "properties": {
      "id":            {"type": "keyword"},
      "name":          {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "location":      {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
      "property_type": {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
      "min_price":     {"type": "long"},
      "max_price":     {"type": "long"},
      "min_bedrooms":  {"type": "integer"},
      "max_bedrooms":  {"type": "integer"}
    }
  }
}`

type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	esCfg := elasticsearch.Config{Addresses: cfg.Addresses}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// EnsureProjectsIndex creates the catalog index with its mapping when it
// does not exist yet. It reports whether the index was created.
func (c *ElasticsearchClient) EnsureProjectsIndex(ctx context.Context, index string) (bool, error) {
	exists, err := c.Client.Indices.Exists([]string{index}, c.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", index, err)
	}
	exists.Body.Close()

	switch exists.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("check index %s: %s", index, exists.Status())
	}

	res, err := c.Client.Indices.Create(index,
		c.Client.Indices.Create.WithContext(ctx),
		c.Client.Indices.Create.WithBody(strings.NewReader(projectsMapping)),
	)
	if err != nil {
		return false, fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, fmt.Errorf("create index %s: %s", index, res.Status())
	}
	return true, nil
}
