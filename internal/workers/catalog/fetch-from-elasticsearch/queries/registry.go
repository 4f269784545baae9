// Package queries builds and runs the Elasticsearch catalog search.
package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"leadflow/internal/models"
)

type QueryResult struct {
	Projects  []models.Project
	TotalHits int64
	Took      int64
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Source models.Project `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func Execute(ctx context.Context, esClient *elasticsearch.Client, index string, q models.CatalogQuery) (*QueryResult, error) {
	req, err := BuildSearchRequest(index, q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	projects := make([]models.Project, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		p := hit.Source
		if p.ID == "" {
			p.ID = hit.ID
		}
		projects = append(projects, p)
	}

	return &QueryResult{
		Projects:  projects,
		TotalHits: r.Hits.Total.Value,
		Took:      time.Since(start).Milliseconds(),
	}, nil
}

// Ping reports whether the index exists.
func Ping(ctx context.Context, esClient *elasticsearch.Client, index string) error {
	res, err := esClient.Indices.Exists([]string{index}, esClient.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s: %s", index, res.Status())
	}
	return nil
}
