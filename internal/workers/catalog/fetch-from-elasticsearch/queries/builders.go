package queries

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"leadflow/internal/models"
)

var ErrMissingIndex = errors.New("index name is required")

// MaxSearchWindow is the default index.max_result_window; an unbounded query
// asks for this many hits.
const MaxSearchWindow = 10_000

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// containsQuery is a case-insensitive substring match on the keyword subfield.
func containsQuery(field, value string) map[string]interface{} {
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			field + ".keyword": map[string]interface{}{
				"value":            "*" + wildcardEscaper.Replace(value) + "*",
				"case_insensitive": true,
			},
		},
	}
}

// BuildProjectsBody renders the bool query for q. Location and property type
// are substring filters; ranges express band overlap.
func BuildProjectsBody(q models.CatalogQuery) map[string]interface{} {
	filter := []interface{}{}

	if location := strings.TrimSpace(q.Location); location != "" {
		filter = append(filter, containsQuery("location", location))
	}
	if propertyType := strings.TrimSpace(q.PropertyType); propertyType != "" {
		filter = append(filter, containsQuery("property_type", propertyType))
	}

	if q.Budget > 0 {
		low, high := q.PriceBounds()
		filter = append(filter,
			map[string]interface{}{"range": map[string]interface{}{"min_price": map[string]interface{}{"lte": high}}},
			map[string]interface{}{"range": map[string]interface{}{"max_price": map[string]interface{}{"gte": low}}},
		)
	}
	if q.Bedrooms > 0 {
		filter = append(filter,
			map[string]interface{}{"range": map[string]interface{}{"min_bedrooms": map[string]interface{}{"lte": q.Bedrooms}}},
			map[string]interface{}{"range": map[string]interface{}{"max_bedrooms": map[string]interface{}{"gte": q.Bedrooms}}},
		)
	}

	if len(filter) == 0 {
		return map[string]interface{}{"query": map[string]interface{}{"match_all": map[string]interface{}{}}}
	}
	return map[string]interface{}{"query": map[string]interface{}{"bool": map[string]interface{}{"filter": filter}}}
}

// BuildSearchRequest builds the search request against index.
func BuildSearchRequest(index string, q models.CatalogQuery) (*esapi.SearchRequest, error) {
	if index == "" {
		return nil, ErrMissingIndex
	}

	body, err := json.Marshal(BuildProjectsBody(q))
	if err != nil {
		return nil, err
	}

	size := q.Limit
	if size <= 0 || size > MaxSearchWindow {
		size = MaxSearchWindow
	}

	return &esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}, nil
}
