package fetchfromelasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/capability"
	"leadflow/internal/common/config"
	"leadflow/internal/common/logger"
	"leadflow/internal/models"
	"leadflow/internal/workers/catalog/fetch-from-elasticsearch/queries"
)

const hitsBody = `{
	"took": 3,
	"hits": {
		"total": {"value": 1},
		"hits": [
			{"_id": "p-1", "_source": {"name": "Palm Hills", "location": "New Cairo", "min_price": 7800000, "max_price": 8200000, "min_bedrooms": 3, "max_bedrooms": 4, "property_type": "villa"}}
		]
	}
}`

// newTestServer fakes an Elasticsearch node. The client refuses servers that
// do not send the product header.
func newTestServer(t *testing.T, status int, body string, seen *map[string]interface{}) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil && r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				_ = json.Unmarshal(raw, seen)
			}
			(*seen)["_path"] = r.URL.Path
			(*seen)["_size"] = r.URL.Query().Get("size")
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func createTestHandler(t *testing.T, client *elasticsearch.Client) *Handler {
	return NewHandler(&Config{Index: "projects", Timeout: time.Second, Tolerance: 200_000, MaxResults: 20}, client, logger.NewTestLogger(t))
}

func TestBuildProjectsBody(t *testing.T) {
	body := queries.BuildProjectsBody(models.CatalogQuery{
		Location: "New Cairo", PropertyType: "villa", Bedrooms: 3, Budget: 8_000_000, Tolerance: 200_000,
	})

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `{"wildcard":{"location.keyword":{"case_insensitive":true,"value":"*New Cairo*"}}}`)
	assert.Contains(t, s, `{"wildcard":{"property_type.keyword":{"case_insensitive":true,"value":"*villa*"}}}`)
	assert.NotContains(t, s, `"match"`)
	assert.NotContains(t, s, `"must"`)
	assert.Contains(t, s, `{"range":{"min_price":{"lte":8200000}}}`)
	assert.Contains(t, s, `{"range":{"max_price":{"gte":7800000}}}`)
	assert.Contains(t, s, `{"range":{"min_bedrooms":{"lte":3}}}`)
	assert.Contains(t, s, `{"range":{"max_bedrooms":{"gte":3}}}`)

	empty, err := json.Marshal(queries.BuildProjectsBody(models.CatalogQuery{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"match_all":{}}}`, string(empty))
}

func TestBuildProjectsBody_SubstringFilters(t *testing.T) {
	tests := []struct {
		name  string
		query models.CatalogQuery
		want  string
	}{
		{
			name:  "location only, trimmed",
			query: models.CatalogQuery{Location: "  cairo "},
			want:  `{"query":{"bool":{"filter":[{"wildcard":{"location.keyword":{"case_insensitive":true,"value":"*cairo*"}}}]}}}`,
		},
		{
			name:  "wildcard characters are literal",
			query: models.CatalogQuery{PropertyType: `a*b?c\d`},
			want:  `{"query":{"bool":{"filter":[{"wildcard":{"property_type.keyword":{"case_insensitive":true,"value":"*a\\*b\\?c\\\\d*"}}}]}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(queries.BuildProjectsBody(tt.query))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestBuildSearchRequest_Size(t *testing.T) {
	tests := map[int]int{0: queries.MaxSearchWindow, 5: 5, 50_000: queries.MaxSearchWindow}
	for limit, want := range tests {
		req, err := queries.BuildSearchRequest("projects", models.CatalogQuery{Limit: limit})
		require.NoError(t, err)
		require.NotNil(t, req.Size)
		assert.Equal(t, want, *req.Size, "limit %d", limit)
	}
}

func TestBuildSearchRequest_RequiresIndex(t *testing.T) {
	_, err := queries.BuildSearchRequest("", models.CatalogQuery{})
	assert.ErrorIs(t, err, queries.ErrMissingIndex)
}

func TestHandler_Execute_MatchesProjects(t *testing.T) {
	seen := map[string]interface{}{}
	h := createTestHandler(t, newTestServer(t, http.StatusOK, hitsBody, &seen))

	lead := h.Execute(context.Background(), models.LeadInfo{
		FirstName: "Sarah", Location: "New Cairo", PropertyType: "villa",
		Bedrooms: "3", Budget: 8_000_000, TeamID: "T01ABCDE123",
	})

	assert.Equal(t, []string{"Palm Hills"}, lead.MatchedProjects)
	assert.Equal(t, "/projects/_search", seen["_path"])
	assert.Equal(t, "20", seen["_size"])
	assert.Contains(t, seen, "query")
}

func TestHandler_Query_UsesHitIDWhenSourceHasNone(t *testing.T) {
	h := createTestHandler(t, newTestServer(t, http.StatusOK, hitsBody, nil))

	projects, err := h.Query(context.Background(), models.CatalogQuery{Location: "New Cairo"})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p-1", projects[0].ID)
	assert.Equal(t, int64(8_200_000), projects[0].MaxPrice)
}

func TestHandler_Execute_DegradesOnSearchError(t *testing.T) {
	h := createTestHandler(t, newTestServer(t, http.StatusInternalServerError, `{"error":"boom"}`, nil))

	lead := h.Execute(context.Background(), models.LeadInfo{FirstName: "Sarah", TeamID: "T1"})
	assert.Equal(t, []string{}, lead.MatchedProjects)
	assert.Equal(t, "Sarah", lead.FirstName)

	_, err := h.Query(context.Background(), models.CatalogQuery{})
	assert.ErrorIs(t, err, ErrSearchQueryFailed)
}

func TestHandler_NilClientDegrades(t *testing.T) {
	h := createTestHandler(t, nil)

	lead := h.Execute(context.Background(), models.LeadInfo{TeamID: "T1"})
	assert.Equal(t, []string{}, lead.MatchedProjects)
	assert.Error(t, h.HealthCheck(context.Background()))
}

func TestHandler_HealthCheck(t *testing.T) {
	assert.NoError(t, createTestHandler(t, newTestServer(t, http.StatusOK, `{}`, nil)).HealthCheck(context.Background()))
	assert.Error(t, createTestHandler(t, newTestServer(t, http.StatusNotFound, `{}`, nil)).HealthCheck(context.Background()))
}

func TestHandler_Capability(t *testing.T) {
	h := createTestHandler(t, newTestServer(t, http.StatusOK, hitsBody, nil))

	c := h.Capability()
	assert.Equal(t, capability.FetchFromElasticsearch, c.Name)
	assert.Equal(t, []string{"elasticsearch"}, c.Aliases)
	assert.True(t, strings.Contains(c.Description, "Elasticsearch"))

	out, err := c.Invoke(context.Background(), map[string]interface{}{
		"lead_info": map[string]interface{}{"location": "New Cairo", "team_id": "T1", "budget": "8M"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Palm Hills"}, out.(models.LeadInfo).MatchedProjects)
}

func TestConfigFromApp(t *testing.T) {
	cfg := ConfigFromApp(nil)
	assert.Equal(t, DefaultIndex, cfg.Index)
	assert.Equal(t, 0, cfg.MaxResults)

	app := &config.Config{}
	app.Catalog.MaxResults = 50
	assert.Equal(t, 50, ConfigFromApp(app).MaxResults)
}
