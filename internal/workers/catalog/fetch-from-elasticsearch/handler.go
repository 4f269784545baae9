package fetchfromelasticsearch

import (
	"context"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/models"
	"leadflow/internal/workers/catalog"
	"leadflow/internal/workers/catalog/fetch-from-elasticsearch/queries"
)

const TaskType = capability.FetchFromElasticsearch

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

type Handler struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewHandler(cfg *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Handler{
		config: cfg,
		client: client,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Query(ctx context.Context, q models.CatalogQuery) ([]models.Project, error) {
	if h.client == nil {
		return nil, apperrors.NewSearchQueryFailedError(h.config.Index, errors.New("elasticsearch client not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	result, err := queries.Execute(ctx, h.client, h.config.Index, q)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		} else {
			err = fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
		}
		return nil, apperrors.NewSearchQueryFailedError(h.config.Index, err)
	}

	h.logger.Debug("catalog search executed", map[string]interface{}{
		"index":     h.config.Index,
		"totalHits": result.TotalHits,
		"took":      result.Took,
	})
	return result.Projects, nil
}

func (h *Handler) Execute(ctx context.Context, lead models.LeadInfo) models.LeadInfo {
	return catalog.Enrich(ctx, h, lead, h.options(), h.logger)
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.client == nil {
		return errors.New("elasticsearch client not configured")
	}
	return queries.Ping(ctx, h.client, h.config.Index)
}

func (h *Handler) options() catalog.Options {
	return catalog.Options{
		SourceName: "elasticsearch",
		Tolerance:  h.config.Tolerance,
		MaxResults: h.config.MaxResults,
	}
}

func (h *Handler) Capability() capability.Capability {
	return catalog.Capability(
		TaskType,
		"Searches the Elasticsearch projects index for projects matching lead_info and returns lead_info with matched_projects filled in.",
		[]string{"elasticsearch"},
		h, h.options(), h.logger,
	)
}
