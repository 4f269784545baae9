package fetchfrompostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/models"
	"leadflow/internal/workers/catalog"
	"leadflow/internal/workers/catalog/fetch-from-postgres/queries"
)

const TaskType = capability.FetchFromPostgres

var (
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
)

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(cfg *Config, db *sql.DB, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Handler{
		config: cfg,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Query runs the projects range query.
func (h *Handler) Query(ctx context.Context, q models.CatalogQuery) ([]models.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	data, rowCount, execMs, err := queries.Execute(ctx, h.db, models.QueryTypeProjectsByCriteria, map[string]interface{}{
		"query": q,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewQueryTimeoutError(string(models.QueryTypeProjectsByCriteria)).WithCause(ErrQueryTimeout)
		}
		return nil, apperrors.NewQueryExecutionFailedError(string(models.QueryTypeProjectsByCriteria),
			fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err))
	}

	h.logger.Debug("catalog query executed", map[string]interface{}{
		"rowCount":           rowCount,
		"queryExecutionTime": execMs,
	})
	return data.([]models.Project), nil
}

// Execute enriches one lead.
func (h *Handler) Execute(ctx context.Context, lead models.LeadInfo) models.LeadInfo {
	return catalog.Enrich(ctx, h, lead, h.options(), h.logger)
}

// HealthCheck verifies the projects table is readable.
func (h *Handler) HealthCheck(ctx context.Context) error {
	data, _, _, err := queries.Execute(ctx, h.db, models.QueryTypeProjectCount, nil)
	if err != nil {
		return fmt.Errorf("projects table: %w", err)
	}
	h.logger.Debug("catalog health check passed", map[string]interface{}{"projects": data})
	return nil
}

func (h *Handler) options() catalog.Options {
	return catalog.Options{
		SourceName: "postgresql",
		Tolerance:  h.config.Tolerance,
		MaxResults: h.config.MaxResults,
	}
}

func (h *Handler) Capability() capability.Capability {
	return catalog.Capability(
		TaskType,
		"Finds catalog projects in PostgreSQL that match lead_info (location, property_type, bedrooms, budget) and returns lead_info with matched_projects filled in.",
		[]string{"postgresql", "postgres"},
		h, h.options(), h.logger,
	)
}
