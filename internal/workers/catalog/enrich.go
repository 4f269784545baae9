// Package catalog holds what the data source capabilities share: the
// catalog contract and lead enrichment.
package catalog

import (
	"context"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/validation"
	"leadflow/internal/models"
)

const (
	DefaultTolerance int64 = 200_000
	// DefaultMaxResults of 0 returns every match.
	DefaultMaxResults = 0
)

// Source answers catalog range queries.
type Source interface {
	Query(ctx context.Context, q models.CatalogQuery) ([]models.Project, error)
}

// Options tune how a lead becomes a catalog query.
type Options struct {
	SourceName string
	Tolerance  int64
	MaxResults int
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxResults < 0 {
		o.MaxResults = DefaultMaxResults
	}
	return o
}

// Enrich returns lead with matched_projects filled in. A failing source
// yields an empty list rather than an error.
func Enrich(ctx context.Context, src Source, lead models.LeadInfo, opts Options, log logger.Logger) models.LeadInfo {
	opts = opts.withDefaults()
	q := models.CatalogQueryFor(lead, opts.Tolerance, opts.MaxResults)

	projects, err := src.Query(ctx, q)
	if err != nil {
		log.Warn("catalog enrichment degraded", map[string]interface{}{
			"team_id": lead.TeamID,
			"error":   apperrors.NewEnrichmentDegradedError(opts.SourceName, err).Error(),
		})
		lead.MatchedProjects = []string{}
		return lead
	}

	lead.MatchedProjects = models.ProjectNames(projects)
	log.Info("catalog enrichment completed", map[string]interface{}{
		"team_id":  lead.TeamID,
		"location": q.Location,
		"budget":   q.Budget,
		"bedrooms": q.Bedrooms,
		"matches":  len(projects),
	})
	return lead
}

// Capability wraps a source as a data_source capability.
func Capability(name, description string, aliases []string, src Source, opts Options, log logger.Logger) capability.Capability {
	return capability.Capability{
		Name:        name,
		Kind:        capability.KindDataSource,
		Description: description,
		Aliases:     aliases,
		InputSchema: GetInputSchema(),
		Body: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			lead, _ := capability.LeadArg(args)
			return Enrich(ctx, src, lead, opts, log), nil
		},
	}
}

func GetInputSchema() validation.JSONSchema {
	return capability.LeadInputSchema()
}
