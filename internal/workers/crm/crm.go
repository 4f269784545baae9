// Package crm holds what the CRM capabilities share.
package crm

import (
	"context"

	"leadflow/internal/capability"
	"leadflow/internal/models"
)

// Inserter writes a lead into a CRM. Integration failures come back as an
// unsuccessful result, never as an error.
type Inserter interface {
	Insert(ctx context.Context, teamID string, lead models.LeadInfo) models.CRMResult
}

// Capability wraps an inserter as a crm capability. The team comes from
// lead_info.team_id.
func Capability(name, description string, aliases []string, ins Inserter) capability.Capability {
	return capability.Capability{
		Name:        name,
		Kind:        capability.KindCRM,
		Description: description,
		Aliases:     aliases,
		InputSchema: capability.LeadInputSchema(),
		Body: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			lead, _ := capability.LeadArg(args)
			return ins.Insert(ctx, lead.TeamID, lead), nil
		},
	}
}
