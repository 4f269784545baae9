// Package notification holds what the notification capabilities share: the
// sender contract, recipient lookup and the lead email templates.
package notification

import (
	"context"

	"leadflow/internal/capability"
	"leadflow/internal/models"
)

// Sender delivers a lead notification and returns a user-facing
// confirmation. Delivery failures are reported in the returned text.
type Sender interface {
	Send(ctx context.Context, teamID string, lead models.LeadInfo, success bool, errorMessage string) string
}

// RecipientSource resolves where a team's notifications go.
type RecipientSource interface {
	Recipient(ctx context.Context, teamID, channel string) (*models.NotificationRecipient, error)
}

// Request is the decoded argument set of a notification call.
type Request struct {
	TeamID       string
	Lead         models.LeadInfo
	Success      bool
	ErrorMessage string
}

// RequestFromArgs reads lead_info (or lead_info_enhanced), success and
// error_message. success defaults to true.
func RequestFromArgs(args map[string]interface{}) Request {
	lead, _ := capability.LeadArg(args)
	teamID := capability.StringArg(args, capability.ArgTeamID)
	if teamID == "" {
		teamID = lead.TeamID
	}
	return Request{
		TeamID:       teamID,
		Lead:         lead,
		Success:      capability.BoolArg(args, capability.ArgSuccess, true),
		ErrorMessage: capability.StringArg(args, capability.ArgErrorMessage),
	}
}

func Capability(name, description string, aliases []string, s Sender) capability.Capability {
	return capability.Capability{
		Name:        name,
		Kind:        capability.KindNotification,
		Description: description,
		Aliases:     aliases,
		InputSchema: capability.NotificationInputSchema(),
		Body: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			req := RequestFromArgs(args)
			return s.Send(ctx, req.TeamID, req.Lead, req.Success, req.ErrorMessage), nil
		},
	}
}
