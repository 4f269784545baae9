package notification

import (
	"context"
	"errors"

	"leadflow/internal/common/logger"
	"leadflow/internal/installations"
)

// ResolveRecipient returns the team's recipient for channel, falling back to
// the default email when none is stored.
func ResolveRecipient(ctx context.Context, src RecipientSource, teamID, channel, fallbackEmail string, log logger.Logger) (email, phone string) {
	if src == nil || teamID == "" {
		return fallbackEmail, ""
	}
	r, err := src.Recipient(ctx, teamID, channel)
	if err != nil {
		if !errors.Is(err, installations.ErrNotInstalled) {
			log.Warn("recipient lookup failed, using default", map[string]interface{}{
				"team_id": teamID,
				"channel": channel,
				"error":   err.Error(),
			})
		}
		return fallbackEmail, ""
	}
	email = r.Email
	if email == "" {
		email = fallbackEmail
	}
	return email, r.Phone
}
