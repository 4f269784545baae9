// Package sendoutlooknotification is a stand-in Outlook sender that only logs.
package sendoutlooknotification

import (
	"context"

	"leadflow/internal/capability"
	"leadflow/internal/common/logger"
	"leadflow/internal/models"
	"leadflow/internal/workers/notification"
)

const (
	TaskType = capability.SendOutlookNotification
	MsgSent  = "📧 Outlook notification (mock) sent successfully"
)

type Handler struct {
	logger logger.Logger
}

func NewHandler(log logger.Logger) *Handler {
	return &Handler{logger: log.WithFields(map[string]interface{}{"taskType": TaskType})}
}

func (h *Handler) Send(ctx context.Context, teamID string, lead models.LeadInfo, success bool, errorMessage string) string {
	h.logger.Info("outlook notification (mock)", map[string]interface{}{
		"team_id":       teamID,
		"subject":       notification.Subject(lead, success),
		"error_message": errorMessage,
	})
	return MsgSent
}

func (h *Handler) Capability() capability.Capability {
	return notification.Capability(
		TaskType,
		"Sends the lead outcome through Outlook (mock). Pass the full lead_info and success.",
		[]string{"outlook"},
		h,
	)
}
