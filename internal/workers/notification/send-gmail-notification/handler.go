package sendgmailnotification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/validation"
	"leadflow/internal/models"
	"leadflow/internal/workers/notification"
)

const (
	TaskType = capability.SendGmailNotification
	Channel  = "gmail"

	MsgSent       = "📧 Email notification sent successfully"
	msgFailedStem = "❌ Failed to send email notification: "
)

var ErrNoRecipient = errors.New("no notification recipient configured")

type Handler struct {
	config     *Config
	recipients notification.RecipientSource
	mailer     Mailer
	logger     logger.Logger
	now        func() time.Time
}

// NewHandler builds the Gmail sender. recipients may be nil, in which case
// every notification goes to the default recipient.
func NewHandler(cfg *Config, recipients notification.RecipientSource, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handler{
		config:     cfg,
		recipients: recipients,
		mailer:     &smtpMailer{config: cfg},
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:        time.Now,
	}, nil
}

// Send emails the lead outcome. It never fails the run; problems are
// reported in the returned text.
func (h *Handler) Send(ctx context.Context, teamID string, lead models.LeadInfo, success bool, errorMessage string) string {
	if err := h.send(ctx, teamID, lead, success, errorMessage); err != nil {
		h.logger.Error("gmail notification failed", map[string]interface{}{
			"team_id": teamID,
			"error":   apperrors.NewNotificationSendFailedError(Channel, err).Error(),
		})
		return msgFailedStem + err.Error()
	}
	h.logger.Info("gmail notification sent", map[string]interface{}{
		"team_id": teamID,
		"success": success,
	})
	return MsgSent
}

func (h *Handler) send(ctx context.Context, teamID string, lead models.LeadInfo, success bool, errorMessage string) error {
	to, _ := notification.ResolveRecipient(ctx, h.recipients, teamID, Channel, h.config.DefaultRecipient, h.logger)
	if to == "" {
		return ErrNoRecipient
	}
	if !validation.ValidateEmail(to) {
		return fmt.Errorf("invalid recipient email address: %s", to)
	}

	if lead.TeamID == "" {
		lead.TeamID = teamID
	}
	now := h.now()
	n, err := notification.Render(to, lead, success, errorMessage, h.config.BrandName, now)
	if err != nil {
		return err
	}
	msg, err := BuildMessage(h.config.DefaultFrom, n, h.config.SMTPHost, now)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.mailer.SendMail(ctx, h.config.DefaultFrom, []string{to}, msg)
}

func (h *Handler) Capability() capability.Capability {
	return notification.Capability(
		TaskType,
		"Emails the lead outcome through Gmail. Pass the full lead_info, success, and error_message when the CRM step failed.",
		[]string{"gmail"},
		h,
	)
}
