package sendsesnotification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/models"
	"leadflow/internal/workers/notification"
)

const (
	TaskType = capability.SendSESNotification
	Channel  = "ses"

	MsgSent        = "📧 Email notification sent successfully"
	MsgSentWithSMS = "📧 Email and SMS notifications sent successfully"
	msgFailedStem  = "❌ Failed to send email notification: "

	maxSMSLength = 160
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
	ErrChannelDisabled        = errors.New("SES email and SNS SMS are both disabled")
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config     *Config
	recipients notification.RecipientSource
	sesClient  SESService
	snsClient  SNSService
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(cfg *Config, recipients notification.RecipientSource, sesClient SESService, snsClient SNSService, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EmailEnabled && sesClient == nil {
		return nil, errors.New("ses client is required when email is enabled")
	}
	if cfg.SMSEnabled && snsClient == nil {
		return nil, errors.New("sns client is required when sms is enabled")
	}
	return &Handler{
		config:     cfg,
		recipients: recipients,
		sesClient:  sesClient,
		snsClient:  snsClient,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:        time.Now,
	}, nil
}

// Send emails the lead outcome through SES and, when the team has a phone
// on file, texts a short summary through SNS. An SMS failure does not undo
// a delivered email.
func (h *Handler) Send(ctx context.Context, teamID string, lead models.LeadInfo, success bool, errorMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	if !h.config.EmailEnabled && !h.config.SMSEnabled {
		return h.failed(teamID, ErrChannelDisabled)
	}

	email, phone := notification.ResolveRecipient(ctx, h.recipients, teamID, Channel, h.config.DefaultRecipient, h.logger)
	if lead.TeamID == "" {
		lead.TeamID = teamID
	}
	n, err := notification.Render(email, lead, success, errorMessage, h.config.BrandName, h.now())
	if err != nil {
		return h.failed(teamID, err)
	}

	emailSent := false
	if h.config.EmailEnabled && email != "" {
		if err := h.sendEmail(ctx, n); err != nil {
			return h.failed(teamID, err)
		}
		emailSent = true
	}

	smsSent := false
	if h.config.SMSEnabled && phone != "" {
		if err := h.sendSMS(ctx, phone, n.TextBody); err != nil {
			h.logger.Warn("SMS send failed", map[string]interface{}{
				"team_id": teamID,
				"error":   err.Error(),
			})
		} else {
			smsSent = true
		}
	}

	switch {
	case emailSent && smsSent:
		return MsgSentWithSMS
	case emailSent:
		return MsgSent
	case smsSent:
		return "📱 SMS notification sent successfully"
	default:
		return h.failed(teamID, errors.New("no recipient configured"))
	}
}

func (h *Handler) failed(teamID string, err error) string {
	h.logger.Error("ses notification failed", map[string]interface{}{
		"team_id": teamID,
		"error":   apperrors.NewNotificationSendFailedError(Channel, err).Error(),
	})
	return msgFailedStem + err.Error()
}

func (h *Handler) sendEmail(ctx context.Context, n models.Notification) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(n.TextBody), Charset: aws.String("UTF-8")},
				Html: &types.Content{Data: aws.String(n.HTMLBody), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	if err != nil {
		return fmt.Errorf("%w: ses: %v", ErrNotificationSendFailed, err)
	}
	return nil
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	if runes := []rune(message); len(runes) > maxSMSLength {
		message = strings.TrimSpace(string(runes[:maxSMSLength-3])) + "..."
	}
	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if h.config.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(h.config.SenderID)},
		}
	}
	if _, err := h.snsClient.Publish(ctx, input); err != nil {
		return fmt.Errorf("%w: sns: %v", ErrNotificationSendFailed, err)
	}
	return nil
}

func (h *Handler) Capability() capability.Capability {
	return notification.Capability(
		TaskType,
		"Emails the lead outcome through AWS SES, and texts a summary through SNS when the team has a phone on file.",
		[]string{"ses", "aws"},
		h,
	)
}
