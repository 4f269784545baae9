package sendgmailnotification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"leadflow/internal/capability"
	"leadflow/internal/common/logger"
	"leadflow/internal/installations"
	"leadflow/internal/models"
	"leadflow/internal/workers/notification"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendMail(ctx context.Context, from string, to []string, msg []byte) error {
	return m.Called(ctx, from, to, msg).Error(0)
}

type MockRecipients struct {
	mock.Mock
}

func (m *MockRecipients) Recipient(ctx context.Context, teamID, channel string) (*models.NotificationRecipient, error) {
	args := m.Called(ctx, teamID, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationRecipient), args.Error(1)
}

func createTestHandler(t *testing.T, recipients *MockRecipients, mailer *MockMailer) *Handler {
	cfg := DefaultConfig()
	cfg.DefaultRecipient = "ops@example.com"
	cfg.DefaultFrom = "bot@example.com"
	cfg.Timeout = time.Second

	var src notification.RecipientSource
	if recipients != nil {
		src = recipients
	}
	h, err := NewHandler(cfg, src, logger.NewTestLogger(t))
	require.NoError(t, err)
	h.mailer = mailer
	h.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return h
}

func sarah() models.LeadInfo {
	return models.LeadInfo{
		FirstName: "Sarah", Phone: "01234567890", Location: "New Cairo", PropertyType: "villa",
		Bedrooms: "3", Budget: 8_000_000, TeamID: "T1", MatchedProjects: []string{"Palm Hills"},
	}
}

func TestHandler_Send_Success(t *testing.T) {
	recipients := new(MockRecipients)
	recipients.On("Recipient", mock.Anything, "T1", Channel).
		Return(&models.NotificationRecipient{TeamID: "T1", Channel: Channel, Email: "sales@example.com"}, nil)

	mailer := new(MockMailer)
	mailer.On("SendMail", mock.Anything, "bot@example.com", []string{"sales@example.com"}, mock.MatchedBy(func(msg []byte) bool {
		s := string(msg)
		return strings.Contains(s, "To: sales@example.com") &&
			strings.Contains(s, "multipart/alternative") &&
			strings.Contains(s, "<li>Palm Hills</li>")
	})).Return(nil)

	out := createTestHandler(t, recipients, mailer).Send(context.Background(), "T1", sarah(), true, "")

	assert.Equal(t, MsgSent, out)
	recipients.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestHandler_Send_FallsBackToDefaultRecipient(t *testing.T) {
	recipients := new(MockRecipients)
	recipients.On("Recipient", mock.Anything, "T1", Channel).
		Return(nil, fmt.Errorf("%w: none", installations.ErrNotInstalled))

	mailer := new(MockMailer)
	mailer.On("SendMail", mock.Anything, "bot@example.com", []string{"ops@example.com"}, mock.Anything).Return(nil)

	out := createTestHandler(t, recipients, mailer).Send(context.Background(), "T1", sarah(), false, "Zoho down")
	assert.Equal(t, MsgSent, out)
	mailer.AssertExpectations(t)
}

func TestHandler_Send_FailureIsReportedNotRaised(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("SendMail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("535 authentication failed"))

	out := createTestHandler(t, nil, mailer).Send(context.Background(), "T1", sarah(), true, "")
	assert.Equal(t, "❌ Failed to send email notification: 535 authentication failed", out)
}

func TestHandler_Send_NoRecipient(t *testing.T) {
	mailer := new(MockMailer)
	h := createTestHandler(t, nil, mailer)
	h.config.DefaultRecipient = ""

	out := h.Send(context.Background(), "T1", sarah(), true, "")
	assert.Equal(t, "❌ Failed to send email notification: "+ErrNoRecipient.Error(), out)
	mailer.AssertNumberOfCalls(t, "SendMail", 0)
}

func TestHandler_Capability(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("SendMail", mock.Anything, mock.Anything, []string{"ops@example.com"}, mock.MatchedBy(func(msg []byte) bool {
		return strings.Contains(string(msg), "Action Required")
	})).Return(nil)

	c := createTestHandler(t, nil, mailer).Capability()
	assert.Equal(t, capability.KindNotification, c.Kind)

	out, err := c.Invoke(context.Background(), map[string]interface{}{
		"lead_info":     sarah().ToMap(),
		"success":       false,
		"error_message": "❌ Failed to insert lead into Zoho CRM.",
	})
	require.NoError(t, err)
	assert.Equal(t, MsgSent, out)
	mailer.AssertExpectations(t)
}

func TestBuildMessage(t *testing.T) {
	msg, err := BuildMessage("bot@example.com", models.Notification{
		To: "sales@example.com", Subject: "✅ New Lead", HTMLBody: "<p>hi</p>", TextBody: "hi",
	}, "smtp.gmail.com", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	s := string(msg)
	assert.Contains(t, s, "From: bot@example.com\r\n")
	assert.Contains(t, s, "Subject: =?utf-8?q?")
	assert.Contains(t, s, "@smtp.gmail.com>")
	assert.Contains(t, s, "text/plain; charset=UTF-8")
	assert.Contains(t, s, "<p>hi</p>")
}

func TestSMTPMailer_RequiresHost(t *testing.T) {
	m := &smtpMailer{config: &Config{}}
	assert.Error(t, m.SendMail(context.Background(), "a@example.com", []string{"b@example.com"}, nil))
}

func TestConfigFromApp(t *testing.T) {
	cfg := ConfigFromApp(nil)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTPHost)
	assert.NoError(t, cfg.Validate())
}
