package sendsesnotification

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/common/logger"
	"leadflow/internal/models"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         int
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls++
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       int
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls++
	return m.PublishFunc(ctx, params, optFns...)
}

type staticRecipients map[string]*models.NotificationRecipient

func (s staticRecipients) Recipient(ctx context.Context, teamID, channel string) (*models.NotificationRecipient, error) {
	if r, ok := s[teamID]; ok {
		return r, nil
	}
	return nil, errors.New("not found")
}

func createTestConfig() *Config {
	return &Config{
		EmailEnabled:     true,
		SMSEnabled:       true,
		FromEmail:        "leads@example.com",
		SenderID:         "LEADS",
		DefaultRecipient: "ops@example.com",
		Timeout:          time.Second,
	}
}

func okSES(seen **ses.SendEmailInput) *MockSESService {
	return &MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		if seen != nil {
			*seen = params
		}
		return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
	}}
}

func okSNS(seen **sns.PublishInput) *MockSNSService {
	return &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
		if seen != nil {
			*seen = params
		}
		return &sns.PublishOutput{MessageId: aws.String("s-1")}, nil
	}}
}

func sarah() models.LeadInfo {
	return models.LeadInfo{FirstName: "Sarah", Location: "New Cairo", PropertyType: "villa", Budget: 8_000_000, TeamID: "T1", MatchedProjects: []string{"Palm Hills"}}
}

func TestHandler_Send_EmailAndSMS(t *testing.T) {
	var email *ses.SendEmailInput
	var sms *sns.PublishInput
	sesMock, snsMock := okSES(&email), okSNS(&sms)

	h, err := NewHandler(createTestConfig(), staticRecipients{
		"T1": {Email: "sales@example.com", Phone: "+201234567890"},
	}, sesMock, snsMock, logger.NewTestLogger(t))
	require.NoError(t, err)

	out := h.Send(context.Background(), "T1", sarah(), true, "")

	assert.Equal(t, MsgSentWithSMS, out)
	require.NotNil(t, email)
	assert.Equal(t, []string{"sales@example.com"}, email.Destination.ToAddresses)
	assert.Equal(t, "leads@example.com", *email.Source)
	assert.Contains(t, *email.Message.Body.Html.Data, "Palm Hills")
	assert.Equal(t, "✅ New Lead Processed Successfully - Sarah ", *email.Message.Subject.Data)

	require.NotNil(t, sms)
	assert.Equal(t, "+201234567890", *sms.PhoneNumber)
	assert.Equal(t, "LEADS", *sms.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)
}

func TestHandler_Send_EmailOnlyWithoutPhone(t *testing.T) {
	sesMock, snsMock := okSES(nil), okSNS(nil)
	h, err := NewHandler(createTestConfig(), nil, sesMock, snsMock, logger.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, MsgSent, h.Send(context.Background(), "T1", sarah(), false, "CRM down"))
	assert.Equal(t, 1, sesMock.calls)
	assert.Equal(t, 0, snsMock.calls)
}

func TestHandler_Send_SESFailure(t *testing.T) {
	sesMock := &MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, errors.New("MessageRejected")
	}}
	snsMock := okSNS(nil)
	h, err := NewHandler(createTestConfig(), staticRecipients{"T1": {Phone: "+20111"}}, sesMock, snsMock, logger.NewTestLogger(t))
	require.NoError(t, err)

	out := h.Send(context.Background(), "T1", sarah(), true, "")
	assert.Contains(t, out, "❌ Failed to send email notification: ")
	assert.Contains(t, out, "MessageRejected")
	assert.Equal(t, 0, snsMock.calls)
}

func TestHandler_Send_SMSFailureKeepsEmail(t *testing.T) {
	snsMock := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
		return nil, errors.New("throttled")
	}}
	h, err := NewHandler(createTestConfig(), staticRecipients{"T1": {Email: "a@example.com", Phone: "+20111"}}, okSES(nil), snsMock, logger.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, MsgSent, h.Send(context.Background(), "T1", sarah(), true, ""))
}

func TestHandler_Send_Disabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.EmailEnabled = false
	cfg.SMSEnabled = false
	h, err := NewHandler(cfg, nil, nil, nil, logger.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "❌ Failed to send email notification: "+ErrChannelDisabled.Error(),
		h.Send(context.Background(), "T1", sarah(), true, ""))
}

func TestSendSMS_TruncatesOnRuneBoundary(t *testing.T) {
	var sms *sns.PublishInput
	h, err := NewHandler(createTestConfig(), nil, okSES(nil), okSNS(&sms), logger.NewTestLogger(t))
	require.NoError(t, err)

	long := ""
	for i := 0; i < 200; i++ {
		long += "é"
	}
	require.NoError(t, h.sendSMS(context.Background(), "+20111", long))
	assert.True(t, utf8.ValidString(*sms.Message))
	assert.Equal(t, maxSMSLength, utf8.RuneCountInString(*sms.Message))
}

func TestNewHandler_RequiresClients(t *testing.T) {
	_, err := NewHandler(createTestConfig(), nil, nil, okSNS(nil), logger.NewNoOpLogger())
	assert.Error(t, err)

	cfg := createTestConfig()
	cfg.FromEmail = ""
	_, err = NewHandler(cfg, nil, okSES(nil), okSNS(nil), logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestHandler_Capability(t *testing.T) {
	h, err := NewHandler(createTestConfig(), nil, okSES(nil), okSNS(nil), logger.NewNoOpLogger())
	require.NoError(t, err)

	out, err := h.Capability().Invoke(context.Background(), map[string]interface{}{
		"lead_info": sarah().ToMap(),
	})
	require.NoError(t, err)
	assert.Equal(t, MsgSent, out)
}
