// internal/models/notification.go
package models

// NotificationRecipient is a row of notification_recipients.
type NotificationRecipient struct {
	TeamID  string `json:"team_id"`
	Channel string `json:"channel"` // "gmail", "ses", "outlook"
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
}

// Notification is a rendered lead notification ready for a transport.
type Notification struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)
