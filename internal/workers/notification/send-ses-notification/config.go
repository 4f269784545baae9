package sendsesnotification

import (
	"fmt"
	"time"

	"leadflow/internal/common/config"
)

type Config struct {
	EmailEnabled     bool
	SMSEnabled       bool
	FromEmail        string
	SenderID         string
	DefaultRecipient string
	BrandName        string
	Timeout          time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		EmailEnabled: true,
		Timeout:      30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.EmailEnabled && c.FromEmail == "" {
		return fmt.Errorf("from_email is required when SES email is enabled")
	}
	return nil
}

func ConfigFromApp(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	aws := appConfig.Integrations.AWS
	cfg.EmailEnabled = aws.SES.Enabled
	cfg.FromEmail = aws.SES.FromEmail
	cfg.SMSEnabled = aws.SNS.Enabled
	cfg.SenderID = aws.SNS.SenderID
	cfg.DefaultRecipient = appConfig.Notifications.DefaultRecipient
	cfg.BrandName = appConfig.Notifications.BrandName
	if w, ok := appConfig.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = config.GetDuration(w.Timeout)
	}
	return cfg
}
