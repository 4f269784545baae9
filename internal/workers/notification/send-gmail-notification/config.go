package sendgmailnotification

import (
	"fmt"
	"time"

	"leadflow/internal/common/config"
)

type Config struct {
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	UseTLS           bool
	DefaultFrom      string
	DefaultRecipient string
	BrandName        string
	Timeout          time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		SMTPHost:    "smtp.gmail.com",
		SMTPPort:    587,
		UseTLS:      true,
		DefaultFrom: "noreply@example.com",
		Timeout:     30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("smtp_port must be between 1 and 65535")
	}
	if c.DefaultFrom == "" {
		return fmt.Errorf("default_from email is required")
	}
	return nil
}

func ConfigFromApp(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	s := appConfig.Integrations.SMTP
	if s.Host != "" {
		cfg.SMTPHost = s.Host
	}
	if s.Port > 0 {
		cfg.SMTPPort = s.Port
	}
	cfg.SMTPUsername = s.Username
	cfg.SMTPPassword = s.Password
	cfg.UseTLS = s.UseTLS
	if s.DefaultFrom != "" {
		cfg.DefaultFrom = s.DefaultFrom
	} else if s.Username != "" {
		cfg.DefaultFrom = s.Username
	}
	cfg.DefaultRecipient = appConfig.Notifications.DefaultRecipient
	cfg.BrandName = appConfig.Notifications.BrandName
	if w, ok := appConfig.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = config.GetDuration(w.Timeout)
	}
	return cfg
}
