package insertintozoho

import (
	"errors"
	"time"

	"leadflow/internal/common/config"
	"leadflow/internal/common/zoho"
)

type Config struct {
	DefaultAPIDomain string
	Timeout          time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		DefaultAPIDomain: zoho.DefaultAPIDomain,
		Timeout:          30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func ConfigFromApp(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	z := appConfig.Integrations.Zoho
	if z.DefaultAPIDomain != "" {
		cfg.DefaultAPIDomain = z.DefaultAPIDomain
	}
	if z.Timeout > 0 {
		cfg.Timeout = config.GetDuration(z.Timeout)
	}
	if w, ok := appConfig.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = config.GetDuration(w.Timeout)
	}
	return cfg
}
