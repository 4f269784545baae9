package extractleadinfo

import (
	"fmt"
	"time"

	"leadflow/internal/common/config"
)

type Config struct {
	Enabled bool
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Timeout: 30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// ConfigFromApp overlays the worker entry and the LLM timeout.
func ConfigFromApp(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	if appConfig.LLM.Timeout > 0 {
		cfg.Timeout = config.GetDuration(appConfig.LLM.Timeout)
	}
	if w, ok := appConfig.Workers[TaskType]; ok {
		cfg.Enabled = w.Enabled
		if w.Timeout > 0 {
			cfg.Timeout = config.GetDuration(w.Timeout)
		}
	}
	return cfg
}
