package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml when
// present and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return decode(v)
}

// LoadFromFile reads a single yaml file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} references left in yaml string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

func overrideFromEnv(cfg *Config) {
	setIfEmpty(&cfg.LLM.APIKey, "GROQ_API_KEY", "LLM_API_KEY", "OPENAI_API_KEY")
	setIfEmpty(&cfg.Integrations.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	setIfEmpty(&cfg.Integrations.Slack.DefaultToken, "SLACK_BOT_TOKEN")
	setIfEmpty(&cfg.Integrations.SMTP.Username, "SMTP_USERNAME", "GMAIL_USERNAME")
	setIfEmpty(&cfg.Integrations.SMTP.Password, "SMTP_PASSWORD", "GMAIL_APP_PASSWORD")
	setIfEmpty(&cfg.Notifications.DefaultRecipient, "NOTIFICATION_EMAIL")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
}

func setIfEmpty(dst *string, envKeys ...string) {
	if *dst != "" {
		return
	}
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			*dst = val
			return
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "lead-agent"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3-70b-8192"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60000
	}

	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = 8
	}
	if cfg.Agent.RunTimeout == 0 {
		cfg.Agent.RunTimeout = 120000
	}

	if cfg.Catalog.Tolerance == 0 {
		cfg.Catalog.Tolerance = 200000
	}
	if cfg.Catalog.ElasticsearchIndex == "" {
		cfg.Catalog.ElasticsearchIndex = "projects"
	}

	if cfg.Integrations.Slack.APIURL == "" {
		cfg.Integrations.Slack.APIURL = "https://slack.com/api/"
	}
	if cfg.Integrations.Zoho.DefaultAPIDomain == "" {
		cfg.Integrations.Zoho.DefaultAPIDomain = "https://www.zohoapis.com"
	}
	if cfg.Integrations.Zoho.Timeout == 0 {
		cfg.Integrations.Zoho.Timeout = 30000
	}
	if cfg.Integrations.Zoho.CacheTTL == 0 {
		cfg.Integrations.Zoho.CacheTTL = 600000
	}
	if cfg.Integrations.SMTP.Host == "" {
		cfg.Integrations.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.Integrations.SMTP.Port == 0 {
		cfg.Integrations.SMTP.Port = 587
	}
	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "us-east-1"
	}

	if cfg.Notifications.DefaultChannel == "" {
		cfg.Notifications.DefaultChannel = "send_gmail_notification"
	}
	if cfg.Notifications.BrandName == "" {
		cfg.Notifications.BrandName = "Lead Agent"
	}

	if cfg.EventLog.BufferSize == 0 {
		cfg.EventLog.BufferSize = 1000
	}
	if cfg.EventLog.Timeout == 0 {
		cfg.EventLog.Timeout = 5 * 60 * 1000
	}
	if cfg.EventLog.MonitorInterval == 0 {
		cfg.EventLog.MonitorInterval = 60 * 1000
	}
	if cfg.EventLog.InitialEvents == 0 {
		cfg.EventLog.InitialEvents = 20
	}

	if cfg.Ingress.DedupSize == 0 {
		cfg.Ingress.DedupSize = 10000
	}
	if cfg.Ingress.DedupTTL == 0 {
		cfg.Ingress.DedupTTL = 10 * 60 * 1000
	}
	if cfg.Ingress.Workers == 0 {
		cfg.Ingress.Workers = 8
	}
	if cfg.Ingress.QueueSize == 0 {
		cfg.Ingress.QueueSize = 256
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = 5
		}
		if w.Timeout == 0 {
			w.Timeout = 30000
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = 3
		}
		cfg.Workers[key] = w
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when redis is enabled")
	}
	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when elasticsearch is enabled")
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}
	if cfg.Agent.MaxSteps < 4 {
		return fmt.Errorf("agent.max_steps must be at least 4, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Catalog.Tolerance < 0 {
		return fmt.Errorf("catalog.tolerance must not be negative")
	}
	if cfg.Catalog.MaxResults < 0 {
		return fmt.Errorf("catalog.max_results must not be negative")
	}
	if _, ok := cfg.Flows["team_default"]; len(cfg.Flows) > 0 && !ok {
		return fmt.Errorf("flows must contain a team_default entry")
	}
	return nil
}

// GetDuration converts a millisecond setting to a time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig returns the settings for a job worker, enabled by default.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if w, exists := cfg.Workers[workerName]; exists {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}
