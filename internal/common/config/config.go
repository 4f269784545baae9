package config

import "fmt"

// Config is the root application configuration.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	LLM           LLMConfig               `mapstructure:"llm"`
	Agent         AgentConfig             `mapstructure:"agent"`
	Catalog       CatalogConfig           `mapstructure:"catalog"`
	Flows         map[string]FlowEntry    `mapstructure:"flows"`
	Flow          FlowFileConfig          `mapstructure:"flow"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	EventLog      EventLogConfig          `mapstructure:"event_log"`
	Ingress       IngressConfig           `mapstructure:"ingress"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	Migrate        bool   `mapstructure:"migrate"`
}

// GetDSN returns the lib/pq connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LLMConfig points at any OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
}

type AgentConfig struct {
	MaxSteps   int `mapstructure:"max_steps"`
	RunTimeout int `mapstructure:"run_timeout"` // milliseconds
}

type CatalogConfig struct {
	Tolerance          int64  `mapstructure:"tolerance"`
	ElasticsearchIndex string `mapstructure:"elasticsearch_index"`
	MaxResults         int    `mapstructure:"max_results"`
}

// FlowEntry is one row of the per-team flow table.
type FlowEntry struct {
	DataSource          string `mapstructure:"data_source"`
	CRM                 string `mapstructure:"crm"`
	NotificationChannel string `mapstructure:"notification_channel"`
}

type FlowFileConfig struct {
	File string `mapstructure:"file"`
}

type IntegrationConfig struct {
	Slack SlackConfig `mapstructure:"slack"`

	Zoho struct {
		DefaultAPIDomain string `mapstructure:"default_api_domain"`
		Timeout          int    `mapstructure:"timeout"`   // milliseconds
		CacheTTL         int    `mapstructure:"cache_ttl"` // milliseconds
	} `mapstructure:"zoho"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			SenderID string `mapstructure:"sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	SMTP struct {
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		UseTLS      bool   `mapstructure:"use_tls"`
		DefaultFrom string `mapstructure:"default_from"`
	} `mapstructure:"smtp"`
}

type SlackConfig struct {
	SigningSecret string `mapstructure:"signing_secret"`
	DefaultToken  string `mapstructure:"default_token"`
	APIURL        string `mapstructure:"api_url"`
}

type NotificationConfig struct {
	DefaultRecipient string `mapstructure:"default_recipient"`
	DefaultChannel   string `mapstructure:"default_channel"`
	BrandName        string `mapstructure:"brand_name"`
}

type EventLogConfig struct {
	BufferSize      int  `mapstructure:"buffer_size"`
	Timeout         int  `mapstructure:"timeout"`          // milliseconds
	MonitorInterval int  `mapstructure:"monitor_interval"` // milliseconds
	InitialEvents   int  `mapstructure:"initial_events"`
	TestEndpoints   bool `mapstructure:"test_endpoints"`
}

type IngressConfig struct {
	DedupSize int `mapstructure:"dedup_size"`
	DedupTTL  int `mapstructure:"dedup_ttl"` // milliseconds
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// WorkerConfig holds per task type job worker settings.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
