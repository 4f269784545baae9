package fetchfromelasticsearch

import (
	"time"

	"leadflow/internal/common/config"
	"leadflow/internal/workers/catalog"
)

const DefaultIndex = "projects"

type Config struct {
	Index      string
	Timeout    time.Duration
	Tolerance  int64
	MaxResults int
}

func DefaultConfig() *Config {
	return &Config{
		Index:      DefaultIndex,
		Timeout:    10 * time.Second,
		Tolerance:  catalog.DefaultTolerance,
		MaxResults: catalog.DefaultMaxResults,
	}
}

func ConfigFromApp(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	if appConfig.Catalog.ElasticsearchIndex != "" {
		cfg.Index = appConfig.Catalog.ElasticsearchIndex
	}
	if appConfig.Catalog.Tolerance > 0 {
		cfg.Tolerance = appConfig.Catalog.Tolerance
	}
	if appConfig.Catalog.MaxResults >= 0 {
		cfg.MaxResults = appConfig.Catalog.MaxResults
	}
	if w, ok := appConfig.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = config.GetDuration(w.Timeout)
	}
	return cfg
}
