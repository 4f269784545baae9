// cmd/lead-agent/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"leadflow/internal/agent"
	awsclients "leadflow/internal/common/aws"
	"leadflow/internal/common/camunda"
	"leadflow/internal/common/config"
	"leadflow/internal/common/database"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/observability"
	"leadflow/internal/eventlog"
	"leadflow/internal/flow"
	slackingress "leadflow/internal/ingress/slack"
	zeebeingress "leadflow/internal/ingress/zeebe"
	"leadflow/internal/installations"
	"leadflow/internal/llm"
	"leadflow/internal/processing"
	"leadflow/internal/workers"
	"leadflow/pkg/registry"
)

// retryWithBackoff retries operation with doubling delays.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lead agent...", zap.String("version", cfg.App.Version), zap.String("environment", cfg.App.Environment))

	if err := run(cfg, log); err != nil {
		zapLog.Fatal("lead agent stopped with error", zap.Error(err))
	}
	zapLog.Info("lead agent stopped")
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	// --- Datastores ---
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer pg.Close()
	log.Info("PostgreSQL connected successfully", nil)

	if cfg.Database.Postgres.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		log.Info("database schema applied", nil)
	}

	var rdb *redis.Client
	if cfg.Database.Redis.Enabled {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := retryWithBackoff(func() error { return rc.Ping(ctx) }, 10, 2*time.Second, log, "Redis connection"); err != nil {
			return err
		}
		defer rc.Close()
		rdb = rc.Client
		log.Info("Redis connected successfully", nil)
	}

	var es *elasticsearch.Client
	if cfg.Database.Elasticsearch.Enabled {
		ec, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := retryWithBackoff(func() error { return ec.Ping(ctx) }, 15, 2*time.Second, log, "Elasticsearch connection"); err != nil {
			return err
		}
		es = ec.Client
		log.Info("Elasticsearch connected successfully", nil)

		if cfg.Database.Postgres.Migrate {
			created, err := ec.EnsureProjectsIndex(ctx, cfg.Catalog.ElasticsearchIndex)
			if err != nil {
				return err
			}
			if created {
				log.Info("catalog index created", map[string]interface{}{"index": cfg.Catalog.ElasticsearchIndex})
			}
		}
	}

	// --- Capabilities ---
	inferer, err := llm.NewClient(cfg.LLM, log)
	if err != nil {
		return err
	}

	store := installations.NewStore(pg.DB, rdb, installations.Options{
		CacheTTL: config.GetDuration(cfg.Integrations.Zoho.CacheTTL),
		Logger:   log,
	})

	deps := workers.Dependencies{
		Config:        cfg,
		Logger:        log,
		LLM:           inferer,
		DB:            pg.DB,
		Elasticsearch: es,
		Installations: store,
	}
	if cfg.Integrations.AWS.SES.Enabled || cfg.Integrations.AWS.SNS.Enabled {
		clients, err := awsclients.LoadClients(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return err
		}
		deps.SES, deps.SNS = clients.SES, clients.SNS
	}

	set, err := workers.NewRegistry(deps)
	if err != nil {
		return err
	}

	resolver, err := loadFlows(cfg, log)
	if err != nil {
		return err
	}
	if issues := set.Registry.CheckFlows(resolver.Table()); len(issues) > 0 {
		for _, issue := range issues {
			log.Error("flow references an unavailable capability", map[string]interface{}{"issue": issue.String()})
		}
		return apperrors.NewConfigurationError("*", fmt.Sprintf("%d flow slots do not resolve", len(issues)))
	}

	// --- Event log ---
	hub := eventlog.NewHub(log)
	events := eventlog.NewService(eventlog.NewStore(pg.DB), hub, eventlog.OptionsFromConfig(cfg.EventLog), log)
	events.Start(ctx)

	processor := processing.NewProcessor(set.Registry, resolver, agent.NewLLMPlanner(inferer), events, processing.Options{
		MaxSteps:      cfg.Agent.MaxSteps,
		RunTimeout:    config.GetDuration(cfg.Agent.RunTimeout),
		Logger:        log,
		Observability: obs,
	})

	// --- Ingress ---
	dedup, err := slackingress.NewDeduper(cfg.Ingress.DedupSize, config.GetDuration(cfg.Ingress.DedupTTL), rdb, log)
	if err != nil {
		return err
	}
	pool := slackingress.NewPool(cfg.Ingress.Workers, cfg.Ingress.QueueSize)
	slackHandler := slackingress.NewHandler(slackingress.Config{
		SigningSecret: cfg.Integrations.Slack.SigningSecret,
		DefaultToken:  cfg.Integrations.Slack.DefaultToken,
		JobTimeout:    config.GetDuration(cfg.Agent.RunTimeout) + 30*time.Second,
	}, dedup, store, processor, slackingress.NewPoster(cfg.Integrations.Slack.APIURL), pool, log)

	var zeebe *zeebeingress.Manager
	if cfg.Camunda.Enabled {
		var client *camunda.Client
		err := retryWithBackoff(func() error {
			var err error
			client, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			return err
		}
		zeebe = zeebeingress.NewManager(client, cfg, set.Registry, processor, log)
		zeebe.Start()
		set.Checks["zeebe"] = client
	}

	// --- HTTP ---
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(cfg, log, datastoreChecks(pg.DB, rdb, set.Checks), events, slackHandler),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"addr": cfg.Server.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Warn("slack workers did not drain in time", map[string]interface{}{"error": err.Error()})
	}
	events.Stop()
	hub.Close()
	if zeebe != nil {
		zeebe.Close()
	}
	return nil
}

func loadFlows(cfg *config.Config, log logger.Logger) (*flow.Resolver, error) {
	var file *registry.FlowRegistry
	if cfg.Flow.File != "" {
		reg, err := registry.LoadRegistry(cfg.Flow.File)
		if err != nil {
			return nil, err
		}
		file = reg
	}
	return flow.NewResolver(flow.BuildTable(cfg.Flows, file), log)
}
