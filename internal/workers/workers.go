// Package workers assembles the capability registry from the individual
// capability packages.
package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"leadflow/internal/capability"
	"leadflow/internal/common/config"
	"leadflow/internal/common/logger"
	"leadflow/internal/installations"
	"leadflow/internal/llm"
	fetchfromelasticsearch "leadflow/internal/workers/catalog/fetch-from-elasticsearch"
	fetchfrompostgres "leadflow/internal/workers/catalog/fetch-from-postgres"
	insertintoodoo "leadflow/internal/workers/crm/insert-into-odoo"
	insertintozoho "leadflow/internal/workers/crm/insert-into-zoho"
	extractleadinfo "leadflow/internal/workers/extraction/extract-lead-info"
	"leadflow/internal/workers/notification"
	sendgmailnotification "leadflow/internal/workers/notification/send-gmail-notification"
	sendoutlooknotification "leadflow/internal/workers/notification/send-outlook-notification"
	sendsesnotification "leadflow/internal/workers/notification/send-ses-notification"
)

// Dependencies are the shared clients capabilities are built from. Only
// Config, Logger and LLM are required; capabilities whose backing client is
// missing are skipped with a warning.
type Dependencies struct {
	Config        *config.Config
	Logger        logger.Logger
	LLM           llm.Inferer
	DB            *sql.DB
	Elasticsearch *elasticsearch.Client
	Installations *installations.Store
	SES           sendsesnotification.SESService
	SNS           sendsesnotification.SNSService
}

// HealthChecker is implemented by capabilities backed by a datastore.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Set is the assembled registry plus the health checks of its backends.
type Set struct {
	Registry *capability.Registry
	Checks   map[string]HealthChecker
}

func (d Dependencies) validate() error {
	if d.Config == nil {
		return errors.New("config is required")
	}
	if d.Logger == nil {
		return errors.New("logger is required")
	}
	if d.LLM == nil {
		return errors.New("llm is required")
	}
	return nil
}

// NewRegistry builds every capability the dependencies allow and registers
// it.
func NewRegistry(deps Dependencies) (*Set, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	cfg := deps.Config
	reg := capability.NewRegistry(log)
	set := &Set{Registry: reg, Checks: make(map[string]HealthChecker)}

	register := func(c capability.Capability) error {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", c.Name, err)
		}
		return nil
	}
	skip := func(name, reason string) {
		log.Warn("capability not registered", map[string]interface{}{
			"capability": name,
			"reason":     reason,
		})
	}

	extraction, err := extractleadinfo.NewHandler(extractleadinfo.ConfigFromApp(cfg), deps.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("extract_lead_info: %w", err)
	}
	if err := register(extraction.Capability()); err != nil {
		return nil, err
	}

	if deps.DB != nil {
		pg := fetchfrompostgres.NewHandler(fetchfrompostgres.ConfigFromApp(cfg), deps.DB, log)
		if err := register(pg.Capability()); err != nil {
			return nil, err
		}
		set.Checks[fetchfrompostgres.TaskType] = pg
	} else {
		skip(fetchfrompostgres.TaskType, "no database")
	}

	if deps.Elasticsearch != nil {
		es := fetchfromelasticsearch.NewHandler(fetchfromelasticsearch.ConfigFromApp(cfg), deps.Elasticsearch, log)
		if err := register(es.Capability()); err != nil {
			return nil, err
		}
		set.Checks[fetchfromelasticsearch.TaskType] = es
	} else {
		skip(fetchfromelasticsearch.TaskType, "no elasticsearch client")
	}

	if deps.Installations != nil {
		zoho, err := insertintozoho.NewHandler(insertintozoho.ConfigFromApp(cfg), deps.Installations, log)
		if err != nil {
			return nil, fmt.Errorf("insert_into_zoho: %w", err)
		}
		if err := register(zoho.Capability()); err != nil {
			return nil, err
		}
	} else {
		skip(insertintozoho.TaskType, "no installation store")
	}

	if err := register(insertintoodoo.NewHandler(log).Capability()); err != nil {
		return nil, err
	}

	gmail, err := sendgmailnotification.NewHandler(sendgmailnotification.ConfigFromApp(cfg), recipientSource(deps.Installations), log)
	if err != nil {
		return nil, fmt.Errorf("send_gmail_notification: %w", err)
	}
	if err := register(gmail.Capability()); err != nil {
		return nil, err
	}

	if err := register(sendoutlooknotification.NewHandler(log).Capability()); err != nil {
		return nil, err
	}

	sesCfg := sendsesnotification.ConfigFromApp(cfg)
	if sesCfg.EmailEnabled || sesCfg.SMSEnabled {
		ses, err := sendsesnotification.NewHandler(sesCfg, recipientSource(deps.Installations), deps.SES, deps.SNS, log)
		if err != nil {
			skip(sendsesnotification.TaskType, err.Error())
		} else if err := register(ses.Capability()); err != nil {
			return nil, err
		}
	} else {
		skip(sendsesnotification.TaskType, "ses and sns disabled")
	}

	if channel := cfg.Notifications.DefaultChannel; channel != "" {
		if err := reg.SetDefaultNotification(channel); err != nil {
			return nil, err
		}
	}

	log.Info("capability registry built", map[string]interface{}{
		"capabilities": reg.Names(),
	})
	return set, nil
}

// recipientSource avoids handing a typed nil store to the senders.
func recipientSource(store *installations.Store) notification.RecipientSource {
	if store == nil {
		return nil
	}
	return store
}
