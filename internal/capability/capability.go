// Package capability holds the named units a run can invoke.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow/internal/common/metrics"
	"leadflow/internal/common/validation"
)

type Kind string

const (
	KindExtraction   Kind = "extraction"
	KindDataSource   Kind = "data_source"
	KindCRM          Kind = "crm"
	KindNotification Kind = "notification"
)

// Canonical capability names.
const (
	ExtractLeadInfo         = "extract_lead_info"
	FetchFromPostgres       = "fetch_from_postgres"
	FetchFromElasticsearch  = "fetch_from_elasticsearch"
	InsertIntoZoho          = "insert_into_zoho"
	InsertIntoOdoo          = "insert_into_odoo"
	SendGmailNotification   = "send_gmail_notification"
	SendOutlookNotification = "send_outlook_notification"
	SendSESNotification     = "send_ses_notification"
)

var ErrInvalidArguments = errors.New("INVALID_ARGUMENTS")

// InvokeFunc runs a capability body. Arguments have already passed the
// input schema.
type InvokeFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Capability is a named, invokable unit. Bodies convert their own
// integration failures into degraded results; a returned error means the
// call itself was wrong.
type Capability struct {
	Name        string
	Kind        Kind
	Description string
	Aliases     []string
	InputSchema validation.JSONSchema
	Body        InvokeFunc
}

// Invoke validates args against the input schema, then runs the body.
func (c Capability) Invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	start := time.Now()
	out, err := c.invoke(ctx, args)
	metrics.CapabilityInvocations.WithLabelValues(c.Name, metrics.StatusOf(err)).Inc()
	metrics.CapabilityDuration.WithLabelValues(c.Name).Observe(time.Since(start).Seconds())
	return out, err
}

func (c Capability) invoke(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if c.Body == nil {
		return nil, fmt.Errorf("capability %s has no body", c.Name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if c.InputSchema.Type != "" {
		if result := validation.ValidateInput(args, c.InputSchema); !result.Valid {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, c.Name, result.Err())
		}
	}
	return c.Body(ctx, args)
}
