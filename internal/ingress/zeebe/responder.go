// Package zeebeingress exposes the lead agent and every capability as Zeebe
// job workers.
package zeebeingress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "leadflow/internal/common/errors"
)

// Responder reports a job's outcome to the broker.
type Responder interface {
	Complete(ctx context.Context, job entities.Job, variables map[string]interface{}) error
	Fail(ctx context.Context, job entities.Job, err error)
}

// Retrier runs a broker command with retries. *camunda.Client implements it.
type Retrier interface {
	ExecuteWithRetry(ctx context.Context, command func(context.Context) error, operation string) error
}

type jobResponder struct {
	client  worker.JobClient
	errors  *apperrors.ErrorHandler
	retrier Retrier
}

func newJobResponder(client worker.JobClient, errs *apperrors.ErrorHandler, retrier Retrier) Responder {
	return &jobResponder{client: client, errors: errs, retrier: retrier}
}

func (r *jobResponder) Complete(ctx context.Context, job entities.Job, variables map[string]interface{}) error {
	payload, err := json.Marshal(variables)
	if err != nil {
		return err
	}
	cmd, err := r.client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromString(string(payload))
	if err != nil {
		return err
	}

	send := func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	}
	if r.retrier == nil {
		return send(ctx)
	}
	return r.retrier.ExecuteWithRetry(ctx, send, "complete-job")
}

func (r *jobResponder) Fail(ctx context.Context, job entities.Job, err error) {
	r.errors.HandleJobError(ctx, r.client, job, err)
}

// commandContext bounds broker calls made after the job's own work is done.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
