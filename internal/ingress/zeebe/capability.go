package zeebeingress

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/models"
)

// CapabilityHandler exposes a single capability as a job worker whose task
// type is the capability's canonical name.
type CapabilityHandler struct {
	capability capability.Capability
	errors     *apperrors.ErrorHandler
	retrier    Retrier
	timeout    time.Duration
	logger     logger.Logger
}

func NewCapabilityHandler(c capability.Capability, retrier Retrier, timeout time.Duration, log logger.Logger) *CapabilityHandler {
	log = log.WithFields(map[string]interface{}{"taskType": c.Name})
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CapabilityHandler{
		capability: c,
		errors:     apperrors.NewErrorHandler(log),
		retrier:    retrier,
		timeout:    timeout,
		logger:     log,
	}
}

func (h *CapabilityHandler) TaskType() string {
	return h.capability.Name
}

func (h *CapabilityHandler) Handle(client worker.JobClient, job entities.Job) error {
	return h.handle(newJobResponder(client, h.errors, h.retrier), job)
}

func (h *CapabilityHandler) handle(r Responder, job entities.Job) error {
	taskType := h.capability.Name
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	}()

	var variables map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &variables); err != nil {
		return h.fail(r, job, apperrors.NewInvalidInputError("parse variables: "+err.Error()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	out, err := h.capability.Invoke(ctx, h.arguments(variables))
	cancel()
	if err != nil {
		if errors.Is(err, capability.ErrInvalidArguments) {
			err = apperrors.NewInvalidInputError(err.Error()).WithCause(err)
		}
		return h.fail(r, job, err)
	}

	cctx, ccancel := commandContext()
	defer ccancel()
	if err := r.Complete(cctx, job, OutputVariables(out)); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	return nil
}

// arguments keeps only the declared inputs when the schema is closed, so
// unrelated process variables do not fail validation.
func (h *CapabilityHandler) arguments(variables map[string]interface{}) map[string]interface{} {
	schema := h.capability.InputSchema
	if schema.AdditionalProperties || len(schema.Properties) == 0 {
		return variables
	}
	args := make(map[string]interface{}, len(schema.Properties))
	for name := range schema.Properties {
		if v, ok := variables[name]; ok {
			args[name] = v
		}
	}
	return args
}

func (h *CapabilityHandler) fail(r Responder, job entities.Job, err error) error {
	metrics.WorkerJobsFailed.WithLabelValues(h.capability.Name, string(apperrors.Normalize(err).Code)).Inc()
	ctx, cancel := commandContext()
	defer cancel()
	r.Fail(ctx, job, err)
	return err
}

// OutputVariables maps a capability result onto process variables.
func OutputVariables(out interface{}) map[string]interface{} {
	switch v := out.(type) {
	case models.LeadInfo:
		return map[string]interface{}{"lead_info": v.ToMap()}
	case *models.LeadInfo:
		return OutputVariables(*v)
	case models.CRMResult:
		return map[string]interface{}{"crm": v.ToMap(), "success": v.Success}
	case *models.CRMResult:
		return OutputVariables(*v)
	case string:
		return map[string]interface{}{"result": v}
	case nil:
		return map[string]interface{}{}
	default:
		return map[string]interface{}{"result": v}
	}
}
