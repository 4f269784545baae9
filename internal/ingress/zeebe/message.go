package zeebeingress

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/processing"
)

const (
	ProcessMessageTaskType = "lead-agent.process-message"
	Source                 = "zeebe"
)

// Runner runs one message through the agent. *processing.Processor
// implements it.
type Runner interface {
	Run(ctx context.Context, msg processing.Message) processing.Outcome
}

// MessageInput is the job's variables.
type MessageInput struct {
	Message   string `json:"message"`
	TeamID    string `json:"teamId"`
	Channel   string `json:"channel"`
	ThreadRef string `json:"threadRef"`
}

// MessageHandler serves lead-agent.process-message jobs.
type MessageHandler struct {
	runner  Runner
	errors  *apperrors.ErrorHandler
	retrier Retrier
	timeout time.Duration
	logger  logger.Logger
}

func NewMessageHandler(runner Runner, retrier Retrier, timeout time.Duration, log logger.Logger) *MessageHandler {
	log = log.WithFields(map[string]interface{}{"taskType": ProcessMessageTaskType})
	if timeout <= 0 {
		timeout = processing.DefaultRunTimeout
	}
	return &MessageHandler{
		runner:  runner,
		errors:  apperrors.NewErrorHandler(log),
		retrier: retrier,
		timeout: timeout,
		logger:  log,
	}
}

func (h *MessageHandler) Handle(client worker.JobClient, job entities.Job) error {
	return h.handle(newJobResponder(client, h.errors, h.retrier), job)
}

func (h *MessageHandler) handle(r Responder, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(ProcessMessageTaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(ProcessMessageTaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(ProcessMessageTaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input MessageInput
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return h.fail(r, job, apperrors.NewInvalidInputError("parse variables: "+err.Error()))
	}
	if input.Message == "" {
		return h.fail(r, job, apperrors.NewInvalidInputError("message is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	out := h.runner.Run(ctx, processing.Message{
		Text:      input.Message,
		TeamID:    input.TeamID,
		Channel:   input.Channel,
		ThreadRef: input.ThreadRef,
		Source:    Source,
		RunID:     "job-" + strconv.FormatInt(job.Key, 10),
	})
	cancel()
	metrics.IngressEvents.WithLabelValues(Source, "accepted").Inc()

	if out.Err != nil {
		return h.fail(r, job, out.Err)
	}

	variables := map[string]interface{}{
		"response": out.Reply,
		"success":  true,
	}
	if out.Result != nil {
		variables["leadInfo"] = out.Result.LeadInfo.ToMap()
		if out.Result.CRM != nil {
			variables["crm"] = out.Result.CRM.ToMap()
		}
	}

	cctx, ccancel := commandContext()
	defer ccancel()
	if err := r.Complete(cctx, job, variables); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(ProcessMessageTaskType).Inc()
	return nil
}

func (h *MessageHandler) fail(r Responder, job entities.Job, err error) error {
	metrics.WorkerJobsFailed.WithLabelValues(ProcessMessageTaskType, string(apperrors.Normalize(err).Code)).Inc()
	ctx, cancel := commandContext()
	defer cancel()
	r.Fail(ctx, job, err)
	return err
}
