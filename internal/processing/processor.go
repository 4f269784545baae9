// Package processing runs one inbound message through the agent and records
// the run in the event log.
package processing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadflow/internal/agent"
	"leadflow/internal/capability"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/common/observability"
	"leadflow/internal/flow"
	"leadflow/internal/models"
)

// Apology is sent to the user whenever a run fails.
const Apology = "❌ Sorry, I encountered an error while processing your message."

const DefaultRunTimeout = 2 * time.Minute

// Message is one inbound lead message, independent of where it came from.
type Message struct {
	Text      string
	TeamID    string
	Channel   string
	ThreadRef string
	Source    string
	// RunID correlates logs and the event row; one is generated when empty.
	RunID string
}

// EventSink is the part of the event log a run writes to.
type EventSink interface {
	Log(ctx context.Context, eventType string, data map[string]interface{}, status models.EventStatus, teamID string) (int64, error)
	Update(ctx context.Context, id int64, status models.EventStatus, errorMessage string, data map[string]interface{}) error
}

// FlowResolver picks the capabilities a team's run uses.
type FlowResolver interface {
	Resolve(teamID string) flow.Config
}

type Options struct {
	MaxSteps      int
	RunTimeout    time.Duration
	Logger        logger.Logger
	Observability *observability.Observability
}

// Outcome is the full result of Process for callers that need more than
// the reply text.
type Outcome struct {
	Reply   string
	EventID int64
	Result  *agent.Result
	Err     error
}

func (o Outcome) Success() bool {
	return o.Err == nil
}

// Processor is safe for concurrent use; each call builds its own
// orchestrator.
type Processor struct {
	registry *capability.Registry
	flows    FlowResolver
	planner  agent.Planner
	events   EventSink
	opts     Options
	logger   logger.Logger
}

func NewProcessor(reg *capability.Registry, flows FlowResolver, planner agent.Planner, events EventSink, opts Options) *Processor {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Processor{
		registry: reg,
		flows:    flows,
		planner:  planner,
		events:   events,
		opts:     opts,
		logger:   log.WithFields(map[string]interface{}{"component": "processor"}),
	}
}

// Process runs msg and returns the text to send back. Failures are logged
// and answered with Apology; the returned error is only for callers that
// report it upstream.
func (p *Processor) Process(ctx context.Context, msg Message) (string, error) {
	out := p.Run(ctx, msg)
	return out.Reply, out.Err
}

// Run is Process with the run details attached.
func (p *Processor) Run(ctx context.Context, msg Message) Outcome {
	if msg.TeamID == "" {
		msg.TeamID = flow.DefaultTeam
	}
	if msg.RunID == "" {
		msg.RunID = uuid.NewString()
	}
	log := p.logger.WithFields(map[string]interface{}{
		"teamId": msg.TeamID,
		"source": msg.Source,
		"runId":  msg.RunID,
	})

	eventID := p.logStart(ctx, msg, log)

	start := time.Now()
	cfg := p.flows.Resolve(msg.TeamID)
	result, err := p.execute(ctx, msg, cfg, log)
	duration := time.Since(start)

	status := metrics.StatusOf(err)
	metrics.AgentRuns.WithLabelValues(msg.TeamID, status).Inc()
	metrics.AgentRunDuration.WithLabelValues(msg.TeamID).Observe(duration.Seconds())
	p.opts.Observability.RecordRun(ctx, msg.TeamID, status, duration)

	data := eventData(msg, cfg, result)
	out := Outcome{EventID: eventID, Result: result, Err: err}
	if err != nil {
		log.Error("lead processing failed", map[string]interface{}{
			"error":    err.Error(),
			"duration": duration.String(),
		})
		p.logFinish(ctx, eventID, models.EventStatusError, err.Error(), data, log)
		out.Reply = Apology
		return out
	}

	log.Info("lead processed", map[string]interface{}{
		"steps":    len(result.Steps),
		"duration": duration.String(),
	})
	p.logFinish(ctx, eventID, models.EventStatusSuccess, "", data, log)
	out.Reply = result.Response
	return out
}

func (p *Processor) execute(ctx context.Context, msg Message, cfg flow.Config, log logger.Logger) (*agent.Result, error) {
	orch, err := agent.Build(msg.TeamID, cfg, p.registry, p.planner, agent.Options{
		MaxSteps: p.opts.MaxSteps,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.RunTimeout)
	defer cancel()
	return orch.Run(ctx, msg.Text)
}

func (p *Processor) logStart(ctx context.Context, msg Message, log logger.Logger) int64 {
	if p.events == nil {
		return 0
	}
	id, err := p.events.Log(ctx, models.EventTypeLeadProcessing, map[string]interface{}{
		"message": msg.Text,
		"channel": msg.Channel,
		"source":  msg.Source,
		"run_id":  msg.RunID,
	}, models.EventStatusProcessing, msg.TeamID)
	if err != nil {
		log.Warn("event log unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		return 0
	}
	return id
}

func (p *Processor) logFinish(ctx context.Context, id int64, status models.EventStatus, errorMessage string, data map[string]interface{}, log logger.Logger) {
	if p.events == nil || id == 0 {
		return
	}
	// The run context may already be cancelled; the final status still
	// has to land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.events.Update(ctx, id, status, errorMessage, data); err != nil {
		log.Warn("failed to finalize event", map[string]interface{}{"eventId": id, "error": err.Error()})
	}
}

func eventData(msg Message, cfg flow.Config, result *agent.Result) map[string]interface{} {
	data := map[string]interface{}{
		"message": msg.Text,
		"channel": msg.Channel,
		"source":  msg.Source,
		"run_id":  msg.RunID,
		"flow": map[string]interface{}{
			"data_source":          cfg.DataSource,
			"crm":                  cfg.CRM,
			"notification_channel": cfg.NotificationChannel,
		},
	}
	if result == nil {
		return data
	}

	data["lead_info"] = result.LeadInfo.ToMap()
	data["matched_projects"] = append([]string{}, result.LeadInfo.MatchedProjects...)
	if result.CRM != nil {
		data["crm"] = result.CRM.ToMap()
	}
	if result.Notification != "" {
		data["notification"] = result.Notification
	}
	steps := make([]map[string]interface{}, 0, len(result.Steps))
	for _, s := range result.Steps {
		steps = append(steps, s.ToMap())
	}
	data["steps"] = steps
	data["response"] = result.Response
	return data
}
