// Package agent drives a planner through one team's fixed capability
// sequence and threads the lead between steps.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/flow"
	"leadflow/internal/models"
)

const DefaultMaxSteps = 8

const notificationFailedStem = "❌ Failed to send notification: "

var (
	ErrPlanningFailed      = errors.New("PLANNING_FAILED")
	ErrUnparseableAction   = errors.New("UNPARSEABLE_ACTION")
	ErrUnknownTool         = errors.New("UNKNOWN_TOOL")
	ErrRepeatedTool        = errors.New("REPEATED_TOOL")
	ErrStepBudgetExhausted = errors.New("STEP_BUDGET_EXHAUSTED")
	ErrNoCapabilities      = errors.New("NO_CAPABILITIES")
)

type Options struct {
	MaxSteps int
	Logger   logger.Logger
}

// Step is one executed tool call.
type Step struct {
	Capability string                 `json:"capability"`
	Kind       capability.Kind        `json:"kind"`
	Arguments  map[string]interface{} `json:"arguments"`
	Result     interface{}            `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Duration   time.Duration          `json:"-"`
}

// ToMap is the event log projection of a step.
func (s Step) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"capability":  s.Capability,
		"kind":        string(s.Kind),
		"arguments":   s.Arguments,
		"duration_ms": s.Duration.Milliseconds(),
	}
	if s.Error != "" {
		m["error"] = s.Error
	} else {
		m["result"] = s.Result
	}
	return m
}

// Result is what a run produced, complete or not.
type Result struct {
	TeamID       string
	Flow         flow.Config
	Response     string
	Steps        []Step
	LeadInfo     models.LeadInfo
	CRM          *models.CRMResult
	Notification string
	Iterations   int
}

// Orchestrator runs one team's capability sequence. Build a new one per
// message; it is not safe for concurrent Run calls.
type Orchestrator struct {
	teamID   string
	flow     flow.Config
	registry *capability.Registry
	caps     []capability.Capability
	planner  Planner
	maxSteps int
	system   string
	logger   logger.Logger
}

// Build assembles the run's capabilities: extraction, then the team's data
// source, CRM and notification channel. Unresolved entries, extraction
// included, are skipped with a warning; notification channels fall back.
// Only an empty list is an error.
func Build(teamID string, cfg flow.Config, reg *capability.Registry, planner Planner, opts Options) (*Orchestrator, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{
		"component": "orchestrator",
		"team_id":   teamID,
	})

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	var caps []capability.Capability
	if c, ok := reg.LookupKind(capability.ExtractLeadInfo, capability.KindExtraction); ok {
		caps = append(caps, c)
	} else {
		log.Warn("extraction capability not registered", map[string]interface{}{
			"capability": capability.ExtractLeadInfo,
		})
	}

	optional := []struct {
		slot string
		key  string
		kind capability.Kind
	}{
		{"data_source", cfg.DataSource, capability.KindDataSource},
		{"crm", cfg.CRM, capability.KindCRM},
	}
	for _, o := range optional {
		c, ok := reg.LookupKind(o.key, o.kind)
		if !ok {
			log.Warn("flow references unknown capability, skipping step", map[string]interface{}{
				"slot": o.slot,
				"key":  o.key,
			})
			continue
		}
		caps = append(caps, c)
	}

	if c, ok := reg.ResolveNotification(cfg.NotificationChannel); ok {
		caps = append(caps, c)
	}

	if len(caps) == 0 {
		return nil, apperrors.NewConfigurationError(teamID, "no capability resolved for the team").
			WithCause(ErrNoCapabilities)
	}

	return &Orchestrator{
		teamID:   teamID,
		flow:     cfg,
		registry: reg,
		caps:     caps,
		planner:  planner,
		maxSteps: maxSteps,
		system:   SystemPrompt(teamID, caps),
		logger:   log,
	}, nil
}

func (o *Orchestrator) Capabilities() []capability.Capability {
	out := make([]capability.Capability, len(o.caps))
	copy(out, o.caps)
	return out
}

func (o *Orchestrator) SystemPrompt() string {
	return o.system
}

// Run drives the planner until it emits a final action. The returned
// Result is never nil and carries whatever steps ran before an error.
func (o *Orchestrator) Run(ctx context.Context, message string) (*Result, error) {
	result := &Result{
		TeamID:   o.teamID,
		Flow:     o.flow,
		LeadInfo: models.Skeleton(o.teamID),
	}
	done := make(map[string]bool, len(o.caps))

	for result.Iterations < o.maxSteps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Iterations++

		raw, err := o.planner.Plan(ctx, o.system, TranscriptPrompt(message, result.Steps, o.next(done)))
		if err != nil {
			o.logger.Error("planner request failed", map[string]interface{}{
				"iteration": result.Iterations,
				"error":     err.Error(),
			})
			return result, err
		}

		action, err := ParseAction(raw)
		if err != nil {
			return result, planningFailure(err, "could not parse planner output")
		}

		if action.Kind == ActionFinal {
			result.Response = action.Response
			o.logger.Info("run finished", map[string]interface{}{
				"iterations": result.Iterations,
				"steps":      len(result.Steps),
			})
			return result, nil
		}

		c, ok := o.allowed(action.Tool)
		if !ok {
			return result, planningFailure(fmt.Errorf("%w: %s", ErrUnknownTool, action.Tool), "planner called a tool outside the run")
		}
		if done[c.Name] {
			return result, planningFailure(fmt.Errorf("%w: %s", ErrRepeatedTool, c.Name), "planner repeated a step")
		}
		done[c.Name] = true

		step, err := o.execute(ctx, c, message, action.Arguments, result)
		result.Steps = append(result.Steps, step)
		if err != nil {
			if c.Kind == capability.KindNotification && ctx.Err() == nil {
				// Notification never decides the run's outcome.
				result.Notification = notificationFailedStem + err.Error()
				continue
			}
			return result, fmt.Errorf("%s: %w", c.Name, err)
		}
	}

	o.logger.Warn("step budget exhausted", map[string]interface{}{
		"max_steps": o.maxSteps,
		"steps":     len(result.Steps),
	})
	return result, apperrors.NewStepBudgetExhaustedError(o.maxSteps).WithCause(ErrStepBudgetExhausted)
}

func planningFailure(cause error, details string) error {
	return apperrors.NewPlanningFailedError(fmt.Sprintf("%s: %v", details, cause)).
		WithCause(fmt.Errorf("%w: %w", ErrPlanningFailed, cause))
}

// next is the first capability that has not run yet.
func (o *Orchestrator) next(done map[string]bool) *capability.Capability {
	for i := range o.caps {
		if !done[o.caps[i].Name] {
			return &o.caps[i]
		}
	}
	return nil
}

// allowed resolves a tool name or alias to one of the run's capabilities.
func (o *Orchestrator) allowed(tool string) (capability.Capability, bool) {
	c, ok := o.registry.Lookup(tool)
	if !ok {
		return capability.Capability{}, false
	}
	for _, rc := range o.caps {
		if rc.Name == c.Name {
			return rc, true
		}
	}
	return capability.Capability{}, false
}

func (o *Orchestrator) execute(ctx context.Context, c capability.Capability, message string, planned map[string]interface{}, result *Result) (Step, error) {
	args := o.thread(c, message, planned, result)
	step := Step{Capability: c.Name, Kind: c.Kind, Arguments: args}

	start := time.Now()
	out, err := c.Invoke(ctx, args)
	step.Duration = time.Since(start)

	log := o.logger.WithFields(map[string]interface{}{
		"capability":  c.Name,
		"duration_ms": step.Duration.Milliseconds(),
	})
	if err != nil {
		step.Error = err.Error()
		log.Error("capability failed", map[string]interface{}{"error": err.Error()})
		return step, err
	}

	step.Result = o.absorb(c, out, result)
	log.Info("capability completed", nil)
	return step, nil
}

// thread rewrites planner arguments so every step sees the accumulated lead.
func (o *Orchestrator) thread(c capability.Capability, message string, planned map[string]interface{}, result *Result) map[string]interface{} {
	args := make(map[string]interface{}, len(planned)+2)
	for k, v := range planned {
		args[k] = v
	}

	if c.Kind == capability.KindExtraction {
		if capability.StringArg(args, capability.ArgMessage) == "" {
			args[capability.ArgMessage] = message
		}
		args[capability.ArgTeamID] = o.teamID
		return args
	}

	lead := result.LeadInfo
	if given, ok := capability.LeadArg(args); ok {
		lead = lead.Merge(given)
	}
	delete(args, capability.ArgLeadInfoEnhanced)

	if c.Kind == capability.KindCRM || lead.TeamID == "" {
		lead.TeamID = o.teamID
	}
	args[capability.ArgLeadInfo] = lead.ToMap()

	if c.Kind == capability.KindNotification {
		notificationStatus(args, result.CRM)
	}
	return args
}

// notificationStatus pins success and error_message to the shapes the
// notification schema accepts. A CRM result, when there is one, wins over
// whatever the planner passed.
func notificationStatus(args map[string]interface{}, crm *models.CRMResult) {
	success := boolValue(args[capability.ArgSuccess], true)
	errMsg, _ := args[capability.ArgErrorMessage].(string)
	if crm != nil {
		success = crm.Success
		if !success && errMsg == "" {
			errMsg = crm.Message
		}
	}
	if success {
		errMsg = ""
	}

	args[capability.ArgSuccess] = success
	if errMsg == "" {
		delete(args, capability.ArgErrorMessage)
	} else {
		args[capability.ArgErrorMessage] = errMsg
	}
}

func boolValue(v interface{}, fallback bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return fallback
}

// absorb folds a capability output into the run and returns its transcript
// form.
func (o *Orchestrator) absorb(c capability.Capability, out interface{}, result *Result) interface{} {
	switch v := out.(type) {
	case models.LeadInfo:
		result.LeadInfo = result.LeadInfo.Merge(v)
		return result.LeadInfo.ToMap()
	case *models.LeadInfo:
		if v != nil {
			result.LeadInfo = result.LeadInfo.Merge(*v)
		}
		return result.LeadInfo.ToMap()
	case models.CRMResult:
		return o.absorbCRM(v, result)
	case *models.CRMResult:
		if v != nil {
			return o.absorbCRM(*v, result)
		}
		return nil
	case string:
		if c.Kind == capability.KindNotification {
			result.Notification = v
		}
		return v
	default:
		return v
	}
}

func (o *Orchestrator) absorbCRM(crm models.CRMResult, result *Result) interface{} {
	result.CRM = &crm
	result.LeadInfo.CRM = &crm
	return crm.ToMap()
}
