package extractleadinfo

import (
	"context"
	"fmt"
	"strings"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/llm"
	"leadflow/internal/models"
)

const TaskType = capability.ExtractLeadInfo

const systemPrompt = "You extract real estate lead details from chat messages. Reply with a single JSON object and nothing else."

type Handler struct {
	config *Config
	llm    llm.Inferer
	logger logger.Logger
}

func NewHandler(cfg *Config, inferer llm.Inferer, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if inferer == nil {
		return nil, fmt.Errorf("%s requires a language model", TaskType)
	}
	return &Handler{
		config: cfg,
		llm:    inferer,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Execute never fails on model trouble: it degrades to the skeleton lead.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, apperrors.NewInvalidInputError("message is required")
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := h.llm.Infer(ctx, systemPrompt, userPrompt(input.Message))
	if err != nil {
		return h.degrade(input.TeamID, err), nil
	}

	var fields map[string]interface{}
	if err := llm.DecodeJSON(raw, &fields); err != nil {
		return h.degrade(input.TeamID, err), nil
	}

	lead := models.LeadFromMap(fields)
	lead.TeamID = input.TeamID
	lead.MatchedProjects = nil
	lead.CRM = nil

	h.logger.Info("lead extracted", map[string]interface{}{
		"team_id":       input.TeamID,
		"has_name":      lead.FullName() != "",
		"has_phone":     lead.Phone != "",
		"location":      lead.Location,
		"property_type": lead.PropertyType,
		"budget":        lead.Budget,
	})
	return &Output{Lead: lead}, nil
}

func (h *Handler) degrade(teamID string, cause error) *Output {
	h.logger.Warn("lead extraction degraded", map[string]interface{}{
		"team_id": teamID,
		"error":   apperrors.NewExtractionDegradedError(cause).Error(),
	})
	return &Output{Lead: models.Skeleton(teamID), Degraded: true}
}

func userPrompt(message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract JSON with exactly these keys: %s. Return only JSON.\n\n", strings.Join(leadKeys, ", "))
	b.WriteString("For budget: convert any format (5.5M, 2.3 million, 500K, etc.) to the raw number.\n")
	b.WriteString("Examples: '5.5M' -> '5500000', '2.3 million' -> '2300000', '500K' -> '500000'\n")
	b.WriteString("Use an empty string for anything the message does not mention.\n\n")
	fmt.Fprintf(&b, "Message: %q", message)
	return b.String()
}

// Capability exposes the handler to the orchestrator.
func (h *Handler) Capability() capability.Capability {
	return capability.Capability{
		Name:        TaskType,
		Kind:        capability.KindExtraction,
		Description: "Extracts first_name, last_name, phone, location, property_type, bedrooms and budget from the user's message and returns them as lead_info.",
		InputSchema: GetInputSchema(),
		Body: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			out, err := h.Execute(ctx, &Input{
				Message: capability.StringArg(args, capability.ArgMessage),
				TeamID:  capability.StringArg(args, capability.ArgTeamID),
			})
			if err != nil {
				return nil, err
			}
			return out.Lead, nil
		},
	}
}
