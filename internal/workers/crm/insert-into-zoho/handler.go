package insertintozoho

import (
	"context"
	"errors"

	"leadflow/internal/capability"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/zoho"
	"leadflow/internal/installations"
	"leadflow/internal/models"
	"leadflow/internal/workers/crm"
)

const (
	TaskType = capability.InsertIntoZoho
	Provider = "zoho"
)

// TokenSource resolves a team's Zoho installation.
type TokenSource interface {
	ZohoInstallation(ctx context.Context, teamID string) (*installations.ZohoInstallation, error)
}

type Handler struct {
	config *Config
	tokens TokenSource
	client *zoho.CRMClient
	logger logger.Logger
}

func NewHandler(cfg *Config, tokens TokenSource, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, errors.New("zoho token source is required")
	}
	return &Handler{
		config: cfg,
		tokens: tokens,
		client: zoho.NewCRMClient(cfg.Timeout),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// Insert creates the lead in the team's Zoho CRM.
func (h *Handler) Insert(ctx context.Context, teamID string, lead models.LeadInfo) models.CRMResult {
	if teamID == "" {
		return h.failed(MsgMissingTeamID, nil)
	}

	inst, err := h.tokens.ZohoInstallation(ctx, teamID)
	if err != nil {
		if errors.Is(err, installations.ErrNotInstalled) {
			h.logger.Warn("zoho not installed", map[string]interface{}{
				"team_id": teamID,
				"error":   apperrors.NewCRMNotInstalledError(Provider, teamID).Error(),
			})
			return h.failed(MsgNotConnected, nil)
		}
		h.logInsertFailed(teamID, err)
		return h.failed(MsgInternalError, nil)
	}

	apiDomain := inst.APIDomain
	if apiDomain == "" {
		apiDomain = h.config.DefaultAPIDomain
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resp, raw, err := h.client.CreateLead(ctx, apiDomain, inst.AccessToken, BuildLead(lead))
	if err != nil {
		h.logInsertFailed(teamID, err)
		return h.failed(MsgInternalError, raw)
	}
	if !resp.Succeeded() {
		h.logger.Warn("zoho rejected lead", map[string]interface{}{
			"team_id":  teamID,
			"response": raw,
		})
		return h.failed(MsgInsertFailed, raw)
	}

	h.logger.Info("lead inserted into zoho", map[string]interface{}{
		"team_id":   teamID,
		"record_id": resp.RecordID(),
	})
	return models.CRMResult{
		Success:     true,
		Message:     MsgInserted,
		Provider:    Provider,
		RecordID:    resp.RecordID(),
		RawResponse: raw,
	}
}

func (h *Handler) logInsertFailed(teamID string, err error) {
	h.logger.Error("zoho insert failed", map[string]interface{}{
		"team_id": teamID,
		"error":   apperrors.NewCRMInsertFailedError(Provider, err).Error(),
	})
}

func (h *Handler) failed(msg string, raw interface{}) models.CRMResult {
	return models.CRMResult{Success: false, Message: msg, Provider: Provider, RawResponse: raw}
}

func (h *Handler) Capability() capability.Capability {
	return crm.Capability(
		TaskType,
		"Inserts the enriched lead_info (including team_id) into the team's Zoho CRM and reports success or failure.",
		[]string{"zoho"},
		h,
	)
}
