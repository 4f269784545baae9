// Package insertintoodoo is a stand-in Odoo CRM that logs the lead and
// reports success.
package insertintoodoo

import (
	"context"
	"fmt"

	"leadflow/internal/capability"
	"leadflow/internal/common/logger"
	"leadflow/internal/models"
	"leadflow/internal/workers/crm"
)

const (
	TaskType = capability.InsertIntoOdoo
	Provider = "odoo"
)

type Handler struct {
	logger logger.Logger
}

func NewHandler(log logger.Logger) *Handler {
	return &Handler{logger: log.WithFields(map[string]interface{}{"taskType": TaskType})}
}

func (h *Handler) Insert(ctx context.Context, teamID string, lead models.LeadInfo) models.CRMResult {
	h.logger.Info("CRM - Odoo lead submitted", map[string]interface{}{
		"team_id":   teamID,
		"lead_info": lead.ToMap(),
	})
	return models.CRMResult{
		Success:  true,
		Message:  fmt.Sprintf("✅ Lead '%s' successfully inserted into Odoo CRM.", lead.FullName()),
		Provider: Provider,
	}
}

func (h *Handler) Capability() capability.Capability {
	return crm.Capability(
		TaskType,
		"Submits lead_info to the Odoo CRM (mock) and reports success.",
		[]string{"odoo"},
		h,
	)
}
