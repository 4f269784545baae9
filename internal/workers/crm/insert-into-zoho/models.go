package insertintozoho

import (
	"fmt"
	"strconv"
	"strings"

	"leadflow/internal/common/zoho"
	"leadflow/internal/models"
)

const (
	MsgInserted      = "✅ Lead inserted into Zoho CRM successfully."
	MsgInsertFailed  = "❌ Failed to insert lead into Zoho CRM."
	MsgInternalError = "❌ Zoho CRM insertion failed due to internal error."
	MsgMissingTeamID = "Missing team_id in lead_info."
	MsgNotConnected  = "❌ Zoho CRM is not connected for this team."
)

// BuildLead maps a lead onto the Zoho Leads module.
func BuildLead(lead models.LeadInfo) zoho.Lead {
	lastName := lead.FullName()
	if lastName == "" {
		lastName = "Unknown"
	}

	budget := ""
	if lead.Budget > 0 {
		budget = strconv.FormatInt(lead.Budget, 10)
	}

	return zoho.Lead{
		LastName:   lastName,
		FirstName:  lead.FirstName,
		Phone:      lead.Phone,
		City:       lead.Location,
		LeadSource: zoho.LeadSource,
		Description: fmt.Sprintf("Looking for a %s bedroom %s with budget %s.\nMatched Projects: %s",
			lead.Bedrooms, lead.PropertyType, budget, strings.Join(lead.MatchedProjects, ", ")),
	}
}
