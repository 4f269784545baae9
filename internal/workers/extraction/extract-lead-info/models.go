package extractleadinfo

import "leadflow/internal/models"

type Input struct {
	Message string `json:"message"`
	TeamID  string `json:"team_id"`
}

// Output carries the extracted lead. Degraded is set when the lead is the
// empty skeleton because extraction failed.
type Output struct {
	Lead     models.LeadInfo `json:"lead_info"`
	Degraded bool            `json:"degraded"`
}

// leadKeys are the fields the model is asked for, in prompt order.
var leadKeys = []string{"first_name", "last_name", "phone", "location", "property_type", "bedrooms", "budget"}
