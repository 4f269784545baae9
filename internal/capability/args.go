package capability

import (
	"leadflow/internal/common/validation"
	"leadflow/internal/models"
)

// Argument keys shared by the lead-consuming capabilities.
const (
	ArgMessage          = "message"
	ArgLeadInfo         = "lead_info"
	ArgLeadInfoEnhanced = "lead_info_enhanced"
	ArgSuccess          = "success"
	ArgErrorMessage     = "error_message"
	ArgTeamID           = "team_id"
)

// LeadArg reads a lead from args. lead_info wins over lead_info_enhanced.
func LeadArg(args map[string]interface{}) (models.LeadInfo, bool) {
	for _, key := range []string{ArgLeadInfo, ArgLeadInfoEnhanced} {
		switch v := args[key].(type) {
		case map[string]interface{}:
			return models.LeadFromMap(v), true
		case models.LeadInfo:
			return v, true
		case *models.LeadInfo:
			if v != nil {
				return *v, true
			}
		}
	}
	return models.LeadInfo{}, false
}

func StringArg(args map[string]interface{}, key string) string {
	return models.StringValue(args[key])
}

func BoolArg(args map[string]interface{}, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

// LeadProperty is the schema for a threaded lead object.
func LeadProperty(description string) validation.Property {
	return validation.Property{
		Type:        "object",
		Description: description,
		Properties: map[string]validation.Property{
			"first_name":       {Type: "string"},
			"last_name":        {Type: "string"},
			"phone":            {Types: []string{"string", "number"}},
			"location":         {Type: "string"},
			"property_type":    {Type: "string"},
			"bedrooms":         {Types: []string{"string", "number"}},
			"budget":           {Types: []string{"string", "number"}},
			"team_id":          {Type: "string"},
			"matched_projects": {Types: []string{"array", "null"}, Items: &validation.Property{Type: "string"}},
			"crm":              {Types: []string{"object", "null"}},
		},
	}
}

// LeadInputSchema accepts {lead_info} for data source and CRM steps.
func LeadInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{ArgLeadInfo},
		Properties: map[string]validation.Property{
			ArgLeadInfo: LeadProperty("The full lead object produced by the previous step"),
		},
		AdditionalProperties: true,
	}
}

// NotificationInputSchema accepts {lead_info | lead_info_enhanced, success,
// error_message}.
func NotificationInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			ArgLeadInfo:         LeadProperty("The full lead object including matched_projects and crm"),
			ArgLeadInfoEnhanced: LeadProperty("Alias of lead_info"),
			ArgSuccess:          {Type: "boolean", Description: "Whether the CRM insert succeeded"},
			ArgErrorMessage:     {Types: []string{"string", "null"}, Description: "CRM failure message, if any"},
		},
		AdditionalProperties: true,
	}
}

// MessageInputSchema accepts {message} for extraction.
func MessageInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{ArgMessage},
		Properties: map[string]validation.Property{
			ArgMessage: {Type: "string", Description: "The raw user message", MinLength: validation.IntPtr(1)},
		},
		AdditionalProperties: true,
	}
}
