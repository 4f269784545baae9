package extractleadinfo

import (
	"leadflow/internal/capability"
	"leadflow/internal/common/validation"
)

func GetInputSchema() validation.JSONSchema {
	schema := capability.MessageInputSchema()
	schema.Properties[capability.ArgTeamID] = validation.Property{
		Type:        "string",
		Description: "Team the lead belongs to",
	}
	return schema
}
