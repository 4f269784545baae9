// internal/models/lead.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"leadflow/internal/normalize"
)

// LeadInfo is the lead record threaded through a run. Fields are only ever
// added by later steps.
type LeadInfo struct {
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Phone           string     `json:"phone"`
	Location        string     `json:"location"`
	PropertyType    string     `json:"property_type"`
	Bedrooms        string     `json:"bedrooms"`
	Budget          int64      `json:"budget"`
	TeamID          string     `json:"team_id"`
	MatchedProjects []string   `json:"matched_projects,omitempty"`
	CRM             *CRMResult `json:"crm,omitempty"`
}

// Skeleton is the all-empty lead used when extraction fails.
func Skeleton(teamID string) LeadInfo {
	return LeadInfo{TeamID: teamID}
}

func (l LeadInfo) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Merge returns l overlaid with every non-empty field of other.
func (l LeadInfo) Merge(other LeadInfo) LeadInfo {
	out := l
	setIf(&out.FirstName, other.FirstName)
	setIf(&out.LastName, other.LastName)
	setIf(&out.Phone, other.Phone)
	setIf(&out.Location, other.Location)
	setIf(&out.PropertyType, other.PropertyType)
	setIf(&out.Bedrooms, other.Bedrooms)
	setIf(&out.TeamID, other.TeamID)
	if other.Budget > 0 {
		out.Budget = other.Budget
	}
	if other.MatchedProjects != nil {
		out.MatchedProjects = append([]string(nil), other.MatchedProjects...)
	}
	if other.CRM != nil {
		crm := *other.CRM
		out.CRM = &crm
	}
	return out
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ToMap renders the lead with every fixed key present. matched_projects is
// included once enrichment has run, even when empty.
func (l LeadInfo) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"first_name":    l.FirstName,
		"last_name":     l.LastName,
		"phone":         l.Phone,
		"location":      l.Location,
		"property_type": l.PropertyType,
		"bedrooms":      l.Bedrooms,
		"budget":        l.Budget,
		"team_id":       l.TeamID,
	}
	if l.MatchedProjects != nil {
		m["matched_projects"] = append([]string{}, l.MatchedProjects...)
	}
	if l.CRM != nil {
		m["crm"] = l.CRM.ToMap()
	}
	return m
}

func (l LeadInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.ToMap())
}

// UnmarshalJSON accepts budgets and bedrooms as strings or numbers and
// normalizes both.
func (l *LeadInfo) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*l = LeadFromMap(m)
	return nil
}

// LeadFromMap builds a LeadInfo from loosely typed input such as LLM output
// or tool arguments.
func LeadFromMap(m map[string]interface{}) LeadInfo {
	if m == nil {
		return LeadInfo{}
	}
	lead := LeadInfo{
		FirstName:    StringValue(m["first_name"]),
		LastName:     StringValue(m["last_name"]),
		Phone:        StringValue(m["phone"]),
		Location:     StringValue(m["location"]),
		PropertyType: StringValue(m["property_type"]),
		Bedrooms:     normalize.BedroomsValue(m["bedrooms"]),
		Budget:       normalize.BudgetValue(m["budget"]),
		TeamID:       StringValue(m["team_id"]),
	}

	switch projects := m["matched_projects"].(type) {
	case []string:
		lead.MatchedProjects = append([]string{}, projects...)
	case []interface{}:
		lead.MatchedProjects = make([]string, 0, len(projects))
		for _, p := range projects {
			if s := StringValue(p); s != "" {
				lead.MatchedProjects = append(lead.MatchedProjects, s)
			}
		}
	}

	if crm, ok := m["crm"].(map[string]interface{}); ok {
		result := CRMResultFromMap(crm)
		lead.CRM = &result
	}
	return lead
}

// StringValue renders scalars as strings. Whole floats lose their fraction
// so phone numbers decoded as JSON numbers survive.
func StringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int, int64, int32, bool, json.Number:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
