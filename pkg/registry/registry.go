// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const DefaultTeam = "team_default"

var ErrMissingDefault = errors.New("flow registry has no " + DefaultTeam + " entry")

func LoadRegistry(path string) (*FlowRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg FlowRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &reg, nil
}

// Validate rejects duplicate or blank team ids, empty slots and a missing
// default entry.
func (r *FlowRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Flows))
	for i, f := range r.Flows {
		team := strings.ToLower(strings.TrimSpace(f.TeamID))
		if team == "" {
			return fmt.Errorf("flow %d: teamId is required", i)
		}
		if seen[team] {
			return fmt.Errorf("flow %d: duplicate teamId %q", i, f.TeamID)
		}
		seen[team] = true
		if f.DataSource == "" || f.CRM == "" || f.NotificationChannel == "" {
			return fmt.Errorf("flow %q: dataSource, crm and notificationChannel are required", f.TeamID)
		}
	}
	if !seen[DefaultTeam] {
		return ErrMissingDefault
	}
	return nil
}

// Find returns the flow for a team, matching case-insensitively.
func (r *FlowRegistry) Find(teamID string) (Flow, bool) {
	for _, f := range r.Flows {
		if strings.EqualFold(f.TeamID, teamID) {
			return f, true
		}
	}
	return Flow{}, false
}

// Upsert replaces the flow for f.TeamID or appends it.
func (r *FlowRegistry) Upsert(f Flow) {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	for i := range r.Flows {
		if strings.EqualFold(r.Flows[i].TeamID, f.TeamID) {
			r.Flows[i] = f
			return
		}
	}
	r.Flows = append(r.Flows, f)
}

func SaveRegistry(path string, reg *FlowRegistry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
