// Package flow maps teams to the capabilities a run uses.
package flow

import (
	"fmt"
	"sort"
	"strings"

	"leadflow/internal/common/config"
	"leadflow/internal/common/logger"
	"leadflow/pkg/registry"
)

const DefaultTeam = registry.DefaultTeam

// Config is the per-team capability selection. Values are capability names
// or aliases and are resolved through the capability registry.
type Config struct {
	DataSource          string `json:"data_source"`
	CRM                 string `json:"crm"`
	NotificationChannel string `json:"notification_channel"`
}

// DefaultTable is the built-in flow table.
func DefaultTable() map[string]Config {
	return map[string]Config{
		DefaultTeam: {
			DataSource:          "postgresql",
			CRM:                 "zoho",
			NotificationChannel: "gmail",
		},
		"T01ABCDE123": {
			DataSource:          "elasticsearch",
			CRM:                 "odoo",
			NotificationChannel: "outlook",
		},
	}
}

// BuildTable layers the flow file and then the YAML flows over the built-in
// table. Either source may be nil. Keys come back lower-cased.
func BuildTable(fromConfig map[string]config.FlowEntry, file *registry.FlowRegistry) map[string]Config {
	table := make(map[string]Config)
	for team, cfg := range DefaultTable() {
		table[teamKey(team)] = cfg
	}
	if file != nil {
		for _, f := range file.Flows {
			table[teamKey(f.TeamID)] = Config{
				DataSource:          f.DataSource,
				CRM:                 f.CRM,
				NotificationChannel: f.NotificationChannel,
			}
		}
	}
	for team, entry := range fromConfig {
		key := teamKey(team)
		cfg := table[key]
		if entry.DataSource != "" {
			cfg.DataSource = entry.DataSource
		}
		if entry.CRM != "" {
			cfg.CRM = entry.CRM
		}
		if entry.NotificationChannel != "" {
			cfg.NotificationChannel = entry.NotificationChannel
		}
		table[key] = cfg
	}
	return table
}

func teamKey(team string) string {
	return strings.ToLower(strings.TrimSpace(team))
}

// Resolver looks up team flows. Team ids match case-insensitively since
// viper lower-cases map keys read from YAML.
type Resolver struct {
	table  map[string]Config
	logger logger.Logger
}

func NewResolver(table map[string]Config, log logger.Logger) (*Resolver, error) {
	normalized := make(map[string]Config, len(table))
	for team, cfg := range table {
		normalized[teamKey(team)] = cfg
	}
	if _, ok := normalized[DefaultTeam]; !ok {
		return nil, fmt.Errorf("flow table has no %s entry", DefaultTeam)
	}
	return &Resolver{
		table:  normalized,
		logger: log.WithFields(map[string]interface{}{"component": "flow"}),
	}, nil
}

// Resolve never fails: unknown teams get the default flow and a warning.
func (r *Resolver) Resolve(teamID string) Config {
	if cfg, ok := r.table[teamKey(teamID)]; ok {
		return cfg
	}
	r.logger.Warn("no flow configured for team, using default", map[string]interface{}{
		"teamId": teamID,
	})
	return r.table[DefaultTeam]
}

// Teams returns the configured team ids, sorted.
func (r *Resolver) Teams() []string {
	teams := make([]string, 0, len(r.table))
	for team := range r.table {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

// Table returns a copy of the resolved table.
func (r *Resolver) Table() map[string]Config {
	out := make(map[string]Config, len(r.table))
	for k, v := range r.table {
		out[k] = v
	}
	return out
}
