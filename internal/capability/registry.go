package capability

import (
	"fmt"
	"sort"
	"strings"

	"leadflow/internal/common/logger"
	"leadflow/internal/flow"
)

// Registry maps canonical names and aliases to capabilities. It is filled
// at startup and read-only afterwards.
type Registry struct {
	byName              map[string]Capability
	aliases             map[string]string
	defaultNotification string
	logger              logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		byName:              make(map[string]Capability),
		aliases:             make(map[string]string),
		defaultNotification: SendGmailNotification,
		logger:              log.WithFields(map[string]interface{}{"component": "capability-registry"}),
	}
}

// Register adds a capability and its aliases. Names and aliases must be
// unique across the registry.
func (r *Registry) Register(c Capability) error {
	name := key(c.Name)
	if name == "" {
		return fmt.Errorf("capability name is required")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("capability %s already registered", c.Name)
	}
	if target, exists := r.aliases[name]; exists {
		return fmt.Errorf("capability %s collides with alias of %s", c.Name, target)
	}
	for _, alias := range c.Aliases {
		a := key(alias)
		if _, exists := r.byName[a]; exists {
			return fmt.Errorf("alias %s of %s collides with a capability", alias, c.Name)
		}
		if target, exists := r.aliases[a]; exists {
			return fmt.Errorf("alias %s of %s already points at %s", alias, c.Name, target)
		}
	}

	r.byName[name] = c
	for _, alias := range c.Aliases {
		r.aliases[key(alias)] = name
	}
	return nil
}

// MustRegister panics on a registration conflict.
func (r *Registry) MustRegister(caps ...Capability) *Registry {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup resolves a canonical name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (Capability, bool) {
	k := key(name)
	if c, ok := r.byName[k]; ok {
		return c, true
	}
	if target, ok := r.aliases[k]; ok {
		c, ok := r.byName[target]
		return c, ok
	}
	return Capability{}, false
}

// LookupKind is Lookup restricted to one kind.
func (r *Registry) LookupKind(name string, kind Kind) (Capability, bool) {
	c, ok := r.Lookup(name)
	if !ok || c.Kind != kind {
		return Capability{}, false
	}
	return c, true
}

// SetDefaultNotification picks the fallback for unknown notification
// channels.
func (r *Registry) SetDefaultNotification(name string) error {
	c, ok := r.LookupKind(name, KindNotification)
	if !ok {
		return fmt.Errorf("default notification %q is not a registered notification capability", name)
	}
	r.defaultNotification = c.Name
	return nil
}

// ResolveNotification maps a channel to a notification capability. Unknown
// channels fall back to the default, or to any registered notification
// capability, with a warning.
func (r *Registry) ResolveNotification(channel string) (Capability, bool) {
	if c, ok := r.LookupKind(channel, KindNotification); ok {
		return c, true
	}

	fallback, ok := r.LookupKind(r.defaultNotification, KindNotification)
	if !ok {
		candidates := r.ByKind(KindNotification)
		if len(candidates) == 0 {
			r.logger.Error("no notification capability registered", map[string]interface{}{
				"channel": channel,
			})
			return Capability{}, false
		}
		fallback = candidates[0]
	}

	r.logger.Warn("unknown notification channel, using fallback", map[string]interface{}{
		"channel":  channel,
		"fallback": fallback.Name,
	})
	return fallback, true
}

// Names returns the canonical names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for _, c := range r.byName {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// ByKind returns the capabilities of one kind sorted by name.
func (r *Registry) ByKind(kind Kind) []Capability {
	var out []Capability
	for _, c := range r.byName {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FlowIssue is a flow slot that does not resolve to a capability of the
// expected kind.
type FlowIssue struct {
	Team string `json:"team"`
	Slot string `json:"slot"`
	Key  string `json:"key"`
}

func (i FlowIssue) String() string {
	return fmt.Sprintf("team %s: %s %q is not registered", i.Team, i.Slot, i.Key)
}

// CheckFlows reports every flow slot that does not resolve. Notification
// channels are checked strictly here even though runs fall back.
func (r *Registry) CheckFlows(table map[string]flow.Config) []FlowIssue {
	var issues []FlowIssue
	if _, ok := r.Lookup(ExtractLeadInfo); !ok {
		issues = append(issues, FlowIssue{Team: "*", Slot: "extraction", Key: ExtractLeadInfo})
	}

	teams := make([]string, 0, len(table))
	for team := range table {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	for _, team := range teams {
		cfg := table[team]
		slots := []struct {
			slot string
			key  string
			kind Kind
		}{
			{"data_source", cfg.DataSource, KindDataSource},
			{"crm", cfg.CRM, KindCRM},
			{"notification_channel", cfg.NotificationChannel, KindNotification},
		}
		for _, s := range slots {
			if _, ok := r.LookupKind(s.key, s.kind); !ok {
				issues = append(issues, FlowIssue{Team: team, Slot: s.slot, Key: s.key})
			}
		}
	}
	return issues
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
