// pkg/registry/schema.go
package registry

// FlowRegistry is the on-disk flow table, typically configs/flows.json.
type FlowRegistry struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	Flows       []Flow `json:"flows"`
}

// Flow binds a team to its data source, CRM and notification channel.
// Values are capability names or aliases.
type Flow struct {
	TeamID              string   `json:"teamId"`
	DataSource          string   `json:"dataSource"`
	CRM                 string   `json:"crm"`
	NotificationChannel string   `json:"notificationChannel"`
	Description         string   `json:"description,omitempty"`
	Tags                []string `json:"tags,omitempty"`
}
