package models

import "time"

type EventStatus string

const (
	EventStatusProcessing EventStatus = "processing"
	EventStatusSuccess    EventStatus = "success"
	EventStatusError      EventStatus = "error"
)

const EventTypeLeadProcessing = "lead_processing"

// EventLog is one row of event_logs.
type EventLog struct {
	ID           int64                  `json:"id"`
	EventType    string                 `json:"event_type"`
	EventData    map[string]interface{} `json:"event_data"`
	Status       EventStatus            `json:"status"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	TeamID       string                 `json:"team_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Clone copies the entry so readers never share the event_data map.
func (e EventLog) Clone() EventLog {
	out := e
	if e.EventData != nil {
		out.EventData = make(map[string]interface{}, len(e.EventData))
		for k, v := range e.EventData {
			out.EventData[k] = v
		}
	}
	return out
}
