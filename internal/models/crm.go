package models

// CRMResult is the outcome of a CRM insert. Failures are reported here
// instead of as errors.
type CRMResult struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Provider    string      `json:"provider"`
	RecordID    string      `json:"record_id,omitempty"`
	RawResponse interface{} `json:"raw_response,omitempty"`
}

func (r CRMResult) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"success":  r.Success,
		"message":  r.Message,
		"provider": r.Provider,
	}
	if r.RecordID != "" {
		m["record_id"] = r.RecordID
	}
	if r.RawResponse != nil {
		m["raw_response"] = r.RawResponse
	}
	return m
}

func CRMResultFromMap(m map[string]interface{}) CRMResult {
	success, _ := m["success"].(bool)
	return CRMResult{
		Success:     success,
		Message:     StringValue(m["message"]),
		Provider:    StringValue(m["provider"]),
		RecordID:    StringValue(m["record_id"]),
		RawResponse: m["raw_response"],
	}
}
