package models

import "time"

// IntentMatch is the classifier's verdict for one message. Treat as immutable.
type IntentMatch struct {
	Capability     Capability             `json:"capability"`
	Confidence     float64                `json:"confidence"`
	ExtractedArgs  map[string]interface{} `json:"extractedArgs,omitempty"`
	Language       string                 `json:"language"`
	Reasoning      string                 `json:"reasoning"`
	Elapsed        time.Duration          `json:"elapsed"`
	BudgetExceeded bool                   `json:"budgetExceeded,omitempty"`
}

// Arg returns a string argument or "".
func (m IntentMatch) Arg(key string) string {
	if v, ok := m.ExtractedArgs[key].(string); ok {
		return v
	}
	return ""
}

// ExecutionResult is what a lane hands back to the caller.
type ExecutionResult struct {
	Success           bool                   `json:"success"`
	ResponseText      string                 `json:"responseText"`
	Error             string                 `json:"error,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	Elapsed           time.Duration          `json:"elapsed"`
	FallbackTriggered bool                   `json:"fallbackTriggered"`
}

// SetMeta writes one metadata entry, allocating the map on first use.
func (r *ExecutionResult) SetMeta(key string, value interface{}) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
}
