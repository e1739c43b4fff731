package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// InboundMessageSchema describes the payload delivered by the webhook layer.
const InboundMessageSchema = `{
  "type": "object",
  "required": ["message", "sessionId", "source", "messageType"],
  "properties": {
    "message":     {"type": "string", "maxLength": 4096},
    "sessionId":   {"type": "string", "minLength": 1, "maxLength": 128},
    "source":      {"type": "string", "enum": ["whatsapp", "telegram", "web", "sms", "voice"]},
    "messageType": {"type": "string", "enum": ["text", "audio", "image", "location", "interactive"]},
    "metadata":    {"type": "object"}
  }
}`

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validator holds a compiled schema; safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator(schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateBytes validates a raw JSON document.
func (v *Validator) ValidateBytes(doc []byte) (*ValidationResult, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) String() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}
