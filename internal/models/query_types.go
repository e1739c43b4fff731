// internal/models/query_types.go
package models

// Capability names a direct-lane tool.
type Capability string

const (
	CapabilityFAQ          Capability = "faq"
	CapabilityPrice        Capability = "price"
	CapabilityAvailability Capability = "availability"
	CapabilityBooking      Capability = "booking"
	CapabilityUnknown      Capability = "unknown"
)

// Capabilities lists the executable capabilities in classifier priority order.
var Capabilities = []Capability{
	CapabilityBooking,
	CapabilityAvailability,
	CapabilityFAQ,
	CapabilityPrice,
}

func (c Capability) String() string { return string(c) }

// Lane is the tier that produced a response.
type Lane string

const (
	LaneFast     Lane = "fast"
	LaneDirect   Lane = "direct"
	LaneFallback Lane = "fallback"
)

type Source string

const (
	SourceWhatsApp Source = "whatsapp"
	SourceTelegram Source = "telegram"
	SourceWeb      Source = "web"
	SourceSMS      Source = "sms"
	SourceVoice    Source = "voice"
)

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeImage       MessageType = "image"
	MessageTypeLocation    MessageType = "location"
	MessageTypeInteractive MessageType = "interactive"
)

// InboundMessage is what the webhook layer hands to the router.
type InboundMessage struct {
	Message     string                 `json:"message"`
	SessionID   string                 `json:"sessionId"`
	Source      Source                 `json:"source"`
	MessageType MessageType            `json:"messageType"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// MetadataBool reads a boolean flag, accepting "true" strings from loosely typed channels.
func (m InboundMessage) MetadataBool(key string) bool {
	switch v := m.Metadata[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

func (m InboundMessage) MetadataString(key string) string {
	if v, ok := m.Metadata[key].(string); ok {
		return v
	}
	return ""
}
