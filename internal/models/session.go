package models

import (
	"sync"
	"time"
)

// SessionContext is owned by session storage; the dispatcher reads it and threads it through.
type SessionContext struct {
	SessionID    string     `json:"sessionId"`
	TenantID     string     `json:"tenantId,omitempty"`
	PatientID    string     `json:"patientId,omitempty"`
	PriorIntent  Capability `json:"priorIntent,omitempty"`
	SelectedSlot *Slot      `json:"selectedSlot,omitempty"`
	OfferedSlots []Slot     `json:"offeredSlots,omitempty"`
	DoctorID     string     `json:"doctorId,omitempty"`
	ServiceID    string     `json:"serviceId,omitempty"`
	Timezone     string     `json:"timezone,omitempty"`
	Language     string     `json:"language,omitempty"`
}

// ApplyMetadata returns a copy with per-message overrides from the inbound
// metadata. selected_slot_id is resolved against OfferedSlots.
func (s SessionContext) ApplyMetadata(meta map[string]interface{}) *SessionContext {
	out := s
	str := func(key string) string {
		v, _ := meta[key].(string)
		return v
	}

	if v := str("tenant_id"); v != "" {
		out.TenantID = v
	}
	if v := str("patient_id"); v != "" {
		out.PatientID = v
	}
	if v := str("timezone"); v != "" {
		out.Timezone = v
	}
	if v := str("doctor_id"); v != "" {
		out.DoctorID = v
	}
	if v := str("service_id"); v != "" {
		out.ServiceID = v
	}
	if id := str("selected_slot_id"); id != "" {
		for i := range s.OfferedSlots {
			if s.OfferedSlots[i].ID == id {
				slot := s.OfferedSlots[i]
				out.SelectedSlot = &slot
				break
			}
		}
	}
	return &out
}

// Location resolves the session timezone, or fallback when unset or invalid.
func (s *SessionContext) Location(fallback *time.Location) *time.Location {
	if s != nil && s.Timezone != "" {
		if loc, err := LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	return fallback
}

// locations only holds zones that resolved, so unknown names cannot grow it.
var locations sync.Map

// LoadLocation is time.LoadLocation memoized per zone name.
func LoadLocation(name string) (*time.Location, error) {
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	actual, _ := locations.LoadOrStore(name, loc)
	return actual.(*time.Location), nil
}

// MemoryContext is the optional recent-context used to personalize replies.
type MemoryContext struct {
	PatientName  string   `json:"patientName,omitempty"`
	LastService  string   `json:"lastService,omitempty"`
	RecentTopics []string `json:"recentTopics,omitempty"`
}
