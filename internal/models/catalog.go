package models

import "time"

type Slot struct {
	ID         string    `json:"id"`
	DoctorID   string    `json:"doctorId"`
	DoctorName string    `json:"doctorName,omitempty"`
	ServiceID  string    `json:"serviceId,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

type Service struct {
	ID              string   `json:"id"`
	TenantID        string   `json:"tenantId"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	DurationMinutes int      `json:"durationMinutes,omitempty"`
}

type ServiceQuery struct {
	TenantID  string
	Query     string
	Limit     int
	SessionID string
}

type FAQEntry struct {
	ID       string   `json:"id" yaml:"id"`
	TenantID string   `json:"tenantId" yaml:"tenant_id"`
	Question string   `json:"question" yaml:"question"`
	Answer   string   `json:"answer" yaml:"answer"`
	Tags     []string `json:"tags,omitempty" yaml:"tags"`
	Priority int      `json:"priority" yaml:"priority"`
}
