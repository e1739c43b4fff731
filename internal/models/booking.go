package models

import "time"

// HoldRequest carries everything the persistence layer needs to reserve a slot.
type HoldRequest struct {
	SlotID         string
	DoctorID       string
	ServiceID      string
	PatientID      string
	TenantID       string
	Start          time.Time
	End            time.Time
	IdempotencyKey string
}

// HoldResult and ConfirmResult identifiers are opaque to the dispatcher.
type HoldResult struct {
	Success bool   `json:"success"`
	HoldID  string `json:"holdId,omitempty"`
	Message string `json:"message,omitempty"`
}

type ConfirmResult struct {
	Success       bool   `json:"success"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Message       string `json:"message,omitempty"`
}
