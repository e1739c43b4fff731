package circuitbreaker

import "time"

type State int

const (
	StateClosed State = iota
	StateOpen
	// StateHalfOpen is never stored; it is how an OPEN circuit reads once
	// the recovery window has elapsed.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Stats is a point-in-time view of one capability's circuit.
type Stats struct {
	Capability    string     `json:"capability"`
	State         string     `json:"state"`
	FailureCount  uint       `json:"failureCount"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
}
