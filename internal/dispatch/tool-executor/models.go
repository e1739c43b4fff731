package toolexecutor

import (
	"context"

	"clinic-dispatcher/internal/models"
)

// Breaker is the circuit surface the executor consults around every handler run.
type Breaker interface {
	IsOpen(capability string) bool
	RecordSuccess(capability string)
	RecordFailure(capability string)
}

type FAQSource interface {
	FAQ(ctx context.Context, tenantID string) ([]models.FAQEntry, error)
}

type ServiceSearcher interface {
	SearchServices(ctx context.Context, query models.ServiceQuery) ([]models.Service, error)
}

type SlotSource interface {
	GetAvailableSlots(ctx context.Context, date string, durationMinutes int) ([]models.Slot, error)
}

// BookingStore is the two-phase hold/confirm saga plus its compensation.
type BookingStore interface {
	CreateHold(ctx context.Context, req models.HoldRequest) (*models.HoldResult, error)
	ConfirmHold(ctx context.Context, holdID, idempotencyKey string) (*models.ConfirmResult, error)
	ReleaseHold(ctx context.Context, holdID, reason string) error
}

type MemoryLookup interface {
	Recent(ctx context.Context, sessionID string) (*models.MemoryContext, error)
}

// request is everything one capability handler sees.
type request struct {
	match   models.IntentMatch
	session *models.SessionContext
	memory  *models.MemoryContext
}

func (r *request) tenantID() string  { return r.session.TenantID }
func (r *request) sessionID() string { return r.session.SessionID }
func (r *request) lang() string      { return r.match.Language }
