package toolexecutor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	apperrors "clinic-dispatcher/internal/common/errors"
	"clinic-dispatcher/internal/common/events"
	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/common/metrics"
	"clinic-dispatcher/internal/models"
)

const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeTimeout     = "timeout"
	outcomePanic       = "panic"
	outcomeRejected    = "rejected"
	outcomeCircuitOpen = "circuit_open"
	outcomeCancelled   = "cancelled"
	outcomeUnsupported = "unsupported"
)

var (
	ErrFAQLookupFailed   = stderrors.New("FAQ_LOOKUP_FAILED")
	ErrSearchFailed      = stderrors.New("SEARCH_FAILED")
	ErrSlotLookupFailed  = stderrors.New("SLOT_LOOKUP_FAILED")
	ErrHoldFailed        = stderrors.New("HOLD_FAILED")
	ErrUnexpectedOutcome = stderrors.New("HANDLER_RETURNED_NOTHING")
)

type HandlerOptions struct {
	Config         *Config
	Breaker        Breaker
	FAQ            FAQSource
	PrimarySearch  ServiceSearcher
	FallbackSearch ServiceSearcher
	Slots          SlotSource
	Bookings       BookingStore
	Memory         MemoryLookup
	Events         events.Publisher
	Logger         logger.Logger
}

// Handler executes one classified intent under the turn budget.
type Handler struct {
	config         *Config
	breaker        Breaker
	faq            FAQSource
	primarySearch  ServiceSearcher
	fallbackSearch ServiceSearcher
	slots          SlotSource
	bookings       BookingStore
	memory         MemoryLookup
	events         events.Publisher
	logger         logger.Logger
}

type capabilityFunc func(ctx context.Context, req *request) (*models.ExecutionResult, error)

type outcome struct {
	result    *models.ExecutionResult
	err       error
	recovered interface{}
}

func NewHandler(opts HandlerOptions) *Handler {
	cfg := opts.Config
	if cfg == nil {
		cfg = &Config{
			TurnBudget:          800 * time.Millisecond,
			MemoryBudget:        50 * time.Millisecond,
			SlotDurationMinutes: 30,
		}
	}
	if cfg.MaxFAQResults <= 0 {
		cfg.MaxFAQResults = 3
	}
	if cfg.MaxSlots <= 0 {
		cfg.MaxSlots = 5
	}
	if cfg.MaxServices <= 0 {
		cfg.MaxServices = 5
	}
	if cfg.DescriptionLimit <= 0 {
		cfg.DescriptionLimit = 80
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = 2 * time.Second
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 5 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	pub := opts.Events
	if pub == nil {
		pub = events.NoopPublisher{}
	}

	return &Handler{
		config:         cfg,
		breaker:        opts.Breaker,
		faq:            opts.FAQ,
		primarySearch:  opts.PrimarySearch,
		fallbackSearch: opts.FallbackSearch,
		slots:          opts.Slots,
		bookings:       opts.Bookings,
		memory:         opts.Memory,
		events:         pub,
		logger:         logger.ForComponent(opts.Logger, "tool-executor"),
	}
}

func (h *Handler) handlerFor(capability models.Capability) capabilityFunc {
	switch capability {
	case models.CapabilityFAQ:
		return h.handleFAQ
	case models.CapabilityPrice:
		return h.handlePrice
	case models.CapabilityAvailability:
		return h.handleAvailability
	case models.CapabilityBooking:
		return h.handleBooking
	}
	return nil
}

// Execute always returns within the turn budget. The handler runs in its own
// goroutine; on expiry the executor stops waiting and the handler's context
// is cancelled so its I/O unwinds on its own.
func (h *Handler) Execute(ctx context.Context, match models.IntentMatch, session *models.SessionContext) *models.ExecutionResult {
	start := time.Now()
	capability := string(match.Capability)
	if session == nil {
		session = &models.SessionContext{}
	}
	log := h.logger.With(map[string]interface{}{
		"capability": capability,
		"sessionId":  session.SessionID,
	})

	fn := h.handlerFor(match.Capability)
	if fn == nil {
		err := apperrors.NewUnsupportedCapabilityError(capability)
		return h.finish(capability, outcomeUnsupported, start, escalation(err.Message))
	}

	if h.breaker != nil && h.breaker.IsOpen(capability) {
		log.Warn("circuit open, skipping handler", nil)
		err := apperrors.NewCircuitOpenError(capability)
		return h.finish(capability, outcomeCircuitOpen, start, escalation(err.Message))
	}

	turnCtx, cancel := context.WithTimeout(ctx, h.config.TurnBudget)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{recovered: r}
			}
		}()
		req := &request{match: match, session: session}
		req.memory = h.recentContext(turnCtx, session.SessionID, log)
		res, err := fn(turnCtx, req)
		if err == nil && res != nil && res.Success && req.memory != nil {
			personalize(res, req)
		}
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.recovered == nil && out.err != nil && ctx.Err() != nil {
			return h.cancelled(capability, start, ctx.Err(), log)
		}
		return h.settle(capability, start, out, log)
	case <-turnCtx.Done():
		// Only the executor's own deadline counts against the capability.
		if ctx.Err() != nil || !stderrors.Is(turnCtx.Err(), context.DeadlineExceeded) {
			return h.cancelled(capability, start, turnCtx.Err(), log)
		}
		h.recordFailure(capability)
		err := apperrors.NewBudgetExceededError(capability, h.config.TurnBudget)
		log.Warn("handler exceeded turn budget", map[string]interface{}{
			"budgetMs": h.config.TurnBudget.Milliseconds(),
			"cause":    turnCtx.Err().Error(),
		})
		return h.finish(capability, outcomeTimeout, start, escalation(err.Message))
	}
}

// settle maps a finished handler run onto the circuit and the returned result.
// A result without error that is not a success is a rejected request and leaves
// the circuit untouched.
func (h *Handler) settle(capability string, start time.Time, out outcome, log logger.Logger) *models.ExecutionResult {
	if out.recovered != nil {
		h.recordFailure(capability)
		err := apperrors.NewHandlerPanicError(capability, out.recovered)
		log.Error("handler panicked", map[string]interface{}{"panic": fmt.Sprint(out.recovered)})
		return h.finish(capability, outcomePanic, start, escalation(err.Message))
	}

	if out.err == nil && out.result == nil {
		out.err = ErrUnexpectedOutcome
	}

	if out.err != nil {
		h.recordFailure(capability)
		var stdErr *apperrors.StandardError
		if !stderrors.As(out.err, &stdErr) {
			stdErr = apperrors.NewHandlerFailedError(capability, out.err)
		}
		log.Error("handler failed", map[string]interface{}{
			"error":     out.err,
			"errorCode": string(stdErr.Code),
		})
		return h.finish(capability, outcomeFailure, start, escalation(stdErr.Message))
	}

	if out.result.Success {
		if h.breaker != nil {
			h.breaker.RecordSuccess(capability)
		}
		return h.finish(capability, outcomeSuccess, start, out.result)
	}

	log.Debug("handler rejected request", map[string]interface{}{"reason": out.result.Error})
	return h.finish(capability, outcomeRejected, start, out.result)
}

// cancelled reports a turn abandoned by its caller. The circuit is left alone
// so one conversation's disconnect never trips a capability for the others.
func (h *Handler) cancelled(capability string, start time.Time, cause error, log logger.Logger) *models.ExecutionResult {
	err := apperrors.NewTurnCancelledError(capability, cause)
	log.Info("turn cancelled by caller", map[string]interface{}{"cause": cause.Error()})
	return h.finish(capability, outcomeCancelled, start, escalation(err.Message))
}

func (h *Handler) recordFailure(capability string) {
	if h.breaker != nil {
		h.breaker.RecordFailure(capability)
	}
}

func (h *Handler) finish(capability, outcome string, start time.Time, res *models.ExecutionResult) *models.ExecutionResult {
	res.Elapsed = time.Since(start)
	res.SetMeta("capability", capability)
	res.SetMeta("outcome", outcome)
	metrics.ToolExecutions.WithLabelValues(capability, outcome).Inc()
	metrics.ToolDuration.WithLabelValues(capability).Observe(res.Elapsed.Seconds())
	return res
}

func escalation(reason string) *models.ExecutionResult {
	return &models.ExecutionResult{
		Success:           false,
		Error:             reason,
		FallbackTriggered: true,
	}
}

func rejection(reason, text string) *models.ExecutionResult {
	return &models.ExecutionResult{
		Success:      false,
		Error:        reason,
		ResponseText: text,
	}
}

// missingArgument is a rejection tagged with the MISSING_ARGUMENT code.
func missingArgument(argument, prompt string) *models.ExecutionResult {
	err := apperrors.NewMissingArgumentError(argument)
	res := rejection(err.Message, prompt)
	res.SetMeta("error_code", string(err.Code))
	return res
}

func success(text string) *models.ExecutionResult {
	return &models.ExecutionResult{Success: true, ResponseText: text}
}

// publish fires an event without holding up the turn.
func (h *Handler) publish(ctx context.Context, event events.Event) {
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.EventTimeout)
		defer cancel()
		if err := h.events.Publish(pubCtx, event); err != nil {
			h.logger.Warn("event publish failed", map[string]interface{}{
				"eventType": event.Type,
				"error":     err,
			})
		}
	}()
}
