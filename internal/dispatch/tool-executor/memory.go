package toolexecutor

import (
	"context"
	"time"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/models"
)

// recentContext looks up personalization data under the memory sub-budget.
// It is skipped when the turn has less than twice the sub-budget left, and
// any failure degrades to no context.
func (h *Handler) recentContext(ctx context.Context, sessionID string, log logger.Logger) *models.MemoryContext {
	if !h.config.MemoryEnabled || h.memory == nil || sessionID == "" {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < 2*h.config.MemoryBudget {
		log.Debug("skipping memory lookup, turn budget nearly spent", nil)
		return nil
	}

	memCtx, cancel := context.WithTimeout(ctx, h.config.MemoryBudget)
	defer cancel()

	mem, err := h.memory.Recent(memCtx, sessionID)
	if err != nil {
		log.Debug("memory lookup degraded", map[string]interface{}{"error": err})
		return nil
	}
	return mem
}

func personalize(res *models.ExecutionResult, req *request) {
	if req.memory.PatientName == "" {
		return
	}
	res.ResponseText = reply(req.lang(), msgGreeting, req.memory.PatientName) + " " + res.ResponseText
	res.SetMeta("personalized", true)
}
