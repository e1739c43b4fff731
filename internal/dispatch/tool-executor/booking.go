package toolexecutor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	apperrors "clinic-dispatcher/internal/common/errors"
	"clinic-dispatcher/internal/common/events"
	"clinic-dispatcher/internal/models"
)

const (
	phaseHold    = "hold"
	phaseConfirm = "confirm"

	releaseReasonConfirmFailed = "confirm_failed"
)

// IdempotencyKey is stable for a (session, phase, slot) triple so a retried
// turn reuses the same hold and appointment.
func IdempotencyKey(sessionID, phase, slotID string) string {
	sum := sha256.Sum256([]byte(sessionID + "|" + phase + "|" + slotID))
	return hex.EncodeToString(sum[:])[:32]
}

func (h *Handler) handleBooking(ctx context.Context, req *request) (*models.ExecutionResult, error) {
	slot := req.session.SelectedSlot
	if slot == nil {
		return missingArgument("selected slot", reply(req.lang(), msgSlotMissing)), nil
	}

	hold := models.HoldRequest{
		SlotID:         slot.ID,
		DoctorID:       firstNonEmpty(req.match.Arg("doctor_id"), slot.DoctorID),
		ServiceID:      firstNonEmpty(req.match.Arg("service_id"), slot.ServiceID),
		PatientID:      req.session.PatientID,
		TenantID:       req.tenantID(),
		Start:          slot.Start,
		End:            slot.End,
		IdempotencyKey: IdempotencyKey(req.sessionID(), phaseHold, slot.ID),
	}

	held, err := h.bookings.CreateHold(ctx, hold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHoldFailed, err)
	}
	if !held.Success {
		res := rejection("hold failed", held.Message)
		res.SetMeta("slot_id", slot.ID)
		return res, nil
	}

	confirmKey := IdempotencyKey(req.sessionID(), phaseConfirm, slot.ID)
	confirmed, err := h.bookings.ConfirmHold(ctx, held.HoldID, confirmKey)
	if err != nil || !confirmed.Success {
		h.compensate(ctx, req, held.HoldID)
		if err != nil {
			return nil, apperrors.NewConfirmFailedError(held.HoldID, err.Error())
		}
		res := rejection("confirm failed", reply(req.lang(), msgBookingFailed))
		res.SetMeta("hold_id", held.HoldID)
		res.SetMeta("released", true)
		return res, nil
	}

	when := slot.Start.In(req.session.Location(h.config.Location)).Format("2006-01-02 15:04")
	res := success(reply(req.lang(), msgBookingConfirmed, when))
	res.SetMeta("hold_id", held.HoldID)
	res.SetMeta("appointment_id", confirmed.AppointmentID)
	res.SetMeta("slot_id", slot.ID)

	h.publish(ctx, events.NewEvent(events.TypeAppointmentConfirmed, req.tenantID(), req.sessionID(), map[string]interface{}{
		"appointmentId": confirmed.AppointmentID,
		"holdId":        held.HoldID,
		"slotId":        slot.ID,
		"doctorId":      hold.DoctorID,
		"start":         slot.Start,
	}))
	return res, nil
}

// compensate releases the hold on a context detached from the turn so the
// release still runs after the turn budget has expired.
func (h *Handler) compensate(ctx context.Context, req *request, holdID string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.ReleaseTimeout)
	defer cancel()

	if err := h.bookings.ReleaseHold(releaseCtx, holdID, releaseReasonConfirmFailed); err != nil {
		h.logger.Error("hold release failed", map[string]interface{}{
			"holdId":    holdID,
			"sessionId": req.sessionID(),
			"error":     err,
		})
		return
	}

	h.publish(ctx, events.NewEvent(events.TypeHoldReleased, req.tenantID(), req.sessionID(), map[string]interface{}{
		"holdId": holdID,
		"reason": releaseReasonConfirmFailed,
	}))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
