package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	apperrors "clinic-dispatcher/internal/common/errors"
	"clinic-dispatcher/internal/models"
	"clinic-dispatcher/internal/services/session"
)

type messageResponse struct {
	Success   bool                   `json:"success"`
	Response  string                 `json:"response"`
	Lane      string                 `json:"lane"`
	Intent    string                 `json:"intent"`
	LatencyMs int64                  `json:"latency_ms"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.errors.Write(w, apperrors.NewInvalidInboundError(err.Error()))
		return
	}

	result, err := s.validator.ValidateBytes(body)
	if err != nil {
		s.errors.Write(w, apperrors.NewInvalidInboundError(err.Error()))
		return
	}
	if !result.Valid {
		s.errors.Write(w, apperrors.NewInvalidInboundError(result.String()).
			WithMetadata("errors", result.Errors))
		return
	}

	var msg models.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.errors.Write(w, apperrors.NewInvalidInboundError(err.Error()))
		return
	}

	res := s.router.Route(r.Context(), msg)
	s.recordTurn(r.Context(), msg, res)

	lane, _ := res.Metadata["lane"].(string)
	intent, _ := res.Metadata["intent"].(string)
	latency, _ := res.Metadata["latency_ms"].(int64)
	writeJSON(w, http.StatusOK, messageResponse{
		Success:   res.Success,
		Response:  res.ResponseText,
		Lane:      lane,
		Intent:    intent,
		LatencyMs: latency,
		Error:     res.Error,
		Metadata:  res.Metadata,
	})
}

// recordTurn persists what the turn learned before the reply goes out, so the
// session's next message sees the slots it was offered. Failures are logged
// and never change the reply.
func (s *Server) recordTurn(ctx context.Context, msg models.InboundMessage, res *models.ExecutionResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.postTurnTimeout)
	defer cancel()

	log := s.logger.With(map[string]interface{}{"sessionId": msg.SessionID})
	intent, _ := res.Metadata["intent"].(string)
	lane, _ := res.Metadata["lane"].(string)
	language, _ := res.Metadata["language"].(string)
	capability := models.Capability(intent)
	direct := lane == string(models.LaneDirect)

	if s.sessions != nil {
		turn := session.TurnRecord{
			Intent:   capability,
			TenantID: msg.MetadataString("tenant_id"),
			Language: language,
			Booked:   direct && capability == models.CapabilityBooking && res.Success,
		}
		if slots, ok := res.Metadata["slots"].([]models.Slot); ok && direct {
			turn.OfferedSlots = slots
		}
		if err := s.sessions.RecordTurn(ctx, msg.SessionID, turn); err != nil {
			log.Warn("failed to record turn", map[string]interface{}{"error": err.Error()})
		}
	}

	if s.memory == nil {
		return
	}
	if direct {
		if err := s.memory.Remember(ctx, msg.SessionID, intent); err != nil {
			log.Debug("failed to remember topic", map[string]interface{}{"error": err.Error()})
		}
	}
	if query, ok := res.Metadata["query"].(string); ok && direct && capability == models.CapabilityPrice {
		if err := s.memory.RememberService(ctx, msg.SessionID, query); err != nil {
			log.Debug("failed to remember service", map[string]interface{}{"error": err.Error()})
		}
	}
	if name := msg.MetadataString("patient_name"); name != "" {
		if err := s.memory.RememberPatientName(ctx, msg.SessionID, name); err != nil {
			log.Debug("failed to remember patient name", map[string]interface{}{"error": err.Error()})
		}
	}
}
