// Package session stores per-conversation routing state in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/models"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 2 * time.Hour

var (
	ErrSessionNotFound    = errors.New("SESSION_NOT_FOUND")
	ErrSessionUnavailable = errors.New("SESSION_UNAVAILABLE")
)

type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func New(rdb *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: rdb, ttl: ttl, logger: logger.ForComponent(log, "session")}
}

func key(sessionID string) string { return "session:" + sessionID }

func (s *Store) Load(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	raw, err := s.redis.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	var sc models.SessionContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrSessionUnavailable, sessionID, err)
	}
	if sc.SessionID == "" {
		sc.SessionID = sessionID
	}
	return &sc, nil
}

func (s *Store) Save(ctx context.Context, sc *models.SessionContext) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.redis.Set(ctx, key(sc.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return nil
}

// TurnRecord is what the inbound layer learned from one routed message.
type TurnRecord struct {
	Intent       models.Capability
	TenantID     string
	Language     string
	OfferedSlots []models.Slot
	Booked       bool
}

// RecordTurn folds one turn into the stored session, creating it when missing.
// Offered slots replace the previous offer; a completed booking clears it.
func (s *Store) RecordTurn(ctx context.Context, sessionID string, turn TurnRecord) error {
	sc, err := s.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return err
		}
		sc = &models.SessionContext{SessionID: sessionID}
	}

	if turn.Intent != "" && turn.Intent != models.CapabilityUnknown {
		sc.PriorIntent = turn.Intent
	}
	if turn.TenantID != "" {
		sc.TenantID = turn.TenantID
	}
	if turn.Language != "" {
		sc.Language = turn.Language
	}
	if turn.OfferedSlots != nil {
		sc.OfferedSlots = turn.OfferedSlots
		sc.SelectedSlot = nil
	}
	if turn.Booked {
		sc.OfferedSlots = nil
		sc.SelectedSlot = nil
	}
	return s.Save(ctx, sc)
}
