// Package memory keeps a short per-session context used to personalize replies.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPatientName = "patient_name"
	fieldLastService = "last_service"

	MaxTopics  = 10
	DefaultTTL = 24 * time.Hour
)

var ErrMemoryUnavailable = errors.New("MEMORY_UNAVAILABLE")

type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func New(rdb *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: rdb, ttl: ttl, logger: logger.ForComponent(log, "memory")}
}

func hashKey(sessionID string) string  { return "memory:" + sessionID }
func topicsKey(sessionID string) string { return "memory:" + sessionID + ":topics" }

// Recent reads the profile hash and topic list in one round trip.
func (s *Store) Recent(ctx context.Context, sessionID string) (*models.MemoryContext, error) {
	pipe := s.redis.Pipeline()
	profile := pipe.HGetAll(ctx, hashKey(sessionID))
	topics := pipe.LRange(ctx, topicsKey(sessionID), 0, MaxTopics-1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}

	fields := profile.Val()
	return &models.MemoryContext{
		PatientName:  fields[fieldPatientName],
		LastService:  fields[fieldLastService],
		RecentTopics: topics.Val(),
	}, nil
}

// Remember pushes a topic to the front of the session's list, keeping the newest MaxTopics.
func (s *Store) Remember(ctx context.Context, sessionID, topic string) error {
	if topic == "" {
		return nil
	}
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, topicsKey(sessionID), topic)
	pipe.LTrim(ctx, topicsKey(sessionID), 0, MaxTopics-1)
	pipe.Expire(ctx, topicsKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	return nil
}

func (s *Store) RememberService(ctx context.Context, sessionID, service string) error {
	return s.setField(ctx, sessionID, fieldLastService, service)
}

func (s *Store) RememberPatientName(ctx context.Context, sessionID, name string) error {
	return s.setField(ctx, sessionID, fieldPatientName, name)
}

func (s *Store) setField(ctx context.Context, sessionID, field, value string) error {
	if value == "" {
		return nil
	}
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, hashKey(sessionID), field, value)
	pipe.Expire(ctx, hashKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	return nil
}
