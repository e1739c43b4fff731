package session

import (
	"context"
	"testing"
	"time"

	"clinic-dispatcher/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *Store) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0, nil)
}

func TestStore_LoadMissing(t *testing.T) {
	_, store := setupRedis(t)

	_, err := store.Load(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_LoadCorrupt(t *testing.T) {
	mr, store := setupRedis(t)
	require.NoError(t, mr.Set("session:s1", "{not json"))

	_, err := store.Load(context.Background(), "s1")

	assert.ErrorIs(t, err, ErrSessionUnavailable)
}

func TestStore_SaveAndLoad(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.SessionContext{SessionID: "s1", TenantID: "t1", Timezone: "Asia/Jerusalem"}))

	sc, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "t1", sc.TenantID)
	assert.Equal(t, "Asia/Jerusalem", sc.Timezone)
	assert.Equal(t, DefaultTTL, mr.TTL("session:s1"))
}

func TestStore_RecordTurn(t *testing.T) {
	_, store := setupRedis(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	offered := []models.Slot{{ID: "slot-1", Start: start}, {ID: "slot-2", Start: start.Add(time.Hour)}}

	require.NoError(t, store.RecordTurn(ctx, "s1", TurnRecord{
		Intent:       models.CapabilityAvailability,
		TenantID:     "t1",
		Language:     "es",
		OfferedSlots: offered,
	}))

	sc, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityAvailability, sc.PriorIntent)
	assert.Equal(t, "es", sc.Language)
	require.Len(t, sc.OfferedSlots, 2)

	applied := sc.ApplyMetadata(map[string]interface{}{"selected_slot_id": "slot-2"})
	require.NotNil(t, applied.SelectedSlot)
	assert.True(t, start.Add(time.Hour).Equal(applied.SelectedSlot.Start))

	require.NoError(t, store.RecordTurn(ctx, "s1", TurnRecord{Intent: models.CapabilityUnknown}))
	sc, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityAvailability, sc.PriorIntent, "unknown turns keep the prior intent")

	require.NoError(t, store.RecordTurn(ctx, "s1", TurnRecord{Intent: models.CapabilityBooking, Booked: true}))
	sc, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityBooking, sc.PriorIntent)
	assert.Empty(t, sc.OfferedSlots)
	assert.Equal(t, "t1", sc.TenantID)
}
