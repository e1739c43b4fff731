package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionContext_ApplyMetadata(t *testing.T) {
	offered := []Slot{
		{ID: "slot-1", DoctorID: "doc-1"},
		{ID: "slot-2", DoctorID: "doc-2"},
	}
	base := SessionContext{SessionID: "s1", TenantID: "clinic-a", OfferedSlots: offered}

	got := base.ApplyMetadata(map[string]interface{}{
		"tenant_id":        "clinic-b",
		"selected_slot_id": "slot-2",
		"timezone":         "Europe/Madrid",
	})

	assert.Equal(t, "clinic-b", got.TenantID)
	require.NotNil(t, got.SelectedSlot)
	assert.Equal(t, "doc-2", got.SelectedSlot.DoctorID)
	assert.Equal(t, "Europe/Madrid", got.Timezone)
	assert.Equal(t, "clinic-a", base.TenantID, "original must not change")
	assert.Nil(t, base.SelectedSlot)
}

func TestSessionContext_ApplyMetadata_UnknownSlot(t *testing.T) {
	base := SessionContext{SessionID: "s1", OfferedSlots: []Slot{{ID: "slot-1"}}}

	got := base.ApplyMetadata(map[string]interface{}{"selected_slot_id": "slot-9"})
	assert.Nil(t, got.SelectedSlot)
}

func TestSessionContext_Location(t *testing.T) {
	var nilSession *SessionContext
	assert.Equal(t, time.UTC, nilSession.Location(time.UTC))

	bad := &SessionContext{Timezone: "Nowhere/Land"}
	assert.Equal(t, time.UTC, bad.Location(time.UTC))

	good := &SessionContext{Timezone: "Asia/Jerusalem"}
	assert.Equal(t, "Asia/Jerusalem", good.Location(time.UTC).String())
}

func TestLoadLocation_Memoized(t *testing.T) {
	first, err := LoadLocation("America/New_York")
	require.NoError(t, err)
	second, err := LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Same(t, first, second)

	session := &SessionContext{Timezone: "America/New_York"}
	assert.Same(t, first, session.Location(time.UTC))

	_, err = LoadLocation("Nowhere/Land")
	assert.Error(t, err)
	_, cached := locations.Load("Nowhere/Land")
	assert.False(t, cached)
}

func TestInboundMessage_MetadataBool(t *testing.T) {
	msg := InboundMessage{Metadata: map[string]interface{}{"call_active": true, "mode_transition": "true", "x": 1}}
	assert.True(t, msg.MetadataBool("call_active"))
	assert.True(t, msg.MetadataBool("mode_transition"))
	assert.False(t, msg.MetadataBool("x"))
	assert.False(t, msg.MetadataBool("missing"))
}
