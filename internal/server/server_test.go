package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-dispatcher/internal/common/logger"
	circuitbreaker "clinic-dispatcher/internal/dispatch/circuit-breaker"
	"clinic-dispatcher/internal/models"
	"clinic-dispatcher/internal/services/memory"
	"clinic-dispatcher/internal/services/session"
)

type routerFunc func(ctx context.Context, msg models.InboundMessage) *models.ExecutionResult

func (f routerFunc) Route(ctx context.Context, msg models.InboundMessage) *models.ExecutionResult {
	return f(ctx, msg)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func routed(lane models.Lane, intent models.Capability, text string, extra map[string]interface{}) routerFunc {
	return func(context.Context, models.InboundMessage) *models.ExecutionResult {
		res := &models.ExecutionResult{Success: true, ResponseText: text}
		res.SetMeta("lane", string(lane))
		res.SetMeta("intent", string(intent))
		res.SetMeta("language", "en")
		res.SetMeta("latency_ms", int64(42))
		for k, v := range extra {
			res.SetMeta(k, v)
		}
		return res
	}
}

type harness struct {
	srv      *httptest.Server
	sessions *session.Store
	memory   *memory.Store
}

func newHarness(t *testing.T, router Router, checks map[string]Pinger, circuits CircuitReporter) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sessions := session.New(rdb, time.Hour, logger.NewNoOpLogger())
	mem := memory.New(rdb, time.Hour, logger.NewNoOpLogger())
	s, err := New(Options{
		Router:   router,
		Sessions: sessions,
		Memory:   mem,
		Circuits: circuits,
		Checks:   checks,
		Logger:   logger.NewTestLogger(t),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, sessions: sessions, memory: mem}
}

func postMessage(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	resp, err := http.Post(url+"/v1/messages", "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func inbound(text string) map[string]interface{} {
	return map[string]interface{}{
		"message":     text,
		"sessionId":   "sess-1",
		"source":      "whatsapp",
		"messageType": "text",
		"metadata":    map[string]interface{}{"tenant_id": "clinic-1", "patient_name": "Dana"},
	}
}

func TestHandleMessage_RoutesAndRecordsTurn(t *testing.T) {
	slots := []models.Slot{
		{ID: "slot-1", DoctorID: "doc-1", Start: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)},
		{ID: "slot-2", DoctorID: "doc-1", Start: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
	}
	var got models.InboundMessage
	router := func(ctx context.Context, msg models.InboundMessage) *models.ExecutionResult {
		got = msg
		return routed(models.LaneDirect, models.CapabilityAvailability, "1. 09:00 - Dr. Cohen", map[string]interface{}{"slots": slots})(ctx, msg)
	}
	h := newHarness(t, routerFunc(router), nil, nil)

	resp := postMessage(t, h.srv.URL, inbound("any openings tomorrow?"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body messageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "1. 09:00 - Dr. Cohen", body.Response)
	assert.Equal(t, "direct", body.Lane)
	assert.Equal(t, "availability", body.Intent)
	assert.Equal(t, int64(42), body.LatencyMs)

	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, models.SourceWhatsApp, got.Source)
	assert.Equal(t, "clinic-1", got.MetadataString("tenant_id"))

	sc, err := h.sessions.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityAvailability, sc.PriorIntent)
	assert.Equal(t, "clinic-1", sc.TenantID)
	require.Len(t, sc.OfferedSlots, 2)
	assert.Equal(t, "slot-2", sc.OfferedSlots[1].ID)

	mc, err := h.memory.Recent(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana", mc.PatientName)
	assert.Equal(t, []string{"availability"}, mc.RecentTopics)
}

func TestHandleMessage_BookingClearsOffer(t *testing.T) {
	h := newHarness(t, routed(models.LaneDirect, models.CapabilityBooking, "Booked!", nil), nil, nil)
	require.NoError(t, h.sessions.Save(context.Background(), &models.SessionContext{
		SessionID:    "sess-1",
		OfferedSlots: []models.Slot{{ID: "slot-1"}},
	}))

	resp := postMessage(t, h.srv.URL, inbound("book the first one"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc, err := h.sessions.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, sc.OfferedSlots)
	assert.Equal(t, models.CapabilityBooking, sc.PriorIntent)
}

func TestHandleMessage_PriceRemembersService(t *testing.T) {
	h := newHarness(t, routed(models.LaneDirect, models.CapabilityPrice, "- Cleaning: 80 USD", map[string]interface{}{"query": "cleaning"}), nil, nil)

	resp := postMessage(t, h.srv.URL, inbound("how much is a cleaning"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mc, err := h.memory.Recent(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "cleaning", mc.LastService)
}

func TestHandleMessage_FallbackDoesNotTouchMemoryTopics(t *testing.T) {
	h := newHarness(t, routed(models.LaneFallback, models.CapabilityUnknown, "A team member will follow up.", nil), nil, nil)

	resp := postMessage(t, h.srv.URL, inbound("I have a strange question"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mc, err := h.memory.Recent(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, mc.RecentTopics)
}

func TestHandleMessage_InvalidInput(t *testing.T) {
	called := false
	router := routerFunc(func(context.Context, models.InboundMessage) *models.ExecutionResult {
		called = true
		return &models.ExecutionResult{}
	})
	h := newHarness(t, router, nil, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "malformed json", body: `{"message": `},
		{name: "missing session", body: map[string]interface{}{"message": "hi", "source": "web", "messageType": "text"}},
		{name: "unknown source", body: map[string]interface{}{"message": "hi", "sessionId": "s", "source": "fax", "messageType": "text"}},
		{name: "wrong message type", body: map[string]interface{}{"message": 7, "sessionId": "s", "source": "web", "messageType": "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postMessage(t, h.srv.URL, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "INVALID_INBOUND", body.Error.Code)
		})
	}
	assert.False(t, called)
}

func TestCircuits(t *testing.T) {
	breaker := circuitbreaker.New(&circuitbreaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Minute}, logger.NewNoOpLogger())
	breaker.RecordFailure("booking")
	h := newHarness(t, routed(models.LaneFast, "greeting", "hi", nil), nil, breaker)

	resp, err := http.Get(h.srv.URL + "/v1/circuits")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Circuits []circuitbreaker.Stats `json:"circuits"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Circuits, 1)
	assert.Equal(t, "booking", body.Circuits[0].Capability)
	assert.Equal(t, "OPEN", body.Circuits[0].State)
}

func TestReady(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		checks map[string]Pinger
		status int
	}{
		{name: "all healthy", checks: map[string]Pinger{"redis": ok, "postgres": ok}, status: http.StatusOK},
		{name: "postgres down", checks: map[string]Pinger{"redis": ok, "postgres": down}, status: http.StatusServiceUnavailable},
		{name: "no checks", checks: nil, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, routed(models.LaneFast, "greeting", "hi", nil), tt.checks, nil)

			resp, err := http.Get(h.srv.URL + "/ready")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.status != http.StatusOK {
				assert.Equal(t, "not_ready", body["status"])
				assert.Equal(t, "connection refused", body["checks"].(map[string]interface{})["postgres"])
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, routed(models.LaneFast, "greeting", "hi", nil), nil, nil)

	for _, path := range []string{"/health", "/metrics"} {
		resp, err := http.Get(h.srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
