package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-dispatcher/internal/common/config"
	apperrors "clinic-dispatcher/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStrategy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.FallbackConfig
		inproc  ResponderFunc
		want    interface{}
		wantErr bool
	}{
		{"remote", config.FallbackConfig{Mode: "remote", BaseURL: "http://orch"}, nil, &RemoteStrategy{}, false},
		{"default is remote", config.FallbackConfig{BaseURL: "http://orch"}, nil, &RemoteStrategy{}, false},
		{"remote without url", config.FallbackConfig{Mode: "remote"}, nil, nil, true},
		{"inprocess", config.FallbackConfig{Mode: "inprocess"}, HandoffResponder("en"), &InProcessStrategy{}, false},
		{"inprocess without responder", config.FallbackConfig{Mode: "inprocess"}, nil, nil, true},
		{"unknown", config.FallbackConfig{Mode: "carrier-pigeon"}, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStrategy(tt.cfg, tt.inproc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestRemoteStrategy_Respond(t *testing.T) {
	var got Request
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orchestrate", r.URL.Path)
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Response{Response: "Our team can help with that.", LatencyMs: 420, RoutingPath: "llm"})
	}))
	defer srv.Close()

	s := NewRemoteStrategy(srv.URL+"/", "secret", time.Second)
	resp, err := s.Respond(context.Background(), Request{
		SessionID: "s1",
		Text:      "can you help me with my insurance claim",
		RequestID: "req-1",
		Flags:     map[string]interface{}{"reason": "low_confidence"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Our team can help with that.", resp.Response)
	assert.Equal(t, int64(420), resp.LatencyMs)
	assert.Equal(t, "llm", resp.RoutingPath)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "low_confidence", got.Flags["reason"])
	assert.Equal(t, "req-1", headers.Get("X-Request-ID"))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
}

func TestRemoteStrategy_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, time.Second},
		{"empty reply", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"response": "  "}`))
		}, time.Second},
		{"too slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}, 50 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewRemoteStrategy(srv.URL, "", tt.timeout).Respond(context.Background(), Request{Text: "hi"})

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr))
			assert.Equal(t, apperrors.ErrCodeOrchestratorUnavailable, stdErr.Code)
		})
	}
}

func TestInProcessStrategy(t *testing.T) {
	s := NewInProcessStrategy(HandoffResponder("es"))

	resp, err := s.Respond(context.Background(), Request{Language: "ru"})
	require.NoError(t, err)
	assert.Equal(t, handoffMessages["ru"], resp.Response)
	assert.Equal(t, "handoff", resp.RoutingPath)

	resp, err = s.Respond(context.Background(), Request{Language: "fr"})
	require.NoError(t, err)
	assert.Equal(t, handoffMessages["es"], resp.Response)

	failing := NewInProcessStrategy(func(context.Context, Request) (*Response, error) {
		return nil, errors.New("model offline")
	})
	_, err = failing.Respond(context.Background(), Request{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Respond(ctx, Request{})
	assert.Error(t, err)
}
