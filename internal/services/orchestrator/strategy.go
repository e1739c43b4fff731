// Package orchestrator holds the lane of last resort: a general-purpose
// conversational backend reached over HTTP, or an in-process responder.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-dispatcher/internal/common/config"
	apperrors "clinic-dispatcher/internal/common/errors"
	httpclient "clinic-dispatcher/internal/common/http"
)

const (
	ModeRemote    = "remote"
	ModeInProcess = "inprocess"

	orchestratePath = "/v1/orchestrate"
)

var ErrEmptyResponse = errors.New("orchestrator returned an empty response")

type Request struct {
	SessionID string                 `json:"sessionId"`
	Text      string                 `json:"text"`
	Language  string                 `json:"language,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Flags     map[string]interface{} `json:"flags,omitempty"`
	RequestID string                 `json:"-"`
}

type Response struct {
	Response    string `json:"response"`
	LatencyMs   int64  `json:"latency_ms"`
	RoutingPath string `json:"routing_path"`
}

// Strategy answers anything the direct lanes could not.
type Strategy interface {
	Respond(ctx context.Context, req Request) (*Response, error)
}

// NewStrategy picks the implementation named by cfg.Mode. inproc is used for
// the in-process mode and may be nil otherwise.
func NewStrategy(cfg config.FallbackConfig, inproc ResponderFunc) (Strategy, error) {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	switch strings.ToLower(cfg.Mode) {
	case "", ModeRemote:
		if cfg.BaseURL == "" {
			return nil, errors.New("fallback.base_url is required in remote mode")
		}
		return NewRemoteStrategy(cfg.BaseURL, cfg.APIKey, timeout), nil
	case ModeInProcess:
		if inproc == nil {
			return nil, errors.New("in-process fallback requires a responder")
		}
		return NewInProcessStrategy(inproc), nil
	default:
		return nil, fmt.Errorf("unknown fallback mode %q", cfg.Mode)
	}
}

type RemoteStrategy struct {
	client  *httpclient.Client
	url     string
	apiKey  string
	timeout time.Duration
}

func NewRemoteStrategy(baseURL, apiKey string, timeout time.Duration) *RemoteStrategy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteStrategy{
		client:  httpclient.NewClient(timeout),
		url:     strings.TrimRight(baseURL, "/") + orchestratePath,
		apiKey:  apiKey,
		timeout: timeout,
	}
}

func (s *RemoteStrategy) Respond(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	headers := map[string]string{}
	if req.RequestID != "" {
		headers["X-Request-ID"] = req.RequestID
	}
	if s.apiKey != "" {
		headers["Authorization"] = "Bearer " + s.apiKey
	}

	start := time.Now()
	var resp Response
	if err := s.client.PostJSON(ctx, s.url, headers, req, &resp); err != nil {
		return nil, apperrors.NewOrchestratorUnavailableError(err)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, apperrors.NewOrchestratorUnavailableError(ErrEmptyResponse)
	}
	if resp.LatencyMs == 0 {
		resp.LatencyMs = time.Since(start).Milliseconds()
	}
	if resp.RoutingPath == "" {
		resp.RoutingPath = ModeRemote
	}
	return &resp, nil
}

type ResponderFunc func(ctx context.Context, req Request) (*Response, error)

type InProcessStrategy struct {
	fn ResponderFunc
}

func NewInProcessStrategy(fn ResponderFunc) *InProcessStrategy {
	return &InProcessStrategy{fn: fn}
}

func (s *InProcessStrategy) Respond(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewOrchestratorUnavailableError(err)
	}
	start := time.Now()
	resp, err := s.fn(ctx, req)
	if err != nil {
		return nil, apperrors.NewOrchestratorUnavailableError(err)
	}
	if resp.LatencyMs == 0 {
		resp.LatencyMs = time.Since(start).Milliseconds()
	}
	if resp.RoutingPath == "" {
		resp.RoutingPath = ModeInProcess
	}
	return resp, nil
}

var handoffMessages = map[string]string{
	"en": "Thanks for your message. A member of our team will follow up with you shortly.",
	"es": "Gracias por su mensaje. Un miembro de nuestro equipo le responderá en breve.",
	"ru": "Спасибо за сообщение. Наш администратор скоро с вами свяжется.",
	"he": "תודה על ההודעה. נציג מהצוות שלנו יחזור אליך בהקדם.",
}

// HandoffResponder acknowledges the message and defers to a human.
func HandoffResponder(defaultLanguage string) ResponderFunc {
	return func(_ context.Context, req Request) (*Response, error) {
		msg, ok := handoffMessages[req.Language]
		if !ok {
			msg, ok = handoffMessages[defaultLanguage]
		}
		if !ok {
			msg = handoffMessages["en"]
		}
		return &Response{Response: msg, RoutingPath: "handoff"}, nil
	}
}
