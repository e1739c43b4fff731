// Package router decides which lane answers a message: the fast keyword
// templates, the direct tool executor, or the orchestrator fallback.
package router

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/common/metrics"
	"clinic-dispatcher/internal/common/observability"
	intentclassifier "clinic-dispatcher/internal/dispatch/intent-classifier"
	"clinic-dispatcher/internal/models"
	"clinic-dispatcher/internal/services/orchestrator"
)

// Fallback reasons, also used as the dispatcher_fallback_total label.
const (
	ReasonNonText       = "non_text"
	ReasonRealtime      = "realtime_channel"
	ReasonLowConfidence = "low_confidence"
	ReasonDirectOff     = "direct_lane_disabled"
	ReasonNoTenant      = "missing_tenant"
	reasonDirectPrefix  = "direct_"
)

type SessionReader interface {
	Load(ctx context.Context, sessionID string) (*models.SessionContext, error)
}

type Classifier interface {
	Classify(message string, session *models.SessionContext, budget time.Duration) models.IntentMatch
}

type Executor interface {
	Execute(ctx context.Context, match models.IntentMatch, session *models.SessionContext) *models.ExecutionResult
}

type Options struct {
	Config     *Config
	Sessions   SessionReader
	Classifier Classifier
	Executor   Executor
	Fallback   orchestrator.Strategy
	FastPath   *FastPath
	Telemetry  *observability.Observability
	Logger     logger.Logger
}

type Router struct {
	config     *Config
	sessions   SessionReader
	classifier Classifier
	executor   Executor
	fallback   orchestrator.Strategy
	fastPath   *FastPath
	telemetry  *observability.Observability
	logger     logger.Logger
}

func New(opts Options) *Router {
	cfg := opts.Config
	if cfg == nil {
		cfg = &Config{}
	}
	applyDefaults(cfg)

	fp := opts.FastPath
	if fp == nil && cfg.FastPathEnabled {
		fp = NewFastPath(cfg.DefaultLanguage)
	}

	return &Router{
		config:     cfg,
		sessions:   opts.Sessions,
		classifier: opts.Classifier,
		executor:   opts.Executor,
		fallback:   opts.Fallback,
		fastPath:   fp,
		telemetry:  opts.Telemetry,
		logger:     logger.ForComponent(opts.Logger, "router"),
	}
}

// turn carries per-message state through one Route call.
type turn struct {
	msg       models.InboundMessage
	session   *models.SessionContext
	requestID string
	language  string
	start     time.Time
	log       logger.Logger
}

// Route never fails: every path ends in a reply, at worst a static apology.
func (r *Router) Route(ctx context.Context, msg models.InboundMessage) *models.ExecutionResult {
	t := &turn{
		msg:       msg,
		requestID: uuid.NewString(),
		start:     time.Now(),
	}
	ctx, span := r.telemetry.StartSpan(ctx, "dispatcher.route",
		attribute.String("session_id", msg.SessionID),
		attribute.String("request_id", t.requestID),
		attribute.String("source", string(msg.Source)),
	)
	defer span.End()

	t.log = r.logger.With(map[string]interface{}{
		"requestId": t.requestID,
		"sessionId": msg.SessionID,
	})
	t.session = r.loadSession(ctx, t)
	t.language = intentclassifier.DetectLanguage(msg.Message, r.sessionLanguage(t.session))

	if reason := bypassReason(msg); reason != "" {
		if msg.MetadataBool("mode_transition") {
			return r.transition(ctx, t, reason)
		}
		return r.escalate(ctx, t, unclassified(t.language), reason, nil)
	}

	if r.config.FastPathEnabled && r.fastPath != nil {
		if m := r.fastPath.Match(msg.Message); m.Intent != "" && m.Confidence >= r.config.FastPathThreshold {
			res := &models.ExecutionResult{Success: true, ResponseText: r.fastPath.Template(m)}
			return r.finish(ctx, t, res, models.LaneFast, string(m.Intent), m.Confidence, m.Language, "")
		}
	}

	match := r.classify(t)
	reason := r.directReason(match, t.session)
	if reason != "" {
		return r.escalate(ctx, t, match, reason, nil)
	}

	res := r.executor.Execute(ctx, match, t.session)
	if res != nil && res.Success {
		return r.finish(ctx, t, res, models.LaneDirect, string(match.Capability), match.Confidence, match.Language, "")
	}
	return r.escalate(ctx, t, match, directFailureReason(res), res)
}

func (r *Router) loadSession(ctx context.Context, t *turn) *models.SessionContext {
	base := &models.SessionContext{SessionID: t.msg.SessionID}
	if r.sessions != nil && t.msg.SessionID != "" {
		sctx, cancel := context.WithTimeout(ctx, r.config.SessionBudget)
		sc, err := r.sessions.Load(sctx, t.msg.SessionID)
		cancel()
		switch {
		case err != nil:
			t.log.Debug("session unavailable, starting empty", map[string]interface{}{"error": err.Error()})
		case sc != nil:
			base = sc
			base.SessionID = t.msg.SessionID
		}
	}

	session := base.ApplyMetadata(t.msg.Metadata)
	if session.TenantID == "" {
		session.TenantID = r.config.DefaultTenantID
	}
	return session
}

func (r *Router) sessionLanguage(s *models.SessionContext) string {
	if s != nil && s.Language != "" {
		return s.Language
	}
	return r.config.DefaultLanguage
}

func (r *Router) classify(t *turn) models.IntentMatch {
	if r.classifier == nil {
		return unclassified(t.language)
	}
	match := r.classifier.Classify(t.msg.Message, t.session, r.config.ClassifierBudget)
	if match.BudgetExceeded {
		t.log.Warn("classifier exceeded its budget", map[string]interface{}{
			"elapsedUs": match.Elapsed.Microseconds(),
			"budgetUs":  r.config.ClassifierBudget.Microseconds(),
		})
	}
	if match.Language == "" {
		match.Language = t.language
	}
	return match
}

// directReason returns "" when the direct lane may take the message.
func (r *Router) directReason(match models.IntentMatch, session *models.SessionContext) string {
	switch {
	case match.Capability == models.CapabilityUnknown || match.Confidence < r.config.DirectLaneThreshold:
		return ReasonLowConfidence
	case !r.config.DirectLaneEnabled || r.executor == nil:
		return ReasonDirectOff
	case session.TenantID == "":
		return ReasonNoTenant
	}
	return ""
}

// transition serves a message arriving while the channel changes mode. The
// orchestrator and the direct lane run side by side; the orchestrator wins
// when it answers.
func (r *Router) transition(ctx context.Context, t *turn, reason string) *models.ExecutionResult {
	var (
		match  = unclassified(t.language)
		direct *models.ExecutionResult
		resp   *orchestrator.Response
		err    error
	)

	var g errgroup.Group
	g.Go(func() error {
		m := r.classify(t)
		match = m
		if r.directReason(m, t.session) == "" {
			direct = r.executor.Execute(ctx, m, t.session)
		}
		return nil
	})
	g.Go(func() error {
		resp, err = r.respond(ctx, t, reason, nil)
		return nil
	})
	_ = g.Wait()

	if err == nil {
		return r.finish(ctx, t, orchestrated(resp), models.LaneFallback, string(match.Capability), match.Confidence, match.Language, reason)
	}
	t.log.Warn("orchestrator failed during mode transition", map[string]interface{}{"error": err.Error()})
	if direct != nil && direct.Success {
		return r.finish(ctx, t, direct, models.LaneDirect, string(match.Capability), match.Confidence, match.Language, "")
	}
	return r.finish(ctx, t, r.apology(t, direct), models.LaneFallback, string(match.Capability), match.Confidence, match.Language, reason)
}

// escalate hands the message to the orchestrator. direct is the failed
// direct-lane result, if any.
func (r *Router) escalate(ctx context.Context, t *turn, match models.IntentMatch, reason string, direct *models.ExecutionResult) *models.ExecutionResult {
	resp, err := r.respond(ctx, t, reason, direct)
	if err != nil {
		t.log.Warn("orchestrator unavailable, replying with apology", map[string]interface{}{
			"error":  err.Error(),
			"reason": reason,
		})
		return r.finish(ctx, t, r.apology(t, direct), models.LaneFallback, string(match.Capability), match.Confidence, match.Language, reason)
	}
	return r.finish(ctx, t, orchestrated(resp), models.LaneFallback, string(match.Capability), match.Confidence, match.Language, reason)
}

func (r *Router) respond(ctx context.Context, t *turn, reason string, direct *models.ExecutionResult) (*orchestrator.Response, error) {
	metrics.FallbackTotal.WithLabelValues(reason).Inc()
	if r.fallback == nil {
		return nil, errNoFallback
	}

	flags := map[string]interface{}{"reason": reason}
	if direct != nil {
		if direct.Error != "" {
			flags["direct_error"] = direct.Error
		}
		if direct.ResponseText != "" {
			flags["direct_prompt"] = direct.ResponseText
		}
	}

	fctx, cancel := context.WithTimeout(ctx, r.config.FallbackTimeout)
	defer cancel()
	resp, err := r.fallback.Respond(fctx, orchestrator.Request{
		SessionID: t.msg.SessionID,
		Text:      t.msg.Message,
		Language:  t.language,
		Metadata:  t.msg.Metadata,
		Flags:     flags,
		RequestID: t.requestID,
	})
	if err == nil && resp == nil {
		err = orchestrator.ErrEmptyResponse
	}
	return resp, err
}

// apology is the reply of last resort. A direct-lane prompt asking for a
// missing argument beats a generic apology.
func (r *Router) apology(t *turn, direct *models.ExecutionResult) *models.ExecutionResult {
	if direct != nil && !direct.FallbackTriggered && direct.ResponseText != "" {
		res := &models.ExecutionResult{Success: true, ResponseText: direct.ResponseText, FallbackTriggered: true}
		res.SetMeta("direct_prompt", true)
		return res
	}
	res := &models.ExecutionResult{Success: true, ResponseText: apologyFor(t.language), FallbackTriggered: true}
	res.SetMeta("apology", true)
	return res
}

func (r *Router) finish(ctx context.Context, t *turn, res *models.ExecutionResult, lane models.Lane, intent string, confidence float64, language, reason string) *models.ExecutionResult {
	latency := time.Since(t.start)
	if intent == "" {
		intent = string(models.CapabilityUnknown)
	}
	if language == "" {
		language = t.language
	}

	res.Elapsed = latency
	res.SetMeta("lane", string(lane))
	res.SetMeta("intent", intent)
	res.SetMeta("confidence", confidence)
	res.SetMeta("language", language)
	res.SetMeta("latency_ms", latency.Milliseconds())
	res.SetMeta("request_id", t.requestID)
	if reason != "" {
		res.SetMeta("fallback_reason", reason)
	}

	metrics.RouteTotal.WithLabelValues(string(lane), intent).Inc()
	metrics.RouteDuration.WithLabelValues(string(lane)).Observe(latency.Seconds())
	r.telemetry.RecordRoute(ctx, string(lane), intent)
	r.telemetry.RecordRouteDuration(ctx, string(lane), latency)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("lane", string(lane)),
		attribute.String("intent", intent),
	)

	fields := map[string]interface{}{
		"lane":      string(lane),
		"intent":    intent,
		"latencyMs": latency.Milliseconds(),
	}
	if reason != "" {
		fields["fallbackReason"] = reason
	}
	if latency > r.config.SLA {
		fields["slaMs"] = r.config.SLA.Milliseconds()
		t.log.Warn("turn exceeded SLA", fields)
		metrics.SLABreaches.WithLabelValues(string(lane)).Inc()
	} else {
		t.log.Info("message routed", fields)
	}
	return res
}

func bypassReason(msg models.InboundMessage) string {
	switch {
	case msg.Source == models.SourceVoice || msg.MetadataBool("call_active"):
		return ReasonRealtime
	case msg.MessageType != "" && msg.MessageType != models.MessageTypeText:
		return ReasonNonText
	}
	return ""
}

func directFailureReason(res *models.ExecutionResult) string {
	if res == nil {
		return reasonDirectPrefix + "failure"
	}
	if outcome, ok := res.Metadata["outcome"].(string); ok && outcome != "" {
		return reasonDirectPrefix + outcome
	}
	return reasonDirectPrefix + "failure"
}

func unclassified(lang string) models.IntentMatch {
	return models.IntentMatch{Capability: models.CapabilityUnknown, Language: lang}
}

func orchestrated(resp *orchestrator.Response) *models.ExecutionResult {
	res := &models.ExecutionResult{Success: true, ResponseText: resp.Response, FallbackTriggered: true}
	if resp.RoutingPath != "" {
		res.SetMeta("routing_path", resp.RoutingPath)
	}
	res.SetMeta("orchestrator_latency_ms", resp.LatencyMs)
	return res
}
