package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the otel meter and tracer providers for the process.
// A zero value is safe to use; every recorder becomes a no-op.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	routeCounter   otelmetric.Int64Counter
	routeDuration  otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))))
	otel.SetTracerProvider(tp)

	o := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("failed to create prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	o.meterProvider = provider
	o.routeCounter, _ = meter.Int64Counter(
		"dispatcher.routes",
		otelmetric.WithDescription("Messages routed per lane"),
	)
	o.routeDuration, _ = meter.Float64Histogram(
		"dispatcher.route.duration",
		otelmetric.WithDescription("Routing latency"),
		otelmetric.WithUnit("ms"),
	)
	return o
}

// StartSpan starts a span on the process tracer, or on the global one when
// the receiver was never initialised.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("clinic-dispatcher")
	if o != nil && o.tracer != nil {
		tracer = o.tracer
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordRoute(ctx context.Context, lane, intent string) {
	if o == nil || o.routeCounter == nil {
		return
	}
	o.routeCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("lane", lane),
		attribute.String("intent", intent),
	))
}

func (o *Observability) RecordRouteDuration(ctx context.Context, lane string, d time.Duration) {
	if o == nil || o.routeDuration == nil {
		return
	}
	o.routeDuration.Record(ctx, float64(d.Microseconds())/1000.0, otelmetric.WithAttributes(
		attribute.String("lane", lane),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
