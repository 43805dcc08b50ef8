// Package tracing configura OpenTelemetry y expone helpers para abrir spans
// en los flows.
package tracing

import (
	"context"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dropDatabas3/rugi-auth"

// Config de tracing. Sin Endpoint (o Enabled=false) no se registra provider.
type Config struct {
	Enabled     bool    `yaml:"enabled" envconfig:"ENABLED"`
	Endpoint    string  `yaml:"endpoint" envconfig:"ENDPOINT"` // ej: http://otel-collector:4318
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Setup registra el TracerProvider global. Devuelve shutdown, que hace flush
// de los spans pendientes.
func Setup(ctx context.Context, cfg Config, serviceName, version string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return noop, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// Start abre un span con el tracer del servicio.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End cierra el span registrando err. El kind de autherr queda como
// atributo para poder filtrar por resultado.
func End(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("auth.error_kind", string(autherr.KindOf(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(autherr.KindOf(err)))
	}
	span.End()
}
