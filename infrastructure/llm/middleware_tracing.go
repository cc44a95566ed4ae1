package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/judgebench/internal/ports"
)

const tracerName = "github.com/ahrav/judgebench/infrastructure/llm"

// tracedLLM wraps every chat and unload call in an OpenTelemetry span.
// Spans are no-ops unless the process installs a tracer provider.
type tracedLLM struct {
	next        CoreLLM
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware creates middleware that adds distributed tracing to requests.
func TracingMiddleware(serviceName string) Middleware {
	return TracingMiddlewareWithTracer(serviceName, otel.Tracer(tracerName))
}

// TracingMiddlewareWithTracer is TracingMiddleware with an explicit tracer.
func TracingMiddlewareWithTracer(serviceName string, tracer trace.Tracer) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{
			next:        next,
			serviceName: serviceName,
			tracer:      tracer,
		}
	}
}

// DoChat executes the request within a span annotated with the model,
// message count, and token usage.
func (t *tracedLLM) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	ctx, span := t.tracer.Start(ctx, "llm.chat",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("llm.provider", t.next.Provider()),
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.messages", len(req.Messages)),
			attribute.Bool("llm.structured_output", len(req.Format) > 0),
		),
	)
	defer span.End()

	resp, err := t.next.DoChat(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.TokensIn),
		attribute.Int("llm.tokens.output", resp.TokensOut),
	)
	return resp, nil
}

// Unload executes the unload within a span.
func (t *tracedLLM) Unload(ctx context.Context, model string) error {
	ctx, span := t.tracer.Start(ctx, "llm.unload",
		trace.WithAttributes(
			attribute.String("llm.provider", t.next.Provider()),
			attribute.String("llm.model", model),
		),
	)
	defer span.End()

	if err := t.next.Unload(ctx, model); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Provider returns the provider name from the wrapped implementation.
func (t *tracedLLM) Provider() string { return t.next.Provider() }
