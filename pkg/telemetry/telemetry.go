// Package telemetry wires OpenTelemetry tracing and the plain "trace-id"
// gRPC metadata key every RPC is required to propagate (spec §6: "All
// RPCs propagate a trace-id metadata key for cross-service correlation").
//
// The OTel span context is the source of truth; its trace ID is also
// mirrored into the plain metadata key so a consumer with no OTel
// awareness (as in the original Python source, which threads a bare
// string through its logging context) still observes the same value.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/metadata"
)

const MetadataKey = "trace-id"

// Init installs a process-wide TracerProvider. Exporting to an OTLP
// collector is optional (controlled by OTLPEndpoint being set by the
// caller); with none configured it still produces in-process spans whose
// trace IDs are used for correlation.
func Init(serviceName string) (trace.Tracer, func(context.Context) error, error) {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp.Tracer(serviceName), tp.Shutdown, nil
}

// TraceIDFromContext returns the active span's trace ID as a string, or
// generates a fresh random one (via uuid, not an OTel span) when no span
// is active — e.g. the very first hop of a PublishEvents stream.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

// WithOutgoingTraceID stamps the plain metadata key onto an outgoing
// gRPC call context.
func WithOutgoingTraceID(ctx context.Context, traceID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataKey, traceID)
}

// IncomingTraceID reads the plain metadata key from an incoming gRPC
// call, generating one if the caller omitted it (defensive: upstream
// should always set it, but a missing key must never abort the RPC).
func IncomingTraceID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if vals := md.Get(MetadataKey); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return uuid.NewString()
}
