// Package otel provides higher level APIs around Open Telemetry instrumentation.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "pagebatch"

// Supported exporter protocols.
const (
	ProtoHTTP   = "http"
	ProtoStdout = "stdout"
)

// ErrUnsupportedProto indicates that the defined exporter protocol is not supported.
var ErrUnsupportedProto = errors.New("unsupported protocol")

// TraceProvider provides methods for tracers initialization and shutdown of the
// processing pipeline.
type TraceProvider interface {
	trace.TracerProvider
	Shutdown(ctx context.Context) error
}

type (
	traceProvShutdownFunc func(ctx context.Context) error
)

type traceProvider struct {
	trace.TracerProvider

	noop bool

	shutdown traceProvShutdownFunc
}

// Options configures the exporter of a trace provider.
type Options struct {
	Proto    string
	Endpoint string
	Insecure bool
	// Writer receives the spans of the stdout exporter.
	Writer io.Writer
}

// NewTraceProvider creates a new trace provider.
func NewTraceProvider(ctx context.Context, opts Options) (TraceProvider, error) {
	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, err
	}

	prov := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource()),
	)

	otel.SetTracerProvider(prov)

	return &traceProvider{
		TracerProvider: prov,
		shutdown:       prov.Shutdown,
	}, nil
}

func newResource() *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)
}

func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	// TODO: Support gRPC
	switch strings.ToLower(opts.Proto) {
	case ProtoHTTP:
		exporter, err := otlptrace.New(ctx, newHTTPClient(opts.Endpoint, opts.Insecure))
		if err != nil {
			return nil, fmt.Errorf("creating exporter: %w", err)
		}
		return exporter, nil
	case ProtoStdout:
		var sopts []stdouttrace.Option
		if opts.Writer != nil {
			sopts = append(sopts, stdouttrace.WithWriter(opts.Writer))
		}
		exporter, err := stdouttrace.New(sopts...)
		if err != nil {
			return nil, fmt.Errorf("creating exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("creating exporter client: %w %q", ErrUnsupportedProto, opts.Proto)
	}
}

func newHTTPClient(endpoint string, insecure bool) otlptrace.Client {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.NewClient(opts...)
}

// NewNoopTraceProvider creates a new noop trace provider.
func NewNoopTraceProvider() TraceProvider {
	return &traceProvider{
		TracerProvider: noop.NewTracerProvider(),
		noop:           true,
	}
}

// Shutdown shuts down TracerProvider releasing any held computational resources.
// After Shutdown is called, all methods are no-ops.
func (tp *traceProvider) Shutdown(ctx context.Context) error {
	if tp.noop {
		return nil
	}

	return tp.shutdown(ctx)
}
