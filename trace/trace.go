// Package trace provides tracing instrumentation for batch runs.
package trace

import (
	"context"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "pagebatch"

// Attribute keys set on item spans.
const (
	AttrItemIndex = "item.index"
	AttrEngine    = "item.engine"
	AttrOperation = "item.operation"
	AttrURL       = "item.url"
)

// liveSpan is the span of an item still being processed. Phases of the item
// become its children.
type liveSpan struct {
	ctx  context.Context
	span trace.Span
}

// Tracer generates spans for batch items and the phases they go through.
type Tracer struct {
	logger logrus.FieldLogger

	trace.Tracer

	metadata []attribute.KeyValue
	verbose  bool

	liveSpansMu sync.RWMutex
	liveSpans   map[string]*liveSpan
}

// NewTracer creates a new Tracer from the given TracerProvider. With verbose
// set, span calls are logged.
func NewTracer(
	logger logrus.FieldLogger, tp trace.TracerProvider, metadata map[string]string, verbose bool,
	options ...trace.TracerOption,
) *Tracer {
	return &Tracer{
		logger:    logger,
		Tracer:    tp.Tracer(tracerName, options...),
		metadata:  buildMetadataAttributes(metadata),
		verbose:   verbose,
		liveSpans: make(map[string]*liveSpan),
	}
}

// NewNoopTracer returns a tracer that records nothing.
func NewNoopTracer() *Tracer {
	return NewTracer(logrus.New(), noop.NewTracerProvider(), nil, false)
}

// Start overrides the underlying OTEL tracer method to include the tracer metadata.
func (t *Tracer) Start(
	ctx context.Context, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(t.metadata...))
	return t.Tracer.Start(ctx, spanName, opts...)
}

// GetTraceID returns the trace id of spanCtx, or an empty string.
func GetTraceID(spanCtx trace.SpanContext) string {
	if spanCtx.HasTraceID() {
		traceID := spanCtx.TraceID()
		return traceID.String()
	}
	return ""
}

// TraceItem starts the live span of the item identified by itemID. A live
// span left behind by an earlier item with the same id is ended first. The
// span is ended with EndItem.
func (t *Tracer) TraceItem(
	ctx context.Context, itemID string, index int, attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	t.liveSpansMu.Lock()
	defer t.liveSpansMu.Unlock()

	ls := t.liveSpans[itemID]
	if ls != nil {
		ls.span.End()
	} else {
		ls = &liveSpan{}
	}

	attrs = append(attrs, attribute.Int(AttrItemIndex, index))
	spanName := "item " + strconv.Itoa(index)
	ls.ctx, ls.span = t.Start(ctx, spanName, trace.WithAttributes(attrs...))
	t.liveSpans[itemID] = ls

	t.logf("TraceItem: spanName: %q traceID: %q itemID: %q", spanName, GetTraceID(ls.span.SpanContext()), itemID)

	return ls.ctx, t.wrap(ls.span, spanName)
}

// TracePhase starts a span for a phase of the item identified by itemID. It
// is the caller's responsibility to end the span. Without a live span for the
// item, the span is created from ctx.
func (t *Tracer) TracePhase(
	ctx context.Context, itemID string, phase string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	t.liveSpansMu.RLock()
	ls := t.liveSpans[itemID]
	t.liveSpansMu.RUnlock()

	if ls == nil {
		t.logf("TracePhase: no live span spanName: %q itemID: %q", phase, itemID)
		sCtx, span := t.Start(ctx, phase, opts...)
		return sCtx, t.wrap(span, phase)
	}

	sCtx, span := t.Start(ls.ctx, phase, opts...)
	return sCtx, t.wrap(span, phase)
}

// AddItemEvent adds an event to the live span of itemID. Events for items
// without a live span are dropped.
func (t *Tracer) AddItemEvent(itemID string, eventName string, options ...trace.EventOption) {
	t.liveSpansMu.RLock()
	defer t.liveSpansMu.RUnlock()

	ls := t.liveSpans[itemID]
	if ls == nil {
		t.logf("AddItemEvent: no live span event: %q itemID: %q", eventName, itemID)
		return
	}
	ls.span.AddEvent(eventName, options...)
}

// EndItem ends the live span of itemID, recording err when not nil.
func (t *Tracer) EndItem(itemID string, err error) {
	t.liveSpansMu.Lock()
	ls := t.liveSpans[itemID]
	delete(t.liveSpans, itemID)
	t.liveSpansMu.Unlock()

	if ls == nil {
		return
	}
	if err != nil {
		ls.span.RecordError(err)
		ls.span.SetStatus(codes.Error, err.Error())
	} else {
		ls.span.SetStatus(codes.Ok, "")
	}
	ls.span.End()
}

func (t *Tracer) wrap(span trace.Span, spanName string) trace.Span {
	if !t.verbose {
		return span
	}
	return &SpanLogger{Span: span, logger: t.logger, spanName: spanName}
}

func (t *Tracer) logf(format string, args ...any) {
	if t.verbose {
		t.logger.Infof(format, args...)
	}
}

func buildMetadataAttributes(metadata map[string]string) []attribute.KeyValue {
	meta := make([]attribute.KeyValue, 0, len(metadata))
	for mk, mv := range metadata {
		meta = append(meta, attribute.String(mk, mv))
	}

	return meta
}

// SpanLogger is a Span that will log the method calls.
type SpanLogger struct {
	trace.Span
	logger   logrus.FieldLogger
	spanName string
}

// SetStatus will log some info before calling the underlying SetStatus.
func (i *SpanLogger) SetStatus(code codes.Code, description string) {
	traceID := GetTraceID(i.SpanContext())
	i.logger.Infof("SetStatus: spanName: %q traceID: %q code: %q description: %q", i.spanName, traceID, code, description)

	i.Span.SetStatus(code, description)
}

// End will log some info before calling the underlying End.
func (i *SpanLogger) End(options ...trace.SpanEndOption) {
	traceID := GetTraceID(i.SpanContext())
	i.logger.Infof("End: spanName: %q traceID: %q", i.spanName, traceID)

	i.Span.End(options...)
}

// RecordError will log some info before calling the underlying RecordError.
func (i *SpanLogger) RecordError(err error, options ...trace.EventOption) {
	traceID := GetTraceID(i.SpanContext())
	i.logger.Infof("RecordError: spanName: %q traceID: %q err: %q", i.spanName, traceID, err)

	i.Span.RecordError(err, options...)
}
