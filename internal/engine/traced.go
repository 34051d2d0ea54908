package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/linuxmatters/mediactl/internal/engine"

type traced struct {
	next   Engine
	tracer trace.Tracer
}

// Traced wraps every boundary call of next in an OpenTelemetry span.
func Traced(next Engine) Engine {
	return &traced{next: next, tracer: otel.Tracer(tracerName)}
}

func (t *traced) start(ctx context.Context, op string, id SessionID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("engine.op", op))
	if id != "" {
		attrs = append(attrs, attribute.String("mediactl.session_id", string(id)))
	}
	return t.tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindClient))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("engine.error_kind", KindOf(err).String()))
	}
	span.End()
}

func (t *traced) CreateSession(ctx context.Context, source SourceRef) (SessionID, error) {
	ctx, span := t.start(ctx, OpCreateSession, "",
		attribute.String("mediactl.source_id", source.ID),
		attribute.String("mediactl.source_kind", string(source.Kind)))
	id, err := t.next.CreateSession(ctx, source)
	if err == nil {
		span.SetAttributes(attribute.String("mediactl.session_id", string(id)))
	}
	finish(span, err)
	return id, err
}

func (t *traced) Attach(ctx context.Context, id SessionID, target TargetRef) error {
	ctx, span := t.start(ctx, OpAttach, id, attribute.String("mediactl.target_id", target.ID))
	err := t.next.Attach(ctx, id, target)
	finish(span, err)
	return err
}

func (t *traced) ApplyGains(ctx context.Context, id SessionID, gains GainVector) error {
	ctx, span := t.start(ctx, OpApplyGains, id, attribute.Float64Slice("mediactl.gains", gains.Slice()))
	err := t.next.ApplyGains(ctx, id, gains)
	finish(span, err)
	return err
}

func (t *traced) ApplyAggressiveness(ctx context.Context, id SessionID, level float64) error {
	ctx, span := t.start(ctx, OpApplyAggressiveness, id, attribute.Float64("mediactl.aggressiveness", level))
	err := t.next.ApplyAggressiveness(ctx, id, level)
	finish(span, err)
	return err
}

func (t *traced) ApplyZoom(ctx context.Context, id SessionID, zoom float64) error {
	ctx, span := t.start(ctx, OpApplyZoom, id, attribute.Float64("mediactl.zoom", zoom))
	err := t.next.ApplyZoom(ctx, id, zoom)
	finish(span, err)
	return err
}

func (t *traced) ApplyExposure(ctx context.Context, id SessionID, exposure float64) error {
	ctx, span := t.start(ctx, OpApplyExposure, id, attribute.Float64("mediactl.exposure", exposure))
	err := t.next.ApplyExposure(ctx, id, exposure)
	finish(span, err)
	return err
}

func (t *traced) PrepareExport(ctx context.Context, id SessionID, cfg ExportConfig) (ExportHandle, error) {
	ctx, span := t.start(ctx, OpPrepareExport, id,
		attribute.String("mediactl.preset", string(cfg.Preset)),
		attribute.String("mediactl.codec", cfg.Encoding.Codec))
	h, err := t.next.PrepareExport(ctx, id, cfg)
	finish(span, err)
	return h, err
}

func (t *traced) DestroySession(ctx context.Context, id SessionID) error {
	ctx, span := t.start(ctx, OpDestroySession, id)
	err := t.next.DestroySession(ctx, id)
	finish(span, err)
	return err
}

func (t *traced) Subscribe(ctx context.Context, id SessionID) (<-chan Event, error) {
	// The stream outlives the span; only the subscribe handshake is traced.
	_, span := t.start(ctx, OpSubscribe, id)
	ch, err := t.next.Subscribe(ctx, id)
	finish(span, err)
	return ch, err
}
