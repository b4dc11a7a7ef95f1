package webmail

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/webmail"
)

// opInstruments groups the counters and histogram kept per operation family.
type opInstruments struct {
	latency metric.Float64Histogram
	count   metric.Int64Counter
	errors  metric.Int64Counter
}

func newOpInstruments(meter metric.Meter, op, noun string) (opInstruments, error) {
	var (
		ins opInstruments
		err error
	)
	ins.latency, err = meter.Float64Histogram(
		"webmail."+op+".duration",
		metric.WithDescription("Duration of "+op+" operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return ins, err
	}
	ins.count, err = meter.Int64Counter(
		"webmail."+op+".count",
		metric.WithDescription("Number of "+noun),
	)
	if err != nil {
		return ins, err
	}
	ins.errors, err = meter.Int64Counter(
		"webmail."+op+".errors",
		metric.WithDescription("Number of "+op+" errors"),
	)
	return ins, err
}

func (ins opInstruments) record(ctx context.Context, duration time.Duration, err error, attrs ...attribute.KeyValue) {
	set := metric.WithAttributes(attrs...)
	ins.latency.Record(ctx, duration.Seconds(), set)
	ins.count.Add(ctx, 1, set)
	if err != nil {
		ins.errors.Add(ctx, 1, set)
	}
}

// otelInstrumentation carries the tracer and instruments. With both
// switches off every method returns immediately.
type otelInstrumentation struct {
	tracingEnabled bool
	tracer         trace.Tracer

	metricsEnabled bool
	send           opInstruments
	receive        opInstruments
	list           opInstruments
	mutate         opInstruments
	discarded      metric.Int64Counter
}

// newOtelInstrumentation falls back to the global providers when none were set.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics registers one instrument set per operation family.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error
	if o.send, err = newOpInstruments(meter, "send", "send attempts"); err != nil {
		return err
	}
	if o.receive, err = newOpInstruments(meter, "receive", "inbound messages processed"); err != nil {
		return err
	}
	if o.list, err = newOpInstruments(meter, "list", "list operations"); err != nil {
		return err
	}
	if o.mutate, err = newOpInstruments(meter, "mutate", "item mutations"); err != nil {
		return err
	}

	o.discarded, err = meter.Int64Counter(
		"webmail.receive.discarded",
		metric.WithDescription("Number of inbound messages discarded for unknown recipients"),
	)
	return err
}

// startSpan is a no-op unless tracing is on.
// The returned function ends the span and records err on it.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// recordSend records send operation metrics.
func (o *otelInstrumentation) recordSend(ctx context.Context, duration time.Duration, recipientCount int, scheduled bool, err error) {
	if !o.metricsEnabled {
		return
	}
	o.send.record(ctx, duration, err,
		attribute.Int("recipient_count", recipientCount),
		attribute.Bool("scheduled", scheduled),
	)
}

// recordReceive records inbound routing metrics.
func (o *otelInstrumentation) recordReceive(ctx context.Context, duration time.Duration, stored bool, err error) {
	if !o.metricsEnabled {
		return
	}
	o.receive.record(ctx, duration, err, attribute.Bool("stored", stored))
	if err == nil && !stored {
		o.discarded.Add(ctx, 1)
	}
}

// recordList records list and aggregate view metrics.
func (o *otelInstrumentation) recordList(ctx context.Context, duration time.Duration, view string, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}
	o.list.record(ctx, duration, err,
		attribute.String("view", view),
		attribute.Int("result_count", resultCount),
	)
}

// recordMutate records trash, restore, delete, star and draft save metrics.
func (o *otelInstrumentation) recordMutate(ctx context.Context, duration time.Duration, operation, kind string, err error) {
	if !o.metricsEnabled {
		return
	}
	o.mutate.record(ctx, duration, err,
		attribute.String("operation", operation),
		attribute.String("kind", kind),
	)
}
