package webmail

import (
	"log/slog"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/webmail/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName names the event bus and telemetry when WithServiceName is not set.
const DefaultServiceName = "webmail"

// options holds service configuration.
type options struct {
	store     store.Store
	transport Transport
	resolver  AccountResolver
	logger    *slog.Logger

	plugins []Plugin

	// telemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// events
	eventErrorsFatal      bool
	eventTransport        transport.Transport
	redisClient           redis.UniversalClient
	onEventPublishFailure EventPublishFailureFunc
}

// EventPublishFailureFunc receives non-fatal event publish failures.
// eventName is the short name, such as "ItemTrashed".
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure runs the failure handler, recovering a panic in it.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("event failure handler panicked",
				"event", eventName, "publish_error", err, "panic", r)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions applies opts over the defaults.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:      slog.Default(),
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures a webmail service.
type Option func(*options)

// WithStore sets the item store. NewService fails without one.
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithTransport sets the outbound delivery collaborator used by Send.
func WithTransport(t Transport) Option {
	return func(o *options) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithAccountResolver sets the resolver used by Receive to map an inbound
// recipient address to a local owner.
func WithAccountResolver(r AccountResolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithLogger sets the service logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPlugin adds a plugin. Hooks run in registration order.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins adds several plugins.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// WithTracing turns span creation on or off. Off by default.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics turns metric recording on or off. Off by default.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel sets tracing and metrics together.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name used for the event bus and telemetry.
// Default is "webmail".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithEventErrorsFatal configures whether event publishing failures should
// be returned to the caller. By default, failures are reported to the
// failure handler and the operation succeeds.
//
// The draft cleanup after a send never fails the send, regardless of this setting.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the transport of the service's event bus.
// It takes precedence over WithRedisClient.
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient publishes events to Redis Streams.
//
// Any redis.UniversalClient works, including cluster clients.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler replaces the default handler, which logs
// the failure at error level.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}
