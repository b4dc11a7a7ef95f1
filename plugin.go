package webmail

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rbaliyan/webmail/store"
)

// Plugin is a service extension. A plugin that also implements SendHook
// or ReceiveHook is called around Send or Receive, for example to
// rate-limit senders or drop spam.
//
// For observing trash, restore and delete, use the event system instead.
type Plugin interface {
	Name() string
	// Init runs during Connect. A failure aborts Connect.
	Init(ctx context.Context) error
	// Close runs during Close, in reverse registration order.
	Close(ctx context.Context) error
}

// SendHook wraps outbound sends.
type SendHook interface {
	Plugin
	// BeforeSend is called after validation and before the transport.
	// Return an error to abort; nothing is sent or stored.
	BeforeSend(ctx context.Context, ownerID string, msg *OutboundMessage) error
	// AfterSend is called once the sent email is recorded.
	// The message is already delivered and cannot be rolled back.
	AfterSend(ctx context.Context, ownerID string, email *store.Email) error
}

// ReceiveHook is called around storing an inbound message.
type ReceiveHook interface {
	Plugin
	// BeforeReceive is called after the recipient resolves to ownerID.
	// Return an error to reject the message; it is not stored.
	BeforeReceive(ctx context.Context, ownerID string, msg *InboundMessage) error
	// AfterReceive is called once the received email is stored.
	AfterReceive(ctx context.Context, ownerID string, email *store.Email) error
}

// pluginRegistry sorts plugins by the hooks they implement.
type pluginRegistry struct {
	all     []Plugin
	send    []SendHook
	receive []ReceiveHook
	logger  *slog.Logger
}

func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

func (r *pluginRegistry) register(p Plugin) {
	r.all = append(r.all, p)

	if h, ok := p.(SendHook); ok {
		r.send = append(r.send, h)
	}
	if h, ok := p.(ReceiveHook); ok {
		r.receive = append(r.receive, h)
	}
}

// initAll runs Init on every plugin. If one fails, the plugins before it
// are closed again.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.all {
		if err := p.Init(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if closeErr := r.all[j].Close(ctx); closeErr != nil {
					r.logger.Error("plugin close after failed init",
						"plugin", r.all[j].Name(), "error", closeErr)
				}
			}
			return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
		}
	}
	return nil
}

// closeAll closes plugins last-registered first and joins the errors.
func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(r.all) - 1; i >= 0; i-- {
		if err := r.all[i].Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: r.all[i].Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

// PluginError reports which plugin failed and in which hook.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return "plugin " + e.Plugin + " " + e.Op + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

func (r *pluginRegistry) beforeSend(ctx context.Context, ownerID string, msg *OutboundMessage) error {
	for _, h := range r.send {
		if err := h.BeforeSend(ctx, ownerID, msg); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeSend", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterSend(ctx context.Context, ownerID string, email *store.Email) error {
	for _, h := range r.send {
		if err := h.AfterSend(ctx, ownerID, email); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "AfterSend", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) beforeReceive(ctx context.Context, ownerID string, msg *InboundMessage) error {
	for _, h := range r.receive {
		if err := h.BeforeReceive(ctx, ownerID, msg); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeReceive", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterReceive(ctx context.Context, ownerID string, email *store.Email) error {
	for _, h := range r.receive {
		if err := h.AfterReceive(ctx, ownerID, email); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "AfterReceive", Err: err}
		}
	}
	return nil
}
