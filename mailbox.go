package webmail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"github.com/rbaliyan/webmail/store"
)

// ServiceHealth reports whether the service can serve requests.
type ServiceHealth interface {
	// IsConnected is true between a successful Connect and Close.
	IsConnected() bool
}

// InboundRouter stores inbound messages for the local account they are
// addressed to.
type InboundRouter interface {
	// Receive resolves msg.To to a local owner and stores the message as a
	// received email. An unknown recipient is not an error: the message is
	// discarded and the result reports Stored == false.
	Receive(ctx context.Context, msg InboundMessage) (*ReceiveResult, error)
	// ReceiveRaw parses an RFC 5322 message and passes it to Receive.
	ReceiveRaw(ctx context.Context, r io.Reader) (*ReceiveResult, error)
}

// Service manages the webmail system (server-side).
// It owns the store connection and hands out owner-scoped mailboxes.
type Service interface {
	ServiceHealth
	InboundRouter

	// Connect connects the store, starts the event bus and initializes plugins.
	Connect(ctx context.Context) error
	// Close undoes Connect. Closing twice is a no-op.
	Close(ctx context.Context) error
	// Client returns a mailbox scoped to ownerID.
	// The returned client shares the service's connections.
	Client(ownerID string) Mailbox
	// Events returns the lifecycle events of this service, nil before Connect.
	Events() *ServiceEvents
}

// ItemReader lists and fetches items of one kind.
// Listings contain active items only, newest first.
type ItemReader interface {
	Inbox(ctx context.Context) ([]*store.Email, error)
	Sent(ctx context.Context) ([]*store.Email, error)
	Drafts(ctx context.Context) ([]*store.Draft, error)
	GetEmail(ctx context.Context, kind store.Kind, id string) (*store.Email, error)
	GetDraft(ctx context.Context, id string) (*store.Draft, error)
}

// ItemMutator moves items through their lifecycle. The caller names the
// kind; an item owned by someone else is reported as ErrNotFound.
type ItemMutator interface {
	Trash(ctx context.Context, kind store.Kind, id string) error
	Restore(ctx context.Context, kind store.Kind, id string) error
	PermanentlyDelete(ctx context.Context, kind store.Kind, id string) error
	SetStarred(ctx context.Context, kind store.Kind, id string, starred bool) error
}

// DraftWriter saves drafts.
type DraftWriter interface {
	SaveDraft(ctx context.Context, in DraftInput) (*store.Draft, error)
}

// MessageSender sends messages through the configured transport.
type MessageSender interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

// Aggregator builds views that span every item kind.
type Aggregator interface {
	// TrashItems returns every trashed item, newest first.
	TrashItems(ctx context.Context) ([]store.Item, error)
	// StarredItems returns every starred item that is not in the trash, newest first.
	StarredItems(ctx context.Context) ([]store.Item, error)
}

// Mailbox is one owner's view of the system.
//
// Composed of:
//   - ItemReader: per-kind listings and point reads
//   - ItemMutator: trash, restore, permanent delete, starring
//   - DraftWriter: draft create/update
//   - MessageSender: send, including draft promotion
//   - Aggregator: cross-kind trash and starred views
type Mailbox interface {
	OwnerID() string
	ItemReader
	ItemMutator
	DraftWriter
	MessageSender
	Aggregator
}

// Service connection states.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service implements Service.
type service struct {
	store     store.Store
	transport Transport
	resolver  AccountResolver
	logger    *slog.Logger
	opts      *options
	state     int32 // stateDisconnected, stateConnecting, or stateConnected
	plugins   *pluginRegistry
	otel      *otelInstrumentation
	eventBus  *event.Bus
	events    *ServiceEvents
}

// NewService creates a new webmail service.
// The store, bus and plugins stay idle until Connect.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}

	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		store:     o.store,
		transport: o.transport,
		resolver:  o.resolver,
		logger:    o.logger,
		opts:      o,
		plugins:   plugins,
		otel:      otelInstr,
	}, nil
}

// Events returns the service's events. Nil until Connect succeeds.
func (s *service) Events() *ServiceEvents {
	return s.events
}

func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect connects the store, then the event bus, then plugins, undoing the
// earlier steps if a later one fails.
func (s *service) Connect(ctx context.Context) error {
	// Three states keep Client() from seeing a partial initialization.
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	if err := s.plugins.initAll(ctx); err != nil {
		s.eventBus.Close(ctx)
		s.store.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("webmail service connected")
	return nil
}

// busCounter keeps bus names unique when several services share a process.
var busCounter int64

// initEventBus builds a per-service bus (redis streams, custom transport or noop)
// and registers every lifecycle event on it.
func (s *service) initEventBus(ctx context.Context) error {
	busName := fmt.Sprintf("%s-%d", s.opts.serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("event bus using custom transport", "bus", busName)
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("event bus using redis streams", "bus", busName)
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("event bus using noop transport", "bus", busName)
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}

	return nil
}

// Close closes plugins, the event bus and the store, and joins their errors.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	// A noop bus holds no resources.
	if s.eventBus != nil && (s.opts.eventTransport != nil || s.opts.redisClient != nil) {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

// Client returns a mailbox scoped to ownerID.
func (s *service) Client(ownerID string) Mailbox {
	return &userMailbox{
		ownerID:      ownerID,
		service:      s,
		validOwnerID: isValidOwnerID(ownerID),
	}
}

// isValidOwnerID rejects empty IDs and IDs containing separators, spaces
// or control characters.
func isValidOwnerID(ownerID string) bool {
	if ownerID == "" {
		return false
	}
	for _, c := range ownerID {
		if c == '*' || c == ':' || c == '/' || c == '\\' ||
			c == ' ' || c < 32 || c == 127 {
			return false
		}
	}
	return true
}

// userMailbox is the Mailbox returned by Client.
type userMailbox struct {
	ownerID      string
	service      *service
	validOwnerID bool // set by Client()
}

// OwnerID returns the owner this mailbox is scoped to.
func (m *userMailbox) OwnerID() string {
	return m.ownerID
}

// checkAccess returns ErrNotConnected if the service isn't connected,
// or ErrInvalidOwnerID if the owner ID failed validation.
func (m *userMailbox) checkAccess() error {
	if !m.service.IsConnected() {
		return ErrNotConnected
	}
	if !m.validOwnerID {
		return ErrInvalidOwnerID
	}
	return nil
}
