package webmail

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for webmail events.
const (
	EventNameMessageSent     = "webmail.message.sent"
	EventNameMessageReceived = "webmail.message.received"
	EventNameItemTrashed     = "webmail.item.trashed"
	EventNameItemRestored    = "webmail.item.restored"
	EventNameItemDeleted     = "webmail.item.deleted"
)

// MessageSentEvent is published after a message has been accepted by the
// transport and recorded as a sent email.
type MessageSentEvent struct {
	EmailID string    `json:"email_id"`
	OwnerID string    `json:"owner_id"`
	From    string    `json:"from"`
	To      []string  `json:"to"`
	Subject string    `json:"subject"`
	DraftID string    `json:"draft_id,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// MessageReceivedEvent is published when an inbound message is stored for a
// local owner. Discarded messages publish nothing.
type MessageReceivedEvent struct {
	EmailID    string    `json:"email_id"`
	OwnerID    string    `json:"owner_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
}

// ItemEvent describes a folder transition or deletion of one item.
type ItemEvent struct {
	ItemID  string    `json:"item_id"`
	OwnerID string    `json:"owner_id"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus.
//
//	svc.Events().MessageReceived.Subscribe(ctx, handler)
type ServiceEvents struct {
	MessageSent     event.Event[MessageSentEvent]
	MessageReceived event.Event[MessageReceivedEvent]
	ItemTrashed     event.Event[ItemEvent]
	ItemRestored    event.Event[ItemEvent]
	ItemDeleted     event.Event[ItemEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		MessageSent:     event.New[MessageSentEvent](namePrefix + "." + EventNameMessageSent),
		MessageReceived: event.New[MessageReceivedEvent](namePrefix + "." + EventNameMessageReceived),
		ItemTrashed:     event.New[ItemEvent](namePrefix + "." + EventNameItemTrashed),
		ItemRestored:    event.New[ItemEvent](namePrefix + "." + EventNameItemRestored),
		ItemDeleted:     event.New[ItemEvent](namePrefix + "." + EventNameItemDeleted),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.MessageSent); err != nil {
		return fmt.Errorf("register MessageSent: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageReceived); err != nil {
		return fmt.Errorf("register MessageReceived: %w", err)
	}
	for name, ev := range map[string]event.Event[ItemEvent]{
		"ItemTrashed":  events.ItemTrashed,
		"ItemRestored": events.ItemRestored,
		"ItemDeleted":  events.ItemDeleted,
	} {
		if err := event.Register(ctx, bus, ev); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

// publish sends payload on ev. A failure is returned as an
// *EventPublishError when events are fatal, otherwise it goes to the
// failure handler and publish returns nil.
func publish[T any](ctx context.Context, s *service, ev event.Event[T], name, itemID string, payload T) error {
	if err := ev.Publish(ctx, payload); err != nil {
		if s.opts.eventErrorsFatal {
			return &EventPublishError{Event: name, ItemID: itemID, Err: err}
		}
		s.opts.safeEventPublishFailure(name, err)
	}
	return nil
}
