package webmail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rbaliyan/webmail/content"
	"github.com/rbaliyan/webmail/store"
	"go.opentelemetry.io/otel/attribute"
)

// InboundMessage is a message arriving from outside, already parsed.
type InboundMessage struct {
	To        string
	From      string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// ReceiveResult is the outcome of routing one inbound message.
type ReceiveResult struct {
	// Recipient is the address the message was routed on.
	Recipient string
	// Stored is false when no local account owns Recipient.
	Stored  bool
	OwnerID string
	Email   *store.Email
}

// Receive routes msg to the account that owns msg.To and stores it as a
// received email. The plain-text body is derived from the HTML when the
// message has none.
//
// An empty or unknown recipient is not an error: nothing is stored and the
// result has Stored == false.
func (s *service) Receive(ctx context.Context, msg InboundMessage) (result *ReceiveResult, err error) {
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}
	if s.resolver == nil {
		return nil, ErrResolverRequired
	}

	addr := strings.TrimSpace(msg.To)
	ctx, endSpan := s.otel.startSpan(ctx, "webmail.receive",
		attribute.String("webmail.recipient", addr),
	)
	start := time.Now()
	defer func() {
		endSpan(err)
		s.otel.recordReceive(ctx, time.Since(start), result != nil && result.Stored, err)
	}()

	result = &ReceiveResult{Recipient: addr}
	if addr == "" {
		s.logger.Info("inbound message has no recipient, discarded", "from", msg.From)
		return result, nil
	}

	ownerID, err := s.resolver.ResolveAddress(ctx, addr)
	if errors.Is(err, ErrAccountNotFound) {
		s.logger.Info("no account for inbound recipient, discarded", "to", addr, "from", msg.From)
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}

	if err := s.plugins.beforeReceive(ctx, ownerID, &msg); err != nil {
		return nil, err
	}

	email, err := s.recordReceived(ctx, ownerID, msg.From, []string{addr}, msg.Subject, msg.PlainBody, msg.HTMLBody)
	if err != nil {
		return nil, storeError("record received email", err)
	}
	s.logger.Info("inbound message stored", "owner_id", ownerID, "email_id", email.ID)

	result.Stored = true
	result.OwnerID = ownerID
	result.Email = email

	if err := s.plugins.afterReceive(ctx, ownerID, email); err != nil {
		return result, err
	}

	if err := publish(ctx, s, s.events.MessageReceived, "MessageReceived", email.ID, MessageReceivedEvent{
		EmailID:    email.ID,
		OwnerID:    ownerID,
		From:       email.Sender,
		To:         addr,
		Subject:    email.Subject,
		ReceivedAt: email.ReceivedAt,
	}); err != nil {
		return result, err
	}

	return result, nil
}

// ReceiveRaw parses a raw RFC 5322 message and routes it with Receive.
// Unparseable input returns an error wrapping content.ErrUnparseable.
func (s *service) ReceiveRaw(ctx context.Context, r io.Reader) (*ReceiveResult, error) {
	if !s.IsConnected() {
		return nil, ErrNotConnected
	}
	parsed, err := content.ParseMessage(r)
	if err != nil {
		return nil, fmt.Errorf("webmail: %w", err)
	}
	return s.Receive(ctx, InboundMessage{
		To:        parsed.To,
		From:      parsed.From,
		Subject:   parsed.Subject,
		PlainBody: parsed.PlainBody,
		HTMLBody:  parsed.HTMLBody,
	})
}
