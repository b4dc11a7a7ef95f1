package webmail

import (
	"context"
	"errors"
	"time"

	"github.com/rbaliyan/webmail/recipients"
	"github.com/rbaliyan/webmail/store"
	"go.opentelemetry.io/otel/attribute"
)

// SendRequest describes an outbound message.
type SendRequest struct {
	// From is the sender address passed to the transport and stored on the sent email.
	From string
	// To holds recipient addresses. Each entry may itself be a
	// comma-separated list; blanks are dropped.
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []OutboundAttachment
	// DraftID names a draft to move to the trash once the send completes.
	DraftID string
	// ScheduledAt requests deferred delivery. Deferred delivery is not
	// performed: see Send.
	ScheduledAt time.Time
}

// Scheduled reports whether the request asks for deferred delivery.
func (r SendRequest) Scheduled() bool {
	return !r.ScheduledAt.IsZero()
}

// SendResult is the outcome of a successful Send.
type SendResult struct {
	// Email is the recorded sent email. Nil for scheduled requests.
	Email *store.Email
	// Receipt is the transport's acknowledgement. Nil for scheduled requests.
	Receipt *TransportReceipt
	// Scheduled is true when the request was accepted for later delivery
	// and nothing was sent.
	Scheduled bool
	// DraftCleanup reports the draft trash step.
	DraftCleanup TrailingStepResult
}

// TrailingStepResult reports a best-effort step that runs after the
// primary operation has already succeeded. Its failure never fails the
// operation.
type TrailingStepResult struct {
	// DraftID is the draft the step acted on. Empty when no step ran.
	DraftID string
	// Attempted is false when the request named no draft.
	Attempted bool
	// Err is nil on success. ErrNotFound means the draft does not exist or
	// belongs to another owner.
	Err error
}

// Failed reports whether the step ran and did not succeed.
func (r TrailingStepResult) Failed() bool {
	return r.Attempted && r.Err != nil
}

// Send validates req, hands it to the transport once, records the sent
// email, then moves req.DraftID (if any) to the trash.
//
// A transport failure returns a *TransportError and nothing is stored.
// The three steps are not atomic: if recording fails after the transport
// accepted the message, the error is returned and the draft is left as is.
// The draft step is best effort; its outcome is in SendResult.DraftCleanup.
//
// Requests with ScheduledAt set only need recipients. They are not
// delivered or stored; the draft step still runs and the result has
// Scheduled set.
//
// With WithEventErrorsFatal(true) a failed MessageSent publish returns the
// result together with an *EventPublishError. An AfterSend plugin failure
// is returned the same way.
func (m *userMailbox) Send(ctx context.Context, req SendRequest) (result *SendResult, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	to := recipients.Split(req.To...)
	scheduled := req.Scheduled()

	ctx, endSpan := m.service.otel.startSpan(ctx, "webmail.send",
		attribute.String("webmail.owner_id", m.ownerID),
		attribute.Int("webmail.recipient_count", len(to)),
		attribute.Bool("webmail.scheduled", scheduled),
	)
	start := time.Now()
	defer func() {
		endSpan(err)
		m.service.otel.recordSend(ctx, time.Since(start), len(to), scheduled, err)
	}()

	if err := validateSend(req, to); err != nil {
		return nil, err
	}

	if scheduled {
		m.service.logger.Warn("deferred delivery is not implemented; message was not sent",
			"owner_id", m.ownerID, "scheduled_at", req.ScheduledAt, "to", to)
		return &SendResult{
			Scheduled:    true,
			DraftCleanup: m.trashSentDraft(ctx, req.DraftID),
		}, nil
	}

	if m.service.transport == nil {
		return nil, ErrTransportRequired
	}

	msg := &OutboundMessage{
		From:        req.From,
		To:          to,
		Subject:     req.Subject,
		HTMLBody:    req.HTMLBody,
		Attachments: req.Attachments,
	}
	if err := m.service.plugins.beforeSend(ctx, m.ownerID, msg); err != nil {
		return nil, err
	}

	receipt, err := m.service.transport.Send(ctx, msg)
	if err != nil {
		m.service.logger.Error("transport rejected message",
			"owner_id", m.ownerID, "to", msg.To, "error", err)
		return nil, &TransportError{Err: err}
	}

	email, err := m.service.recordSent(ctx, m.ownerID, msg.From, msg.To, msg.Subject, msg.HTMLBody)
	if err != nil {
		m.service.logger.Error("message delivered but not recorded as sent",
			"owner_id", m.ownerID, "to", msg.To, "error", err)
		return nil, storeError("record sent email", err)
	}

	result = &SendResult{
		Email:        email,
		Receipt:      receipt,
		DraftCleanup: m.trashSentDraft(ctx, req.DraftID),
	}

	if err := m.service.plugins.afterSend(ctx, m.ownerID, email); err != nil {
		return result, err
	}

	if err := publish(ctx, m.service, m.service.events.MessageSent, "MessageSent", email.ID, MessageSentEvent{
		EmailID: email.ID,
		OwnerID: m.ownerID,
		From:    email.Sender,
		To:      email.Recipients,
		Subject: email.Subject,
		DraftID: req.DraftID,
		SentAt:  email.ReceivedAt,
	}); err != nil {
		return result, err
	}

	return result, nil
}

// trashSentDraft moves the promoted draft to the trash. Failures are
// logged and reported, never returned.
func (m *userMailbox) trashSentDraft(ctx context.Context, draftID string) TrailingStepResult {
	if draftID == "" {
		return TrailingStepResult{}
	}
	res := TrailingStepResult{DraftID: draftID, Attempted: true}
	logger := m.service.logger.With("owner_id", m.ownerID, "draft_id", draftID)

	if err := m.service.store.SetDraftTrashed(ctx, draftID, m.ownerID, true); err != nil {
		res.Err = storeError("trash sent draft", err)
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("draft not found or not owned after send")
		} else {
			logger.Error("failed to move draft to trash after send", "error", err)
		}
		return res
	}
	logger.Debug("draft moved to trash after send")

	if err := m.service.events.ItemTrashed.Publish(ctx, ItemEvent{
		ItemID:  draftID,
		OwnerID: m.ownerID,
		Kind:    string(store.KindDraft),
		At:      time.Now().UTC(),
	}); err != nil {
		m.service.opts.safeEventPublishFailure("ItemTrashed", err)
	}
	return res
}
