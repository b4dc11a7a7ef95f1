package webmail

import (
	"context"
	"time"

	"github.com/rbaliyan/webmail/store"
	"go.opentelemetry.io/otel/attribute"
)

// DraftInput is the content of a draft save. Every field may be empty.
type DraftInput struct {
	// ID selects an existing draft to overwrite. Empty creates a new draft.
	ID             string
	RecipientEmail string
	Subject        string
	BodyHTML       string
	Attachments    []store.AttachmentInfo
}

// SaveDraft creates a draft, or overwrites the owner's draft in.ID.
//
// Overwriting a trashed draft takes it out of the trash. The starred flag
// survives the update. An ID owned by someone else returns ErrNotFound.
func (m *userMailbox) SaveDraft(ctx context.Context, in DraftInput) (draft *store.Draft, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "webmail.save_draft",
		attribute.String("webmail.owner_id", m.ownerID),
		attribute.Bool("webmail.update", in.ID != ""),
	)
	start := time.Now()
	defer func() {
		endSpan(err)
		m.service.otel.recordMutate(ctx, time.Since(start), "save_draft", string(store.KindDraft), err)
	}()

	data := store.DraftData{
		OwnerID:        m.ownerID,
		RecipientEmail: in.RecipientEmail,
		Subject:        in.Subject,
		BodyHTML:       in.BodyHTML,
		Attachments:    in.Attachments,
	}
	if data.Attachments == nil {
		data.Attachments = []store.AttachmentInfo{}
	}

	if in.ID != "" {
		draft, err = m.service.store.UpdateDraft(ctx, in.ID, m.ownerID, data)
		if err != nil {
			return nil, storeError("update draft", err)
		}
		return draft, nil
	}

	draft, err = m.service.store.CreateDraft(ctx, data)
	if err != nil {
		return nil, storeError("create draft", err)
	}
	return draft, nil
}
