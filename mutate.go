package webmail

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/webmail/store"
	"go.opentelemetry.io/otel/attribute"
)

// checkKind rejects anything outside the closed set of kinds.
func checkKind(kind store.Kind) error {
	switch kind {
	case store.KindSent, store.KindReceived, store.KindDraft:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}

// mutate runs fn with the common access checks, span and metrics.
func (m *userMailbox) mutate(ctx context.Context, op string, kind store.Kind, id string, fn func(context.Context) error) (err error) {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if err := checkKind(kind); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "webmail."+op,
		attribute.String("webmail.owner_id", m.ownerID),
		attribute.String("webmail.kind", string(kind)),
		attribute.String("webmail.item_id", id),
	)
	start := time.Now()
	defer func() {
		endSpan(err)
		m.service.otel.recordMutate(ctx, time.Since(start), op, string(kind), err)
	}()

	return fn(ctx)
}

// setTrashed moves an item of any kind into or out of the trash.
func (m *userMailbox) setTrashed(ctx context.Context, kind store.Kind, id string, trashed bool) error {
	st := m.service.store
	if kind == store.KindDraft {
		return st.SetDraftTrashed(ctx, id, m.ownerID, trashed)
	}
	folder := store.FolderActive
	if trashed {
		folder = store.FolderTrashed
	}
	return st.SetEmailFolder(ctx, kind, id, m.ownerID, folder)
}

func (m *userMailbox) itemEvent(ctx context.Context, ev event.Event[ItemEvent], name string, kind store.Kind, id string) error {
	return publish(ctx, m.service, ev, name, id, ItemEvent{
		ItemID:  id,
		OwnerID: m.ownerID,
		Kind:    string(kind),
		At:      time.Now().UTC(),
	})
}

// Trash moves an item to the trash. Trashing an item that is already
// trashed succeeds. The starred flag is left alone.
func (m *userMailbox) Trash(ctx context.Context, kind store.Kind, id string) error {
	return m.mutate(ctx, "trash", kind, id, func(ctx context.Context) error {
		if err := m.setTrashed(ctx, kind, id, true); err != nil {
			return storeError("move to trash", err)
		}
		return m.itemEvent(ctx, m.service.events.ItemTrashed, "ItemTrashed", kind, id)
	})
}

// Restore returns a trashed item to the active folder of kind.
// The starred flag is left alone.
func (m *userMailbox) Restore(ctx context.Context, kind store.Kind, id string) error {
	return m.mutate(ctx, "restore", kind, id, func(ctx context.Context) error {
		if err := m.setTrashed(ctx, kind, id, false); err != nil {
			return storeError("restore", err)
		}
		return m.itemEvent(ctx, m.service.events.ItemRestored, "ItemRestored", kind, id)
	})
}

// PermanentlyDelete removes an item from any state. Deleting an item that
// no longer exists returns ErrNotFound.
func (m *userMailbox) PermanentlyDelete(ctx context.Context, kind store.Kind, id string) error {
	return m.mutate(ctx, "delete", kind, id, func(ctx context.Context) error {
		var err error
		if kind == store.KindDraft {
			err = m.service.store.DeleteDraft(ctx, id, m.ownerID)
		} else {
			err = m.service.store.DeleteEmail(ctx, kind, id, m.ownerID)
		}
		if err != nil {
			return storeError("permanently delete", err)
		}
		m.service.logger.Debug("item permanently deleted",
			"owner_id", m.ownerID, "kind", kind, "item_id", id)
		return m.itemEvent(ctx, m.service.events.ItemDeleted, "ItemDeleted", kind, id)
	})
}

// SetStarred sets the starred flag regardless of folder state.
func (m *userMailbox) SetStarred(ctx context.Context, kind store.Kind, id string, starred bool) error {
	return m.mutate(ctx, "star", kind, id, func(ctx context.Context) error {
		var err error
		if kind == store.KindDraft {
			err = m.service.store.SetDraftStarred(ctx, id, m.ownerID, starred)
		} else {
			err = m.service.store.SetEmailStarred(ctx, kind, id, m.ownerID, starred)
		}
		return storeError("set starred", err)
	})
}
