// Package store defines the persistence contract for mailbox items.
//
// A mailbox holds three kinds of items: sent emails, received emails and
// drafts. Every point operation is scoped by the pair (id, ownerID); an item
// that exists but belongs to another owner is indistinguishable from a
// missing one and yields ErrNotFound.
package store

import "context"

// Store is the full storage backend used by the mailbox service.
type Store interface {
	// Connect prepares the backend (schema, indexes, ping).
	Connect(ctx context.Context) error
	// Close marks the backend as disconnected. Callers own the
	// underlying connection and close it themselves.
	Close(ctx context.Context) error

	EmailStore
	DraftStore
}

// EmailStore persists sent and received emails. The kind argument selects
// the backing table or collection and must be KindSent or KindReceived.
type EmailStore interface {
	// CreateEmail inserts a new active, unstarred email stamped with the
	// current time.
	CreateEmail(ctx context.Context, data EmailData) (*Email, error)
	GetEmail(ctx context.Context, kind Kind, id, ownerID string) (*Email, error)
	// ListEmails returns the owner's emails matching the filter, newest first.
	ListEmails(ctx context.Context, kind Kind, ownerID string, filter ListFilter) ([]*Email, error)
	SetEmailFolder(ctx context.Context, kind Kind, id, ownerID string, folder FolderState) error
	SetEmailStarred(ctx context.Context, kind Kind, id, ownerID string, starred bool) error
	// DeleteEmail removes the row. A second call returns ErrNotFound.
	DeleteEmail(ctx context.Context, kind Kind, id, ownerID string) error
}

// DraftStore persists drafts.
type DraftStore interface {
	CreateDraft(ctx context.Context, data DraftData) (*Draft, error)
	// UpdateDraft overwrites the draft content, bumps LastSavedAt and clears
	// the trashed flag. The starred flag is kept.
	UpdateDraft(ctx context.Context, id, ownerID string, data DraftData) (*Draft, error)
	GetDraft(ctx context.Context, id, ownerID string) (*Draft, error)
	// ListDrafts returns the owner's drafts matching the filter, most
	// recently saved first.
	ListDrafts(ctx context.Context, ownerID string, filter ListFilter) ([]*Draft, error)
	SetDraftTrashed(ctx context.Context, id, ownerID string, trashed bool) error
	SetDraftStarred(ctx context.Context, id, ownerID string, starred bool) error
	DeleteDraft(ctx context.Context, id, ownerID string) error
}

// FolderFilter restricts a listing by folder state.
type FolderFilter int

const (
	// AnyFolder matches active and trashed items.
	AnyFolder FolderFilter = iota
	// ActiveOnly matches items that are not in the trash.
	ActiveOnly
	// TrashedOnly matches items in the trash.
	TrashedOnly
)

// ListFilter selects items in a listing.
type ListFilter struct {
	Folder      FolderFilter
	StarredOnly bool
}

// Active is the filter for the regular folder views.
func Active() ListFilter { return ListFilter{Folder: ActiveOnly} }

// Trashed is the filter for the trash view.
func Trashed() ListFilter { return ListFilter{Folder: TrashedOnly} }

// Starred is the filter for the starred view. Trashed items are excluded.
func Starred() ListFilter { return ListFilter{Folder: ActiveOnly, StarredOnly: true} }

// MatchesEmail reports whether e passes the filter.
func (f ListFilter) MatchesEmail(e *Email) bool {
	return f.matches(e.Folder == FolderTrashed, e.Starred)
}

// MatchesDraft reports whether d passes the filter.
func (f ListFilter) MatchesDraft(d *Draft) bool {
	return f.matches(d.Trashed, d.Starred)
}

func (f ListFilter) matches(trashed, starred bool) bool {
	switch f.Folder {
	case ActiveOnly:
		if trashed {
			return false
		}
	case TrashedOnly:
		if !trashed {
			return false
		}
	}
	if f.StarredOnly && !starred {
		return false
	}
	return true
}
