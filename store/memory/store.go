// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/webmail/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	sent      sync.Map // map[string]*store.Email
	received  sync.Map // map[string]*store.Email
	drafts    sync.Map // map[string]*store.Draft
	itemLocks sync.Map // map[string]*sync.Mutex
	now       func() time.Time
	connected int32
}

// Option configures a memory store.
type Option func(*Store)

// WithClock sets the time source used to stamp items.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// getItemLock returns the mutex for an item ID, creating one if needed.
func (s *Store) getItemLock(id string) *sync.Mutex {
	lock, _ := s.itemLocks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// forgetLock drops the lock of an id that names no stored item. Callers hold
// the lock. IDs are generated here and never reused.
func (s *Store) forgetLock(id string) {
	for _, m := range []*sync.Map{&s.sent, &s.received, &s.drafts} {
		if _, ok := m.Load(id); ok {
			return
		}
	}
	s.itemLocks.Delete(id)
}

func (s *Store) emails(kind store.Kind) (*sync.Map, error) {
	switch kind {
	case store.KindSent:
		return &s.sent, nil
	case store.KindReceived:
		return &s.received, nil
	default:
		return nil, fmt.Errorf("%w: %q is not an email kind", store.ErrInvalidKind, kind)
	}
}

func checkPoint(id, ownerID string) error {
	if id == "" {
		return store.ErrInvalidID
	}
	if ownerID == "" {
		return store.ErrInvalidOwnerID
	}
	return nil
}

// =============================================================================
// Emails
// =============================================================================

// CreateEmail stores a new active email.
func (s *Store) CreateEmail(_ context.Context, data store.EmailData) (*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	m, err := s.emails(data.Kind)
	if err != nil {
		return nil, err
	}

	e := &store.Email{
		ID:         uuid.NewString(),
		OwnerID:    data.OwnerID,
		Kind:       data.Kind,
		Sender:     data.Sender,
		Recipients: append([]string{}, data.Recipients...),
		Subject:    data.Subject,
		PlainBody:  data.PlainBody,
		HTMLBody:   data.HTMLBody,
		Folder:     store.FolderActive,
		ReceivedAt: s.now().UTC(),
	}
	m.Store(e.ID, e)
	return e.Clone(), nil
}

// loadEmail returns the stored pointer if it exists and is owned by ownerID.
func (s *Store) loadEmail(kind store.Kind, id, ownerID string) (*store.Email, error) {
	if err := checkPoint(id, ownerID); err != nil {
		return nil, err
	}
	m, err := s.emails(kind)
	if err != nil {
		return nil, err
	}
	v, ok := m.Load(id)
	if !ok {
		s.forgetLock(id)
		return nil, store.ErrNotFound
	}
	e := v.(*store.Email)
	if e.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return e, nil
}

// GetEmail returns a copy of one owned email.
func (s *Store) GetEmail(_ context.Context, kind store.Kind, id, ownerID string) (*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	lock := s.getItemLock(id)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.loadEmail(kind, id, ownerID)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// ListEmails returns copies of the owner's emails, newest first.
func (s *Store) ListEmails(_ context.Context, kind store.Kind, ownerID string, filter store.ListFilter) ([]*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, store.ErrInvalidOwnerID
	}
	m, err := s.emails(kind)
	if err != nil {
		return nil, err
	}

	out := []*store.Email{}
	m.Range(func(key, value any) bool {
		lock := s.getItemLock(key.(string))
		lock.Lock()
		e := value.(*store.Email)
		if e.OwnerID == ownerID && filter.MatchesEmail(e) {
			out = append(out, e.Clone())
		}
		lock.Unlock()
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	return out, nil
}

// SetEmailFolder moves an email in or out of the trash.
func (s *Store) SetEmailFolder(_ context.Context, kind store.Kind, id, ownerID string, folder store.FolderState) error {
	return s.mutateEmail(kind, id, ownerID, func(e *store.Email) { e.Folder = folder })
}

// SetEmailStarred sets the starred flag.
func (s *Store) SetEmailStarred(_ context.Context, kind store.Kind, id, ownerID string, starred bool) error {
	return s.mutateEmail(kind, id, ownerID, func(e *store.Email) { e.Starred = starred })
}

func (s *Store) mutateEmail(kind store.Kind, id, ownerID string, fn func(*store.Email)) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	lock := s.getItemLock(id)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.loadEmail(kind, id, ownerID)
	if err != nil {
		return err
	}
	fn(e)
	return nil
}

// DeleteEmail removes an email.
func (s *Store) DeleteEmail(_ context.Context, kind store.Kind, id, ownerID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	lock := s.getItemLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.loadEmail(kind, id, ownerID); err != nil {
		return err
	}
	m, _ := s.emails(kind)
	m.Delete(id)
	s.forgetLock(id)
	return nil
}

// =============================================================================
// Drafts
// =============================================================================

// CreateDraft stores a new draft.
func (s *Store) CreateDraft(_ context.Context, data store.DraftData) (*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	d := &store.Draft{
		ID:             uuid.NewString(),
		OwnerID:        data.OwnerID,
		RecipientEmail: data.RecipientEmail,
		Subject:        data.Subject,
		BodyHTML:       data.BodyHTML,
		Attachments:    append([]store.AttachmentInfo{}, data.Attachments...),
		LastSavedAt:    s.now().UTC(),
	}
	s.drafts.Store(d.ID, d)
	return d.Clone(), nil
}

func (s *Store) loadDraft(id, ownerID string) (*store.Draft, error) {
	if err := checkPoint(id, ownerID); err != nil {
		return nil, err
	}
	v, ok := s.drafts.Load(id)
	if !ok {
		s.forgetLock(id)
		return nil, store.ErrNotFound
	}
	d := v.(*store.Draft)
	if d.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return d, nil
}

// UpdateDraft overwrites an owned draft and takes it out of the trash.
func (s *Store) UpdateDraft(_ context.Context, id, ownerID string, data store.DraftData) (*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	lock := s.getItemLock(id)
	lock.Lock()
	defer lock.Unlock()

	d, err := s.loadDraft(id, ownerID)
	if err != nil {
		return nil, err
	}
	d.RecipientEmail = data.RecipientEmail
	d.Subject = data.Subject
	d.BodyHTML = data.BodyHTML
	d.Attachments = append([]store.AttachmentInfo{}, data.Attachments...)
	d.LastSavedAt = s.now().UTC()
	d.Trashed = false
	return d.Clone(), nil
}

// GetDraft returns a copy of one owned draft.
func (s *Store) GetDraft(_ context.Context, id, ownerID string) (*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	lock := s.getItemLock(id)
	lock.Lock()
	defer lock.Unlock()

	d, err := s.loadDraft(id, ownerID)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// ListDrafts returns copies of the owner's drafts, most recently saved first.
func (s *Store) ListDrafts(_ context.Context, ownerID string, filter store.ListFilter) ([]*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, store.ErrInvalidOwnerID
	}

	out := []*store.Draft{}
	s.drafts.Range(func(key, value any) bool {
		lock := s.getItemLock(key.(string))
		lock.Lock()
		d := value.(*store.Draft)
		if d.OwnerID == ownerID && filter.MatchesDraft(d) {
			out = append(out, d.Clone())
		}
		lock.Unlock()
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSavedAt.After(out[j].LastSavedAt)
	})
	return out, nil
}

// SetDraftTrashed sets the trashed flag.
func (s *Store) SetDraftTrashed(_ context.Context, id, ownerID string, trashed bool) error {
	return s.mutateDraft(id, ownerID, func(d *store.Draft) { d.Trashed = trashed })
}

// SetDraftStarred sets the starred flag.
func (s *Store) SetDraftStarred(_ context.Context, id, ownerID string, starred bool) error {
	return s.mutateDraft(id, ownerID, func(d *store.Draft) { d.Starred = starred })
}

func (s *Store) mutateDraft(id, ownerID string, fn func(*store.Draft)) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	lock := s.getItemLock(id)
	lock.Lock()
	defer lock.Unlock()

	d, err := s.loadDraft(id, ownerID)
	if err != nil {
		return err
	}
	fn(d)
	return nil
}

// DeleteDraft removes a draft.
func (s *Store) DeleteDraft(_ context.Context, id, ownerID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	lock := s.getItemLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.loadDraft(id, ownerID); err != nil {
		return err
	}
	s.drafts.Delete(id)
	s.forgetLock(id)
	return nil
}
