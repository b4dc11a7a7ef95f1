package webmail

import (
	"context"
	"sort"
	"time"

	"github.com/rbaliyan/webmail/store"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Inbox returns active received emails, newest first.
func (m *userMailbox) Inbox(ctx context.Context) ([]*store.Email, error) {
	return m.listEmails(ctx, "inbox", store.KindReceived)
}

// Sent returns active sent emails, newest first.
func (m *userMailbox) Sent(ctx context.Context) ([]*store.Email, error) {
	return m.listEmails(ctx, "sent", store.KindSent)
}

func (m *userMailbox) listEmails(ctx context.Context, view string, kind store.Kind) (emails []*store.Email, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "webmail.list",
		attribute.String("webmail.owner_id", m.ownerID),
		attribute.String("webmail.view", view),
	)
	start := time.Now()
	defer func() {
		endSpan(err)
		m.service.otel.recordList(ctx, time.Since(start), view, len(emails), err)
	}()

	emails, err = m.service.store.ListEmails(ctx, kind, m.ownerID, store.Active())
	if err != nil {
		return nil, storeError("list "+view, err)
	}
	return emails, nil
}

// Drafts returns drafts that are not in the trash, most recently saved first.
func (m *userMailbox) Drafts(ctx context.Context) (drafts []*store.Draft, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "webmail.list",
		attribute.String("webmail.owner_id", m.ownerID),
		attribute.String("webmail.view", "drafts"),
	)
	start := time.Now()
	defer func() {
		endSpan(err)
		m.service.otel.recordList(ctx, time.Since(start), "drafts", len(drafts), err)
	}()

	drafts, err = m.service.store.ListDrafts(ctx, m.ownerID, store.Active())
	if err != nil {
		return nil, storeError("list drafts", err)
	}
	return drafts, nil
}

// GetEmail returns one sent or received email in any folder.
func (m *userMailbox) GetEmail(ctx context.Context, kind store.Kind, id string) (*store.Email, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if !kind.IsEmail() {
		return nil, ErrInvalidKind
	}
	e, err := m.service.store.GetEmail(ctx, kind, id, m.ownerID)
	if err != nil {
		return nil, storeError("get email", err)
	}
	return e, nil
}

// GetDraft returns one draft, trashed or not.
func (m *userMailbox) GetDraft(ctx context.Context, id string) (*store.Draft, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	d, err := m.service.store.GetDraft(ctx, id, m.ownerID)
	if err != nil {
		return nil, storeError("get draft", err)
	}
	return d, nil
}

// TrashItems returns trashed sent, received and draft items merged into a
// single list, newest first.
func (m *userMailbox) TrashItems(ctx context.Context) ([]store.Item, error) {
	return m.aggregate(ctx, "trash", store.Trashed())
}

// StarredItems returns starred items outside the trash across every kind,
// newest first.
func (m *userMailbox) StarredItems(ctx context.Context) ([]store.Item, error) {
	return m.aggregate(ctx, "starred", store.Starred())
}

// aggregate queries the three kinds concurrently with the same filter and
// merges the results. Items of different kinds with equal timestamps have
// no defined relative order.
func (m *userMailbox) aggregate(ctx context.Context, view string, filter store.ListFilter) (items []store.Item, err error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "webmail.aggregate",
		attribute.String("webmail.owner_id", m.ownerID),
		attribute.String("webmail.view", view),
	)
	start := time.Now()
	defer func() {
		endSpan(err)
		m.service.otel.recordList(ctx, time.Since(start), view, len(items), err)
	}()

	st := m.service.store
	var (
		sent, received []*store.Email
		drafts         []*store.Draft
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sent, err = st.ListEmails(gctx, store.KindSent, m.ownerID, filter)
		return err
	})
	g.Go(func() error {
		var err error
		received, err = st.ListEmails(gctx, store.KindReceived, m.ownerID, filter)
		return err
	})
	g.Go(func() error {
		var err error
		drafts, err = st.ListDrafts(gctx, m.ownerID, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeError(view+" view", err)
	}

	items = make([]store.Item, 0, len(sent)+len(received)+len(drafts))
	for _, e := range sent {
		items = append(items, e)
	}
	for _, e := range received {
		items = append(items, e)
	}
	for _, d := range drafts {
		items = append(items, d)
	}
	sortNewestFirst(items)
	return items, nil
}

func sortNewestFirst(items []store.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].GetTimestamp().After(items[j].GetTimestamp())
	})
}
