package sqlite

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rbaliyan/webmail/store"
	"github.com/rbaliyan/webmail/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTestStore(t) })
}

func TestCustomTables(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", WithTables("out box", "in\"box", ""))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close(ctx)

	if _, err := s.CreateEmail(ctx, store.EmailData{OwnerID: "u1", Kind: store.KindReceived}); err != nil {
		t.Fatalf("create in quoted table: %v", err)
	}
	var n int
	if err := s.DB().GetContext(ctx, &n, `SELECT COUNT(*) FROM "in""box"`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestLegacyRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close(ctx)

	now := time.Now().UTC()
	rows := []struct {
		id         string
		recipients any
		want       []string
	}{
		{id: "json", recipients: `["a@x.com","b@x.com"]`, want: []string{"a@x.com", "b@x.com"}},
		{id: "bare", recipients: "a@x.com", want: []string{"a@x.com"}},
		{id: "broken", recipients: "[not json]", want: []string{"[not json]"}},
		{id: "null", recipients: nil, want: []string{}},
	}
	for _, r := range rows {
		_, err := s.DB().ExecContext(ctx,
			`INSERT INTO received_emails (id, user_id, sender, recipients, received_at, folder) VALUES (?, ?, ?, ?, ?, ?)`,
			r.id, "u1", "x@y.com", r.recipients, now, "inbox")
		if err != nil {
			t.Fatalf("insert %s: %v", r.id, err)
		}
	}
	_, err := s.DB().ExecContext(ctx,
		`INSERT INTO drafts (id, user_id, attachments_info, last_saved_at) VALUES (?, ?, ?, ?)`,
		"d1", "u1", "{oops", now)
	if err != nil {
		t.Fatalf("insert draft: %v", err)
	}

	for _, r := range rows {
		t.Run(r.id, func(t *testing.T) {
			e, err := s.GetEmail(ctx, store.KindReceived, r.id, "u1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !reflect.DeepEqual(e.Recipients, r.want) {
				t.Errorf("recipients = %#v, want %#v", e.Recipients, r.want)
			}
			if e.Subject != "" || e.HTMLBody != "" {
				t.Errorf("null columns should read as empty: %+v", e)
			}
		})
	}

	t.Run("malformed attachments degrade to empty", func(t *testing.T) {
		d, err := s.GetDraft(ctx, "d1", "u1")
		if err != nil {
			t.Fatalf("get draft: %v", err)
		}
		if d.Attachments == nil || len(d.Attachments) != 0 {
			t.Errorf("expected empty attachments, got %#v", d.Attachments)
		}
		if d.Trashed || d.Starred {
			t.Errorf("defaults should be false: %+v", d)
		}
	})
}
