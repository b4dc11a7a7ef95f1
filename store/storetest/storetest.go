// Package storetest provides a behavioural test suite shared by every
// store.Store backend.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rbaliyan/webmail/store"
)

// Factory returns a fresh, unconnected store. The suite connects it.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("NotConnected", func(t *testing.T) { testNotConnected(t, newStore(t)) })
	t.Run("Emails", func(t *testing.T) { testEmails(t, connect(t, newStore)) })
	t.Run("EmailOwnership", func(t *testing.T) { testEmailOwnership(t, connect(t, newStore)) })
	t.Run("EmailLifecycle", func(t *testing.T) { testEmailLifecycle(t, connect(t, newStore)) })
	t.Run("EmailOrdering", func(t *testing.T) { testEmailOrdering(t, connect(t, newStore)) })
	t.Run("Drafts", func(t *testing.T) { testDrafts(t, connect(t, newStore)) })
	t.Run("DraftLifecycle", func(t *testing.T) { testDraftLifecycle(t, connect(t, newStore)) })
	t.Run("Kinds", func(t *testing.T) { testKinds(t, connect(t, newStore)) })
}

func connect(t *testing.T, newStore Factory) store.Store {
	t.Helper()
	s := newStore(t)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { s.Close(ctx) })
	return s
}

func mustCreateEmail(t *testing.T, s store.Store, kind store.Kind, owner string) *store.Email {
	t.Helper()
	e, err := s.CreateEmail(context.Background(), store.EmailData{
		OwnerID:    owner,
		Kind:       kind,
		Sender:     "alice@example.com",
		Recipients: []string{"bob@example.com", "carol@example.com"},
		Subject:    "hello",
		PlainBody:  "hi",
		HTMLBody:   "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("create email: %v", err)
	}
	return e
}

func mustCreateDraft(t *testing.T, s store.Store, owner string) *store.Draft {
	t.Helper()
	d, err := s.CreateDraft(context.Background(), store.DraftData{
		OwnerID:        owner,
		RecipientEmail: "bob@example.com",
		Subject:        "draft",
		BodyHTML:       "<p>draft</p>",
		Attachments:    []store.AttachmentInfo{{Filename: "a.txt", ContentType: "text/plain", Size: 3}},
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	return d
}

func ids[T store.Item](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.GetID())
	}
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func testNotConnected(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.CreateEmail(ctx, store.EmailData{OwnerID: "u1", Kind: store.KindSent})
	if !errors.Is(err, store.ErrNotConnected) {
		t.Errorf("CreateEmail: expected ErrNotConnected, got %v", err)
	}
	_, err = s.ListDrafts(ctx, "u1", store.Active())
	if !errors.Is(err, store.ErrNotConnected) {
		t.Errorf("ListDrafts: expected ErrNotConnected, got %v", err)
	}
}

func testEmails(t *testing.T, s store.Store) {
	ctx := context.Background()

	for _, kind := range []store.Kind{store.KindSent, store.KindReceived} {
		t.Run(kind.String(), func(t *testing.T) {
			created := mustCreateEmail(t, s, kind, "u1")
			if created.ID == "" {
				t.Fatal("expected generated id")
			}
			if created.Folder != store.FolderActive || created.Starred {
				t.Errorf("new email should be active and unstarred: %+v", created)
			}

			got, err := s.GetEmail(ctx, kind, created.ID, "u1")
			if err != nil {
				t.Fatalf("get email: %v", err)
			}
			if got.Kind != kind || got.Sender != "alice@example.com" || got.Subject != "hello" {
				t.Errorf("unexpected email: %+v", got)
			}
			want := []string{"bob@example.com", "carol@example.com"}
			if !reflect.DeepEqual(got.Recipients, want) {
				t.Errorf("recipients = %v, want %v", got.Recipients, want)
			}
			if got.PlainBody != "hi" || got.HTMLBody != "<p>hi</p>" {
				t.Errorf("unexpected bodies: %q %q", got.PlainBody, got.HTMLBody)
			}
			if got.ReceivedAt.IsZero() {
				t.Error("expected timestamp")
			}
		})
	}

	t.Run("empty recipients", func(t *testing.T) {
		e, err := s.CreateEmail(ctx, store.EmailData{OwnerID: "u1", Kind: store.KindReceived})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.GetEmail(ctx, store.KindReceived, e.ID, "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Recipients == nil || len(got.Recipients) != 0 {
			t.Errorf("expected empty non-nil recipients, got %#v", got.Recipients)
		}
	})

	t.Run("missing owner", func(t *testing.T) {
		_, err := s.CreateEmail(ctx, store.EmailData{Kind: store.KindSent})
		if !errors.Is(err, store.ErrInvalidOwnerID) {
			t.Errorf("expected ErrInvalidOwnerID, got %v", err)
		}
	})
}

func testEmailOwnership(t *testing.T, s store.Store) {
	ctx := context.Background()
	e := mustCreateEmail(t, s, store.KindReceived, "owner")

	if _, err := s.GetEmail(ctx, store.KindReceived, e.ID, "intruder"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get by other owner: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetEmail(ctx, store.KindSent, e.ID, "owner"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get with wrong kind: expected ErrNotFound, got %v", err)
	}
	if err := s.SetEmailFolder(ctx, store.KindReceived, e.ID, "intruder", store.FolderTrashed); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("trash by other owner: expected ErrNotFound, got %v", err)
	}
	if err := s.SetEmailStarred(ctx, store.KindReceived, e.ID, "intruder", true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("star by other owner: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteEmail(ctx, store.KindReceived, e.ID, "intruder"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("delete by other owner: expected ErrNotFound, got %v", err)
	}

	got, err := s.GetEmail(ctx, store.KindReceived, e.ID, "owner")
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if got.Folder != store.FolderActive || got.Starred {
		t.Errorf("foreign mutations must not apply: %+v", got)
	}

	list, err := s.ListEmails(ctx, store.KindReceived, "intruder", store.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no emails for other owner, got %d", len(list))
	}

	if _, err := s.GetEmail(ctx, store.KindReceived, "no-such-id", "owner"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func testEmailLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	const owner = "u1"
	kind := store.KindSent
	e := mustCreateEmail(t, s, kind, owner)

	t.Run("star then trash keeps star", func(t *testing.T) {
		if err := s.SetEmailStarred(ctx, kind, e.ID, owner, true); err != nil {
			t.Fatalf("star: %v", err)
		}
		if err := s.SetEmailFolder(ctx, kind, e.ID, owner, store.FolderTrashed); err != nil {
			t.Fatalf("trash: %v", err)
		}
		got, _ := s.GetEmail(ctx, kind, e.ID, owner)
		if got.Folder != store.FolderTrashed || !got.Starred {
			t.Errorf("expected trashed and starred, got %+v", got)
		}
	})

	t.Run("trashing twice succeeds", func(t *testing.T) {
		if err := s.SetEmailFolder(ctx, kind, e.ID, owner, store.FolderTrashed); err != nil {
			t.Errorf("second trash: %v", err)
		}
	})

	t.Run("filters", func(t *testing.T) {
		active, _ := s.ListEmails(ctx, kind, owner, store.Active())
		if contains(ids(active), e.ID) {
			t.Error("trashed email must not be listed as active")
		}
		trashed, _ := s.ListEmails(ctx, kind, owner, store.Trashed())
		if !contains(ids(trashed), e.ID) {
			t.Error("trashed email must be listed in trash")
		}
		starred, _ := s.ListEmails(ctx, kind, owner, store.Starred())
		if contains(ids(starred), e.ID) {
			t.Error("starred view must exclude trashed items")
		}
	})

	t.Run("restore keeps star", func(t *testing.T) {
		if err := s.SetEmailFolder(ctx, kind, e.ID, owner, store.FolderActive); err != nil {
			t.Fatalf("restore: %v", err)
		}
		got, _ := s.GetEmail(ctx, kind, e.ID, owner)
		if got.Folder != store.FolderActive || !got.Starred {
			t.Errorf("expected active and starred, got %+v", got)
		}
		starred, _ := s.ListEmails(ctx, kind, owner, store.Starred())
		if !contains(ids(starred), e.ID) {
			t.Error("restored starred email must be in starred view")
		}
	})

	t.Run("delete is permanent", func(t *testing.T) {
		if err := s.DeleteEmail(ctx, kind, e.ID, owner); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetEmail(ctx, kind, e.ID, owner); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		all, _ := s.ListEmails(ctx, kind, owner, store.ListFilter{})
		if contains(ids(all), e.ID) {
			t.Error("deleted email still listed")
		}
		if err := s.DeleteEmail(ctx, kind, e.ID, owner); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("second delete: expected ErrNotFound, got %v", err)
		}
	})
}

func testEmailOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	var created []string
	for i := 0; i < 3; i++ {
		created = append(created, mustCreateEmail(t, s, store.KindReceived, "u1").ID)
		time.Sleep(5 * time.Millisecond)
	}
	list, err := s.ListEmails(ctx, store.KindReceived, "u1", store.Active())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{created[2], created[1], created[0]}
	if !reflect.DeepEqual(ids(list), want) {
		t.Errorf("order = %v, want newest first %v", ids(list), want)
	}
}

func testDrafts(t *testing.T, s store.Store) {
	ctx := context.Background()
	d := mustCreateDraft(t, s, "u1")
	if d.Trashed || d.Starred {
		t.Errorf("new draft should be active and unstarred: %+v", d)
	}

	got, err := s.GetDraft(ctx, d.ID, "u1")
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if got.RecipientEmail != "bob@example.com" || got.Subject != "draft" || got.BodyHTML != "<p>draft</p>" {
		t.Errorf("unexpected draft: %+v", got)
	}
	wantAtt := []store.AttachmentInfo{{Filename: "a.txt", ContentType: "text/plain", Size: 3}}
	if !reflect.DeepEqual(got.Attachments, wantAtt) {
		t.Errorf("attachments = %+v, want %+v", got.Attachments, wantAtt)
	}
	if !reflect.DeepEqual(got.GetRecipients(), []string{"bob@example.com"}) {
		t.Errorf("unexpected normalized recipients %v", got.GetRecipients())
	}

	if _, err := s.GetDraft(ctx, d.ID, "u2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("other owner: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateDraft(ctx, d.ID, "u2", store.DraftData{OwnerID: "u2", Subject: "hijack"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update by other owner: expected ErrNotFound, got %v", err)
	}
	if err := s.SetDraftTrashed(ctx, d.ID, "u2", true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("trash by other owner: expected ErrNotFound, got %v", err)
	}
	got, _ = s.GetDraft(ctx, d.ID, "u1")
	if got.Subject != "draft" || got.Trashed {
		t.Errorf("foreign mutations must not apply: %+v", got)
	}
}

func testDraftLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	const owner = "u1"
	d := mustCreateDraft(t, s, owner)

	if err := s.SetDraftStarred(ctx, d.ID, owner, true); err != nil {
		t.Fatalf("star: %v", err)
	}
	if err := s.SetDraftTrashed(ctx, d.ID, owner, true); err != nil {
		t.Fatalf("trash: %v", err)
	}

	active, _ := s.ListDrafts(ctx, owner, store.Active())
	if contains(ids(active), d.ID) {
		t.Error("trashed draft listed as active")
	}
	trashed, _ := s.ListDrafts(ctx, owner, store.Trashed())
	if !contains(ids(trashed), d.ID) {
		t.Error("trashed draft missing from trash")
	}
	starred, _ := s.ListDrafts(ctx, owner, store.Starred())
	if contains(ids(starred), d.ID) {
		t.Error("starred view must exclude trashed drafts")
	}

	time.Sleep(5 * time.Millisecond)
	updated, err := s.UpdateDraft(ctx, d.ID, owner, store.DraftData{
		OwnerID:        owner,
		RecipientEmail: "dave@example.com",
		Subject:        "edited",
		BodyHTML:       "<p>edited</p>",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Trashed {
		t.Error("editing a draft must take it out of the trash")
	}
	if !updated.Starred {
		t.Error("editing a draft must keep the star")
	}
	if updated.Subject != "edited" || updated.RecipientEmail != "dave@example.com" {
		t.Errorf("update not applied: %+v", updated)
	}
	if len(updated.Attachments) != 0 {
		t.Errorf("attachments should be replaced, got %+v", updated.Attachments)
	}
	if !updated.LastSavedAt.After(d.LastSavedAt) {
		t.Errorf("expected LastSavedAt to advance: %v -> %v", d.LastSavedAt, updated.LastSavedAt)
	}

	if err := s.DeleteDraft(ctx, d.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteDraft(ctx, d.ID, owner); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateDraft(ctx, d.ID, owner, store.DraftData{OwnerID: owner}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update after delete: expected ErrNotFound, got %v", err)
	}
}

func testKinds(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.CreateEmail(ctx, store.EmailData{OwnerID: "u1", Kind: store.KindDraft})
	if !errors.Is(err, store.ErrInvalidKind) {
		t.Errorf("create with draft kind: expected ErrInvalidKind, got %v", err)
	}
	_, err = s.ListEmails(ctx, store.Kind("archive"), "u1", store.Active())
	if !errors.Is(err, store.ErrInvalidKind) {
		t.Errorf("list with unknown kind: expected ErrInvalidKind, got %v", err)
	}
	if err := s.DeleteEmail(ctx, store.KindDraft, "x", "u1"); !errors.Is(err, store.ErrInvalidKind) {
		t.Errorf("delete with draft kind: expected ErrInvalidKind, got %v", err)
	}
}
