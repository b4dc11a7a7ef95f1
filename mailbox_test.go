package webmail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbaliyan/webmail/store"
	"github.com/rbaliyan/webmail/store/memory"
)

// fakeTransport records outbound messages and can be told to fail.
type fakeTransport struct {
	mu   sync.Mutex
	sent []*OutboundMessage
	err  error
}

func (f *fakeTransport) Send(_ context.Context, msg *OutboundMessage) (*TransportReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	return &TransportReceipt{MessageID: "msg-1", Response: map[string]any{"status": "success"}}, nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// mapResolver resolves addresses from a fixed map.
type mapResolver map[string]string

func (r mapResolver) ResolveAddress(_ context.Context, address string) (string, error) {
	if id, ok := r[address]; ok {
		return id, nil
	}
	return "", ErrAccountNotFound
}

// steppingClock returns a time one minute later on every call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

type testEnv struct {
	svc       Service
	transport *fakeTransport
}

// Helper to setup a connected test service.
func setupTestService(t *testing.T, opts ...Option) testEnv {
	t.Helper()

	tr := &fakeTransport{}
	base := []Option{
		WithStore(memory.New(memory.WithClock(steppingClock()))),
		WithTransport(tr),
		WithAccountResolver(mapResolver{
			"alice@example.com": "alice",
			"bob@example.com":   "bob",
		}),
	}
	svc, err := NewService(append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	ctx := context.Background()
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { svc.Close(context.Background()) })

	return testEnv{svc: svc, transport: tr}
}

func TestNewService(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		_, err := NewService()
		if !errors.Is(err, ErrStoreRequired) {
			t.Errorf("expected ErrStoreRequired, got %v", err)
		}
	})

	t.Run("creates service with store", func(t *testing.T) {
		svc, err := NewService(WithStore(memory.New()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc == nil {
			t.Fatal("expected non-nil service")
		}
		if svc.IsConnected() {
			t.Error("new service should not be connected")
		}
		if svc.Events() != nil {
			t.Error("events should be nil before Connect")
		}
	})
}

func TestServiceLifecycle(t *testing.T) {
	svc, err := NewService(WithStore(memory.New()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()

	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if !svc.IsConnected() {
		t.Error("expected connected service")
	}
	if svc.Events() == nil {
		t.Error("expected events after Connect")
	}

	// Double connect should fail
	if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if svc.IsConnected() {
		t.Error("expected disconnected service after Close")
	}

	// Double close should be safe
	if err := svc.Close(ctx); err != nil {
		t.Errorf("second close should not error, got %v", err)
	}
}

func TestUserMailbox(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	t.Run("OwnerID returns correct ID", func(t *testing.T) {
		mb := env.svc.Client("user123")
		if mb.OwnerID() != "user123" {
			t.Errorf("expected OwnerID 'user123', got %q", mb.OwnerID())
		}
	})

	t.Run("operations fail when not connected", func(t *testing.T) {
		disconnected, _ := NewService(WithStore(memory.New()))
		mb := disconnected.Client("user123")

		if _, err := mb.Inbox(ctx); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
		if err := mb.Trash(ctx, store.KindSent, "x"); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
		if _, err := disconnected.Receive(ctx, InboundMessage{To: "a@x"}); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("invalid owner ID is rejected", func(t *testing.T) {
		for _, owner := range []string{"", "user:with:colons", "with space", "a/b"} {
			mb := env.svc.Client(owner)
			if _, err := mb.Drafts(ctx); !errors.Is(err, ErrInvalidOwnerID) {
				t.Errorf("owner %q: expected ErrInvalidOwnerID, got %v", owner, err)
			}
		}
	})

	t.Run("owner ID mismatch is reported as not found", func(t *testing.T) {
		draft, err := env.svc.Client("alice").SaveDraft(ctx, DraftInput{Subject: "mine"})
		if err != nil {
			t.Fatalf("save draft: %v", err)
		}
		bob := env.svc.Client("bob")
		if _, err := bob.GetDraft(ctx, draft.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound reading another owner's draft, got %v", err)
		}
		if err := bob.Trash(ctx, store.KindDraft, draft.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound trashing another owner's draft, got %v", err)
		}
		if err := bob.PermanentlyDelete(ctx, store.KindDraft, draft.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting another owner's draft, got %v", err)
		}

		got, err := env.svc.Client("alice").GetDraft(ctx, draft.ID)
		if err != nil {
			t.Fatalf("owner lost draft: %v", err)
		}
		if got.Trashed {
			t.Error("draft should be untouched")
		}
	})
}

func TestSaveDraft(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	mb := env.svc.Client("alice")

	t.Run("create with empty fields", func(t *testing.T) {
		d, err := mb.SaveDraft(ctx, DraftInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.ID == "" {
			t.Error("expected generated ID")
		}
		if d.OwnerID != "alice" {
			t.Errorf("expected owner alice, got %q", d.OwnerID)
		}
		if d.Attachments == nil {
			t.Error("attachments should be an empty list, not nil")
		}
	})

	t.Run("update keeps starred and untrashes", func(t *testing.T) {
		d, err := mb.SaveDraft(ctx, DraftInput{RecipientEmail: "bob@example.com", Subject: "v1"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := mb.SetStarred(ctx, store.KindDraft, d.ID, true); err != nil {
			t.Fatalf("star: %v", err)
		}
		if err := mb.Trash(ctx, store.KindDraft, d.ID); err != nil {
			t.Fatalf("trash: %v", err)
		}

		updated, err := mb.SaveDraft(ctx, DraftInput{
			ID:          d.ID,
			Subject:     "v2",
			BodyHTML:    "<p>body</p>",
			Attachments: []store.AttachmentInfo{{Filename: "a.pdf", ContentType: "application/pdf", Size: 10}},
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.ID != d.ID {
			t.Errorf("update changed ID: %q != %q", updated.ID, d.ID)
		}
		if updated.Subject != "v2" || updated.RecipientEmail != "" {
			t.Errorf("update should overwrite all fields, got %+v", updated)
		}
		if !updated.Starred {
			t.Error("starred flag should survive update")
		}
		if updated.Trashed {
			t.Error("update should take the draft out of the trash")
		}
		if !updated.LastSavedAt.After(d.LastSavedAt) {
			t.Error("expected LastSavedAt to advance")
		}
		if len(updated.Attachments) != 1 || updated.Attachments[0].Filename != "a.pdf" {
			t.Errorf("unexpected attachments %+v", updated.Attachments)
		}
	})

	t.Run("update unknown draft", func(t *testing.T) {
		_, err := mb.SaveDraft(ctx, DraftInput{ID: "missing"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConcurrentSends(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	mb := env.svc.Client("alice")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mb.Send(ctx, SendRequest{
				From: "alice@example.com", To: []string{"bob@example.com"},
				Subject: "hi", HTMLBody: "<p>hi</p>",
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("send failed: %v", err)
	}

	sent, err := mb.Sent(ctx)
	if err != nil {
		t.Fatalf("list sent: %v", err)
	}
	if len(sent) != 20 {
		t.Errorf("expected 20 sent emails, got %d", len(sent))
	}
	if env.transport.count() != 20 {
		t.Errorf("expected 20 transport calls, got %d", env.transport.count())
	}
}
