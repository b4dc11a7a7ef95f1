package webmail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rbaliyan/webmail/content"
	"github.com/rbaliyan/webmail/store"
	"github.com/rbaliyan/webmail/store/memory"
)

func TestReceive(t *testing.T) {
	ctx := context.Background()

	t.Run("stores for the resolved owner", func(t *testing.T) {
		env := setupTestService(t)

		res, err := env.svc.Receive(ctx, InboundMessage{
			To:        " alice@example.com ",
			From:      "carol@elsewhere.org",
			Subject:   "Hello",
			PlainBody: "hi alice",
			HTMLBody:  "<p>hi <b>alice</b></p>",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Stored || res.OwnerID != "alice" || res.Recipient != "alice@example.com" {
			t.Fatalf("unexpected result %+v", res)
		}

		inbox, err := env.svc.Client("alice").Inbox(ctx)
		if err != nil {
			t.Fatalf("inbox: %v", err)
		}
		if len(inbox) != 1 {
			t.Fatalf("expected 1 inbox email, got %d", len(inbox))
		}
		e := inbox[0]
		if e.Kind != store.KindReceived || e.Sender != "carol@elsewhere.org" {
			t.Errorf("unexpected email %+v", e)
		}
		if len(e.Recipients) != 1 || e.Recipients[0] != "alice@example.com" {
			t.Errorf("unexpected recipients %v", e.Recipients)
		}
		if e.PlainBody != "hi alice" {
			t.Errorf("supplied plain body should be kept, got %q", e.PlainBody)
		}

		// Nothing lands in other mailboxes.
		bobInbox, _ := env.svc.Client("bob").Inbox(ctx)
		if len(bobInbox) != 0 {
			t.Errorf("bob should have no mail, got %d", len(bobInbox))
		}
	})

	t.Run("derives plain text when missing", func(t *testing.T) {
		env := setupTestService(t)

		res, err := env.svc.Receive(ctx, InboundMessage{
			To: "bob@example.com", From: "x@y", Subject: "s",
			HTMLBody: `<p>Welcome</p><img src="logo.png">`,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Email.PlainBody != content.PlainText(`<p>Welcome</p><img src="logo.png">`) {
			t.Errorf("unexpected plain body %q", res.Email.PlainBody)
		}
		if !strings.Contains(res.Email.PlainBody, "Welcome") {
			t.Errorf("expected text content, got %q", res.Email.PlainBody)
		}
	})

	t.Run("whitespace plain body is kept", func(t *testing.T) {
		env := setupTestService(t)

		res, err := env.svc.Receive(ctx, InboundMessage{
			To: "bob@example.com", From: "x@y", Subject: "s",
			PlainBody: " \n", HTMLBody: "<p>Welcome</p>",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Email.PlainBody != " \n" {
			t.Errorf("expected supplied plain body, got %q", res.Email.PlainBody)
		}
	})

	t.Run("unknown recipient is discarded", func(t *testing.T) {
		env := setupTestService(t)

		res, err := env.svc.Receive(ctx, InboundMessage{To: "nobody@example.com", From: "x@y", Subject: "spam"})
		if err != nil {
			t.Fatalf("unknown recipient must not be an error, got %v", err)
		}
		if res.Stored || res.Email != nil {
			t.Errorf("nothing should be stored, got %+v", res)
		}
		for _, owner := range []string{"alice", "bob"} {
			inbox, _ := env.svc.Client(owner).Inbox(ctx)
			if len(inbox) != 0 {
				t.Errorf("%s should have no mail", owner)
			}
		}
	})

	t.Run("empty recipient is discarded", func(t *testing.T) {
		env := setupTestService(t)

		res, err := env.svc.Receive(ctx, InboundMessage{To: "   "})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Stored {
			t.Error("empty recipient should not be stored")
		}
	})

	t.Run("resolver errors are returned", func(t *testing.T) {
		boom := errors.New("db down")
		svc, _ := NewService(
			WithStore(memory.New()),
			WithAccountResolver(resolverFunc(func(context.Context, string) (string, error) { return "", boom })),
		)
		if err := svc.Connect(ctx); err != nil {
			t.Fatalf("connect: %v", err)
		}
		defer svc.Close(ctx)

		_, err := svc.Receive(ctx, InboundMessage{To: "alice@example.com"})
		if !errors.Is(err, boom) {
			t.Errorf("expected resolver error, got %v", err)
		}
	})

	t.Run("requires resolver", func(t *testing.T) {
		svc, _ := NewService(WithStore(memory.New()))
		if err := svc.Connect(ctx); err != nil {
			t.Fatalf("connect: %v", err)
		}
		defer svc.Close(ctx)

		_, err := svc.Receive(ctx, InboundMessage{To: "alice@example.com"})
		if !errors.Is(err, ErrResolverRequired) {
			t.Errorf("expected ErrResolverRequired, got %v", err)
		}
	})
}

type resolverFunc func(ctx context.Context, address string) (string, error)

func (f resolverFunc) ResolveAddress(ctx context.Context, address string) (string, error) {
	return f(ctx, address)
}

const rawMessage = "From: Carol <carol@elsewhere.org>\r\n" +
	"To: Alice <alice@example.com>, Bob <bob@example.com>\r\n" +
	"Subject: Lunch\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=b1\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Noon?\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Noon?</p>\r\n" +
	"--b1--\r\n"

func TestReceiveRaw(t *testing.T) {
	ctx := context.Background()

	t.Run("routes on the first To address", func(t *testing.T) {
		env := setupTestService(t)

		res, err := env.svc.ReceiveRaw(ctx, strings.NewReader(rawMessage))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Stored || res.OwnerID != "alice" {
			t.Fatalf("expected message stored for alice, got %+v", res)
		}
		e := res.Email
		if e.Sender != "carol@elsewhere.org" || e.Subject != "Lunch" {
			t.Errorf("unexpected headers: %+v", e)
		}
		if strings.TrimSpace(e.PlainBody) != "Noon?" || strings.TrimSpace(e.HTMLBody) != "<p>Noon?</p>" {
			t.Errorf("unexpected bodies: plain=%q html=%q", e.PlainBody, e.HTMLBody)
		}

		bobInbox, _ := env.svc.Client("bob").Inbox(ctx)
		if len(bobInbox) != 0 {
			t.Error("only the first recipient receives the message")
		}
	})

	t.Run("unparseable input", func(t *testing.T) {
		env := setupTestService(t)

		_, err := env.svc.ReceiveRaw(ctx, strings.NewReader("not a header line without colon\r\n\r\n"))
		if !errors.Is(err, content.ErrUnparseable) {
			t.Errorf("expected ErrUnparseable, got %v", err)
		}
	})
}
