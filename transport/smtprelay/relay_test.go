package smtprelay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/rbaliyan/webmail"
)

type received struct {
	from string
	to   []string
	data []byte
}

type backend struct {
	mu       sync.Mutex
	messages []received
	username string
	password string
	reject   string

	// Slow relays: delay before the greeting and before accepting MAIL.
	greetDelay time.Duration
	mailDelay  time.Duration
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	time.Sleep(b.greetDelay)
	return &session{backend: b}, nil
}

func (b *backend) last() received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[len(b.messages)-1]
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

type session struct {
	backend *backend
	authed  bool
	from    string
	to      []string
}

func (s *session) AuthMechanisms() []string {
	if s.backend.username == "" {
		return nil
	}
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.backend.username || password != s.backend.password {
			return errors.New("invalid credentials")
		}
		s.authed = true
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	time.Sleep(s.backend.mailDelay)
	if s.backend.username != "" && !s.authed {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.reject {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "no such user"}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, received{from: s.from, to: s.to, data: data})
	s.backend.mu.Unlock()
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error { return nil }

func startServer(t *testing.T, be *backend) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := smtp.NewServer(be)
	srv.Domain = "relay.test"
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })
	return l.Addr().String()
}

func testMessage() *webmail.OutboundMessage {
	return &webmail.OutboundMessage{
		From:     "alice@example.com",
		To:       []string{"bob@example.com", "carol@example.com"},
		Subject:  "Quarterly report",
		HTMLBody: "<p>See attached</p>",
		Attachments: []webmail.OutboundAttachment{
			{Filename: "report.csv", ContentType: "text/csv", Content: []byte("a,b\n1,2\n")},
		},
	}
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to every recipient", func(t *testing.T) {
		be := &backend{}
		addr := startServer(t, be)

		r := New(addr, WithSecurity(Plain), WithMessageIDDomain("mail.example.com"))
		receipt, err := r.Send(ctx, testMessage())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasSuffix(receipt.MessageID, "@mail.example.com") {
			t.Errorf("unexpected message id %q", receipt.MessageID)
		}

		got := be.last()
		if got.from != "alice@example.com" {
			t.Errorf("expected sender alice@example.com, got %q", got.from)
		}
		if len(got.to) != 2 || got.to[0] != "bob@example.com" || got.to[1] != "carol@example.com" {
			t.Errorf("unexpected recipients %v", got.to)
		}
		if !bytes.Contains(got.data, []byte(receipt.MessageID)) {
			t.Error("expected Message-ID header in relayed data")
		}
	})

	t.Run("authenticates", func(t *testing.T) {
		be := &backend{username: "user", password: "pass"}
		addr := startServer(t, be)

		r := New(addr, WithSecurity(Plain), WithAuth("user", "pass"))
		if _, err := r.Send(ctx, testMessage()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if be.count() != 1 {
			t.Errorf("expected 1 message, got %d", be.count())
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		be := &backend{username: "user", password: "pass"}
		addr := startServer(t, be)

		r := New(addr, WithSecurity(Plain), WithAuth("user", "wrong"))
		_, err := r.Send(ctx, testMessage())
		var relayErr *Error
		if !errors.As(err, &relayErr) || relayErr.Stage != "auth" {
			t.Fatalf("expected auth error, got %v", err)
		}
		if be.count() != 0 {
			t.Error("nothing should be delivered")
		}
	})

	t.Run("rejected recipient is permanent", func(t *testing.T) {
		be := &backend{reject: "carol@example.com"}
		addr := startServer(t, be)

		_, err := New(addr, WithSecurity(Plain)).Send(ctx, testMessage())
		var relayErr *Error
		if !errors.As(err, &relayErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if !relayErr.Permanent {
			t.Error("expected 5xx to be permanent")
		}
		if be.count() != 0 {
			t.Error("nothing should be delivered")
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := l.Addr().String()
		l.Close()

		_, err = New(addr, WithSecurity(Plain)).Send(ctx, testMessage())
		var relayErr *Error
		if !errors.As(err, &relayErr) || relayErr.Stage != "connect" {
			t.Fatalf("expected connect error, got %v", err)
		}
	})

	t.Run("requires configuration", func(t *testing.T) {
		if _, err := New("").Send(ctx, testMessage()); err == nil {
			t.Error("expected error without address")
		}
		if _, err := New("127.0.0.1:25").Send(ctx, &webmail.OutboundMessage{}); err == nil {
			t.Error("expected error without recipients")
		}
	})
}

func TestCompose(t *testing.T) {
	var buf bytes.Buffer
	date := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := Compose(&buf, testMessage(), "id-1@example.com", date); err != nil {
		t.Fatalf("compose: %v", err)
	}

	mr, err := mail.CreateReader(&buf)
	if err != nil {
		t.Fatalf("read composed message: %v", err)
	}
	if subject, _ := mr.Header.Subject(); subject != "Quarterly report" {
		t.Errorf("unexpected subject %q", subject)
	}
	to, err := mr.Header.AddressList("To")
	if err != nil || len(to) != 2 {
		t.Fatalf("expected 2 To addresses, got %v (%v)", to, err)
	}
	if id, _ := mr.Header.MessageID(); id != "id-1@example.com" {
		t.Errorf("unexpected Message-ID %q", id)
	}

	var html string
	var attachments []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		body, _ := io.ReadAll(p.Body)
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			if ct, _, _ := h.ContentType(); ct == "text/html" {
				html = string(body)
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			attachments = append(attachments, name)
			if string(body) != "a,b\n1,2\n" {
				t.Errorf("unexpected attachment body %q", body)
			}
		}
	}
	if html != "<p>See attached</p>" {
		t.Errorf("unexpected html body %q", html)
	}
	if len(attachments) != 1 || attachments[0] != "report.csv" {
		t.Errorf("unexpected attachments %v", attachments)
	}
}

func TestSendCancelled(t *testing.T) {
	cases := []struct {
		name string
		be   *backend
	}{
		{"slow greeting", &backend{greetDelay: 300 * time.Millisecond}},
		{"slow sender acceptance", &backend{mailDelay: 300 * time.Millisecond}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			addr := startServer(t, tc.be)
			r := New(addr, WithSecurity(Plain))

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			_, err := r.Send(ctx, testMessage())
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("expected deadline error, got %v", err)
			}

			// The abandoned transaction must not complete later.
			time.Sleep(500 * time.Millisecond)
			if n := tc.be.count(); n != 0 {
				t.Errorf("expected no delivery after a failed send, got %d", n)
			}
		})
	}
}
