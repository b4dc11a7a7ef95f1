package content

import (
	"errors"
	"strings"
	"testing"
)

const multipartMessage = "From: Alice <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>, carol@example.com\r\n" +
	"Subject: Quarterly report\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See attached.\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>See attached.</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=report.pdf\r\n" +
	"\r\n" +
	"%PDF-1.4\r\n" +
	"--outer--\r\n"

func TestParseMessage(t *testing.T) {
	t.Run("multipart message", func(t *testing.T) {
		msg, err := ParseMessage(strings.NewReader(multipartMessage))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.From != "alice@example.com" {
			t.Errorf("expected from alice@example.com, got %q", msg.From)
		}
		if msg.To != "bob@example.com" {
			t.Errorf("expected first To address, got %q", msg.To)
		}
		if msg.Subject != "Quarterly report" {
			t.Errorf("unexpected subject %q", msg.Subject)
		}
		if !strings.Contains(msg.PlainBody, "See attached.") {
			t.Errorf("unexpected plain body %q", msg.PlainBody)
		}
		if !strings.Contains(msg.HTMLBody, "<p>See attached.</p>") {
			t.Errorf("unexpected html body %q", msg.HTMLBody)
		}
		if msg.Attachments != 1 {
			t.Errorf("expected 1 attachment, got %d", msg.Attachments)
		}
	})

	t.Run("single part message", func(t *testing.T) {
		raw := "From: alice@example.com\r\nTo: bob@example.com\r\nSubject: hi\r\n\r\nhello there\r\n"
		msg, err := ParseMessage(strings.NewReader(raw))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(msg.PlainBody, "hello there") {
			t.Errorf("unexpected plain body %q", msg.PlainBody)
		}
		if msg.HTMLBody != "" {
			t.Errorf("expected no html body, got %q", msg.HTMLBody)
		}
	})

	t.Run("missing headers leave fields empty", func(t *testing.T) {
		msg, err := ParseMessage(strings.NewReader("Subject: bare\r\n\r\nbody\r\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.To != "" || msg.From != "" {
			t.Errorf("expected empty addresses, got to=%q from=%q", msg.To, msg.From)
		}
	})

	t.Run("unreadable input", func(t *testing.T) {
		_, err := ParseMessage(strings.NewReader("this is not a header line\r\n\r\nbody\r\n"))
		if !errors.Is(err, ErrUnparseable) {
			t.Errorf("expected ErrUnparseable, got %v", err)
		}
	})
}
