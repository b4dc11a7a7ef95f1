// Package smtprelay sends outbound mail by composing a MIME message and
// handing it to an SMTP relay.
package smtprelay

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/rbaliyan/webmail"
)

var _ webmail.Transport = (*Relay)(nil)

// Security selects how the connection to the relay is secured.
type Security int

const (
	// StartTLS upgrades a plain connection with STARTTLS.
	StartTLS Security = iota
	// ImplicitTLS connects over TLS directly (usually port 465).
	ImplicitTLS
	// Plain sends without TLS. Only for local relays and tests.
	Plain
)

// Relay is a Transport backed by an SMTP server.
type Relay struct {
	addr     string
	security Security
	tls      *tls.Config
	username string
	password string
	domain   string
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Relay.
type Option func(*Relay)

// WithSecurity sets the connection security. Default is StartTLS.
func WithSecurity(s Security) Option {
	return func(r *Relay) { r.security = s }
}

// WithTLSConfig sets the TLS configuration used for StartTLS and ImplicitTLS.
func WithTLSConfig(c *tls.Config) Option {
	return func(r *Relay) {
		if c != nil {
			r.tls = c
		}
	}
}

// WithAuth enables SASL PLAIN authentication.
func WithAuth(username, password string) Option {
	return func(r *Relay) {
		r.username = username
		r.password = password
	}
}

// WithMessageIDDomain sets the domain used in generated Message-ID headers.
func WithMessageIDDomain(domain string) Option {
	return func(r *Relay) {
		if domain != "" {
			r.domain = domain
		}
	}
}

// WithTimeout bounds a single delivery when the context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a relay transport for addr (host:port).
func New(addr string, opts ...Option) *Relay {
	r := &Relay{
		addr:     addr,
		security: StartTLS,
		tls:      &tls.Config{MinVersion: tls.VersionTLS12},
		domain:   "localhost",
		timeout:  time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Error is returned when the relay refuses the message.
type Error struct {
	Stage     string
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("smtprelay: %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func classify(stage string, err error) error {
	permanent := false
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		permanent = !smtpErr.Temporary()
	}
	return &Error{Stage: stage, Permanent: permanent, Err: err}
}

// Send composes msg and delivers it in a single SMTP transaction with one
// RCPT per recipient. The receipt carries the generated Message-ID.
func (r *Relay) Send(ctx context.Context, msg *webmail.OutboundMessage) (*webmail.TransportReceipt, error) {
	if r.addr == "" {
		return nil, errors.New("smtprelay: relay address not configured")
	}
	if len(msg.To) == 0 {
		return nil, errors.New("smtprelay: no recipients")
	}

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), r.domain)
	var buf bytes.Buffer
	if err := Compose(&buf, msg, messageID, r.now()); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.deliver(ctx, msg.From, msg.To, buf.Bytes()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, err
	}

	r.logger.Debug("message relayed", "addr", r.addr, "message_id", messageID, "recipients", len(msg.To))
	return &webmail.TransportReceipt{
		MessageID: messageID,
		Response:  map[string]any{"relay": r.addr},
	}, nil
}

func (r *Relay) dial(ctx context.Context) (*smtp.Client, net.Conn, error) {
	dialer := &net.Dialer{}
	switch r.security {
	case Plain:
		conn, err := dialer.DialContext(ctx, "tcp", r.addr)
		if err != nil {
			return nil, nil, err
		}
		return smtp.NewClient(conn), conn, nil
	case ImplicitTLS:
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: r.tls}
		conn, err := tlsDialer.DialContext(ctx, "tcp", r.addr)
		if err != nil {
			return nil, nil, err
		}
		return smtp.NewClient(conn), conn, nil
	default:
		conn, err := dialer.DialContext(ctx, "tcp", r.addr)
		if err != nil {
			return nil, nil, err
		}
		// A context-bound close aborts the handshake as well.
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
		c, err := smtp.NewClientStartTLS(conn, r.serverTLS())
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return c, conn, nil
	}
}

// serverTLS fills in ServerName from the relay address. NewClientStartTLS
// has no address to derive it from.
func (r *Relay) serverTLS() *tls.Config {
	if r.tls.ServerName != "" {
		return r.tls
	}
	cfg := r.tls.Clone()
	if host, _, err := net.SplitHostPort(r.addr); err == nil {
		cfg.ServerName = host
	}
	return cfg
}

// deliver runs one SMTP transaction. Cancelling ctx closes the connection,
// so a transaction that has not finished DATA is abandoned by the server.
func (r *Relay) deliver(ctx context.Context, from string, to []string, data []byte) error {
	c, conn, err := r.dial(ctx)
	if err != nil {
		return &Error{Stage: "connect", Err: err}
	}
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if r.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", r.username, r.password)); err != nil {
			return classify("auth", err)
		}
	}
	if err := c.Mail(from, nil); err != nil {
		return classify("sender", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return classify("recipient "+rcpt, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return classify("data", err)
	}
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return &Error{Stage: "write", Err: err}
	}
	if err := wc.Close(); err != nil {
		return classify("data", err)
	}

	if err := c.Quit(); err != nil {
		r.logger.Warn("smtp quit failed", "addr", r.addr, "error", err)
	}
	return nil
}

// Compose writes msg as a MIME message: a text/html body part followed by
// one attachment part per attachment.
func Compose(w io.Writer, msg *webmail.OutboundMessage, messageID string, date time.Time) error {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID)
	if from, err := mail.ParseAddress(msg.From); err == nil {
		h.SetAddressList("From", []*mail.Address{from})
	} else {
		h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
	}
	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("smtprelay: compose: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("smtprelay: compose body: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(th)
	if err != nil {
		return fmt.Errorf("smtprelay: compose body: %w", err)
	}
	if _, err := io.WriteString(pw, msg.HTMLBody); err != nil {
		return fmt.Errorf("smtprelay: compose body: %w", err)
	}
	pw.Close()
	tw.Close()

	for _, a := range msg.Attachments {
		var ah mail.AttachmentHeader
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.SetContentType(contentType, nil)
		ah.SetFilename(a.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("smtprelay: compose attachment %q: %w", a.Filename, err)
		}
		if _, err := aw.Write(a.Content); err != nil {
			return fmt.Errorf("smtprelay: compose attachment %q: %w", a.Filename, err)
		}
		aw.Close()
	}

	return mw.Close()
}
