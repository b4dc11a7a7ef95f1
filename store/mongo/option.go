package mongo

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultDatabase           = "webmail"
	DefaultSentCollection     = "sent_emails"
	DefaultReceivedCollection = "received_emails"
	DefaultDraftsCollection   = "drafts"
	DefaultTimeout            = 10 * time.Second
)

// options holds MongoDB store configuration.
type options struct {
	database string
	sent     string
	received string
	drafts   string
	timeout  time.Duration
	logger   *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		database: DefaultDatabase,
		sent:     DefaultSentCollection,
		received: DefaultReceivedCollection,
		drafts:   DefaultDraftsCollection,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a MongoDB store.
type Option func(*options)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithCollections overrides the collection names. Empty names keep the
// default.
func WithCollections(sent, received, drafts string) Option {
	return func(o *options) {
		if sent != "" {
			o.sent = sent
		}
		if received != "" {
			o.received = received
		}
		if drafts != "" {
			o.drafts = drafts
		}
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
