package postgres

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultSentTable     = "sent_emails"
	DefaultReceivedTable = "received_emails"
	DefaultDraftsTable   = "drafts"
	DefaultTimeout       = 10 * time.Second
)

// options holds PostgreSQL store configuration.
type options struct {
	sentTable     string
	receivedTable string
	draftsTable   string
	timeout       time.Duration
	logger        *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		sentTable:     DefaultSentTable,
		receivedTable: DefaultReceivedTable,
		draftsTable:   DefaultDraftsTable,
		timeout:       DefaultTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a PostgreSQL store.
type Option func(*options)

// WithSentTable sets the sent emails table name.
func WithSentTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.sentTable = name
		}
	}
}

// WithReceivedTable sets the received emails table name.
func WithReceivedTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.receivedTable = name
		}
	}
}

// WithDraftsTable sets the drafts table name.
func WithDraftsTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.draftsTable = name
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
