package sqlite

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

// options holds SQLite store configuration.
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

// Option configures a SQLite store.
type Option func(*options)

// WithTables overrides the table names. Empty names keep the default.
func WithTables(sent, received, drafts string) Option {
	return func(o *options) {
		if sent != "" {
			o.sentTable = sent
		}
		if received != "" {
			o.receivedTable = received
		}
		if drafts != "" {
			o.draftsTable = drafts
		}
	}
}

// WithTimeout sets the per-operation timeout.
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
