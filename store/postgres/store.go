// Package postgres provides a PostgreSQL implementation of store.Store.
//
// The schema mirrors the legacy webmail tables: sent_emails,
// received_emails and drafts, with recipient lists and attachment metadata
// kept as serialized JSON text.
package postgres

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rbaliyan/webmail/store"
	"github.com/rbaliyan/webmail/store/internal/sqlcore"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL.
type Store struct {
	*sqlcore.Store
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{Store: sqlcore.New(db, dialect, sqlcore.Config{
		Tables: sqlcore.Tables{
			Sent:     o.sentTable,
			Received: o.receivedTable,
			Drafts:   o.draftsTable,
		},
		Timeout: o.timeout,
		Logger:  o.logger,
	})}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB connection.
// This wraps the sql.DB with sqlx for enhanced functionality.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

var dialect = sqlcore.Dialect{
	Name:  "PostgreSQL",
	Quote: pq.QuoteIdentifier,
	Schema: func(t sqlcore.Tables) []string {
		email := func(table, folder string) string {
			return fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					sender TEXT,
					recipients TEXT,
					subject TEXT,
					plain_body TEXT,
					body_html TEXT,
					received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					folder VARCHAR(50) NOT NULL DEFAULT %s,
					is_starred BOOLEAN NOT NULL DEFAULT FALSE
				)`, table, pq.QuoteLiteral(folder))
		}
		return []string{
			email(t.Sent, string(store.KindSent)),
			email(t.Received, string(store.KindReceived)),
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					recipient_email TEXT,
					subject TEXT,
					body_html TEXT,
					attachments_info TEXT,
					last_saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					is_trashed BOOLEAN NOT NULL DEFAULT FALSE,
					is_starred BOOLEAN NOT NULL DEFAULT FALSE
				)`, t.Drafts),
		}
	},
	Indexes: func(t sqlcore.Tables) []string {
		idx := func(table, cols string) string {
			return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(%s)`,
				pq.QuoteIdentifier("idx_"+table+"_owner"), pq.QuoteIdentifier(table), cols)
		}
		return []string{
			idx(t.Sent, "user_id, folder, received_at DESC"),
			idx(t.Received, "user_id, folder, received_at DESC"),
			idx(t.Drafts, "user_id, is_trashed, last_saved_at DESC"),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(user_id) WHERE is_starred`,
				pq.QuoteIdentifier("idx_"+t.Drafts+"_starred"), pq.QuoteIdentifier(t.Drafts)),
		}
	},
}
