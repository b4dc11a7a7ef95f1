// Package sqlite provides a SQLite implementation of store.Store using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/webmail/store"
	"github.com/rbaliyan/webmail/store/internal/sqlcore"
	_ "modernc.org/sqlite"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store on SQLite.
type Store struct {
	*sqlcore.Store
	owned *sqlx.DB
}

// New creates a store on an existing connection. The caller closes db.
// Call Connect() to create the schema.
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

// Open opens the database at path and returns a store that owns the
// connection. An empty path or ":memory:" opens a private in-memory
// database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}

	db, err := sqlx.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	s := New(db, opts...)
	s.owned = db
	return s, nil
}

// Close marks the store as disconnected and closes the connection if the
// store opened it.
func (s *Store) Close(ctx context.Context) error {
	if err := s.Store.Close(ctx); err != nil {
		return err
	}
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var dialect = sqlcore.Dialect{
	Name:  "sqlite",
	Quote: quote,
	Schema: func(t sqlcore.Tables) []string {
		email := func(table, folder string) string {
			return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				sender TEXT,
				recipients TEXT,
				subject TEXT,
				plain_body TEXT,
				body_html TEXT,
				received_at TIMESTAMP NOT NULL,
				folder TEXT NOT NULL DEFAULT '%s',
				is_starred BOOLEAN NOT NULL DEFAULT 0
			)`, table, folder)
		}
		return []string{
			email(t.Sent, string(store.KindSent)),
			email(t.Received, string(store.KindReceived)),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				recipient_email TEXT,
				subject TEXT,
				body_html TEXT,
				attachments_info TEXT,
				last_saved_at TIMESTAMP NOT NULL,
				is_trashed BOOLEAN NOT NULL DEFAULT 0,
				is_starred BOOLEAN NOT NULL DEFAULT 0
			)`, t.Drafts),
		}
	},
	Indexes: func(t sqlcore.Tables) []string {
		return []string{
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(user_id, folder, received_at DESC)`, quote("idx_"+t.Sent+"_owner"), quote(t.Sent)),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(user_id, folder, received_at DESC)`, quote("idx_"+t.Received+"_owner"), quote(t.Received)),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(user_id, is_trashed, last_saved_at DESC)`, quote("idx_"+t.Drafts+"_owner"), quote(t.Drafts)),
		}
	},
}
