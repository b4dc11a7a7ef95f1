// Package sqlcore implements store.Store on top of sqlx for the SQL
// backends. Queries are written with '?' placeholders and rebound to the
// driver's bind style, so the same statements serve SQLite and PostgreSQL.
package sqlcore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/webmail/store"
)

var _ store.Store = (*Store)(nil)

// Tables names the three item tables.
type Tables struct {
	Sent     string
	Received string
	Drafts   string
}

// DefaultTables matches the legacy schema.
var DefaultTables = Tables{
	Sent:     "sent_emails",
	Received: "received_emails",
	Drafts:   "drafts",
}

// Dialect captures what differs between SQL engines.
type Dialect struct {
	// Name is used in log and error messages.
	Name string
	// Quote quotes an identifier.
	Quote func(string) string
	// Schema returns CREATE TABLE statements for the quoted table names.
	Schema func(t Tables) []string
	// Indexes returns CREATE INDEX statements. Failures are logged, not fatal.
	Indexes func(t Tables) []string
}

// Config configures a Store.
type Config struct {
	Tables  Tables
	Timeout time.Duration
	Logger  *slog.Logger
}

// Store is the shared SQL implementation.
type Store struct {
	db        *sqlx.DB
	dialect   Dialect
	raw       Tables
	tables    Tables // quoted
	timeout   time.Duration
	logger    *slog.Logger
	connected int32
}

// New creates a Store. Call Connect before use.
func New(db *sqlx.DB, dialect Dialect, cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Store{
		db:      db,
		dialect: dialect,
		raw:     cfg.Tables,
		tables: Tables{
			Sent:     dialect.Quote(cfg.Tables.Sent),
			Received: dialect.Quote(cfg.Tables.Received),
			Drafts:   dialect.Quote(cfg.Tables.Drafts),
		},
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB { return s.db }

// Connect pings the database and creates the schema.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("%s: db is required", s.dialect.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("%s ping: %w", s.dialect.Name, err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to "+s.dialect.Name,
		"sent_table", s.raw.Sent,
		"received_table", s.raw.Received,
		"drafts_table", s.raw.Drafts,
	)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema(s.tables) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	if s.dialect.Indexes == nil {
		return nil
	}
	for _, idx := range s.dialect.Indexes(s.raw) {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// emailTable maps an email kind to its quoted table.
func (s *Store) emailTable(kind store.Kind) (string, error) {
	switch kind {
	case store.KindSent:
		return s.tables.Sent, nil
	case store.KindReceived:
		return s.tables.Received, nil
	default:
		return "", fmt.Errorf("%w: %q is not an email kind", store.ErrInvalidKind, kind)
	}
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func checkPoint(id, ownerID string) error {
	if id == "" {
		return store.ErrInvalidID
	}
	if ownerID == "" {
		return store.ErrInvalidOwnerID
	}
	return nil
}
