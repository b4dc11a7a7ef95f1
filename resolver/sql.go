package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/webmail"
)

var _ webmail.AccountResolver = (*SQL)(nil)

// Default configuration values for SQL.
const (
	DefaultUsersTable   = "users"
	DefaultIDColumn     = "id"
	DefaultEmailColumn  = "email"
	DefaultQueryTimeout = 5 * time.Second
)

// SQL resolves addresses against an accounts table.
type SQL struct {
	db      *sqlx.DB
	query   string
	timeout time.Duration
}

// SQLOption configures an SQL resolver.
type SQLOption func(*sqlOptions)

type sqlOptions struct {
	table       string
	idColumn    string
	emailColumn string
	quote       func(string) string
	timeout     time.Duration
}

// WithTable sets the table and columns to query. Empty values keep the default.
func WithTable(table, idColumn, emailColumn string) SQLOption {
	return func(o *sqlOptions) {
		if table != "" {
			o.table = table
		}
		if idColumn != "" {
			o.idColumn = idColumn
		}
		if emailColumn != "" {
			o.emailColumn = emailColumn
		}
	}
}

// WithIdentifierQuoter sets the function used to quote the table and
// column names, such as pq.QuoteIdentifier. The default uses ANSI double quotes.
func WithIdentifierQuoter(quote func(string) string) SQLOption {
	return func(o *sqlOptions) {
		if quote != nil {
			o.quote = quote
		}
	}
}

// WithQueryTimeout bounds each lookup.
func WithQueryTimeout(d time.Duration) SQLOption {
	return func(o *sqlOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func quoteANSI(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, name[i])
	}
	return string(append(out, '"'))
}

// NewSQL creates a resolver that runs
//
//	SELECT id FROM users WHERE email = ?
//
// on db, with placeholders rebound for the driver.
func NewSQL(db *sqlx.DB, opts ...SQLOption) *SQL {
	o := &sqlOptions{
		table:       DefaultUsersTable,
		idColumn:    DefaultIDColumn,
		emailColumn: DefaultEmailColumn,
		quote:       quoteANSI,
		timeout:     DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		o.quote(o.idColumn), o.quote(o.table), o.quote(o.emailColumn))
	return &SQL{
		db:      db,
		query:   db.Rebind(q),
		timeout: o.timeout,
	}
}

// ResolveAddress returns the ID of the account whose email equals address.
func (r *SQL) ResolveAddress(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Scanning into a string accepts both integer and text keys.
	var id string
	if err := r.db.GetContext(ctx, &id, r.query, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", webmail.ErrAccountNotFound, address)
		}
		return "", fmt.Errorf("resolve %s: %w", address, err)
	}
	return id, nil
}
