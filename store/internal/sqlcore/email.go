package sqlcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/webmail/recipients"
	"github.com/rbaliyan/webmail/store"
)

const emailColumns = `id, user_id, sender, recipients, subject, plain_body, body_html, received_at, folder, is_starred`

type emailRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	Sender     sql.NullString `db:"sender"`
	Recipients sql.NullString `db:"recipients"`
	Subject    sql.NullString `db:"subject"`
	PlainBody  sql.NullString `db:"plain_body"`
	BodyHTML   sql.NullString `db:"body_html"`
	ReceivedAt time.Time      `db:"received_at"`
	Folder     sql.NullString `db:"folder"`
	IsStarred  sql.NullBool   `db:"is_starred"`
}

func (s *Store) toEmail(kind store.Kind, r *emailRow) *store.Email {
	list, err := recipients.Decode(r.Recipients.String)
	if err != nil {
		s.logger.Warn("malformed recipients column", "kind", kind, "id", r.ID, "error", err)
	}
	return &store.Email{
		ID:         r.ID,
		OwnerID:    r.UserID,
		Kind:       kind,
		Sender:     r.Sender.String,
		Recipients: list,
		Subject:    r.Subject.String,
		PlainBody:  r.PlainBody.String,
		HTMLBody:   r.BodyHTML.String,
		Folder:     store.ParseFolderValue(r.Folder.String),
		Starred:    r.IsStarred.Bool,
		ReceivedAt: r.ReceivedAt.UTC(),
	}
}

// CreateEmail inserts a sent or received email.
func (s *Store) CreateEmail(ctx context.Context, data store.EmailData) (*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	table, err := s.emailTable(data.Kind)
	if err != nil {
		return nil, err
	}

	e := &store.Email{
		ID:         uuid.NewString(),
		OwnerID:    data.OwnerID,
		Kind:       data.Kind,
		Sender:     data.Sender,
		Recipients: append([]string{}, data.Recipients...),
		Subject:    data.Subject,
		PlainBody:  data.PlainBody,
		HTMLBody:   data.HTMLBody,
		Folder:     store.FolderActive,
		ReceivedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table, emailColumns)
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query),
		e.ID, e.OwnerID, e.Sender, recipients.Encode(e.Recipients), e.Subject,
		e.PlainBody, e.HTMLBody, e.ReceivedAt, store.FolderValue(e.Kind, e.Folder), false,
	)
	if err != nil {
		return nil, fmt.Errorf("insert %s email: %w", data.Kind, err)
	}
	return e, nil
}

// GetEmail returns one email owned by ownerID.
func (s *Store) GetEmail(ctx context.Context, kind store.Kind, id, ownerID string) (*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return nil, err
	}
	table, err := s.emailTable(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row emailRow
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND user_id = ?`, emailColumns, table)
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get %s email: %w", kind, err)
	}
	return s.toEmail(kind, &row), nil
}

// ListEmails returns the owner's emails of one kind, newest first.
func (s *Store) ListEmails(ctx context.Context, kind store.Kind, ownerID string, filter store.ListFilter) ([]*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, store.ErrInvalidOwnerID
	}
	table, err := s.emailTable(kind)
	if err != nil {
		return nil, err
	}

	var where strings.Builder
	where.WriteString("user_id = ?")
	args := []any{ownerID}
	switch filter.Folder {
	case store.ActiveOnly:
		where.WriteString(" AND (folder IS NULL OR folder <> ?)")
		args = append(args, store.FolderTrashValue)
	case store.TrashedOnly:
		where.WriteString(" AND folder = ?")
		args = append(args, store.FolderTrashValue)
	}
	if filter.StarredOnly {
		where.WriteString(" AND is_starred = ?")
		args = append(args, true)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY received_at DESC`, emailColumns, table, where.String())
	var rows []emailRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list %s emails: %w", kind, err)
	}

	out := make([]*store.Email, 0, len(rows))
	for i := range rows {
		out = append(out, s.toEmail(kind, &rows[i]))
	}
	return out, nil
}

// SetEmailFolder moves an email between its own folder and the trash.
func (s *Store) SetEmailFolder(ctx context.Context, kind store.Kind, id, ownerID string, folder store.FolderState) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}
	table, err := s.emailTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET folder = ? WHERE id = ? AND user_id = ?`, table)
	if err := s.exec(ctx, query, store.FolderValue(kind, folder), id, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set %s folder: %w", kind, err)
	}
	return nil
}

// SetEmailStarred sets the starred flag.
func (s *Store) SetEmailStarred(ctx context.Context, kind store.Kind, id, ownerID string, starred bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}
	table, err := s.emailTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET is_starred = ? WHERE id = ? AND user_id = ?`, table)
	if err := s.exec(ctx, query, starred, id, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set %s starred: %w", kind, err)
	}
	return nil
}

// DeleteEmail removes an email row.
func (s *Store) DeleteEmail(ctx context.Context, kind store.Kind, id, ownerID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}
	table, err := s.emailTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND user_id = ?`, table)
	if err := s.exec(ctx, query, id, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete %s email: %w", kind, err)
	}
	return nil
}
