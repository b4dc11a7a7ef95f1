package sqlcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/webmail/store"
)

const draftColumns = `id, user_id, recipient_email, subject, body_html, attachments_info, last_saved_at, is_trashed, is_starred`

type draftRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	RecipientEmail  sql.NullString `db:"recipient_email"`
	Subject         sql.NullString `db:"subject"`
	BodyHTML        sql.NullString `db:"body_html"`
	AttachmentsInfo sql.NullString `db:"attachments_info"`
	LastSavedAt     time.Time      `db:"last_saved_at"`
	IsTrashed       sql.NullBool   `db:"is_trashed"`
	IsStarred       sql.NullBool   `db:"is_starred"`
}

func (s *Store) toDraft(r *draftRow) *store.Draft {
	atts, err := store.DecodeAttachments(r.AttachmentsInfo.String)
	if err != nil {
		s.logger.Warn("malformed attachments column", "id", r.ID, "error", err)
	}
	return &store.Draft{
		ID:             r.ID,
		OwnerID:        r.UserID,
		RecipientEmail: r.RecipientEmail.String,
		Subject:        r.Subject.String,
		BodyHTML:       r.BodyHTML.String,
		Attachments:    atts,
		Trashed:        r.IsTrashed.Bool,
		Starred:        r.IsStarred.Bool,
		LastSavedAt:    r.LastSavedAt.UTC(),
	}
}

// CreateDraft inserts a new draft.
func (s *Store) CreateDraft(ctx context.Context, data store.DraftData) (*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	d := &store.Draft{
		ID:             uuid.NewString(),
		OwnerID:        data.OwnerID,
		RecipientEmail: data.RecipientEmail,
		Subject:        data.Subject,
		BodyHTML:       data.BodyHTML,
		Attachments:    append([]store.AttachmentInfo{}, data.Attachments...),
		LastSavedAt:    time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tables.Drafts, draftColumns)
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		d.ID, d.OwnerID, d.RecipientEmail, d.Subject, d.BodyHTML,
		store.EncodeAttachments(d.Attachments), d.LastSavedAt, false, false,
	)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	return d, nil
}

// UpdateDraft overwrites an owned draft and takes it out of the trash.
func (s *Store) UpdateDraft(ctx context.Context, id, ownerID string, data store.DraftData) (*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`UPDATE %s
		SET recipient_email = ?, subject = ?, body_html = ?, attachments_info = ?, last_saved_at = ?, is_trashed = ?
		WHERE id = ? AND user_id = ?`, s.tables.Drafts)
	err := s.exec(ctx, query,
		data.RecipientEmail, data.Subject, data.BodyHTML, store.EncodeAttachments(data.Attachments),
		time.Now().UTC(), false, id, ownerID,
	)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update draft: %w", err)
	}
	return s.GetDraft(ctx, id, ownerID)
}

// GetDraft returns one draft owned by ownerID.
func (s *Store) GetDraft(ctx context.Context, id, ownerID string) (*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row draftRow
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND user_id = ?`, draftColumns, s.tables.Drafts)
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return s.toDraft(&row), nil
}

// ListDrafts returns the owner's drafts, most recently saved first.
func (s *Store) ListDrafts(ctx context.Context, ownerID string, filter store.ListFilter) ([]*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, store.ErrInvalidOwnerID
	}

	var where strings.Builder
	where.WriteString("user_id = ?")
	args := []any{ownerID}
	switch filter.Folder {
	case store.ActiveOnly:
		where.WriteString(" AND (is_trashed IS NULL OR is_trashed = ?)")
		args = append(args, false)
	case store.TrashedOnly:
		where.WriteString(" AND is_trashed = ?")
		args = append(args, true)
	}
	if filter.StarredOnly {
		where.WriteString(" AND is_starred = ?")
		args = append(args, true)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY last_saved_at DESC`, draftColumns, s.tables.Drafts, where.String())
	var rows []draftRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	out := make([]*store.Draft, 0, len(rows))
	for i := range rows {
		out = append(out, s.toDraft(&rows[i]))
	}
	return out, nil
}

// SetDraftTrashed sets the trashed flag.
func (s *Store) SetDraftTrashed(ctx context.Context, id, ownerID string, trashed bool) error {
	return s.setDraftFlag(ctx, "is_trashed", id, ownerID, trashed)
}

// SetDraftStarred sets the starred flag.
func (s *Store) SetDraftStarred(ctx context.Context, id, ownerID string, starred bool) error {
	return s.setDraftFlag(ctx, "is_starred", id, ownerID, starred)
}

// setDraftFlag updates a boolean column. column is always a constant.
func (s *Store) setDraftFlag(ctx context.Context, column, id, ownerID string, value bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ? AND user_id = ?`, s.tables.Drafts, column)
	if err := s.exec(ctx, query, value, id, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set draft %s: %w", column, err)
	}
	return nil
}

// DeleteDraft removes a draft row.
func (s *Store) DeleteDraft(ctx context.Context, id, ownerID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND user_id = ?`, s.tables.Drafts)
	if err := s.exec(ctx, query, id, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
