// Package mongo provides a MongoDB implementation of store.Store.
//
// Each item kind lives in its own collection. Documents use string UUIDs as
// _id so that identifiers look the same across every backend.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/webmail/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client    *mongo.Client
	sent      *mongo.Collection
	received  *mongo.Collection
	drafts    *mongo.Collection
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new MongoDB store with the provided client.
// Call Connect() to initialize the collections and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect pings the server and creates indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.client == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("mongo ping: %w", err)
	}

	db := s.client.Database(s.opts.database)
	s.sent = db.Collection(s.opts.sent)
	s.received = db.Collection(s.opts.received)
	s.drafts = db.Collection(s.opts.drafts)

	if err := s.ensureIndexes(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure indexes: %w", err)
	}

	s.logger.Info("connected to MongoDB", "database", s.opts.database)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	emailIndexes := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "folder", Value: 1},
			{Key: "received_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "is_starred", Value: 1},
		}},
	}
	for _, coll := range []*mongo.Collection{s.sent, s.received} {
		if _, err := coll.Indexes().CreateMany(ctx, emailIndexes); err != nil {
			return err
		}
	}

	_, err := s.drafts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "is_trashed", Value: 1},
			{Key: "last_saved_at", Value: -1},
		}},
	})
	return err
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

func (s *Store) emailCollection(kind store.Kind) (*mongo.Collection, error) {
	switch kind {
	case store.KindSent:
		return s.sent, nil
	case store.KindReceived:
		return s.received, nil
	default:
		return nil, fmt.Errorf("%w: %q is not an email kind", store.ErrInvalidKind, kind)
	}
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

// owned is the filter every point operation uses.
func owned(id, ownerID string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: ownerID}}
}

// =============================================================================
// Documents
// =============================================================================

type emailDoc struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	Sender     string    `bson:"sender"`
	Recipients []string  `bson:"recipients"`
	Subject    string    `bson:"subject"`
	PlainBody  string    `bson:"plain_body"`
	BodyHTML   string    `bson:"body_html"`
	ReceivedAt time.Time `bson:"received_at"`
	Folder     string    `bson:"folder"`
	IsStarred  bool      `bson:"is_starred"`
}

func (d *emailDoc) toEmail(kind store.Kind) *store.Email {
	recips := d.Recipients
	if recips == nil {
		recips = []string{}
	}
	return &store.Email{
		ID:         d.ID,
		OwnerID:    d.UserID,
		Kind:       kind,
		Sender:     d.Sender,
		Recipients: recips,
		Subject:    d.Subject,
		PlainBody:  d.PlainBody,
		HTMLBody:   d.BodyHTML,
		Folder:     store.ParseFolderValue(d.Folder),
		Starred:    d.IsStarred,
		ReceivedAt: d.ReceivedAt.UTC(),
	}
}

type draftDoc struct {
	ID              string                 `bson:"_id"`
	UserID          string                 `bson:"user_id"`
	RecipientEmail  string                 `bson:"recipient_email"`
	Subject         string                 `bson:"subject"`
	BodyHTML        string                 `bson:"body_html"`
	AttachmentsInfo []store.AttachmentInfo `bson:"attachments_info"`
	LastSavedAt     time.Time              `bson:"last_saved_at"`
	IsTrashed       bool                   `bson:"is_trashed"`
	IsStarred       bool                   `bson:"is_starred"`
}

func (d *draftDoc) toDraft() *store.Draft {
	atts := d.AttachmentsInfo
	if atts == nil {
		atts = []store.AttachmentInfo{}
	}
	return &store.Draft{
		ID:             d.ID,
		OwnerID:        d.UserID,
		RecipientEmail: d.RecipientEmail,
		Subject:        d.Subject,
		BodyHTML:       d.BodyHTML,
		Attachments:    atts,
		Trashed:        d.IsTrashed,
		Starred:        d.IsStarred,
		LastSavedAt:    d.LastSavedAt.UTC(),
	}
}

// =============================================================================
// Emails
// =============================================================================

// CreateEmail inserts a sent or received email.
func (s *Store) CreateEmail(ctx context.Context, data store.EmailData) (*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	coll, err := s.emailCollection(data.Kind)
	if err != nil {
		return nil, err
	}

	doc := emailDoc{
		ID:         uuid.NewString(),
		UserID:     data.OwnerID,
		Sender:     data.Sender,
		Recipients: append([]string{}, data.Recipients...),
		Subject:    data.Subject,
		PlainBody:  data.PlainBody,
		BodyHTML:   data.HTMLBody,
		ReceivedAt: time.Now().UTC().Truncate(time.Millisecond),
		Folder:     store.FolderValue(data.Kind, store.FolderActive),
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert %s email: %w", data.Kind, err)
	}
	return doc.toEmail(data.Kind), nil
}

// GetEmail returns one email owned by ownerID.
func (s *Store) GetEmail(ctx context.Context, kind store.Kind, id, ownerID string) (*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return nil, err
	}
	coll, err := s.emailCollection(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc emailDoc
	if err := coll.FindOne(ctx, owned(id, ownerID)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get %s email: %w", kind, err)
	}
	return doc.toEmail(kind), nil
}

// ListEmails returns the owner's emails of one kind, newest first.
func (s *Store) ListEmails(ctx context.Context, kind store.Kind, ownerID string, filter store.ListFilter) ([]*store.Email, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, store.ErrInvalidOwnerID
	}
	coll, err := s.emailCollection(kind)
	if err != nil {
		return nil, err
	}

	query := bson.D{{Key: "user_id", Value: ownerID}}
	switch filter.Folder {
	case store.ActiveOnly:
		query = append(query, bson.E{Key: "folder", Value: bson.D{{Key: "$ne", Value: store.FolderTrashValue}}})
	case store.TrashedOnly:
		query = append(query, bson.E{Key: "folder", Value: store.FolderTrashValue})
	}
	if filter.StarredOnly {
		query = append(query, bson.E{Key: "is_starred", Value: true})
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	cursor, err := coll.Find(ctx, query, mongoopts.Find().SetSort(bson.D{{Key: "received_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list %s emails: %w", kind, err)
	}
	var docs []emailDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s emails: %w", kind, err)
	}

	out := make([]*store.Email, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toEmail(kind))
	}
	return out, nil
}

// SetEmailFolder moves an email between its own folder and the trash.
func (s *Store) SetEmailFolder(ctx context.Context, kind store.Kind, id, ownerID string, folder store.FolderState) error {
	return s.updateEmail(ctx, kind, id, ownerID, bson.D{{Key: "folder", Value: store.FolderValue(kind, folder)}})
}

// SetEmailStarred sets the starred flag.
func (s *Store) SetEmailStarred(ctx context.Context, kind store.Kind, id, ownerID string, starred bool) error {
	return s.updateEmail(ctx, kind, id, ownerID, bson.D{{Key: "is_starred", Value: starred}})
}

func (s *Store) updateEmail(ctx context.Context, kind store.Kind, id, ownerID string, set bson.D) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}
	coll, err := s.emailCollection(kind)
	if err != nil {
		return err
	}
	return s.update(ctx, coll, id, ownerID, set)
}

// DeleteEmail removes an email.
func (s *Store) DeleteEmail(ctx context.Context, kind store.Kind, id, ownerID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}
	coll, err := s.emailCollection(kind)
	if err != nil {
		return err
	}
	return s.delete(ctx, coll, id, ownerID)
}

func (s *Store) update(ctx context.Context, coll *mongo.Collection, id, ownerID string, set bson.D) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	res, err := coll.UpdateOne(ctx, owned(id, ownerID), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("update %s: %w", coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) delete(ctx context.Context, coll *mongo.Collection, id, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	res, err := coll.DeleteOne(ctx, owned(id, ownerID))
	if err != nil {
		return fmt.Errorf("delete from %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// =============================================================================
// Drafts
// =============================================================================

// CreateDraft inserts a new draft.
func (s *Store) CreateDraft(ctx context.Context, data store.DraftData) (*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	doc := draftDoc{
		ID:              uuid.NewString(),
		UserID:          data.OwnerID,
		RecipientEmail:  data.RecipientEmail,
		Subject:         data.Subject,
		BodyHTML:        data.BodyHTML,
		AttachmentsInfo: append([]store.AttachmentInfo{}, data.Attachments...),
		LastSavedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.drafts.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	return doc.toDraft(), nil
}

// UpdateDraft overwrites an owned draft and takes it out of the trash.
func (s *Store) UpdateDraft(ctx context.Context, id, ownerID string, data store.DraftData) (*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return nil, err
	}

	set := bson.D{
		{Key: "recipient_email", Value: data.RecipientEmail},
		{Key: "subject", Value: data.Subject},
		{Key: "body_html", Value: data.BodyHTML},
		{Key: "attachments_info", Value: append([]store.AttachmentInfo{}, data.Attachments...)},
		{Key: "last_saved_at", Value: time.Now().UTC().Truncate(time.Millisecond)},
		{Key: "is_trashed", Value: false},
	}
	if err := s.update(ctx, s.drafts, id, ownerID, set); err != nil {
		return nil, err
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

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc draftDoc
	if err := s.drafts.FindOne(ctx, owned(id, ownerID)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return doc.toDraft(), nil
}

// ListDrafts returns the owner's drafts, most recently saved first.
func (s *Store) ListDrafts(ctx context.Context, ownerID string, filter store.ListFilter) ([]*store.Draft, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, store.ErrInvalidOwnerID
	}

	query := bson.D{{Key: "user_id", Value: ownerID}}
	switch filter.Folder {
	case store.ActiveOnly:
		query = append(query, bson.E{Key: "is_trashed", Value: bson.D{{Key: "$ne", Value: true}}})
	case store.TrashedOnly:
		query = append(query, bson.E{Key: "is_trashed", Value: true})
	}
	if filter.StarredOnly {
		query = append(query, bson.E{Key: "is_starred", Value: true})
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	cursor, err := s.drafts.Find(ctx, query, mongoopts.Find().SetSort(bson.D{{Key: "last_saved_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	var docs []draftDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}

	out := make([]*store.Draft, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDraft())
	}
	return out, nil
}

// SetDraftTrashed sets the trashed flag.
func (s *Store) SetDraftTrashed(ctx context.Context, id, ownerID string, trashed bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}
	return s.update(ctx, s.drafts, id, ownerID, bson.D{{Key: "is_trashed", Value: trashed}})
}

// SetDraftStarred sets the starred flag.
func (s *Store) SetDraftStarred(ctx context.Context, id, ownerID string, starred bool) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}
	return s.update(ctx, s.drafts, id, ownerID, bson.D{{Key: "is_starred", Value: starred}})
}

// DeleteDraft removes a draft.
func (s *Store) DeleteDraft(ctx context.Context, id, ownerID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if err := checkPoint(id, ownerID); err != nil {
		return err
	}
	return s.delete(ctx, s.drafts, id, ownerID)
}
