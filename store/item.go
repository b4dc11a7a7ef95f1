package store

import (
	"fmt"
	"time"

	"github.com/rbaliyan/webmail/recipients"
)

// Kind identifies which of the three item families an item belongs to.
type Kind string

const (
	KindSent     Kind = "sent"
	KindReceived Kind = "inbox"
	KindDraft    Kind = "draft"
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{KindSent, KindReceived, KindDraft}

// ParseKind converts an external kind name into a Kind.
// "received" is accepted as an alias for "inbox".
func ParseKind(s string) (Kind, error) {
	switch s {
	case string(KindSent):
		return KindSent, nil
	case string(KindReceived), "received":
		return KindReceived, nil
	case string(KindDraft):
		return KindDraft, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// IsEmail reports whether the kind is stored as an Email.
func (k Kind) IsEmail() bool {
	return k == KindSent || k == KindReceived
}

func (k Kind) String() string { return string(k) }

// FolderState is the folder an email currently lives in.
type FolderState int

const (
	FolderActive FolderState = iota
	FolderTrashed
)

// FolderTrashValue is the persisted folder value of trashed emails.
const FolderTrashValue = "trash"

// FolderValue returns the persisted folder column value for an email of
// the given kind: the kind's own folder name when active, "trash" otherwise.
func FolderValue(kind Kind, state FolderState) string {
	if state == FolderTrashed {
		return FolderTrashValue
	}
	return string(kind)
}

// ParseFolderValue converts a persisted folder value back into a state.
func ParseFolderValue(v string) FolderState {
	if v == FolderTrashValue {
		return FolderTrashed
	}
	return FolderActive
}

func (f FolderState) String() string {
	if f == FolderTrashed {
		return "trashed"
	}
	return "active"
}

// Item is the common view of emails and drafts used by cross-kind listings.
type Item interface {
	GetID() string
	GetOwnerID() string
	GetKind() Kind
	GetSubject() string
	// GetRecipients returns the recipient addresses in normalized form.
	GetRecipients() []string
	IsStarred() bool
	IsTrashed() bool
	// GetTimestamp is the received time of emails and the last save time
	// of drafts.
	GetTimestamp() time.Time
}

var (
	_ Item = (*Email)(nil)
	_ Item = (*Draft)(nil)
)

// Email is a sent or received message.
type Email struct {
	ID         string
	OwnerID    string
	Kind       Kind
	Sender     string
	Recipients []string
	Subject    string
	PlainBody  string
	HTMLBody   string
	Folder     FolderState
	Starred    bool
	ReceivedAt time.Time
}

func (e *Email) GetID() string           { return e.ID }
func (e *Email) GetOwnerID() string      { return e.OwnerID }
func (e *Email) GetKind() Kind           { return e.Kind }
func (e *Email) GetSubject() string      { return e.Subject }
func (e *Email) GetRecipients() []string { return e.Recipients }
func (e *Email) IsStarred() bool         { return e.Starred }
func (e *Email) IsTrashed() bool         { return e.Folder == FolderTrashed }
func (e *Email) GetTimestamp() time.Time { return e.ReceivedAt }

// Clone returns a deep copy.
func (e *Email) Clone() *Email {
	c := *e
	c.Recipients = append([]string(nil), e.Recipients...)
	if c.Recipients == nil {
		c.Recipients = []string{}
	}
	return &c
}

// Draft is an unsent composition. Unlike emails it stores a single raw
// recipient string and tracks trash with a flag.
type Draft struct {
	ID             string
	OwnerID        string
	RecipientEmail string
	Subject        string
	BodyHTML       string
	Attachments    []AttachmentInfo
	Trashed        bool
	Starred        bool
	LastSavedAt    time.Time
}

func (d *Draft) GetID() string           { return d.ID }
func (d *Draft) GetOwnerID() string      { return d.OwnerID }
func (d *Draft) GetKind() Kind           { return KindDraft }
func (d *Draft) GetSubject() string      { return d.Subject }
func (d *Draft) GetRecipients() []string { return recipients.Split(d.RecipientEmail) }
func (d *Draft) IsStarred() bool         { return d.Starred }
func (d *Draft) IsTrashed() bool         { return d.Trashed }
func (d *Draft) GetTimestamp() time.Time { return d.LastSavedAt }

// Clone returns a deep copy.
func (d *Draft) Clone() *Draft {
	c := *d
	c.Attachments = append([]AttachmentInfo(nil), d.Attachments...)
	if c.Attachments == nil {
		c.Attachments = []AttachmentInfo{}
	}
	return &c
}

// AttachmentInfo is the metadata a draft keeps about an attachment. File
// contents are not stored.
type AttachmentInfo struct {
	Filename    string `json:"filename" bson:"filename"`
	ContentType string `json:"content_type,omitempty" bson:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty" bson:"size,omitempty"`
}

// EmailData is the input for CreateEmail.
type EmailData struct {
	OwnerID    string
	Kind       Kind
	Sender     string
	Recipients []string
	Subject    string
	PlainBody  string
	HTMLBody   string
}

// Validate checks the fields every backend relies on.
func (d EmailData) Validate() error {
	if !d.Kind.IsEmail() {
		return fmt.Errorf("%w: %q is not an email kind", ErrInvalidKind, d.Kind)
	}
	if d.OwnerID == "" {
		return ErrInvalidOwnerID
	}
	return nil
}

// DraftData is the input for CreateDraft and UpdateDraft.
type DraftData struct {
	OwnerID        string
	RecipientEmail string
	Subject        string
	BodyHTML       string
	Attachments    []AttachmentInfo
}

// Validate checks the fields every backend relies on.
func (d DraftData) Validate() error {
	if d.OwnerID == "" {
		return ErrInvalidOwnerID
	}
	return nil
}
