package webmail

import (
	"context"

	"github.com/rbaliyan/webmail/content"
	"github.com/rbaliyan/webmail/store"
)

// recordSent stores an email the owner has sent. The plain-text body is
// always derived from the HTML since senders supply no alternative.
func (s *service) recordSent(ctx context.Context, ownerID, sender string, to []string, subject, html string) (*store.Email, error) {
	return s.store.CreateEmail(ctx, store.EmailData{
		OwnerID:    ownerID,
		Kind:       store.KindSent,
		Sender:     sender,
		Recipients: to,
		Subject:    subject,
		PlainBody:  content.PlainText(html),
		HTMLBody:   html,
	})
}

// recordReceived stores an inbound email. plain is derived from html only
// when the message carried no plain-text part.
func (s *service) recordReceived(ctx context.Context, ownerID, sender string, to []string, subject, plain, html string) (*store.Email, error) {
	if plain == "" {
		plain = content.PlainText(html)
	}
	return s.store.CreateEmail(ctx, store.EmailData{
		OwnerID:    ownerID,
		Kind:       store.KindReceived,
		Sender:     sender,
		Recipients: to,
		Subject:    subject,
		PlainBody:  plain,
		HTMLBody:   html,
	})
}
