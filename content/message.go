package content

import (
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ErrUnparseable is returned when a raw message cannot be read at all.
var ErrUnparseable = errors.New("content: unparseable message")

// ParsedMessage holds the fields the inbound router needs from a raw
// message.
type ParsedMessage struct {
	From      string
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
	// Attachments lists the attachment parts that were skipped.
	Attachments int
}

// ParseMessage reads a raw RFC 5322 message. Only the first To and From
// addresses are kept. Multiple text parts of the same type are joined with
// a newline.
func ParseMessage(r io.Reader) (*ParsedMessage, error) {
	reader, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	defer reader.Close()

	msg := &ParsedMessage{}
	if subject, err := reader.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if list, err := reader.Header.AddressList("From"); err == nil && len(list) > 0 {
		msg.From = normalizeAddress(list[0].Address)
	}
	if list, err := reader.Header.AddressList("To"); err == nil && len(list) > 0 {
		msg.To = normalizeAddress(list[0].Address)
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return msg, fmt.Errorf("%w: read part: %v", ErrUnparseable, err)
		}

		switch header := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, _, _ := header.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(mediaType, "text/plain") || mediaType == "":
				msg.PlainBody = appendPart(msg.PlainBody, string(body))
			case strings.HasPrefix(mediaType, "text/html"):
				msg.HTMLBody = appendPart(msg.HTMLBody, string(body))
			}
		case *mail.AttachmentHeader:
			msg.Attachments++
		}
	}
	return msg, nil
}

func appendPart(existing, body string) string {
	if existing == "" {
		return body
	}
	return existing + "\n" + body
}

func normalizeAddress(addr string) string {
	return strings.TrimSpace(addr)
}
