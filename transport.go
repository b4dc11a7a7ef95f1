package webmail

import "context"

// Transport hands an outbound message to a delivery service.
// Send is called exactly once per Mailbox.Send; a returned error fails the send.
type Transport interface {
	Send(ctx context.Context, msg *OutboundMessage) (*TransportReceipt, error)
}

// OutboundMessage is what the transport receives.
type OutboundMessage struct {
	From        string
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []OutboundAttachment
}

// OutboundAttachment is an attachment sent with a message. Content is the
// raw bytes; transports encode it as their wire format requires.
type OutboundAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// TransportReceipt is the transport's acknowledgement.
type TransportReceipt struct {
	// MessageID is the relay's identifier for the message, if it returns one.
	MessageID string
	// Response holds transport specific details for logging.
	Response map[string]any
}

// AccountResolver maps an address to the ID of the account that owns it.
// Implementations return ErrAccountNotFound (or an error wrapping it) for
// unknown addresses. Matching is exact.
type AccountResolver interface {
	ResolveAddress(ctx context.Context, address string) (string, error)
}
