package postal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rbaliyan/webmail"
)

// ErrNoMessage is returned when an inbound webhook body has no message object.
var ErrNoMessage = errors.New("postal: no message data in webhook body")

type inboundPayload struct {
	Message *struct {
		To        inboundAddress `json:"to"`
		From      inboundAddress `json:"from"`
		Subject   string         `json:"subject"`
		PlainBody string         `json:"plain_body"`
		HTMLBody  string         `json:"html_body"`
	} `json:"message"`
}

// inboundAddress accepts both {"email": "a@b"} and a bare "a@b".
type inboundAddress string

func (a *inboundAddress) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = inboundAddress(s)
		return nil
	}
	var obj struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*a = inboundAddress(obj.Email)
	return nil
}

// DecodeInbound reads a Postal inbound webhook body
// ({"message": {"to": {"email": ...}, "from": ..., "subject": ...,
// "plain_body": ..., "html_body": ...}}) into an InboundMessage.
func DecodeInbound(r io.Reader) (*webmail.InboundMessage, error) {
	var p inboundPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("postal: decode webhook: %w", err)
	}
	if p.Message == nil {
		return nil, ErrNoMessage
	}
	return &webmail.InboundMessage{
		To:        string(p.Message.To),
		From:      string(p.Message.From),
		Subject:   p.Message.Subject,
		PlainBody: p.Message.PlainBody,
		HTMLBody:  p.Message.HTMLBody,
	}, nil
}
