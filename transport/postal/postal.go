// Package postal sends outbound mail through the Postal HTTP API.
package postal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rbaliyan/webmail"
)

var _ webmail.Transport = (*Client)(nil)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second
	APIKeyHeader   = "X-Server-API-Key"

	// maxErrorBody bounds how much of a failed response is kept for the error.
	maxErrorBody = 4 << 10
)

// ErrRejected is returned when Postal answers but does not accept the message.
var ErrRejected = errors.New("postal: message rejected")

// Client posts messages to a Postal send endpoint.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. The default has a 30 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// New creates a client for the send endpoint url
// (for example https://postal.example.com/api/v1/send/message).
func New(url, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendRequest struct {
	To          []string     `json:"to"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	HTMLBody    string       `json:"html_body"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	MIMEType string `json:"mimetype"`
}

type sendResponse struct {
	Status string `json:"status"`
	Data   struct {
		MessageID string                    `json:"message_id"`
		Messages  map[string]map[string]any `json:"messages"`
		Code      string                    `json:"code"`
		Message   string                    `json:"message"`
	} `json:"data"`
}

// Send posts msg to Postal. A non-2xx status or a status other than
// "success" in the response body is an error.
func (c *Client) Send(ctx context.Context, msg *webmail.OutboundMessage) (*webmail.TransportReceipt, error) {
	if c.url == "" || c.apiKey == "" {
		return nil, errors.New("postal: url and api key are required")
	}

	body := sendRequest{
		To:          msg.To,
		From:        msg.From,
		Subject:     msg.Subject,
		HTMLBody:    msg.HTMLBody,
		Attachments: make([]attachment, 0, len(msg.Attachments)),
	}
	for _, a := range msg.Attachments {
		body.Attachments = append(body.Attachments, attachment{
			Filename: a.Filename,
			Content:  base64.StdEncoding.EncodeToString(a.Content),
			Encoding: "base64",
			MIMEType: a.ContentType,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("postal: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("postal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postal: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("postal: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("postal: decode response: %w", err)
	}
	if out.Status != "success" {
		return nil, fmt.Errorf("%w: %s %s: %s", ErrRejected, out.Status, out.Data.Code, out.Data.Message)
	}

	c.logger.Debug("message accepted by postal",
		"message_id", out.Data.MessageID, "recipients", len(out.Data.Messages))

	receipt := &webmail.TransportReceipt{
		MessageID: out.Data.MessageID,
		Response:  map[string]any{},
	}
	for rcpt, info := range out.Data.Messages {
		receipt.Response[rcpt] = info
	}
	return receipt, nil
}
