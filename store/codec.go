package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedData marks a persisted column that could not be decoded.
// Readers degrade to a safe value and log it; it is never returned from a
// Store method.
var ErrMalformedData = errors.New("store: malformed stored data")

// EncodeAttachments serializes draft attachment metadata for text columns.
func EncodeAttachments(atts []AttachmentInfo) string {
	if len(atts) == 0 {
		return "[]"
	}
	b, err := json.Marshal(atts)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeAttachments parses an attachments_info column. Empty input yields
// an empty list. Malformed input yields an empty list and an error wrapping
// ErrMalformedData.
func DecodeAttachments(raw string) ([]AttachmentInfo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []AttachmentInfo{}, nil
	}
	var atts []AttachmentInfo
	if err := json.Unmarshal([]byte(raw), &atts); err != nil {
		return []AttachmentInfo{}, fmt.Errorf("%w: attachments: %v", ErrMalformedData, err)
	}
	if atts == nil {
		atts = []AttachmentInfo{}
	}
	return atts, nil
}
