package store

import "errors"

var (
	// ErrNotFound covers both a missing item and an item owned by someone
	// else. Callers cannot tell the two apart.
	ErrNotFound = errors.New("store: not found")

	ErrInvalidID      = errors.New("store: invalid id")
	ErrInvalidOwnerID = errors.New("store: invalid owner id")

	// ErrInvalidKind rejects unknown kinds and kinds the operation does not
	// accept, such as KindDraft on an email operation.
	ErrInvalidKind = errors.New("store: invalid kind")

	ErrNotConnected     = errors.New("store: not connected")
	ErrAlreadyConnected = errors.New("store: already connected")
)
