package webmail

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/webmail/store"
)

// Sentinel errors for the webmail package.
// Use errors.Is() to check for these errors.
//
// Errors that have a store-level counterpart wrap it, so
// errors.Is(err, store.ErrNotFound) also matches ErrNotFound.
var (
	// ErrNotFound is returned when an item does not exist or belongs to
	// another owner. The two cases are never distinguished.
	ErrNotFound = fmt.Errorf("webmail: %w", store.ErrNotFound)

	// ErrInvalidMessage is returned for send validation failures.
	ErrInvalidMessage = errors.New("webmail: invalid message")

	// ErrTransportFailed is returned when the transport rejects or cannot
	// reach the outbound relay. Nothing is persisted in that case.
	ErrTransportFailed = errors.New("webmail: transport failed")

	// ErrAccountNotFound is returned by an AccountResolver for an address
	// with no local account.
	ErrAccountNotFound = errors.New("webmail: account not found")

	// ErrInvalidKind is returned for an unknown item kind.
	ErrInvalidKind = fmt.Errorf("webmail: %w", store.ErrInvalidKind)

	// ErrInvalidID is returned when an empty item ID is provided.
	ErrInvalidID = fmt.Errorf("webmail: %w", store.ErrInvalidID)

	// ErrInvalidOwnerID is returned when the mailbox owner ID is empty or
	// contains unsafe characters.
	ErrInvalidOwnerID = fmt.Errorf("webmail: %w", store.ErrInvalidOwnerID)

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = fmt.Errorf("webmail: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = fmt.Errorf("webmail: %w", store.ErrAlreadyConnected)

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("webmail: store is required")

	// ErrTransportRequired is returned by Send when no transport is configured.
	ErrTransportRequired = errors.New("webmail: transport is required")

	// ErrResolverRequired is returned by Receive when no account resolver is configured.
	ErrResolverRequired = errors.New("webmail: account resolver is required")
)

// storeError maps store sentinels to their package-level equivalents and
// annotates anything else with op.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrInvalidID):
		return ErrInvalidID
	case errors.Is(err, store.ErrInvalidKind):
		return ErrInvalidKind
	case errors.Is(err, store.ErrInvalidOwnerID):
		return ErrInvalidOwnerID
	case errors.Is(err, store.ErrNotConnected):
		return ErrNotConnected
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// ValidationError provides details about a validation failure.
type ValidationError struct {
	Field   string // The field that failed validation
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("webmail: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMessage
}

// TransportError wraps the error returned by a Transport.
// errors.Is(err, ErrTransportFailed) holds for every TransportError.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("webmail: transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransportFailed, e.Err}
}

// IsTransportError checks if the error is a transport error and returns details.
func IsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// EventPublishError is returned when event publishing fails but the operation succeeded.
// Only returned when WithEventErrorsFatal(true) is set.
type EventPublishError struct {
	Event  string // The event name (e.g., "MessageSent", "ItemTrashed")
	ItemID string // The item the event was for
	Err    error  // The underlying publish error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("webmail: event %s publish failed for item %s: %v", e.Event, e.ItemID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and returns details.
// This is useful when eventErrorsFatal=true but you still want to know the operation succeeded.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}
