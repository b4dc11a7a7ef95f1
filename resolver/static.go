// Package resolver provides webmail.AccountResolver implementations.
package resolver

import (
	"context"
	"fmt"

	"github.com/rbaliyan/webmail"
)

var _ webmail.AccountResolver = (*Static)(nil)

// Static is a map-based AccountResolver for testing and simple deployments.
// Safe for concurrent use (read-only after creation).
type Static struct {
	accounts map[string]string
}

// NewStatic creates a Static resolver from a map of address to owner ID.
// The map is copied to prevent external mutation.
func NewStatic(accounts map[string]string) *Static {
	m := make(map[string]string, len(accounts))
	for addr, owner := range accounts {
		m[addr] = owner
	}
	return &Static{accounts: m}
}

// ResolveAddress returns the owner of address. Matching is exact.
func (s *Static) ResolveAddress(_ context.Context, address string) (string, error) {
	owner, ok := s.accounts[address]
	if !ok {
		return "", fmt.Errorf("%w: %s", webmail.ErrAccountNotFound, address)
	}
	return owner, nil
}
