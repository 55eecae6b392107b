// Package registry resolves a (platform, firm) pair to the Adapter
// instance responsible for it, and supports swapping in a mock adapter for
// tests without touching engine code.
package registry

import (
	"fmt"
	"sync"

	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

// key identifies one adapter instance. Firms on the same platform family
// (e.g. TOPSTEPX and ALPHA_FUTURES both on RITHMIC) share an adapter
// implementation but may point at different endpoints, so the registry
// still keys by the pair rather than platform alone.
type key struct {
	Platform model.Platform
	Firm     model.Firm
}

// Registry is safe for concurrent use; adapters are registered once at
// startup and read many times afterward.
type Registry struct {
	mu       sync.RWMutex
	adapters map[key]adapters.Adapter
}

func New() *Registry {
	return &Registry{adapters: make(map[key]adapters.Adapter)}
}

// Register binds an Adapter implementation to a (platform, firm) pair.
// Intended to be called during daemon startup; a second Register call for
// the same pair replaces the first (used to swap in a mock for tests).
func (r *Registry) Register(platform model.Platform, firm model.Firm, a adapters.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[key{platform, firm}] = a
}

// Resolve returns the adapter bound to a (platform, firm) pair, or
// apperr.ErrUnknownAdapter if none has been registered.
func (r *Registry) Resolve(platform model.Platform, firm model.Firm) (adapters.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[key{platform, firm}]
	if !ok {
		return nil, apperr.ErrUnknownAdapter
	}
	return a, nil
}

// ResolveForAccount is a convenience wrapper over Resolve for callers
// already holding a TradingAccount.
func (r *Registry) ResolveForAccount(account *model.TradingAccount) (adapters.Adapter, error) {
	a, err := r.Resolve(account.Platform, account.Firm)
	if err != nil {
		return nil, fmt.Errorf("resolving adapter for account %s: %w", account.ID, err)
	}
	return a, nil
}
