// Package gate implements the authorization capability checks shared by the
// registry, oracle and ledger components: the global operational switch,
// the contract-owner check and the orchestrator allow-list.  The gate has
// no state machine of its own; it is a guard consulted by the components.
package gate

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors surfaced by gate checks.  Handlers translate these into
// HTTP 403 / 503 responses.
var (
	// ErrNotOperational is returned by every mutating core operation while
	// the operational switch is off.
	ErrNotOperational = errors.New("contract is not operational")
	// ErrUnauthorized is returned when a caller lacks the capability the
	// operation requires (owner-only or orchestrator-only surfaces).
	ErrUnauthorized = errors.New("caller is not authorized")
)

// Store persists gate settings so they survive restarts.  Implementations
// live in the repository layer; tests use in-memory fakes.
type Store interface {
	SaveOperational(ctx context.Context, operational bool) error
	SaveAuthorizedCaller(ctx context.Context, callerID uint64, authorized bool) error
}

// Gate holds the operational flag and the set of privileged orchestrator
// identities allowed to drive ledger settlement.  All methods are safe for
// concurrent use.
type Gate struct {
	mu          sync.RWMutex
	ownerID     uint64
	operational bool
	authorized  map[uint64]bool
	store       Store
}

// New constructs a Gate owned by ownerID.  The service starts operational;
// state restored from the store via Restore overrides this.
func New(ownerID uint64, store Store) *Gate {
	return &Gate{
		ownerID:     ownerID,
		operational: true,
		authorized:  make(map[uint64]bool),
		store:       store,
	}
}

// Restore replays persisted settings into memory.  Called once at startup,
// before the gate is shared with the components.
func (g *Gate) Restore(operational bool, authorizedIDs []uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.operational = operational
	for _, id := range authorizedIDs {
		g.authorized[id] = true
	}
}

// IsOperational reports the state of the global switch.
func (g *Gate) IsOperational() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.operational
}

// RequireOperational fails with ErrNotOperational while the switch is off.
// Every mutating operation of every component calls this first.
func (g *Gate) RequireOperational() error {
	if !g.IsOperational() {
		return ErrNotOperational
	}
	return nil
}

// SetOperational flips the global switch.  Owner only.
func (g *Gate) SetOperational(ctx context.Context, callerID uint64, operational bool) error {
	if err := g.RequireOwner(callerID); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.operational == operational {
		return nil
	}
	if g.store != nil {
		if err := g.store.SaveOperational(ctx, operational); err != nil {
			return err
		}
	}
	g.operational = operational
	return nil
}

// IsOwner reports whether callerID is the contract owner.
func (g *Gate) IsOwner(callerID uint64) bool { return callerID == g.ownerID }

// RequireOwner fails with ErrUnauthorized unless callerID is the owner.
func (g *Gate) RequireOwner(callerID uint64) error {
	if !g.IsOwner(callerID) {
		return ErrUnauthorized
	}
	return nil
}

// Authorize adds callerID to the orchestrator allow-list.  Owner only.
func (g *Gate) Authorize(ctx context.Context, ownerID, callerID uint64) error {
	if err := g.RequireOwner(ownerID); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authorized[callerID] {
		return nil
	}
	if g.store != nil {
		if err := g.store.SaveAuthorizedCaller(ctx, callerID, true); err != nil {
			return err
		}
	}
	g.authorized[callerID] = true
	return nil
}

// Deauthorize removes callerID from the orchestrator allow-list.  Owner only.
func (g *Gate) Deauthorize(ctx context.Context, ownerID, callerID uint64) error {
	if err := g.RequireOwner(ownerID); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.authorized[callerID] {
		return nil
	}
	if g.store != nil {
		if err := g.store.SaveAuthorizedCaller(ctx, callerID, false); err != nil {
			return err
		}
	}
	delete(g.authorized, callerID)
	return nil
}

// IsAuthorizedCaller reports whether callerID may drive ledger settlement.
// The owner is implicitly authorized.
func (g *Gate) IsAuthorizedCaller(callerID uint64) bool {
	if g.IsOwner(callerID) {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.authorized[callerID]
}

// RequireAuthorizedCaller fails with ErrUnauthorized unless callerID is on
// the allow-list (or is the owner).
func (g *Gate) RequireAuthorizedCaller(callerID uint64) error {
	if !g.IsAuthorizedCaller(callerID) {
		return ErrUnauthorized
	}
	return nil
}
