// Package ledger owns premium escrow and payout bookkeeping.  Policies are
// indexed per flight and per passenger so crediting never scans unrelated
// entries.  Crediting is idempotent per policy; withdrawal is
// reserve-then-commit: the balance is only zeroed after the outbound
// transfer confirmed, so a failed transfer can never strand funds.
package ledger

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/flight-surety/internal/events"
	"github.com/iliyamo/flight-surety/internal/gate"
	"github.com/iliyamo/flight-surety/internal/model"
)

// Sentinel errors returned by ledger operations.
var (
	// ErrNotApproved is returned when insurance is bought against an
	// airline that is not approved.
	ErrNotApproved = errors.New("airline is not approved")
	// ErrAlreadyInsured is returned when a passenger buys twice for the
	// same flight.
	ErrAlreadyInsured = errors.New("passenger already insured for this flight")
	// ErrNoPayoutAvailable is returned by Withdraw on a zero balance.
	ErrNoPayoutAvailable = errors.New("no payout available")
	// ErrInvalidAmount is returned for non-positive purchase amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Payout ratio: insurees are credited 150% of their escrowed premium.
const (
	payoutNumerator   = 3
	payoutDenominator = 2
)

// Params carries the ledger constants.
type Params struct {
	// MaxPremiumCents caps the escrowed premium; any excess paid is
	// refunded to the payer at purchase time and never stored.
	MaxPremiumCents int64
}

// DefaultParams mirror the source system's 1-unit premium cap.
func DefaultParams() Params { return Params{MaxPremiumCents: 1_00_00} }

// ApprovalChecker is the narrow read-only contract the ledger holds on the
// airline registry.
type ApprovalChecker interface {
	IsApproved(airlineID uint64) bool
}

// Treasury performs outbound value transfers (purchase-excess refunds and
// payout withdrawals).  A Transfer error must mean no value moved.
type Treasury interface {
	Transfer(ctx context.Context, userID uint64, amountCents int64) error
}

// Store persists ledger state.
type Store interface {
	SavePolicy(ctx context.Context, p *model.InsurancePolicy) error
	SavePayout(ctx context.Context, passengerID uint64, balanceCents int64) error
	// ApplyCredit writes the credited policy and the passenger's new
	// balance as one atomic unit.  Partial application must be
	// impossible: a policy durably marked credited without the matching
	// balance would make verdict redelivery skip the entry and lose the
	// passenger's money.
	ApplyCredit(ctx context.Context, p *model.InsurancePolicy, balanceCents int64) error
}

// Ledger is the escrow/payout engine.
type Ledger struct {
	mu       sync.Mutex
	params   Params
	gate     *gate.Gate
	approval ApprovalChecker
	treasury Treasury
	store    Store
	pub      events.Publisher
	// policies is a two-level index: flight key -> passenger -> policy.
	policies map[string]map[uint64]*model.InsurancePolicy
	balances map[uint64]int64
}

// New constructs an empty ledger.
func New(params Params, g *gate.Gate, approval ApprovalChecker, treasury Treasury, store Store, pub events.Publisher) *Ledger {
	return &Ledger{
		params:   params,
		gate:     g,
		approval: approval,
		treasury: treasury,
		store:    store,
		pub:      pub,
		policies: make(map[string]map[uint64]*model.InsurancePolicy),
		balances: make(map[uint64]int64),
	}
}

// Restore loads persisted policies and balances into memory at startup.
func (l *Ledger) Restore(policies []*model.InsurancePolicy, balances []*model.PayoutBalance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range policies {
		cp := *p
		key := cp.FlightKey().String()
		bucket := l.policies[key]
		if bucket == nil {
			bucket = make(map[uint64]*model.InsurancePolicy)
			l.policies[key] = bucket
		}
		bucket[cp.PassengerID] = &cp
	}
	for _, b := range balances {
		l.balances[b.PassengerID] = b.BalanceCents
	}
}

// Buy escrows a premium for passengerID against the flight key.  The
// airline must be approved.  Amounts above the premium cap are split: the
// cap is escrowed and the excess is refunded through the treasury.  The
// refund is a required side effect, not a rejection.  The policy is
// recorded before the refund moves, so a failed write produces no side
// effect at all; a failed refund parks the excess in the passenger's
// payout balance instead of stranding it.
func (l *Ledger) Buy(ctx context.Context, passengerID uint64, key model.FlightKey, amountCents int64) (*model.InsurancePolicy, error) {
	if err := l.gate.RequireOperational(); err != nil {
		return nil, err
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if !l.approval.IsApproved(key.AirlineID) {
		return nil, ErrNotApproved
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.policies[key.String()]
	if bucket != nil {
		if _, ok := bucket[passengerID]; ok {
			return nil, ErrAlreadyInsured
		}
	}

	premium := amountCents
	excess := int64(0)
	if premium > l.params.MaxPremiumCents {
		premium = l.params.MaxPremiumCents
		excess = amountCents - premium
	}
	now := time.Now().UTC()
	p := &model.InsurancePolicy{
		AirlineID:    key.AirlineID,
		Flight:       key.Flight,
		Timestamp:    key.Timestamp,
		PassengerID:  passengerID,
		PremiumCents: premium,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.store.SavePolicy(ctx, p); err != nil {
		return nil, err
	}
	if bucket == nil {
		bucket = make(map[uint64]*model.InsurancePolicy)
		l.policies[key.String()] = bucket
	}
	bucket[passengerID] = p
	if excess > 0 {
		if err := l.treasury.Transfer(ctx, passengerID, excess); err != nil {
			// The policy already stands; the excess becomes withdrawable
			// credit rather than vanishing with the failed transfer.
			log.Printf("ledger: refund of %d to %d failed, crediting payout balance: %v", excess, passengerID, err)
			newBalance := l.balances[passengerID] + excess
			if serr := l.store.SavePayout(ctx, passengerID, newBalance); serr != nil {
				log.Printf("ledger: persist parked refund for %d failed: %v", passengerID, serr)
			}
			l.balances[passengerID] = newBalance
		}
	}
	l.publish(ctx, events.TopicInsurancePurchased, events.InsurancePurchased{
		PassengerID: passengerID,
		AirlineID:   key.AirlineID,
		Flight:      key.Flight,
		Timestamp:   key.Timestamp,
		AmountCents: premium,
	})
	cp := *p
	return &cp, nil
}

// CreditInsurees credits every not-yet-credited policy on the flight key
// with 150% of its premium and adds the credit to the passenger's payout
// balance.  Restricted to the orchestration allow-list.  A key with no
// entries, or only already-credited entries, is a silent no-op, which
// makes at-least-once verdict delivery safe.  Returns the number of
// entries credited.
func (l *Ledger) CreditInsurees(ctx context.Context, callerID uint64, key model.FlightKey) (int, error) {
	if err := l.gate.RequireOperational(); err != nil {
		return 0, err
	}
	if err := l.gate.RequireAuthorizedCaller(callerID); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	credited := 0
	for _, p := range l.policies[key.String()] {
		if p.Credited {
			continue
		}
		updated := *p
		updated.Credited = true
		updated.CreditedCents = updated.PremiumCents * payoutNumerator / payoutDenominator
		updated.UpdatedAt = time.Now().UTC()
		newBalance := l.balances[p.PassengerID] + updated.CreditedCents
		if err := l.store.ApplyCredit(ctx, &updated, newBalance); err != nil {
			return credited, err
		}
		*p = updated
		l.balances[p.PassengerID] = newBalance
		credited++
	}
	return credited, nil
}

// Withdraw drains the passenger's payout balance.  The transfer is
// attempted first and the balance is zeroed only once it succeeds; on
// transfer failure the balance is left untouched and the error surfaces.
// Returns the amount paid out.
func (l *Ledger) Withdraw(ctx context.Context, passengerID uint64) (int64, error) {
	if err := l.gate.RequireOperational(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	amount := l.balances[passengerID]
	if amount <= 0 {
		return 0, ErrNoPayoutAvailable
	}
	if err := l.treasury.Transfer(ctx, passengerID, amount); err != nil {
		return 0, err
	}
	// The transfer is the point of no return: storage errors past here are
	// logged, the in-memory zeroing still commits.
	if err := l.store.SavePayout(ctx, passengerID, 0); err != nil {
		log.Printf("ledger: persist drained balance for %d failed: %v", passengerID, err)
	}
	l.balances[passengerID] = 0
	l.markPaidLocked(ctx, passengerID)
	l.publish(ctx, events.TopicPayoutWithdrawn, events.PayoutWithdrawn{
		PassengerID: passengerID,
		AmountCents: amount,
	})
	return amount, nil
}

// markPaidLocked flips the paid flag on every credited, unpaid policy of
// the passenger.
func (l *Ledger) markPaidLocked(ctx context.Context, passengerID uint64) {
	for _, bucket := range l.policies {
		p, ok := bucket[passengerID]
		if !ok || !p.Credited || p.Paid {
			continue
		}
		updated := *p
		updated.Paid = true
		updated.UpdatedAt = time.Now().UTC()
		if err := l.store.SavePolicy(ctx, &updated); err != nil {
			log.Printf("ledger: persist paid flag for policy %d failed: %v", p.ID, err)
			continue
		}
		*p = updated
	}
}

// Balance returns the passenger's withdrawable amount in cents.  Part of
// the read-only query surface.
func (l *Ledger) Balance(passengerID uint64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[passengerID]
}

// Policy returns a copy of the passenger's policy on the flight key.
func (l *Ledger) Policy(key model.FlightKey, passengerID uint64) (*model.InsurancePolicy, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.policies[key.String()][passengerID]; ok {
		cp := *p
		return &cp, true
	}
	return nil, false
}

func (l *Ledger) publish(ctx context.Context, topic string, ev any) {
	if err := l.pub.Publish(ctx, topic, ev); err != nil {
		log.Printf("ledger: publish %s failed: %v", topic, err)
	}
}
