package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-surety/internal/events"
	"github.com/iliyamo/flight-surety/internal/gate"
	"github.com/iliyamo/flight-surety/internal/model"
)

type fakeApproval map[uint64]bool

func (f fakeApproval) IsApproved(airlineID uint64) bool { return f[airlineID] }

type fakeTreasury struct {
	transfers map[uint64]int64
	failNext  error
}

func newFakeTreasury() *fakeTreasury {
	return &fakeTreasury{transfers: make(map[uint64]int64)}
}

func (f *fakeTreasury) Transfer(_ context.Context, userID uint64, amountCents int64) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.transfers[userID] += amountCents
	return nil
}

type fakeStore struct {
	policies map[string]model.InsurancePolicy
	payouts  map[uint64]int64
	failNext error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		policies: make(map[string]model.InsurancePolicy),
		payouts:  make(map[uint64]int64),
	}
}

func (s *fakeStore) SavePolicy(_ context.Context, p *model.InsurancePolicy) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.policies[fmt.Sprintf("%s|%d", p.FlightKey().String(), p.PassengerID)] = *p
	return nil
}

func (s *fakeStore) SavePayout(_ context.Context, passengerID uint64, balanceCents int64) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.payouts[passengerID] = balanceCents
	return nil
}

// ApplyCredit mirrors the transactional store: both writes or neither.
func (s *fakeStore) ApplyCredit(_ context.Context, p *model.InsurancePolicy, balanceCents int64) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.policies[fmt.Sprintf("%s|%d", p.FlightKey().String(), p.PassengerID)] = *p
	s.payouts[p.PassengerID] = balanceCents
	return nil
}

type recorder struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (r *recorder) Publish(_ context.Context, topic string, ev any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) last(topic string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.topics) - 1; i >= 0; i-- {
		if r.topics[i] == topic {
			return r.events[i], true
		}
	}
	return nil, false
}

const owner = uint64(1)

var flight = model.FlightKey{AirlineID: 10, Flight: "ND1309", Timestamp: 1700000000}

type fixture struct {
	ledger   *Ledger
	gate     *gate.Gate
	treasury *fakeTreasury
	store    *fakeStore
	rec      *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := gate.New(owner, nil)
	tr := newFakeTreasury()
	st := newFakeStore()
	rec := &recorder{}
	l := New(DefaultParams(), g, fakeApproval{10: true}, tr, st, rec)
	return &fixture{ledger: l, gate: g, treasury: tr, store: st, rec: rec}
}

func TestBuy(t *testing.T) {
	ctx := context.Background()

	t.Run("escrows the premium", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.ledger.Buy(ctx, 300, flight, 80_00)
		require.NoError(t, err)
		assert.Equal(t, int64(80_00), p.PremiumCents)
		assert.False(t, p.Credited)

		ev, ok := f.rec.last(events.TopicInsurancePurchased)
		require.True(t, ok)
		assert.Equal(t, int64(80_00), ev.(events.InsurancePurchased).AmountCents)
	})

	t.Run("caps the premium and refunds the excess", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.ledger.Buy(ctx, 300, flight, 1_75_00)
		require.NoError(t, err)
		assert.Equal(t, int64(1_00_00), p.PremiumCents)
		assert.Equal(t, int64(75_00), f.treasury.transfers[300])
	})

	t.Run("refund failure parks the excess in the payout balance", func(t *testing.T) {
		f := newFixture(t)
		f.treasury.failNext = errors.New("wallet down")
		p, err := f.ledger.Buy(ctx, 300, flight, 1_75_00)
		require.NoError(t, err)
		assert.Equal(t, int64(1_00_00), p.PremiumCents)
		assert.Equal(t, int64(75_00), f.ledger.Balance(300))
		assert.Equal(t, int64(75_00), f.store.payouts[300])
	})

	t.Run("policy write failure moves no money", func(t *testing.T) {
		f := newFixture(t)
		f.store.failNext = errors.New("db down")
		_, err := f.ledger.Buy(ctx, 300, flight, 1_75_00)
		assert.Error(t, err)
		_, ok := f.ledger.Policy(flight, 300)
		assert.False(t, ok)
		assert.Equal(t, int64(0), f.treasury.transfers[300])
	})

	t.Run("rejects unapproved airlines", func(t *testing.T) {
		f := newFixture(t)
		bad := model.FlightKey{AirlineID: 99, Flight: "XX1", Timestamp: 1700000000}
		_, err := f.ledger.Buy(ctx, 300, bad, 80_00)
		assert.ErrorIs(t, err, ErrNotApproved)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.Buy(ctx, 300, flight, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("one policy per passenger per flight", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.Buy(ctx, 300, flight, 80_00)
		require.NoError(t, err)
		_, err = f.ledger.Buy(ctx, 300, flight, 50_00)
		assert.ErrorIs(t, err, ErrAlreadyInsured)

		// A different passenger on the same flight is fine.
		_, err = f.ledger.Buy(ctx, 301, flight, 50_00)
		assert.NoError(t, err)
	})
}

func TestCreditInsurees(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an authorized caller", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreditInsurees(ctx, 42, flight)
		assert.ErrorIs(t, err, gate.ErrUnauthorized)
	})

	t.Run("credits 150 percent of each premium once", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.Buy(ctx, 300, flight, 80_00)
		require.NoError(t, err)
		_, err = f.ledger.Buy(ctx, 301, flight, 50_00)
		require.NoError(t, err)

		n, err := f.ledger.CreditInsurees(ctx, owner, flight)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, int64(120_00), f.ledger.Balance(300))
		assert.Equal(t, int64(75_00), f.ledger.Balance(301))

		// Redelivered verdicts credit nothing further.
		n, err = f.ledger.CreditInsurees(ctx, owner, flight)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, int64(120_00), f.ledger.Balance(300))
	})

	t.Run("failed credit write leaves flag and balance un-applied together", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.Buy(ctx, 300, flight, 80_00)
		require.NoError(t, err)

		f.store.failNext = errors.New("db down")
		n, err := f.ledger.CreditInsurees(ctx, owner, flight)
		assert.Error(t, err)
		assert.Equal(t, 0, n)

		// Neither half of the credit may be durable on its own.
		persisted := f.store.policies[fmt.Sprintf("%s|%d", flight.String(), uint64(300))]
		assert.False(t, persisted.Credited)
		assert.Empty(t, f.store.payouts)

		// A restart from the persisted state followed by verdict
		// redelivery still pays the passenger.
		restored := New(DefaultParams(), f.gate, fakeApproval{10: true}, f.treasury, f.store, f.rec)
		restored.Restore([]*model.InsurancePolicy{&persisted}, nil)
		n, err = restored.CreditInsurees(ctx, owner, flight)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, int64(120_00), restored.Balance(300))
		assert.Equal(t, int64(120_00), f.store.payouts[300])
		assert.True(t, f.store.policies[fmt.Sprintf("%s|%d", flight.String(), uint64(300))].Credited)
	})

	t.Run("flight with no policies is a silent no-op", func(t *testing.T) {
		f := newFixture(t)
		n, err := f.ledger.CreditInsurees(ctx, owner, flight)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("allow-listed orchestrator may settle", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.gate.Authorize(ctx, owner, 42))
		_, err := f.ledger.Buy(ctx, 300, flight, 80_00)
		require.NoError(t, err)
		n, err := f.ledger.CreditInsurees(ctx, 42, flight)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()

	credit := func(t *testing.T, f *fixture) {
		t.Helper()
		_, err := f.ledger.Buy(ctx, 300, flight, 80_00)
		require.NoError(t, err)
		_, err = f.ledger.CreditInsurees(ctx, owner, flight)
		require.NoError(t, err)
	}

	t.Run("drains the balance exactly once", func(t *testing.T) {
		f := newFixture(t)
		credit(t, f)

		amount, err := f.ledger.Withdraw(ctx, 300)
		require.NoError(t, err)
		assert.Equal(t, int64(120_00), amount)
		assert.Equal(t, int64(120_00), f.treasury.transfers[300])
		assert.Equal(t, int64(0), f.ledger.Balance(300))

		_, err = f.ledger.Withdraw(ctx, 300)
		assert.ErrorIs(t, err, ErrNoPayoutAvailable)

		ev, ok := f.rec.last(events.TopicPayoutWithdrawn)
		require.True(t, ok)
		assert.Equal(t, events.PayoutWithdrawn{PassengerID: 300, AmountCents: 120_00}, ev)
	})

	t.Run("zero balance", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.Withdraw(ctx, 300)
		assert.ErrorIs(t, err, ErrNoPayoutAvailable)
	})

	t.Run("failed transfer leaves the balance intact", func(t *testing.T) {
		f := newFixture(t)
		credit(t, f)
		f.treasury.failNext = errors.New("wallet down")

		_, err := f.ledger.Withdraw(ctx, 300)
		assert.Error(t, err)
		assert.Equal(t, int64(120_00), f.ledger.Balance(300))
		assert.Equal(t, int64(0), f.treasury.transfers[300])

		// The next attempt succeeds and pays the full credit.
		amount, err := f.ledger.Withdraw(ctx, 300)
		require.NoError(t, err)
		assert.Equal(t, int64(120_00), amount)
	})

	t.Run("marks credited policies paid", func(t *testing.T) {
		f := newFixture(t)
		credit(t, f)
		_, err := f.ledger.Withdraw(ctx, 300)
		require.NoError(t, err)
		p, ok := f.ledger.Policy(flight, 300)
		require.True(t, ok)
		assert.True(t, p.Paid)
	})
}

func TestLedgerOperationalGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.gate.SetOperational(ctx, owner, false))

	_, err := f.ledger.Buy(ctx, 300, flight, 80_00)
	assert.ErrorIs(t, err, gate.ErrNotOperational)
	_, err = f.ledger.CreditInsurees(ctx, owner, flight)
	assert.ErrorIs(t, err, gate.ErrNotOperational)
	_, err = f.ledger.Withdraw(ctx, 300)
	assert.ErrorIs(t, err, gate.ErrNotOperational)
}

func TestLedgerRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.Restore(
		[]*model.InsurancePolicy{{
			AirlineID:    10,
			Flight:       "ND1309",
			Timestamp:    1700000000,
			PassengerID:  300,
			PremiumCents: 80_00,
		}},
		[]*model.PayoutBalance{{PassengerID: 301, BalanceCents: 45_00}},
	)

	// Restored policy blocks a duplicate purchase and is still creditable.
	_, err := f.ledger.Buy(ctx, 300, flight, 50_00)
	assert.ErrorIs(t, err, ErrAlreadyInsured)
	n, err := f.ledger.CreditInsurees(ctx, owner, flight)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(120_00), f.ledger.Balance(300))

	// Restored balance withdraws.
	amount, err := f.ledger.Withdraw(ctx, 301)
	require.NoError(t, err)
	assert.Equal(t, int64(45_00), amount)
}
