package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-surety/internal/events"
	"github.com/iliyamo/flight-surety/internal/gate"
	"github.com/iliyamo/flight-surety/internal/model"
)

type fakeStore struct {
	airlines map[uint64]model.Airline
	votes    [][2]uint64
	failNext error
}

func newFakeStore() *fakeStore {
	return &fakeStore{airlines: make(map[uint64]model.Airline)}
}

func (s *fakeStore) SaveAirline(_ context.Context, a *model.Airline) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.airlines[a.ID] = *a
	return nil
}

func (s *fakeStore) SaveVote(_ context.Context, candidateID, voterID uint64) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.votes = append(s.votes, [2]uint64{candidateID, voterID})
	return nil
}

// recorder collects published events for assertions.
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

func (r *recorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.topics {
		if t == topic {
			n++
		}
	}
	return n
}

const owner = uint64(1)

func newRegistry(t *testing.T) (*Registry, *fakeStore, *recorder) {
	t.Helper()
	st := newFakeStore()
	rec := &recorder{}
	return New(DefaultParams(), gate.New(owner, nil), st, rec), st, rec
}

// admitFour bootstraps airlines 10..13, all inside the auto-approve window.
func admitFour(t *testing.T, r *Registry) {
	t.Helper()
	ctx := context.Background()
	_, err := r.Admit(ctx, 10, "Alpha Air", 10)
	require.NoError(t, err)
	for i, id := range []uint64{11, 12, 13} {
		_, err := r.Admit(ctx, id, "Airline", 10)
		require.NoError(t, err, "airline %d", i)
	}
}

func TestAdmit(t *testing.T) {
	ctx := context.Background()

	t.Run("bootstrap airline is approved with zero votes", func(t *testing.T) {
		r, st, rec := newRegistry(t)
		a, err := r.Admit(ctx, 10, "Alpha Air", 10)
		require.NoError(t, err)
		assert.Equal(t, model.AirlineStatusApproved, a.Status)
		assert.Equal(t, 0, a.Votes)
		assert.Equal(t, 1, a.Seq)
		assert.Equal(t, model.AirlineStatusApproved, st.airlines[10].Status)
		assert.Equal(t, 1, rec.count(events.TopicAirlineApproved))
	})

	t.Run("first four are approved immediately, fifth is pending", func(t *testing.T) {
		r, _, rec := newRegistry(t)
		admitFour(t, r)
		assert.Equal(t, 4, r.ApprovedCount())
		assert.Equal(t, 4, rec.count(events.TopicAirlineApproved))

		fifth, err := r.Admit(ctx, 14, "Echo Air", 10)
		require.NoError(t, err)
		assert.Equal(t, model.AirlineStatusPending, fifth.Status)
		assert.Equal(t, 0, fifth.Votes)
		assert.Equal(t, int64(0), fifth.FundedCents)
		assert.Equal(t, 4, r.ApprovedCount())
	})

	t.Run("sponsor must be an approved airline", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		admitFour(t, r)
		_, err := r.Admit(ctx, 14, "Echo Air", 99)
		assert.ErrorIs(t, err, ErrUnauthorized)

		// A pending airline cannot sponsor either.
		_, err = r.Admit(ctx, 14, "Echo Air", 10)
		require.NoError(t, err)
		_, err = r.Admit(ctx, 15, "Foxtrot Air", 14)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("duplicate admission fails", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		_, err := r.Admit(ctx, 10, "Alpha Air", 10)
		require.NoError(t, err)
		_, err = r.Admit(ctx, 10, "Alpha Air", 10)
		assert.ErrorIs(t, err, ErrAlreadyAdmitted)
	})

	t.Run("store failure admits nothing", func(t *testing.T) {
		r, st, _ := newRegistry(t)
		st.failNext = errors.New("db down")
		_, err := r.Admit(ctx, 10, "Alpha Air", 10)
		assert.Error(t, err)
		_, ok := r.Get(10)
		assert.False(t, ok)
		assert.Equal(t, 0, r.ApprovedCount())
	})
}

func TestFund(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		admitFour(t, r)
		_, err := r.Fund(ctx, 10, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = r.Fund(ctx, 10, -5)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown candidate", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		_, err := r.Fund(ctx, 99, 100)
		assert.ErrorIs(t, err, ErrNotPending)
	})

	t.Run("funding accumulates", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		admitFour(t, r)
		_, err := r.Admit(ctx, 14, "Echo Air", 10)
		require.NoError(t, err)

		_, err = r.Fund(ctx, 14, 4_000_00)
		require.NoError(t, err)
		a, err := r.Fund(ctx, 14, 2_000_00)
		require.NoError(t, err)
		assert.Equal(t, int64(6_000_00), a.FundedCents)
		assert.Equal(t, model.AirlineStatusPending, a.Status)
	})

	t.Run("top-up on an approved airline is recorded, not rejected", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		admitFour(t, r)
		a, err := r.Fund(ctx, 10, 10_000_00)
		require.NoError(t, err)
		assert.Equal(t, int64(10_000_00), a.FundedCents)
		assert.Equal(t, model.AirlineStatusApproved, a.Status)
	})

	t.Run("funding after the vote condition flips the candidate", func(t *testing.T) {
		r, _, rec := newRegistry(t)
		admitFour(t, r)
		_, err := r.Admit(ctx, 14, "Echo Air", 10)
		require.NoError(t, err)

		// 3 of 4 approved airlines vote; without funding nothing flips.
		for _, voter := range []uint64{10, 11, 12} {
			_, err := r.Vote(ctx, 14, voter)
			require.NoError(t, err)
		}
		assert.False(t, r.IsApproved(14))

		a, err := r.Fund(ctx, 14, 10_000_00)
		require.NoError(t, err)
		assert.Equal(t, model.AirlineStatusApproved, a.Status)
		assert.Equal(t, 5, rec.count(events.TopicAirlineApproved))
	})
}

func TestVote(t *testing.T) {
	ctx := context.Background()

	t.Run("voter must be approved", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		admitFour(t, r)
		_, err := r.Admit(ctx, 14, "Echo Air", 10)
		require.NoError(t, err)

		_, err = r.Vote(ctx, 14, 99)
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = r.Vote(ctx, 14, 14) // pending airline cannot vote
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("duplicate vote does not change the count", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		admitFour(t, r)
		_, err := r.Admit(ctx, 14, "Echo Air", 10)
		require.NoError(t, err)

		a, err := r.Vote(ctx, 14, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, a.Votes)

		_, err = r.Vote(ctx, 14, 10)
		assert.ErrorIs(t, err, ErrDuplicateVote)
		got, _ := r.Get(14)
		assert.Equal(t, 1, got.Votes)
	})

	t.Run("funded candidate flips on the third of four votes", func(t *testing.T) {
		r, _, rec := newRegistry(t)
		admitFour(t, r)
		_, err := r.Admit(ctx, 14, "Echo Air", 10)
		require.NoError(t, err)
		_, err = r.Fund(ctx, 14, 10_000_00)
		require.NoError(t, err)

		// 2 votes of 4 approved: 2*2 = 4, not strictly greater.
		for _, voter := range []uint64{10, 11} {
			a, err := r.Vote(ctx, 14, voter)
			require.NoError(t, err)
			assert.Equal(t, model.AirlineStatusPending, a.Status)
		}

		a, err := r.Vote(ctx, 14, 12)
		require.NoError(t, err)
		assert.Equal(t, model.AirlineStatusApproved, a.Status)
		assert.Equal(t, 3, a.Votes)
		assert.Equal(t, 5, r.ApprovedCount())
		assert.Equal(t, 3, rec.count(events.TopicAirlineVoted))
		assert.Equal(t, 5, rec.count(events.TopicAirlineApproved))
	})

	t.Run("unfunded candidate collects votes without flipping", func(t *testing.T) {
		r, _, _ := newRegistry(t)
		admitFour(t, r)
		_, err := r.Admit(ctx, 14, "Echo Air", 10)
		require.NoError(t, err)

		for _, voter := range []uint64{10, 11, 12, 13} {
			_, err := r.Vote(ctx, 14, voter)
			require.NoError(t, err)
		}
		got, _ := r.Get(14)
		assert.Equal(t, 4, got.Votes)
		assert.False(t, r.IsApproved(14))
	})
}

func TestOperationalGate(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	g := gate.New(owner, nil)
	r := New(DefaultParams(), g, st, &recorder{})
	require.NoError(t, g.SetOperational(ctx, owner, false))

	_, err := r.Admit(ctx, 10, "Alpha Air", 10)
	assert.ErrorIs(t, err, gate.ErrNotOperational)
	_, err = r.Fund(ctx, 10, 100)
	assert.ErrorIs(t, err, gate.ErrNotOperational)
	_, err = r.Vote(ctx, 10, 11)
	assert.ErrorIs(t, err, gate.ErrNotOperational)
}

func TestRestoreRegistry(t *testing.T) {
	r, _, _ := newRegistry(t)
	r.Restore(
		[]*model.Airline{
			{ID: 10, Name: "Alpha Air", Status: model.AirlineStatusApproved, Seq: 1},
			{ID: 11, Name: "Bravo Air", Status: model.AirlineStatusApproved, Seq: 2},
			{ID: 14, Name: "Echo Air", Status: model.AirlineStatusPending, Seq: 5, Votes: 1, FundedCents: 10_000_00},
		},
		[]*model.AirlineVote{{CandidateID: 14, VoterID: 10}},
	)

	assert.Equal(t, 2, r.ApprovedCount())
	assert.True(t, r.IsApproved(10))
	assert.False(t, r.IsApproved(14))
	assert.Equal(t, int64(10_000_00), r.FundedAmount(14))

	// The restored vote still counts as cast: the same voter is rejected.
	_, err := r.Vote(context.Background(), 14, 10)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	// Admission continues from the restored sequence.
	a, err := r.Admit(context.Background(), 15, "Foxtrot Air", 10)
	require.NoError(t, err)
	assert.Equal(t, 6, a.Seq)
	assert.Equal(t, model.AirlineStatusPending, a.Status)
}
