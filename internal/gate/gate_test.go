package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	operational []bool
	authorized  map[uint64]bool
	failNext    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{authorized: make(map[uint64]bool)}
}

func (s *fakeStore) SaveOperational(_ context.Context, operational bool) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.operational = append(s.operational, operational)
	return nil
}

func (s *fakeStore) SaveAuthorizedCaller(_ context.Context, callerID uint64, authorized bool) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.authorized[callerID] = authorized
	return nil
}

const owner = uint64(1)

func TestOperationalSwitch(t *testing.T) {
	ctx := context.Background()

	t.Run("starts operational", func(t *testing.T) {
		g := New(owner, newFakeStore())
		assert.True(t, g.IsOperational())
		assert.NoError(t, g.RequireOperational())
	})

	t.Run("only the owner can flip the switch", func(t *testing.T) {
		g := New(owner, newFakeStore())
		err := g.SetOperational(ctx, 42, false)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.True(t, g.IsOperational())
	})

	t.Run("owner pauses and resumes", func(t *testing.T) {
		st := newFakeStore()
		g := New(owner, st)
		require.NoError(t, g.SetOperational(ctx, owner, false))
		assert.False(t, g.IsOperational())
		assert.ErrorIs(t, g.RequireOperational(), ErrNotOperational)

		require.NoError(t, g.SetOperational(ctx, owner, true))
		assert.True(t, g.IsOperational())
		assert.Equal(t, []bool{false, true}, st.operational)
	})

	t.Run("no-op flip skips the store", func(t *testing.T) {
		st := newFakeStore()
		g := New(owner, st)
		require.NoError(t, g.SetOperational(ctx, owner, true))
		assert.Empty(t, st.operational)
	})

	t.Run("store failure leaves the switch untouched", func(t *testing.T) {
		st := newFakeStore()
		st.failNext = errors.New("db down")
		g := New(owner, st)
		err := g.SetOperational(ctx, owner, false)
		assert.Error(t, err)
		assert.True(t, g.IsOperational())
	})
}

func TestAuthorizedCallers(t *testing.T) {
	ctx := context.Background()

	t.Run("owner is implicitly authorized", func(t *testing.T) {
		g := New(owner, newFakeStore())
		assert.True(t, g.IsAuthorizedCaller(owner))
		assert.NoError(t, g.RequireAuthorizedCaller(owner))
	})

	t.Run("unknown caller is rejected", func(t *testing.T) {
		g := New(owner, newFakeStore())
		assert.False(t, g.IsAuthorizedCaller(7))
		assert.ErrorIs(t, g.RequireAuthorizedCaller(7), ErrUnauthorized)
	})

	t.Run("authorize then deauthorize", func(t *testing.T) {
		st := newFakeStore()
		g := New(owner, st)
		require.NoError(t, g.Authorize(ctx, owner, 7))
		assert.True(t, g.IsAuthorizedCaller(7))
		assert.True(t, st.authorized[7])

		require.NoError(t, g.Deauthorize(ctx, owner, 7))
		assert.False(t, g.IsAuthorizedCaller(7))
		assert.False(t, st.authorized[7])
	})

	t.Run("only the owner manages the allow-list", func(t *testing.T) {
		g := New(owner, newFakeStore())
		assert.ErrorIs(t, g.Authorize(ctx, 7, 8), ErrUnauthorized)
		assert.ErrorIs(t, g.Deauthorize(ctx, 7, 8), ErrUnauthorized)
	})
}

func TestRestore(t *testing.T) {
	g := New(owner, newFakeStore())
	g.Restore(false, []uint64{5, 6})
	assert.False(t, g.IsOperational())
	assert.True(t, g.IsAuthorizedCaller(5))
	assert.True(t, g.IsAuthorizedCaller(6))
	assert.False(t, g.IsAuthorizedCaller(7))
}
