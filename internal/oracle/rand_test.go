package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// scriptedSource replays a fixed sequence of draws, then counts upward so
// drawDistinct can never spin forever in a test.
type scriptedSource struct {
	vals []uint8
	next uint8
}

func (s *scriptedSource) Draw(max uint8, _ []byte) uint8 {
	if max == 0 {
		return 0
	}
	if len(s.vals) > 0 {
		v := s.vals[0]
		s.vals = s.vals[1:]
		return v % max
	}
	v := s.next % max
	s.next++
	return v
}

func TestCryptoSourceDraw(t *testing.T) {
	src := CryptoSource{}
	for i := 0; i < 1000; i++ {
		v := src.Draw(10, nil)
		assert.Less(t, v, uint8(10))
	}
	assert.Equal(t, uint8(0), src.Draw(0, nil))
}

func TestDrawDistinct(t *testing.T) {
	t.Run("returns n distinct values in range", func(t *testing.T) {
		got := drawDistinct(CryptoSource{}, 3, 10, nil)
		assert.Len(t, got, 3)
		seen := map[uint8]bool{}
		for _, v := range got {
			assert.Less(t, v, uint8(10))
			assert.False(t, seen[v], "value %d drawn twice", v)
			seen[v] = true
		}
	})

	t.Run("redraws on collision", func(t *testing.T) {
		src := &scriptedSource{vals: []uint8{4, 4, 4, 7, 2}}
		got := drawDistinct(src, 3, 10, nil)
		assert.Equal(t, []uint8{4, 7, 2}, got)
	})
}
