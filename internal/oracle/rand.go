package oracle

import (
	"crypto/rand"
	"encoding/binary"
)

// IndexSource produces small pseudo-random integers for index assignment
// and request routing.  The seed carries caller context (requester
// identity, flight key); implementations are free to ignore it.  The
// production implementation is a CSPRNG; a predictable source would let
// a malicious node pre-select favorable indexes.
type IndexSource interface {
	// Draw returns a value in [0, max).  max must be > 0.
	Draw(max uint8, seed []byte) uint8
}

// CryptoSource draws from crypto/rand and ignores the seed entirely.
type CryptoSource struct{}

// Draw implements IndexSource with rejection sampling to keep the result
// unbiased over [0, max).
func (CryptoSource) Draw(max uint8, _ []byte) uint8 {
	if max == 0 {
		return 0
	}
	bound := uint64(max)
	limit := (^uint64(0) / bound) * bound
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failing means the host entropy source is gone;
			// nothing sensible to degrade to.
			panic(err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return uint8(v % bound)
		}
	}
}

// drawDistinct draws n distinct values in [0, max) by redrawing on
// collision, matching the source protocol's assignment procedure.
func drawDistinct(src IndexSource, n int, max uint8, seed []byte) []uint8 {
	out := make([]uint8, 0, n)
	seen := make(map[uint8]bool, n)
	for len(out) < n {
		v := src.Draw(max, seed)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
