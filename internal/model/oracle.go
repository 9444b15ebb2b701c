package model

import (
	"fmt"
	"time"
)

// Flight status codes reported by oracle nodes.  Only StatusLateAirline
// entitles insurees to a payout.
const (
	StatusUnknown       uint8 = 0
	StatusOnTime        uint8 = 10
	StatusLateAirline   uint8 = 20
	StatusLateWeather   uint8 = 30
	StatusLateTechnical uint8 = 40
	StatusLateOther     uint8 = 50
)

// FlightKey identifies one flight inquiry: which airline, which flight
// number and which scheduled departure (unix seconds, UTC).
type FlightKey struct {
	AirlineID uint64 `json:"airline_id"`
	Flight    string `json:"flight"`
	Timestamp int64  `json:"timestamp"`
}

// String renders a stable composite key usable as a map key and as the
// per-flight ordering key on the settlement queue.
func (k FlightKey) String() string {
	return fmt.Sprintf("%d|%s|%d", k.AirlineID, k.Flight, k.Timestamp)
}

// OracleNode mirrors the `oracle_nodes` table.  Each registered node is
// assigned exactly three distinct indexes in [0, IndexRange) at
// registration time and is immutable afterward.
type OracleNode struct {
	ID        uint64    // oracle_nodes.id (user ID of the node account)
	Indexes   [3]uint8  // oracle_nodes.idx0..idx2
	FeeCents  int64     // oracle_nodes.fee_cents paid at registration
	CreatedAt time.Time // oracle_nodes.created_at
}

// HasIndex reports whether idx is one of the node's assigned indexes.
func (n *OracleNode) HasIndex(idx uint8) bool {
	return n.Indexes[0] == idx || n.Indexes[1] == idx || n.Indexes[2] == idx
}

// StatusRequest is one open flight-status inquiry, keyed by the drawn
// index plus the flight key.  Responses maps each reported status code to
// the IDs of the nodes that reported it.  A request transitions from open
// to closed exactly once, when the first bucket reaches quorum.
type StatusRequest struct {
	Index       uint8              // index drawn for this inquiry
	Key         FlightKey          // flight being queried
	RequesterID uint64             // authenticated caller who raised it
	Open        bool               // false once a verdict was declared
	Verdict     uint8              // winning status code; StatusUnknown while open
	Responses   map[uint8][]uint64 // status code -> reporting node IDs
	CreatedAt   time.Time          // when the inquiry was opened
}

// RequestKey renders the composite storage key of a status request.
func (r *StatusRequest) RequestKey() string {
	return fmt.Sprintf("%d|%s", r.Index, r.Key.String())
}

// HasResponse reports whether node already reported code on this request.
// Used to drop retried submissions so a single node cannot inflate its
// own bucket.
func (r *StatusRequest) HasResponse(code uint8, nodeID uint64) bool {
	for _, id := range r.Responses[code] {
		if id == nodeID {
			return true
		}
	}
	return false
}
