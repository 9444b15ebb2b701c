// Package events defines the append-only notification stream emitted by the
// core components.  Each notification is an immutable fact with a fixed
// field set; external collaborators (UI, oracle-node simulators, the
// settlement worker) observe state changes only through this stream.
package events

import "context"

// Topics double as durable queue names on the broker.  One queue per
// notification type keeps consumers independent of each other.
const (
	TopicAirlineApproved    = "airline.approved"
	TopicAirlineVoted       = "airline.voted"
	TopicOracleRequest      = "flight.status.requests"
	TopicOracleReport       = "flight.status.reports"
	TopicFlightStatusInfo   = "flight.status.verdicts"
	TopicInsurancePurchased = "insurance.purchased"
	TopicPayoutWithdrawn    = "insurance.payouts"
)

// Publisher delivers one notification to the stream.  Implementations must
// be safe for concurrent use.  Publish failures are surfaced to the caller
// so it can decide whether the operation itself should fail; the core
// treats the stream as best-effort and logs instead.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// NopPublisher discards every notification.  Used when the broker is
// unavailable so the service can degrade instead of refusing to start.
type NopPublisher struct{}

// Publish implements Publisher by doing nothing.
func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// AirlineApproved is published when an airline reaches its terminal
// APPROVED state, whether automatically or by consensus vote.
type AirlineApproved struct {
	AirlineID uint64 `json:"airline_id"`
	Name      string `json:"name"`
}

// AirlineVoted is published for every successfully recorded admission vote.
type AirlineVoted struct {
	AirlineID uint64 `json:"airline_id"`
	VoterID   uint64 `json:"voter_id"`
	Votes     int    `json:"votes"`
}

// OracleRequest is published when a status inquiry opens.  It carries the
// drawn index so only nodes holding that index respond.
type OracleRequest struct {
	Index     uint8  `json:"index"`
	AirlineID uint64 `json:"airline_id"`
	Flight    string `json:"flight"`
	Timestamp int64  `json:"timestamp"`
}

// OracleReport is published on every accepted oracle response submission.
type OracleReport struct {
	AirlineID  uint64 `json:"airline_id"`
	Flight     string `json:"flight"`
	Timestamp  int64  `json:"timestamp"`
	StatusCode uint8  `json:"status_code"`
	ReporterID uint64 `json:"reporter_id"`
}

// FlightStatusInfo is published exactly once per status request, when the
// first response bucket reaches quorum.  The settlement worker consumes it
// to drive insurance crediting.
type FlightStatusInfo struct {
	AirlineID  uint64 `json:"airline_id"`
	Flight     string `json:"flight"`
	Timestamp  int64  `json:"timestamp"`
	StatusCode uint8  `json:"status_code"`
}

// InsurancePurchased is published when a passenger's premium is escrowed.
// AmountCents is the escrowed amount after capping, not the paid amount.
type InsurancePurchased struct {
	PassengerID uint64 `json:"passenger_id"`
	AirlineID   uint64 `json:"airline_id"`
	Flight      string `json:"flight"`
	Timestamp   int64  `json:"timestamp"`
	AmountCents int64  `json:"amount_cents"`
}

// PayoutWithdrawn is published after a passenger's balance was transferred
// out and zeroed.
type PayoutWithdrawn struct {
	PassengerID uint64 `json:"passenger_id"`
	AmountCents int64  `json:"amount_cents"`
}
