package model

import "time"

// Airline lifecycle statuses.  An airline is created PENDING on its first
// admission attempt and becomes APPROVED either automatically (one of the
// first admitted) or after funding and multiparty consensus.  Approval is
// terminal; there is no revocation path.
const (
	AirlineStatusPending  = "PENDING"
	AirlineStatusApproved = "APPROVED"
)

// Airline mirrors the `airlines` table and doubles as the in-memory
// aggregate owned by the registry.
//
// Fields:
//  ID          – user ID of the airline account.
//  Name        – display name supplied at admission.
//  Status      – PENDING or APPROVED.
//  FundedCents – total capital paid in; monotonically increasing.
//  Votes       – number of distinct approval votes received.
//  Seq         – admission order (1-based); used for auto-approval.
//  CreatedAt   – timestamp of admission.
//  UpdatedAt   – timestamp of last mutation.
type Airline struct {
	ID          uint64    // airlines.id
	Name        string    // airlines.name
	Status      string    // airlines.status
	FundedCents int64     // airlines.funded_cents
	Votes       int       // airlines.votes
	Seq         int       // airlines.seq
	CreatedAt   time.Time // airlines.created_at
	UpdatedAt   time.Time // airlines.updated_at
}

// Approved reports whether the airline has reached its terminal state.
func (a *Airline) Approved() bool { return a.Status == AirlineStatusApproved }

// AirlineVote records one (candidate, voter) pair.  At most one row per
// pair ever exists; duplicates are rejected before insertion.
type AirlineVote struct {
	ID          uint64    // airline_votes.id
	CandidateID uint64    // airline_votes.candidate_id
	VoterID     uint64    // airline_votes.voter_id
	CreatedAt   time.Time // airline_votes.created_at
}
