// Package registry owns the airline admission lifecycle: admission, capital
// funding and multiparty approval voting.  Airlines and votes are held in
// memory under one registry lock (the vote ratio must be computed against a
// consistent snapshot of the approved count) and written through to the
// store before any in-memory mutation, so a caller that receives an error
// has observed zero state change.
package registry

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

// Sentinel errors returned by registry operations.  Handlers translate
// these into HTTP responses.
var (
	// ErrUnauthorized is returned when the sponsor of an admission or the
	// voter of a vote is not an approved airline.
	ErrUnauthorized = errors.New("caller is not an approved airline")
	// ErrNotPending is returned by Fund when the candidate is unknown.
	ErrNotPending = errors.New("airline is not pending")
	// ErrAlreadyAdmitted is returned when a candidate is admitted twice.
	ErrAlreadyAdmitted = errors.New("airline already admitted")
	// ErrDuplicateVote is returned when a (candidate, voter) pair votes twice.
	ErrDuplicateVote = errors.New("duplicate vote")
	// ErrInvalidAmount is returned for non-positive funding amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Params carries the tunable admission constants.
type Params struct {
	// AutoApproveLimit is the number of airlines admitted without a vote,
	// counting the bootstrap airline.
	AutoApproveLimit int
	// FundingThresholdCents is the capital an airline must pay in before a
	// vote-based approval can take effect.
	FundingThresholdCents int64
}

// DefaultParams mirror the source system: four auto-approved airlines and
// a 10-unit funding threshold.
func DefaultParams() Params {
	return Params{AutoApproveLimit: 4, FundingThresholdCents: 10_000_00}
}

// Store persists registry state.  Implementations must be idempotent per
// record; the registry replays them at startup via Restore.
type Store interface {
	SaveAirline(ctx context.Context, a *model.Airline) error
	SaveVote(ctx context.Context, candidateID, voterID uint64) error
}

// Registry is the admission voting state machine.  Approval is monotone
// and terminal: an APPROVED airline never leaves that state.
type Registry struct {
	mu       sync.Mutex
	params   Params
	gate     *gate.Gate
	store    Store
	pub      events.Publisher
	airlines map[uint64]*model.Airline
	votes    map[uint64]map[uint64]bool // candidate -> voter set
	admitted int                        // admission counter, drives Seq
}

// New constructs an empty registry.
func New(params Params, g *gate.Gate, store Store, pub events.Publisher) *Registry {
	return &Registry{
		params:   params,
		gate:     g,
		store:    store,
		pub:      pub,
		airlines: make(map[uint64]*model.Airline),
		votes:    make(map[uint64]map[uint64]bool),
	}
}

// Restore loads persisted airlines and votes into memory.  Called once at
// startup before the registry is shared.
func (r *Registry) Restore(airlines []*model.Airline, votes []*model.AirlineVote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range airlines {
		cp := *a
		r.airlines[a.ID] = &cp
		if a.Seq > r.admitted {
			r.admitted = a.Seq
		}
	}
	for _, v := range votes {
		set := r.votes[v.CandidateID]
		if set == nil {
			set = make(map[uint64]bool)
			r.votes[v.CandidateID] = set
		}
		set[v.VoterID] = true
	}
}

// Admit registers candidateID under the given display name.  The sponsor
// must be an approved airline, except for the bootstrap case where no
// airline is approved yet.  The first AutoApproveLimit airlines (bootstrap
// included) are approved immediately with zero votes; later candidates
// enter PENDING with zero votes and zero funding.
func (r *Registry) Admit(ctx context.Context, candidateID uint64, name string, sponsorID uint64) (*model.Airline, error) {
	if err := r.gate.RequireOperational(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.airlines[candidateID]; ok {
		return nil, ErrAlreadyAdmitted
	}
	if r.approvedCountLocked() > 0 {
		sponsor, ok := r.airlines[sponsorID]
		if !ok || !sponsor.Approved() {
			return nil, ErrUnauthorized
		}
	}

	now := time.Now().UTC()
	a := &model.Airline{
		ID:        candidateID,
		Name:      name,
		Status:    model.AirlineStatusPending,
		Seq:       r.admitted + 1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.Seq <= r.params.AutoApproveLimit {
		a.Status = model.AirlineStatusApproved
	}
	if err := r.store.SaveAirline(ctx, a); err != nil {
		return nil, err
	}
	r.admitted = a.Seq
	r.airlines[candidateID] = a
	if a.Approved() {
		r.publish(ctx, events.TopicAirlineApproved, events.AirlineApproved{AirlineID: a.ID, Name: a.Name})
	}
	cp := *a
	return &cp, nil
}

// Fund adds amountCents to the candidate's capital.  Unknown candidates
// fail with ErrNotPending; funding an approved airline is a recorded
// top-up, not an error.  If the funding threshold and the standing vote
// condition are both met, the candidate flips to APPROVED.
func (r *Registry) Fund(ctx context.Context, candidateID uint64, amountCents int64) (*model.Airline, error) {
	if err := r.gate.RequireOperational(); err != nil {
		return nil, err
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.airlines[candidateID]
	if !ok {
		return nil, ErrNotPending
	}
	updated := *a
	updated.FundedCents += amountCents
	updated.UpdatedAt = time.Now().UTC()
	approvedNow := false
	if !updated.Approved() && updated.FundedCents >= r.params.FundingThresholdCents && r.voteConditionLocked(candidateID) {
		updated.Status = model.AirlineStatusApproved
		approvedNow = true
	}
	if err := r.store.SaveAirline(ctx, &updated); err != nil {
		return nil, err
	}
	*a = updated
	if approvedNow {
		r.publish(ctx, events.TopicAirlineApproved, events.AirlineApproved{AirlineID: a.ID, Name: a.Name})
	}
	cp := *a
	return &cp, nil
}

// Vote records an approval vote by voterID for candidateID.  The voter
// must itself be approved; a repeated (candidate, voter) pair fails with
// ErrDuplicateVote and leaves the count unchanged.  If the resulting vote
// count exceeds half the approved count and the candidate is funded, the
// candidate flips to APPROVED.
func (r *Registry) Vote(ctx context.Context, candidateID, voterID uint64) (*model.Airline, error) {
	if err := r.gate.RequireOperational(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	voter, ok := r.airlines[voterID]
	if !ok || !voter.Approved() {
		return nil, ErrUnauthorized
	}
	a, ok := r.airlines[candidateID]
	if !ok {
		return nil, ErrNotPending
	}
	if r.votes[candidateID][voterID] {
		return nil, ErrDuplicateVote
	}

	updated := *a
	updated.Votes = len(r.votes[candidateID]) + 1
	updated.UpdatedAt = time.Now().UTC()
	approvedNow := false
	if !updated.Approved() && updated.Votes*2 > r.approvedCountLocked() && updated.FundedCents >= r.params.FundingThresholdCents {
		updated.Status = model.AirlineStatusApproved
		approvedNow = true
	}
	if err := r.store.SaveVote(ctx, candidateID, voterID); err != nil {
		return nil, err
	}
	if err := r.store.SaveAirline(ctx, &updated); err != nil {
		return nil, err
	}
	set := r.votes[candidateID]
	if set == nil {
		set = make(map[uint64]bool)
		r.votes[candidateID] = set
	}
	set[voterID] = true
	*a = updated
	r.publish(ctx, events.TopicAirlineVoted, events.AirlineVoted{AirlineID: a.ID, VoterID: voterID, Votes: a.Votes})
	if approvedNow {
		r.publish(ctx, events.TopicAirlineApproved, events.AirlineApproved{AirlineID: a.ID, Name: a.Name})
	}
	cp := *a
	return &cp, nil
}

// IsApproved reports whether airlineID is an approved airline.  Part of
// the read-only query surface consumed by the insurance ledger.
func (r *Registry) IsApproved(airlineID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.airlines[airlineID]
	return ok && a.Approved()
}

// FundedAmount returns the candidate's paid-in capital in cents, or zero
// for unknown airlines.
func (r *Registry) FundedAmount(airlineID uint64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.airlines[airlineID]; ok {
		return a.FundedCents
	}
	return 0
}

// Get returns a copy of the airline record, if admitted.
func (r *Registry) Get(airlineID uint64) (*model.Airline, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.airlines[airlineID]; ok {
		cp := *a
		return &cp, true
	}
	return nil, false
}

// ApprovedCount returns the number of currently approved airlines.
func (r *Registry) ApprovedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.approvedCountLocked()
}

func (r *Registry) approvedCountLocked() int {
	n := 0
	for _, a := range r.airlines {
		if a.Approved() {
			n++
		}
	}
	return n
}

// voteConditionLocked reports whether candidateID currently satisfies the
// vote share requirement: auto-approval window still open, or strictly
// more than half of the approved airlines voted for it.
func (r *Registry) voteConditionLocked(candidateID uint64) bool {
	a, ok := r.airlines[candidateID]
	if !ok {
		return false
	}
	if a.Seq <= r.params.AutoApproveLimit {
		return true
	}
	return len(r.votes[candidateID])*2 > r.approvedCountLocked()
}

func (r *Registry) publish(ctx context.Context, topic string, ev any) {
	if err := r.pub.Publish(ctx, topic, ev); err != nil {
		log.Printf("registry: publish %s failed: %v", topic, err)
	}
}
