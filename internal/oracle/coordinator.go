// Package oracle owns oracle node registration, flight-status request
// lifecycle and response quorum aggregation.  A request closes exactly
// once, when the first response bucket reaches quorum; whichever status
// code gets there first wins.
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/flight-surety/internal/events"
	"github.com/iliyamo/flight-surety/internal/gate"
	"github.com/iliyamo/flight-surety/internal/model"
)

// Sentinel errors returned by coordinator operations.
var (
	// ErrInsufficientFee is returned when a node registers with less than
	// the configured registration fee.
	ErrInsufficientFee = errors.New("registration fee is insufficient")
	// ErrAlreadyRegistered is returned on re-registration of a node
	// identity; node index sets are immutable.
	ErrAlreadyRegistered = errors.New("oracle node already registered")
	// ErrUnknownNode is returned when a response comes from an identity
	// that never registered.
	ErrUnknownNode = errors.New("oracle node is not registered")
	// ErrIndexMismatch is returned when a node responds with an index it
	// was not assigned.
	ErrIndexMismatch = errors.New("index does not match an assigned oracle index")
	// ErrRequestClosed is returned when no status request exists at the
	// submitted key.  Responses to an existing but already closed request
	// are accepted silently and have no effect.
	ErrRequestClosed = errors.New("no open request for this key")
)

// Params carries the oracle protocol constants.
type Params struct {
	RegistrationFeeCents int64
	MinResponses         int
	IndexRange           uint8
	NodeIndexes          int
}

// DefaultParams mirror the source protocol: a 1-unit fee, quorum of 3
// matching reports, 3 indexes per node drawn from [0, 10).
func DefaultParams() Params {
	return Params{RegistrationFeeCents: 1_00_00, MinResponses: 3, IndexRange: 10, NodeIndexes: 3}
}

// Store persists oracle state.  SaveRequest is called on every accepted
// mutation of a request, including closure.
type Store interface {
	SaveNode(ctx context.Context, n *model.OracleNode) error
	SaveRequest(ctx context.Context, r *model.StatusRequest) error
}

// Coordinator is the oracle consensus engine.  All state lives behind one
// coordinator lock; operations never block on anything but the store
// write-through.
type Coordinator struct {
	mu       sync.Mutex
	params   Params
	gate     *gate.Gate
	store    Store
	pub      events.Publisher
	src      IndexSource
	nodes    map[uint64]*model.OracleNode
	requests map[string]*model.StatusRequest
}

// New constructs an empty coordinator drawing indexes from src.
func New(params Params, g *gate.Gate, store Store, pub events.Publisher, src IndexSource) *Coordinator {
	return &Coordinator{
		params:   params,
		gate:     g,
		store:    store,
		pub:      pub,
		src:      src,
		nodes:    make(map[uint64]*model.OracleNode),
		requests: make(map[string]*model.StatusRequest),
	}
}

// Restore loads persisted nodes and requests into memory at startup.
func (c *Coordinator) Restore(nodes []*model.OracleNode, requests []*model.StatusRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range nodes {
		cp := *n
		c.nodes[n.ID] = &cp
	}
	for _, r := range requests {
		cp := *r
		if cp.Responses == nil {
			cp.Responses = make(map[uint8][]uint64)
		}
		c.requests[cp.RequestKey()] = &cp
	}
}

// RegisterNode registers nodeID with the paid fee and assigns it three
// distinct indexes.  Registration is not idempotent: a second attempt for
// the same identity fails with ErrAlreadyRegistered.
func (c *Coordinator) RegisterNode(ctx context.Context, nodeID uint64, feeCents int64) (*model.OracleNode, error) {
	if err := c.gate.RequireOperational(); err != nil {
		return nil, err
	}
	if feeCents < c.params.RegistrationFeeCents {
		return nil, ErrInsufficientFee
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes[nodeID]; ok {
		return nil, ErrAlreadyRegistered
	}
	idx := drawDistinct(c.src, c.params.NodeIndexes, c.params.IndexRange, seedFor(nodeID, model.FlightKey{}))
	n := &model.OracleNode{
		ID:        nodeID,
		Indexes:   [3]uint8{idx[0], idx[1], idx[2]},
		FeeCents:  feeCents,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.store.SaveNode(ctx, n); err != nil {
		return nil, err
	}
	c.nodes[nodeID] = n
	cp := *n
	return &cp, nil
}

// RequestStatus opens a new status inquiry for the flight key and returns
// the drawn index.  Only nodes assigned that index should respond.  A
// stale closed request at the same composite key is overwritten; closed
// requests ignore further input, so nothing is lost.  If the drawn key
// collides with a still-open inquiry the caller joins it instead: the
// existing request and its collected responses survive untouched.
func (c *Coordinator) RequestStatus(ctx context.Context, requesterID uint64, key model.FlightKey) (uint8, error) {
	if err := c.gate.RequireOperational(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	index := c.src.Draw(c.params.IndexRange, seedFor(requesterID, key))
	if existing, ok := c.requests[(&model.StatusRequest{Index: index, Key: key}).RequestKey()]; ok && existing.Open {
		return existing.Index, nil
	}
	r := &model.StatusRequest{
		Index:       index,
		Key:         key,
		RequesterID: requesterID,
		Open:        true,
		Verdict:     model.StatusUnknown,
		Responses:   make(map[uint8][]uint64),
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.store.SaveRequest(ctx, r); err != nil {
		return 0, err
	}
	c.requests[r.RequestKey()] = r
	c.publish(ctx, events.TopicOracleRequest, events.OracleRequest{
		Index:     index,
		AirlineID: key.AirlineID,
		Flight:    key.Flight,
		Timestamp: key.Timestamp,
	})
	return index, nil
}

// SubmitResponse records nodeID's report of statusCode for the request at
// (index, key).  The node must own the index.  A response to an unknown
// key fails with ErrRequestClosed; a response to a closed request, or a
// repeat of a (node, code) pair already in the bucket, is accepted
// silently with no effect.  When a bucket first reaches quorum the
// request closes, the code becomes the verdict and exactly one
// FlightStatusInfo notification is emitted.
func (c *Coordinator) SubmitResponse(ctx context.Context, nodeID uint64, index uint8, key model.FlightKey, statusCode uint8) error {
	if err := c.gate.RequireOperational(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[nodeID]
	if !ok {
		return ErrUnknownNode
	}
	if !n.HasIndex(index) {
		return ErrIndexMismatch
	}
	r, ok := c.requests[(&model.StatusRequest{Index: index, Key: key}).RequestKey()]
	if !ok {
		return ErrRequestClosed
	}
	if !r.Open {
		return nil // late response to a settled request; accepted, no effect
	}
	if r.HasResponse(statusCode, nodeID) {
		return nil // retried submission; the bucket must not inflate
	}

	updated := *r
	updated.Responses = make(map[uint8][]uint64, len(r.Responses))
	for code, ids := range r.Responses {
		updated.Responses[code] = append([]uint64(nil), ids...)
	}
	updated.Responses[statusCode] = append(updated.Responses[statusCode], nodeID)
	closed := false
	if len(updated.Responses[statusCode]) >= c.params.MinResponses {
		updated.Open = false
		updated.Verdict = statusCode
		closed = true
	}
	if err := c.store.SaveRequest(ctx, &updated); err != nil {
		return err
	}
	*r = updated
	c.publish(ctx, events.TopicOracleReport, events.OracleReport{
		AirlineID:  key.AirlineID,
		Flight:     key.Flight,
		Timestamp:  key.Timestamp,
		StatusCode: statusCode,
		ReporterID: nodeID,
	})
	if closed {
		c.publish(ctx, events.TopicFlightStatusInfo, events.FlightStatusInfo{
			AirlineID:  key.AirlineID,
			Flight:     key.Flight,
			Timestamp:  key.Timestamp,
			StatusCode: statusCode,
		})
	}
	return nil
}

// GetNode returns a copy of the registered node, if any.
func (c *Coordinator) GetNode(nodeID uint64) (*model.OracleNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[nodeID]; ok {
		cp := *n
		return &cp, true
	}
	return nil, false
}

// GetRequest returns a copy of the request at (index, key), if any.
func (c *Coordinator) GetRequest(index uint8, key model.FlightKey) (*model.StatusRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.requests[(&model.StatusRequest{Index: index, Key: key}).RequestKey()]
	if !ok {
		return nil, false
	}
	cp := *r
	cp.Responses = make(map[uint8][]uint64, len(r.Responses))
	for code, ids := range r.Responses {
		cp.Responses[code] = append([]uint64(nil), ids...)
	}
	return &cp, true
}

// ExpireRequests closes every open request older than maxAge without
// declaring a verdict and returns how many were closed.  This bounds
// memory growth for inquiries that never reach quorum; the source system
// let them stay open forever.
func (c *Coordinator) ExpireRequests(ctx context.Context, maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	expired := 0
	for _, r := range c.requests {
		if !r.Open || r.CreatedAt.After(cutoff) {
			continue
		}
		updated := *r
		updated.Open = false
		if err := c.store.SaveRequest(ctx, &updated); err != nil {
			log.Printf("oracle: persist expired request %s failed: %v", r.RequestKey(), err)
			continue
		}
		*r = updated
		expired++
	}
	return expired
}

func (c *Coordinator) publish(ctx context.Context, topic string, ev any) {
	if err := c.pub.Publish(ctx, topic, ev); err != nil {
		log.Printf("oracle: publish %s failed: %v", topic, err)
	}
}

// seedFor mixes the caller identity and flight key into an opaque seed for
// the index source.
func seedFor(callerID uint64, key model.FlightKey) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], callerID)
	binary.BigEndian.PutUint64(buf[8:16], uint64(key.Timestamp))
	sum := sha256.Sum256(append(buf[:], []byte(key.String())...))
	return sum[:]
}
