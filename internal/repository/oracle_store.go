package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/flight-surety/internal/model"
)

// OracleStore persists oracle nodes and status requests.  Response buckets
// are stored as a JSON document per request; the coordinator rewrites the
// whole row on every accepted submission, so the column always reflects
// the in-memory state.  Implements oracle.Store.
type OracleStore struct{ DB *sql.DB }

// NewOracleStore returns an OracleStore bound to the given database.
func NewOracleStore(db *sql.DB) *OracleStore { return &OracleStore{DB: db} }

// SaveNode inserts the immutable node row.  The coordinator guarantees a
// node is saved at most once.
func (s *OracleStore) SaveNode(ctx context.Context, n *model.OracleNode) error {
	const q = `INSERT INTO oracle_nodes (id, idx0, idx1, idx2, fee_cents) VALUES (?,?,?,?,?)`
	_, err := s.DB.ExecContext(ctx, q, n.ID, n.Indexes[0], n.Indexes[1], n.Indexes[2], n.FeeCents)
	return err
}

// SaveRequest upserts the request row keyed by (idx, airline, flight, ts).
// Re-opening overwrites a stale closed row at the same key, matching the
// coordinator's in-memory behavior.
func (s *OracleStore) SaveRequest(ctx context.Context, r *model.StatusRequest) error {
	responses, err := json.Marshal(r.Responses)
	if err != nil {
		return err
	}
	const q = `INSERT INTO status_requests (idx, airline_id, flight, ts, requester_id, open, verdict, responses)
	           VALUES (?,?,?,?,?,?,?,?)
	           ON DUPLICATE KEY UPDATE
	             requester_id=VALUES(requester_id), open=VALUES(open),
	             verdict=VALUES(verdict), responses=VALUES(responses)`
	_, err = s.DB.ExecContext(ctx, q,
		r.Index, r.Key.AirlineID, r.Key.Flight, r.Key.Timestamp,
		r.RequesterID, r.Open, r.Verdict, responses)
	return err
}

// LoadNodes returns every registered oracle node.
func (s *OracleStore) LoadNodes(ctx context.Context) ([]*model.OracleNode, error) {
	const q = `SELECT id, idx0, idx1, idx2, fee_cents, created_at FROM oracle_nodes`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.OracleNode
	for rows.Next() {
		var n model.OracleNode
		if err := rows.Scan(&n.ID, &n.Indexes[0], &n.Indexes[1], &n.Indexes[2], &n.FeeCents, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// LoadRequests returns every status request with its response buckets.
func (s *OracleStore) LoadRequests(ctx context.Context) ([]*model.StatusRequest, error) {
	const q = `SELECT idx, airline_id, flight, ts, requester_id, open, verdict, responses, created_at
	           FROM status_requests`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.StatusRequest
	for rows.Next() {
		var r model.StatusRequest
		var responses []byte
		if err := rows.Scan(&r.Index, &r.Key.AirlineID, &r.Key.Flight, &r.Key.Timestamp,
			&r.RequesterID, &r.Open, &r.Verdict, &responses, &r.CreatedAt); err != nil {
			return nil, err
		}
		if len(responses) > 0 {
			if err := json.Unmarshal(responses, &r.Responses); err != nil {
				return nil, err
			}
		}
		if r.Responses == nil {
			r.Responses = make(map[uint8][]uint64)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
