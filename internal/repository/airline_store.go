package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/flight-surety/internal/model"
)

// AirlineStore persists registry state: airline aggregates and the
// (candidate, voter) vote set.  It implements registry.Store; the unique
// key on airline_votes backs the at-most-one-vote-per-pair invariant at
// the storage level as well.
type AirlineStore struct{ DB *sql.DB }

// NewAirlineStore returns an AirlineStore bound to the given database.
func NewAirlineStore(db *sql.DB) *AirlineStore { return &AirlineStore{DB: db} }

// SaveAirline upserts the airline row keyed by its ID.  Called on
// admission and on every fund/vote mutation.
func (s *AirlineStore) SaveAirline(ctx context.Context, a *model.Airline) error {
	const q = `INSERT INTO airlines (id, name, status, funded_cents, votes, seq)
	           VALUES (?,?,?,?,?,?)
	           ON DUPLICATE KEY UPDATE
	             name=VALUES(name), status=VALUES(status),
	             funded_cents=VALUES(funded_cents), votes=VALUES(votes)`
	_, err := s.DB.ExecContext(ctx, q, a.ID, a.Name, a.Status, a.FundedCents, a.Votes, a.Seq)
	return err
}

// SaveVote inserts one vote row.  The registry rejects duplicates before
// calling; INSERT IGNORE keeps a broker-replayed call harmless.
func (s *AirlineStore) SaveVote(ctx context.Context, candidateID, voterID uint64) error {
	const q = `INSERT IGNORE INTO airline_votes (candidate_id, voter_id) VALUES (?,?)`
	_, err := s.DB.ExecContext(ctx, q, candidateID, voterID)
	return err
}

// LoadAirlines returns every airline row, ordered by admission sequence.
// Used to rehydrate the registry at startup.
func (s *AirlineStore) LoadAirlines(ctx context.Context) ([]*model.Airline, error) {
	const q = `SELECT id, name, status, funded_cents, votes, seq, created_at, updated_at
	           FROM airlines ORDER BY seq`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Airline
	for rows.Next() {
		var a model.Airline
		if err := rows.Scan(&a.ID, &a.Name, &a.Status, &a.FundedCents, &a.Votes, &a.Seq, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// LoadVotes returns every recorded vote pair.
func (s *AirlineStore) LoadVotes(ctx context.Context) ([]*model.AirlineVote, error) {
	const q = `SELECT id, candidate_id, voter_id, created_at FROM airline_votes`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.AirlineVote
	for rows.Next() {
		var v model.AirlineVote
		if err := rows.Scan(&v.ID, &v.CandidateID, &v.VoterID, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
