package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/flight-surety/internal/model"
)

// InsuranceStore persists insurance policies and payout balances.
// Implements ledger.Store.  Policies are uniquely keyed by
// (airline, flight, ts, passenger) so the ledger's per-passenger index is
// mirrored by the storage schema.
type InsuranceStore struct{ DB *sql.DB }

// NewInsuranceStore returns an InsuranceStore bound to the given database.
func NewInsuranceStore(db *sql.DB) *InsuranceStore { return &InsuranceStore{DB: db} }

// SavePolicy upserts one policy row and backfills the generated ID on
// first insert.
func (s *InsuranceStore) SavePolicy(ctx context.Context, p *model.InsurancePolicy) error {
	const q = `INSERT INTO insurance_policies
	             (airline_id, flight, ts, passenger_id, premium_cents, credited_cents, credited, paid)
	           VALUES (?,?,?,?,?,?,?,?)
	           ON DUPLICATE KEY UPDATE
	             premium_cents=VALUES(premium_cents), credited_cents=VALUES(credited_cents),
	             credited=VALUES(credited), paid=VALUES(paid)`
	res, err := s.DB.ExecContext(ctx, q,
		p.AirlineID, p.Flight, p.Timestamp, p.PassengerID,
		p.PremiumCents, p.CreditedCents, p.Credited, p.Paid)
	if err != nil {
		return err
	}
	if p.ID == 0 {
		if id, err := res.LastInsertId(); err == nil && id > 0 {
			p.ID = uint64(id)
		}
	}
	return nil
}

// ApplyCredit writes the credited policy row and the passenger's balance
// in one transaction.  A crash can therefore never leave a policy marked
// credited without the matching balance increase, which would make
// verdict redelivery skip it.
func (s *InsuranceStore) ApplyCredit(ctx context.Context, p *model.InsurancePolicy, balanceCents int64) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	const pq = `UPDATE insurance_policies
	            SET credited_cents=?, credited=?, paid=?
	            WHERE airline_id=? AND flight=? AND ts=? AND passenger_id=?`
	if _, err = tx.ExecContext(ctx, pq,
		p.CreditedCents, p.Credited, p.Paid,
		p.AirlineID, p.Flight, p.Timestamp, p.PassengerID); err != nil {
		return err
	}
	const bq = `INSERT INTO payout_balances (passenger_id, balance_cents) VALUES (?,?)
	            ON DUPLICATE KEY UPDATE balance_cents=VALUES(balance_cents)`
	_, err = tx.ExecContext(ctx, bq, p.PassengerID, balanceCents)
	return err
}

// SavePayout upserts the passenger's withdrawable balance.
func (s *InsuranceStore) SavePayout(ctx context.Context, passengerID uint64, balanceCents int64) error {
	const q = `INSERT INTO payout_balances (passenger_id, balance_cents) VALUES (?,?)
	           ON DUPLICATE KEY UPDATE balance_cents=VALUES(balance_cents)`
	_, err := s.DB.ExecContext(ctx, q, passengerID, balanceCents)
	return err
}

// LoadPolicies returns every policy row for ledger rehydration.
func (s *InsuranceStore) LoadPolicies(ctx context.Context) ([]*model.InsurancePolicy, error) {
	const q = `SELECT id, airline_id, flight, ts, passenger_id, premium_cents,
	                  credited_cents, credited, paid, created_at, updated_at
	           FROM insurance_policies`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.InsurancePolicy
	for rows.Next() {
		var p model.InsurancePolicy
		if err := rows.Scan(&p.ID, &p.AirlineID, &p.Flight, &p.Timestamp, &p.PassengerID,
			&p.PremiumCents, &p.CreditedCents, &p.Credited, &p.Paid, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// LoadBalances returns every payout balance row.
func (s *InsuranceStore) LoadBalances(ctx context.Context) ([]*model.PayoutBalance, error) {
	const q = `SELECT passenger_id, balance_cents, updated_at FROM payout_balances`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.PayoutBalance
	for rows.Next() {
		var b model.PayoutBalance
		if err := rows.Scan(&b.PassengerID, &b.BalanceCents, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
