package model

import "time"

// InsurancePolicy mirrors the `insurance_policies` table.  One row per
// (flight, passenger); the per-flight passenger index keeps credit
// application O(1) per entry instead of a linear scan over all policies.
//
// Fields:
//  ID            – primary key identifier.
//  AirlineID     – airline component of the flight key.
//  Flight        – flight number component of the flight key.
//  Timestamp     – scheduled departure (unix seconds, UTC).
//  PassengerID   – insured passenger.
//  PremiumCents  – escrowed premium, capped at the configured maximum.
//  CreditedCents – payout credited after a qualifying verdict; 0 until then.
//  Credited      – set exactly once by CreditInsurees.
//  Paid          – set exactly once when the payout is withdrawn.
type InsurancePolicy struct {
	ID            uint64    // insurance_policies.id
	AirlineID     uint64    // insurance_policies.airline_id
	Flight        string    // insurance_policies.flight
	Timestamp     int64     // insurance_policies.ts
	PassengerID   uint64    // insurance_policies.passenger_id
	PremiumCents  int64     // insurance_policies.premium_cents
	CreditedCents int64     // insurance_policies.credited_cents
	Credited      bool      // insurance_policies.credited
	Paid          bool      // insurance_policies.paid
	CreatedAt     time.Time // insurance_policies.created_at
	UpdatedAt     time.Time // insurance_policies.updated_at
}

// FlightKey returns the flight key this policy was bought against.
func (p *InsurancePolicy) FlightKey() FlightKey {
	return FlightKey{AirlineID: p.AirlineID, Flight: p.Flight, Timestamp: p.Timestamp}
}

// PayoutBalance mirrors the `payout_balances` table: the withdrawable
// value accumulated for one passenger.  Incremented by CreditInsurees and
// zeroed atomically by a successful withdraw.
type PayoutBalance struct {
	PassengerID  uint64    // payout_balances.passenger_id
	BalanceCents int64     // payout_balances.balance_cents
	UpdatedAt    time.Time // payout_balances.updated_at
}
