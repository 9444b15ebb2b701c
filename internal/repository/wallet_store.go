package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ErrInvalidTransfer is returned for non-positive transfer amounts.
var ErrInvalidTransfer = errors.New("invalid transfer amount")

// WalletStore credits outbound value transfers (purchase-excess refunds,
// payout withdrawals) to per-user wallet accounts.  It implements
// ledger.Treasury and stands in for the out-of-scope wallet/network
// collaborator: the single atomic UPDATE means a returned error implies
// no value moved.
type WalletStore struct{ DB *sql.DB }

// NewWalletStore returns a WalletStore bound to the given database.
func NewWalletStore(db *sql.DB) *WalletStore { return &WalletStore{DB: db} }

// Transfer credits amountCents to the user's wallet account, creating the
// account on first use.
func (s *WalletStore) Transfer(ctx context.Context, userID uint64, amountCents int64) error {
	if amountCents <= 0 {
		return ErrInvalidTransfer
	}
	const q = `INSERT INTO wallet_accounts (user_id, balance_cents) VALUES (?,?)
	           ON DUPLICATE KEY UPDATE balance_cents = balance_cents + VALUES(balance_cents)`
	_, err := s.DB.ExecContext(ctx, q, userID, amountCents)
	return err
}

// Balance returns the user's wallet balance; zero when no account exists.
func (s *WalletStore) Balance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT balance_cents FROM wallet_accounts WHERE user_id=?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}
