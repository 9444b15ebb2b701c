package model

import "time"

// Role names stored in the `role` column of users.  OWNER is the single
// privileged operator of the platform (operational switch, orchestrator
// allow-list).  AIRLINE accounts participate in admission governance.
// ORACLE accounts register oracle nodes and report flight status.
// CUSTOMER accounts buy insurance and withdraw payouts.
const (
	RoleOwner    = "OWNER"
	RoleAirline  = "AIRLINE"
	RoleOracle   = "ORACLE"
	RoleCustomer = "CUSTOMER"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  Handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – one of the role constants above.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry and
// revocation.  The plain token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// WalletAccount mirrors the `wallet_accounts` table.  It receives all
// outbound value transfers of the core: purchase-excess refunds and payout
// withdrawals.  It stands in for the external wallet collaborator.
type WalletAccount struct {
	UserID       uint64    // wallet_accounts.user_id
	BalanceCents int64     // wallet_accounts.balance_cents
	UpdatedAt    time.Time // wallet_accounts.updated_at
}
