package database

import (
	"context"
	"database/sql"
)

// schema holds the DDL for every table the service owns.  Statements are
// idempotent so EnsureSchema can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255)    NOT NULL,
		password_hash VARCHAR(255)    NOT NULL,
		role          VARCHAR(16)     NOT NULL,
		is_active     TINYINT(1)      NOT NULL DEFAULT 1,
		created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64)        NOT NULL,
		expires_at DATETIME        NOT NULL,
		revoked_at DATETIME        NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY ix_refresh_tokens_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS airlines (
		id           BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		name         VARCHAR(255)    NOT NULL,
		status       VARCHAR(16)     NOT NULL,
		funded_cents BIGINT          NOT NULL DEFAULT 0,
		votes        INT             NOT NULL DEFAULT 0,
		seq          INT             NOT NULL,
		created_at   DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_airlines_seq (seq)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS airline_votes (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		candidate_id BIGINT UNSIGNED NOT NULL,
		voter_id     BIGINT UNSIGNED NOT NULL,
		created_at   DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_airline_votes_pair (candidate_id, voter_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS oracle_nodes (
		id         BIGINT UNSIGNED  NOT NULL PRIMARY KEY,
		idx0       TINYINT UNSIGNED NOT NULL,
		idx1       TINYINT UNSIGNED NOT NULL,
		idx2       TINYINT UNSIGNED NOT NULL,
		fee_cents  BIGINT           NOT NULL,
		created_at DATETIME         NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS status_requests (
		id           BIGINT UNSIGNED  NOT NULL AUTO_INCREMENT PRIMARY KEY,
		idx          TINYINT UNSIGNED NOT NULL,
		airline_id   BIGINT UNSIGNED  NOT NULL,
		flight       VARCHAR(32)      NOT NULL,
		ts           BIGINT           NOT NULL,
		requester_id BIGINT UNSIGNED  NOT NULL,
		open         TINYINT(1)       NOT NULL,
		verdict      TINYINT UNSIGNED NOT NULL DEFAULT 0,
		responses    JSON             NOT NULL,
		created_at   DATETIME         NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_status_requests_key (idx, airline_id, flight, ts)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS insurance_policies (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		airline_id     BIGINT UNSIGNED NOT NULL,
		flight         VARCHAR(32)     NOT NULL,
		ts             BIGINT          NOT NULL,
		passenger_id   BIGINT UNSIGNED NOT NULL,
		premium_cents  BIGINT          NOT NULL,
		credited_cents BIGINT          NOT NULL DEFAULT 0,
		credited       TINYINT(1)      NOT NULL DEFAULT 0,
		paid           TINYINT(1)      NOT NULL DEFAULT 0,
		created_at     DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_insurance_policies_key (airline_id, flight, ts, passenger_id),
		KEY ix_insurance_policies_passenger (passenger_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS payout_balances (
		passenger_id  BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		balance_cents BIGINT          NOT NULL DEFAULT 0,
		updated_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS wallet_accounts (
		user_id       BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		balance_cents BIGINT          NOT NULL DEFAULT 0,
		updated_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS app_settings (
		name  VARCHAR(64)  NOT NULL PRIMARY KEY,
		value VARCHAR(255) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS authorized_callers (
		caller_id  BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates every table the service needs if it does not exist
// yet.  Safe to run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
