package repository

import (
	"context"
	"database/sql"
	"errors"
)

// GateStore persists the authorization gate's settings: the global
// operational switch and the orchestrator allow-list.  Implements
// gate.Store.
type GateStore struct{ DB *sql.DB }

// NewGateStore returns a GateStore bound to the given database.
func NewGateStore(db *sql.DB) *GateStore { return &GateStore{DB: db} }

const operationalKey = "operational"

// SaveOperational upserts the operational flag.
func (s *GateStore) SaveOperational(ctx context.Context, operational bool) error {
	v := "0"
	if operational {
		v = "1"
	}
	const q = `INSERT INTO app_settings (name, value) VALUES (?,?)
	           ON DUPLICATE KEY UPDATE value=VALUES(value)`
	_, err := s.DB.ExecContext(ctx, q, operationalKey, v)
	return err
}

// LoadOperational returns the persisted flag, defaulting to operational
// when no row exists yet.
func (s *GateStore) LoadOperational(ctx context.Context) (bool, error) {
	var v string
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM app_settings WHERE name=?`, operationalKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// SaveAuthorizedCaller adds or removes one caller from the allow-list.
func (s *GateStore) SaveAuthorizedCaller(ctx context.Context, callerID uint64, authorized bool) error {
	if authorized {
		_, err := s.DB.ExecContext(ctx,
			`INSERT IGNORE INTO authorized_callers (caller_id) VALUES (?)`, callerID)
		return err
	}
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM authorized_callers WHERE caller_id=?`, callerID)
	return err
}

// LoadAuthorizedCallers returns the persisted allow-list.
func (s *GateStore) LoadAuthorizedCallers(ctx context.Context) ([]uint64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT caller_id FROM authorized_callers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
