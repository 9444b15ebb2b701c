// Package database opens the MySQL connection pool and owns the schema
// DDL the platform's stores depend on.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Params carries the connection and pool settings.  Pool sizing comes
// from configuration so deployments can widen it without a rebuild.
type Params struct {
	User string
	Pass string
	Host string
	Port string
	Name string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to MySQL, applies the pool settings and verifies the
// connection with a bounded ping.
func Open(p Params) (*sql.DB, error) {
	auth := p.User
	if p.Pass != "" {
		auth = p.User + ":" + p.Pass
	}
	// parseTime maps DATETIME columns onto time.Time; loc=UTC keeps the
	// stored timestamps in the zone the engines compute with.
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, p.Host, p.Port, p.Name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(p.MaxOpenConns)
	db.SetMaxIdleConns(p.MaxIdleConns)
	db.SetConnMaxLifetime(p.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
