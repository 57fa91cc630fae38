// Package sqlite opens SQLite databases through mattn/go-sqlite3 and applies
// schema migrations to them.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"
)

// New opens the database at dsn. The pool is limited to a single connection:
// SQLite allows one writer at a time and in-memory databases exist per connection.
func New(ctx context.Context, dsn string) (*sqlx.DB, error) {
	const op = "sqlite.New"

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	return db, nil
}
