// Package postgres opens pooled PostgreSQL connections through the pgx stdlib driver
// and applies schema migrations on them.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const driverName = "pgx"

type options struct {
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
	maxIdleConns    int
	maxOpenConns    int
	pingAttempts    int
	pingInterval    time.Duration
}

func defaultOptions() options {
	return options{
		connMaxIdleTime: 5 * time.Minute,
		connMaxLifetime: 30 * time.Minute,
		maxIdleConns:    5,
		maxOpenConns:    25,
		pingAttempts:    1,
		pingInterval:    time.Second,
	}
}

type Option func(*options)

func WithConnMaxIdleTime(d time.Duration) Option {
	return func(o *options) {
		o.connMaxIdleTime = d
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *options) {
		o.connMaxLifetime = d
	}
}

func WithMaxIdleConns(n int) Option {
	return func(o *options) {
		o.maxIdleConns = n
	}
}

func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		o.maxOpenConns = n
	}
}

// WithPingRetry makes New try the first ping up to attempts times, waiting
// interval between tries. Useful when the database container starts
// alongside the service.
func WithPingRetry(attempts int, interval time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.pingAttempts = attempts
		}
		o.pingInterval = interval
	}
}

// New opens a pool for dsn, tunes it and waits until the database answers.
func New(ctx context.Context, dsn string, opts ...Option) (*sqlx.DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return open(ctx, driverName, dsn, o)
}

func open(ctx context.Context, driver, dsn string, o options) (*sqlx.DB, error) {
	const op = "postgres.New"

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	db.SetConnMaxIdleTime(o.connMaxIdleTime)
	db.SetConnMaxLifetime(o.connMaxLifetime)
	db.SetMaxIdleConns(o.maxIdleConns)
	db.SetMaxOpenConns(o.maxOpenConns)

	if err := ping(ctx, db, o.pingAttempts, o.pingInterval); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	return db, nil
}

func ping(ctx context.Context, db *sqlx.DB, attempts int, interval time.Duration) error {
	var err error

	for attempt := 1; ; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if attempt >= attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
