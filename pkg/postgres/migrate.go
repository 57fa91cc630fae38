package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies every pending up migration found at sourceURL to db.
// It borrows a single connection from the pool and returns it afterwards;
// db itself stays open.
func RunMigrations(ctx context.Context, db *sqlx.DB, sourceURL string) error {
	const op = "postgres.RunMigrations"

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to acquire connection: %w", op, err)
	}

	driver, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("%s: failed to create migrate driver: %w", op, err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	// Closes the source and the borrowed connection, not the pool.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return nil
}
