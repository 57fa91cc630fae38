package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/notveryshort/internal/config"
	"github.com/vadimbarashkov/notveryshort/internal/database/postgres"
	"github.com/vadimbarashkov/notveryshort/internal/database/sqlite"
	"github.com/vadimbarashkov/notveryshort/internal/service"

	pgpkg "github.com/vadimbarashkov/notveryshort/pkg/postgres"
	sqlitepkg "github.com/vadimbarashkov/notveryshort/pkg/sqlite"
)

// openStorage connects to the configured datastore, brings its schema up to
// date and returns the link repository on top of it.
func openStorage(ctx context.Context, cfg *config.Config) (*sqlx.DB, service.LinkRepository, error) {
	const op = "app.openStorage"

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := pgpkg.New(
			ctx,
			cfg.Postgres.DSN(),
			pgpkg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			pgpkg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			pgpkg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			pgpkg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
			pgpkg.WithPingRetry(cfg.Postgres.ConnectAttempts, cfg.Postgres.ConnectInterval),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}

		if err := pgpkg.RunMigrations(ctx, db, cfg.Storage.MigrationsURL()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		return db, postgres.NewLinkRepository(db), nil

	case config.DriverSQLite:
		db, err := sqlitepkg.New(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to open database: %w", op, err)
		}

		if err := sqlitepkg.RunMigrations(db, cfg.Storage.MigrationsURL()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		return db, sqlite.NewLinkRepository(db), nil

	default:
		return nil, nil, fmt.Errorf("%s: unsupported storage driver %q", op, cfg.Storage.Driver)
	}
}
