// Package sqlite implements link storage on top of an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/vadimbarashkov/notveryshort/internal/database"
	"github.com/vadimbarashkov/notveryshort/internal/models"
)

func isUniqueViolationError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

type linkRecord struct {
	ID          int64     `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	return &models.Link{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		CreatedAt:   r.CreatedAt,
	}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

func (r *LinkRepository) Insert(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	const op = "database.sqlite.LinkRepository.Insert"

	res, err := r.db.ExecContext(ctx, `INSERT INTO links(short_code, original_url) VALUES (?, ?)`, shortCode, originalURL)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert link record: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get inserted id: %w", op, err)
	}

	rec := new(linkRecord)
	query := `SELECT id, short_code, original_url, created_at
		FROM links
		WHERE id = ?`

	if err := r.db.GetContext(ctx, rec, query, id); err != nil {
		return nil, fmt.Errorf("%s: failed to read inserted link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) FindByCode(ctx context.Context, shortCode string) (*models.Link, error) {
	const op = "database.sqlite.LinkRepository.FindByCode"

	query := `SELECT id, short_code, original_url, created_at
		FROM links
		WHERE short_code = ?`

	return r.findOne(ctx, op, query, shortCode)
}

// FindByURL returns the earliest link stored for originalURL.
func (r *LinkRepository) FindByURL(ctx context.Context, originalURL string) (*models.Link, error) {
	const op = "database.sqlite.LinkRepository.FindByURL"

	query := `SELECT id, short_code, original_url, created_at
		FROM links
		WHERE original_url = ?
		ORDER BY id
		LIMIT 1`

	return r.findOne(ctx, op, query, originalURL)
}

func (r *LinkRepository) FindByCodeAndURL(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	const op = "database.sqlite.LinkRepository.FindByCodeAndURL"

	query := `SELECT id, short_code, original_url, created_at
		FROM links
		WHERE short_code = ? AND original_url = ?`

	return r.findOne(ctx, op, query, shortCode, originalURL)
}

func (r *LinkRepository) findOne(ctx context.Context, op, query string, args ...any) (*models.Link, error) {
	rec := new(linkRecord)

	err := r.db.GetContext(ctx, rec, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}
