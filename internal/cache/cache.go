// Package cache provides a Redis read-through cache in front of the link
// datastore. Redis is never authoritative: every cache failure falls back to
// the wrapped repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/notveryshort/internal/models"
)

const (
	keyPrefix  = "link:"
	DefaultTTL = 24 * time.Hour
)

// LinkRepository is the datastore the cache wraps.
type LinkRepository interface {
	FindByCode(ctx context.Context, shortCode string) (*models.Link, error)
	FindByURL(ctx context.Context, originalURL string) (*models.Link, error)
	FindByCodeAndURL(ctx context.Context, shortCode, originalURL string) (*models.Link, error)
	Insert(ctx context.Context, shortCode, originalURL string) (*models.Link, error)
}

// CachedLinkRepository caches links by short code. Bindings are immutable,
// so cached entries never need invalidation; only positive lookups are
// cached.
type CachedLinkRepository struct {
	next   LinkRepository
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*CachedLinkRepository)

func WithTTL(ttl time.Duration) Option {
	return func(r *CachedLinkRepository) {
		r.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *CachedLinkRepository) {
		r.logger = logger
	}
}

// NewCachedLinkRepository creates a new instance of CachedLinkRepository.
func NewCachedLinkRepository(next LinkRepository, rdb redis.Cmdable, opts ...Option) *CachedLinkRepository {
	r := &CachedLinkRepository{
		next:   next,
		rdb:    rdb,
		ttl:    DefaultTTL,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type cachedLink struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c cachedLink) ToLink() *models.Link {
	return &models.Link{
		ID:          c.ID,
		ShortCode:   c.ShortCode,
		OriginalURL: c.OriginalURL,
		CreatedAt:   c.CreatedAt,
	}
}

func cacheKey(shortCode string) string {
	return keyPrefix + shortCode
}

func (r *CachedLinkRepository) FindByCode(ctx context.Context, shortCode string) (*models.Link, error) {
	const op = "cache.CachedLinkRepository.FindByCode"

	data, err := r.rdb.Get(ctx, cacheKey(shortCode)).Bytes()
	switch {
	case err == nil:
		var c cachedLink
		if err := json.Unmarshal(data, &c); err == nil {
			return c.ToLink(), nil
		}
		r.logger.Warn("dropping malformed cache entry", slog.String("op", op), slog.String("code", shortCode))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("cache lookup failed", slog.String("op", op), slog.Any("err", err))
	}

	link, err := r.next.FindByCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	r.store(ctx, link)
	return link, nil
}

func (r *CachedLinkRepository) FindByURL(ctx context.Context, originalURL string) (*models.Link, error) {
	return r.next.FindByURL(ctx, originalURL)
}

func (r *CachedLinkRepository) FindByCodeAndURL(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	return r.next.FindByCodeAndURL(ctx, shortCode, originalURL)
}

func (r *CachedLinkRepository) Insert(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	link, err := r.next.Insert(ctx, shortCode, originalURL)
	if err != nil {
		return nil, err
	}

	r.store(ctx, link)
	return link, nil
}

func (r *CachedLinkRepository) store(ctx context.Context, link *models.Link) {
	const op = "cache.CachedLinkRepository.store"

	data, err := json.Marshal(cachedLink{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
	})
	if err != nil {
		r.logger.Warn("failed to encode cache entry", slog.String("op", op), slog.Any("err", err))
		return
	}

	if err := r.rdb.Set(ctx, cacheKey(link.ShortCode), string(data), r.ttl).Err(); err != nil {
		r.logger.Warn("failed to write cache entry", slog.String("op", op), slog.Any("err", err))
	}
}
