package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/vadimbarashkov/notveryshort/internal/database"
	"github.com/vadimbarashkov/notveryshort/internal/models"
)

// maxAttempts bounds the generated-code loop.
const maxAttempts = 5

var (
	// ErrInvalidURL is returned when the URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidAlias is returned when a custom alias is not 1-64 alphanumeric characters.
	ErrInvalidAlias = errors.New("invalid custom alias")
	// ErrInvalidCode is returned when a short code to resolve is malformed.
	ErrInvalidCode = errors.New("invalid short code")
	// ErrAliasTaken is returned when a custom alias is bound to a different URL.
	ErrAliasTaken = errors.New("custom alias is already taken")
	// ErrCodeGenerationExhausted is returned when every generated candidate was taken.
	ErrCodeGenerationExhausted = errors.New("failed to generate unique code")
)

var codePattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,64}$`)

// LinkRepository defines the datastore operations the service relies on.
// Lookups must return database.ErrLinkNotFound when no row matches.
type LinkRepository interface {
	// FindByCode returns the link bound to shortCode.
	FindByCode(ctx context.Context, shortCode string) (*models.Link, error)

	// FindByURL returns the earliest link stored for originalURL.
	FindByURL(ctx context.Context, originalURL string) (*models.Link, error)

	// FindByCodeAndURL returns the link only if shortCode is bound to originalURL.
	FindByCodeAndURL(ctx context.Context, shortCode, originalURL string) (*models.Link, error)

	// Insert stores a new link. It returns database.ErrShortCodeExists
	// when shortCode is already bound.
	Insert(ctx context.Context, shortCode, originalURL string) (*models.Link, error)
}

// CodeGenerator derives candidate short codes.
type CodeGenerator interface {
	Generate(rawURL string, attempt int) (string, error)
}

// ShortenResult is the outcome of a successful Shorten call.
type ShortenResult struct {
	Link *models.Link
	// Reused is set when an existing link was returned instead of a new one.
	Reused bool
}

// URLService shortens URLs and resolves short codes.
type URLService struct {
	repo         LinkRepository
	gen          CodeGenerator
	onCheckError CheckErrorPolicy
	logger       *slog.Logger
}

type Option func(*URLService)

// WithCheckErrorPolicy sets how availability lookup failures are treated.
// The default is TreatAsAvailable.
func WithCheckErrorPolicy(p CheckErrorPolicy) Option {
	return func(s *URLService) {
		s.onCheckError = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *URLService) {
		s.logger = logger
	}
}

// NewURLService creates a new instance of URLService.
func NewURLService(repo LinkRepository, gen CodeGenerator, opts ...Option) *URLService {
	s := &URLService{
		repo:         repo,
		gen:          gen,
		onCheckError: TreatAsAvailable,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Shorten returns a short code for rawURL.
//
// A URL that already has a link is never shortened again, even when a custom
// alias is requested: the existing link is returned with Reused set. With a
// custom alias the alias is bound once; otherwise up to maxAttempts generated
// codes are tried.
func (s *URLService) Shorten(ctx context.Context, rawURL, custom string) (*ShortenResult, error) {
	const op = "service.URLService.Shorten"

	originalURL := strings.TrimSpace(rawURL)
	if !isValidURL(originalURL) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
	}

	if custom != "" && !codePattern.MatchString(custom) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAlias)
	}

	existing, err := s.repo.FindByURL(ctx, originalURL)
	if err == nil {
		return &ShortenResult{Link: existing, Reused: true}, nil
	}
	if !errors.Is(err, database.ErrLinkNotFound) {
		return nil, fmt.Errorf("%s: failed to look up existing link: %w", op, err)
	}

	if custom != "" {
		return s.shortenWithAlias(ctx, originalURL, custom)
	}

	return s.shortenWithGeneratedCode(ctx, originalURL)
}

func (s *URLService) shortenWithAlias(ctx context.Context, originalURL, alias string) (*ShortenResult, error) {
	const op = "service.URLService.shortenWithAlias"

	link, err := s.repo.FindByCodeAndURL(ctx, alias, originalURL)
	if err == nil {
		return &ShortenResult{Link: link, Reused: true}, nil
	}
	if !errors.Is(err, database.ErrLinkNotFound) {
		return nil, fmt.Errorf("%s: failed to look up alias: %w", op, err)
	}

	_, err = s.repo.FindByCode(ctx, alias)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrAliasTaken)
	}
	if !errors.Is(err, database.ErrLinkNotFound) {
		return nil, fmt.Errorf("%s: failed to look up alias: %w", op, err)
	}

	link, err = s.repo.Insert(ctx, alias, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to bind alias: %w", op, err)
	}

	return &ShortenResult{Link: link}, nil
}

// attemptState is a state of the generated-code loop:
// attempting(n) -> success | collision -> attempting(n+1) | exhausted.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateCollision
	stateExhausted
)

func (s *URLService) shortenWithGeneratedCode(ctx context.Context, originalURL string) (*ShortenResult, error) {
	const op = "service.URLService.shortenWithGeneratedCode"

	attempt := 0
	state := stateAttempting

	for {
		switch state {
		case stateAttempting:
			if attempt == maxAttempts {
				state = stateExhausted
				continue
			}

			code, err := s.gen.Generate(originalURL, attempt)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
			}

			taken, err := s.isTaken(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			if taken {
				state = stateCollision
				continue
			}

			link, err := s.repo.Insert(ctx, code, originalURL)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to insert link: %w", op, err)
			}

			return &ShortenResult{Link: link}, nil

		case stateCollision:
			attempt++
			state = stateAttempting

		case stateExhausted:
			return nil, fmt.Errorf("%s: %w", op, ErrCodeGenerationExhausted)
		}
	}
}

// Resolve returns the link bound to shortCode.
func (s *URLService) Resolve(ctx context.Context, shortCode string) (*models.Link, error) {
	const op = "service.URLService.Resolve"

	if !codePattern.MatchString(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCode)
	}

	link, err := s.repo.FindByCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return link, nil
}

// isValidURL accepts absolute http(s) URLs with a host. Fragments are allowed.
func isValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
