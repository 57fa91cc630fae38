// Package shortcode derives candidate short codes from URLs.
//
// A code is the first Length characters of the lowercase hex SHA-256 digest of the
// normalized URL, a salt and the attempt number. The salt mixes the current time
// with a random nonce, so two calls for the same URL and attempt usually differ.
// Uniqueness is not guaranteed here: callers must check availability.
package shortcode

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Length is the number of hex characters in a generated code.
const Length = 10

const nonceLength = 12

// Clock supplies the wall-clock part of the salt.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Entropy supplies the random part of the salt.
type Entropy interface {
	Nonce() (string, error)
}

// EntropyFunc adapts a function to Entropy.
type EntropyFunc func() (string, error)

func (f EntropyFunc) Nonce() (string, error) { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type nanoidEntropy struct{}

func (nanoidEntropy) Nonce() (string, error) {
	return gonanoid.New(nonceLength)
}

// Generator produces candidate codes. The zero value is not usable; use NewGenerator.
type Generator struct {
	clock   Clock
	entropy Entropy
}

type Option func(*Generator)

// WithClock replaces the wall clock used for salting.
func WithClock(c Clock) Option {
	return func(g *Generator) {
		g.clock = c
	}
}

// WithEntropy replaces the random nonce source used for salting.
func WithEntropy(e Entropy) Option {
	return func(g *Generator) {
		g.entropy = e
	}
}

// NewGenerator returns a Generator salted with time.Now and a nanoid nonce
// unless overridden by opts.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		clock:   systemClock{},
		entropy: nanoidEntropy{},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate returns a candidate code for rawURL on the given attempt.
func (g *Generator) Generate(rawURL string, attempt int) (string, error) {
	const op = "shortcode.Generator.Generate"

	nonce, err := g.entropy.Nonce()
	if err != nil {
		return "", fmt.Errorf("%s: failed to read entropy: %w", op, err)
	}

	salt := strconv.FormatInt(g.clock.Now().UnixNano(), 10) + nonce
	data := Normalize(rawURL) + salt + strconv.Itoa(attempt)

	sum := sha256.Sum256([]byte(data))

	return hex.EncodeToString(sum[:])[:Length], nil
}

// Normalize prepares a URL for hashing so that case and surrounding
// whitespace do not influence the digest.
func Normalize(rawURL string) string {
	return strings.ToLower(strings.TrimSpace(rawURL))
}
