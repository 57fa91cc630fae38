package database

import "errors"

var (
	// ErrShortCodeExists is returned when an insert violates
	// the uniqueness of the short code.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrLinkNotFound is returned when no link matches the lookup.
	ErrLinkNotFound = errors.New("link not found")
)
