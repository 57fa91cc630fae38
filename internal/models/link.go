package models

import "time"

// Link represents a short code bound to the URL it redirects to.
type Link struct {
	// ID is the datastore identifier. Lower IDs were created earlier.
	ID int64
	// ShortCode is the unique key used as the redirect path segment.
	ShortCode string
	// OriginalURL is the http(s) URL the short code resolves to.
	OriginalURL string
	// CreatedAt is the timestamp indicating when the link was stored.
	CreatedAt time.Time
}
