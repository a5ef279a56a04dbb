// Package models defines server-side data models persisted in the database.
package models

import "time"

// RefreshToken is a persisted refresh token record. Token is the opaque value
// handed to the client and is unique across all records. The only mutation a
// record ever sees is Revoked going from false to true.
type RefreshToken struct {
	ID        string
	UserID    int64
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// IsValid reports whether the record may be exchanged for an access token at
// instant now: it exists, is not revoked and has not expired. It must be
// evaluated on every use; the result is never stored.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return t != nil && !t.Revoked && t.ExpiresAt.After(now)
}
