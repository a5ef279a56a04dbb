// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID. A token value that already
	// exists yields common.ErrTokenConflict and leaves the surrounding
	// transaction usable.
	Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*models.RefreshToken, error)

	// FindByValue looks up a refresh token by its opaque value.
	// Returns common.ErrorNotFound when the token is absent.
	FindByValue(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the token revoked. It reports false when no such token
	// exists, which is not an error.
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAllByUser revokes every active token of userID and returns how
	// many were revoked.
	RevokeAllByUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired removes records that expired before the given instant.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
