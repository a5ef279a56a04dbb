// Package sessions stores the authctl login session in the local database.
package sessions

import (
	"context"
	"time"
)

// Session is what authctl needs to resume a login between runs.
type Session struct {
	UserName     string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

type Repository interface {
	// Get returns the stored session, or nil when there is none.
	Get(ctx context.Context) (*Session, error)
	// Save replaces the stored session.
	Save(ctx context.Context, s Session) error
	// UpdateAccessToken replaces the access token of the stored session and
	// returns common.ErrorNotFound when there is none.
	UpdateAccessToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
