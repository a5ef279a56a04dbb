// Package services contains application services for the authctl client.
// This file defines the session service: login, token refresh, logout and the
// local persistence of the session between runs.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/sessions"
)

// AuthService defines the session operations of the CLI. All methods honor
// context cancellation.
type AuthService interface {
	Login(ctx context.Context, username string, password []byte) error
	Restore(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	RegisterUser(ctx context.Context, username string, password []byte, roleID int64) (int64, error)
	PublicKey(ctx context.Context) (string, string, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// authService is the concrete AuthService backed by a remote Client
// and a local SQL database holding the session.
type authService struct {
	client   client.Client
	sessions sessions.Repository
}

// NewAuthService constructs an AuthService bound to the given API client and DB.
func NewAuthService(client client.Client, db *sql.DB) AuthService {
	return &authService{client: client, sessions: sessions.NewSQLiteRepository(db)}
}

// Login authenticates against the server and stores the session locally.
func (a *authService) Login(ctx context.Context, userName string, password []byte) error {
	if err := a.client.Login(ctx, userName, string(password)); err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	access, refresh := a.client.Tokens()
	err := a.sessions.Save(ctx, sessions.Session{UserName: userName, AccessToken: access, RefreshToken: refresh})
	if err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	return nil
}

// Restore loads a stored session into the client and returns its user name.
// An empty name means there is no session.
func (a *authService) Restore(ctx context.Context) (string, error) {
	s, err := a.sessions.Get(ctx)
	if err != nil {
		return "", err
	}
	if s == nil || s.RefreshToken == "" {
		return "", nil
	}

	a.client.SetTokens(s.AccessToken, s.RefreshToken)
	return s.UserName, nil
}

// Refresh obtains a new access token and persists it.
func (a *authService) Refresh(ctx context.Context) error {
	if err := a.client.Refresh(ctx); err != nil {
		return err
	}

	access, _ := a.client.Tokens()
	return a.sessions.UpdateAccessToken(ctx, access)
}

// Logout revokes the session on the server, then forgets it locally.
func (a *authService) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	return a.sessions.Clear(ctx)
}

// RegisterUser creates an account. The stored session must belong to an admin.
func (a *authService) RegisterUser(ctx context.Context, username string, password []byte, roleID int64) (int64, error) {
	id, err := a.client.RegisterUser(ctx, username, string(password), roleID)
	if err != nil {
		return 0, err
	}

	// the interceptor may have refreshed the access token
	access, _ := a.client.Tokens()
	if err := a.sessions.UpdateAccessToken(ctx, access); err != nil {
		return 0, err
	}
	return id, nil
}

func (a *authService) PublicKey(ctx context.Context) (string, string, error) {
	return a.client.PublicKey(ctx)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
