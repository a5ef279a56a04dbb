package client

import (
	"context"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Login(ctx context.Context, username, password string) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	PublicKey(ctx context.Context) (pem string, fingerprint string, err error)
	RegisterUser(ctx context.Context, username, password string, roleID int64) (int64, error)
	Tokens() (accessToken, refreshToken string)
	SetTokens(accessToken, refreshToken string)
}
