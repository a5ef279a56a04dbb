package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/sessions"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// storedSession reads the session row directly; the zero value means none.
func storedSession(t *testing.T, db *sql.DB) sessions.Session {
	t.Helper()
	s, err := sessions.NewSQLiteRepository(db).Get(context.Background())
	require.NoError(t, err)
	if s == nil {
		return sessions.Session{}
	}
	return *s
}

// ---- fake client ----

// fakeClient implements client.Client and hands out predictable tokens.
type fakeClient struct {
	access, refresh string

	LoginErr    error
	RefreshErr  error
	LogoutErr   error
	RegisterErr error
	PingErr     error
	CloseErr    error

	LastLoginUser string
	LastLoginPass string
	LastRegister  string
	closed        bool
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error                 { f.closed = true; return f.CloseErr }
func (f *fakeClient) Ping(context.Context) error    { return f.PingErr }
func (f *fakeClient) Tokens() (string, string)      { return f.access, f.refresh }
func (f *fakeClient) SetTokens(access, refresh string) { f.access, f.refresh = access, refresh }

func (f *fakeClient) Login(_ context.Context, u, p string) error {
	f.LastLoginUser, f.LastLoginPass = u, p
	if f.LoginErr != nil {
		return f.LoginErr
	}
	f.access, f.refresh = "access-1", "refresh-1"
	return nil
}

func (f *fakeClient) Refresh(context.Context) error {
	if f.RefreshErr != nil {
		return f.RefreshErr
	}
	if f.refresh == "" {
		return client.ErrNotLoggedIn
	}
	f.access = "access-2"
	return nil
}

func (f *fakeClient) Logout(context.Context) error {
	if f.LogoutErr != nil {
		return f.LogoutErr
	}
	f.access, f.refresh = "", ""
	return nil
}

func (f *fakeClient) PublicKey(context.Context) (string, string, error) {
	return "pem", "fp", nil
}

func (f *fakeClient) RegisterUser(_ context.Context, u, _ string, roleID int64) (int64, error) {
	f.LastRegister = fmt.Sprintf("%s/%d", u, roleID)
	if f.RegisterErr != nil {
		return 0, f.RegisterErr
	}
	f.access = "access-after-register"
	return 42, nil
}

// ---- tests ----

func TestLogin_PersistsSession(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{}
	svc := NewAuthService(fc, db)

	require.NoError(t, svc.Login(context.Background(), "alice", []byte("wonderland")))
	require.Equal(t, "alice", fc.LastLoginUser)
	require.Equal(t, "wonderland", fc.LastLoginPass)

	s := storedSession(t, db)
	require.Equal(t, "alice", s.UserName)
	require.Equal(t, "access-1", s.AccessToken)
	require.Equal(t, "refresh-1", s.RefreshToken)
	require.False(t, s.UpdatedAt.IsZero())
}

func TestLogin_ErrorLeavesNoSession(t *testing.T) {
	db := setupDB(t)
	fc := &fakeClient{LoginErr: client.ErrUnauthorized}
	svc := NewAuthService(fc, db)

	err := svc.Login(context.Background(), "alice", []byte("bad"))
	require.ErrorIs(t, err, client.ErrUnauthorized)
	require.Empty(t, storedSession(t, db).RefreshToken)
}

func TestRestore(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	first := &fakeClient{}
	require.NoError(t, NewAuthService(first, db).Login(ctx, "alice", []byte("pw")))

	second := &fakeClient{}
	name, err := NewAuthService(second, db).Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", name)
	require.Equal(t, "access-1", second.access)
	require.Equal(t, "refresh-1", second.refresh)
}

func TestRestore_NoSession(t *testing.T) {
	fc := &fakeClient{}
	name, err := NewAuthService(fc, setupDB(t)).Restore(context.Background())
	require.NoError(t, err)
	require.Empty(t, name)
	require.Empty(t, fc.refresh)
}

func TestRefresh_PersistsAccessToken(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	fc := &fakeClient{}
	svc := NewAuthService(fc, db)

	require.ErrorIs(t, svc.Refresh(ctx), client.ErrNotLoggedIn)

	require.NoError(t, svc.Login(ctx, "alice", []byte("pw")))
	require.NoError(t, svc.Refresh(ctx))
	s := storedSession(t, db)
	require.Equal(t, "access-2", s.AccessToken)
	require.Equal(t, "refresh-1", s.RefreshToken)
}

func TestLogout_ClearsSession(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	fc := &fakeClient{}
	svc := NewAuthService(fc, db)

	require.NoError(t, svc.Login(ctx, "alice", []byte("pw")))

	fc.LogoutErr = client.ErrUnavailable
	require.ErrorIs(t, svc.Logout(ctx), client.ErrUnavailable)
	require.Equal(t, "refresh-1", storedSession(t, db).RefreshToken, "session kept when server failed")

	fc.LogoutErr = nil
	require.NoError(t, svc.Logout(ctx))
	require.Equal(t, sessions.Session{}, storedSession(t, db))
}

func TestRegisterUser(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	fc := &fakeClient{}
	svc := NewAuthService(fc, db)
	require.NoError(t, svc.Login(ctx, "admin", []byte("adminpass")))

	id, err := svc.RegisterUser(ctx, "bob", []byte("pw"), 2)
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.Equal(t, "bob/2", fc.LastRegister)
	require.Equal(t, "access-after-register", storedSession(t, db).AccessToken)

	fc.RegisterErr = client.ErrForbidden
	_, err = svc.RegisterUser(ctx, "carol", []byte("pw"), 2)
	require.ErrorIs(t, err, client.ErrForbidden)
}

func TestPingPublicKeyClose(t *testing.T) {
	fc := &fakeClient{PingErr: client.ErrUnavailable}
	svc := NewAuthService(fc, setupDB(t))
	ctx := context.Background()

	require.ErrorIs(t, svc.Ping(ctx), client.ErrUnavailable)

	pem, fp, err := svc.PublicKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "pem", pem)
	require.Equal(t, "fp", fp)

	require.NoError(t, svc.Close(ctx))
	require.True(t, fc.closed)
}
