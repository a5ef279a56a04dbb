package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

type fakeAuth struct {
	loginUser string
	loginPass string
	loginErr  error

	refreshErr error
	logoutErr  error
	pingErr    error

	regUser string
	regRole int64
	regErr  error

	closed bool
}

func (f *fakeAuth) Login(_ context.Context, user string, pass []byte) error {
	f.loginUser, f.loginPass = user, string(pass)
	return f.loginErr
}
func (f *fakeAuth) Restore(context.Context) (string, error) { return "", nil }
func (f *fakeAuth) Refresh(context.Context) error           { return f.refreshErr }
func (f *fakeAuth) Logout(context.Context) error            { return f.logoutErr }
func (f *fakeAuth) RegisterUser(_ context.Context, user string, _ []byte, roleID int64) (int64, error) {
	f.regUser, f.regRole = user, roleID
	if f.regErr != nil {
		return 0, f.regErr
	}
	return 9, nil
}
func (f *fakeAuth) PublicKey(context.Context) (string, string, error) {
	return "-----BEGIN PUBLIC KEY-----\n", "abcd", nil
}
func (f *fakeAuth) Ping(context.Context) error  { return f.pingErr }
func (f *fakeAuth) Close(context.Context) error { f.closed = true; return nil }

func newTestApp(input string, fa *fakeAuth) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return &App{
		config:      cfg,
		authService: fa,
		hasher:      cryptox.NewBcryptHasher(bcrypt.MinCost),
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         out,
	}, out
}

func TestLogin(t *testing.T) {
	stubPassword(t, "wonderland")
	fa := &fakeAuth{}
	app, out := newTestApp("alice\n", fa)

	require.NoError(t, app.Login(context.Background()))
	require.Equal(t, "alice", fa.loginUser)
	require.Equal(t, "wonderland", fa.loginPass)
	require.Equal(t, "alice", app.userName)
	require.Contains(t, out.String(), "Login successful")
}

func TestLogin_Error(t *testing.T) {
	stubPassword(t, "bad")
	fa := &fakeAuth{loginErr: client.ErrUnauthorized}
	app, _ := newTestApp("alice\n", fa)

	require.ErrorIs(t, app.Login(context.Background()), client.ErrUnauthorized)
	require.Empty(t, app.userName)
}

func TestLogoutAndWhoAmI(t *testing.T) {
	app, out := newTestApp("", &fakeAuth{})
	require.ErrorIs(t, app.WhoAmI(), client.ErrNotLoggedIn)

	app.userName = "alice"
	require.NoError(t, app.WhoAmI())
	require.Contains(t, out.String(), "alice")

	require.NoError(t, app.Logout(context.Background()))
	require.Empty(t, app.userName)
}

func TestRegister(t *testing.T) {
	stubPassword(t, "pw")
	fa := &fakeAuth{}
	app, out := newTestApp("bob\n2\n", fa)

	require.NoError(t, app.Register(context.Background()))
	require.Equal(t, "bob", fa.regUser)
	require.Equal(t, int64(2), fa.regRole)
	require.Contains(t, out.String(), "Created user bob with id 9")
}

func TestRegister_BadRole(t *testing.T) {
	stubPassword(t, "pw")
	fa := &fakeAuth{}
	app, _ := newTestApp("bob\nadmin\n", fa)

	require.Error(t, app.Register(context.Background()))
	require.Empty(t, fa.regUser)
}

func TestHashPassword(t *testing.T) {
	stubPassword(t, "adminpass")
	app, out := newTestApp("", &fakeAuth{})

	require.NoError(t, app.HashPassword())
	hash := strings.TrimSpace(out.String())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("adminpass")))
}

func TestRun_OneShot(t *testing.T) {
	fa := &fakeAuth{}
	app, out := newTestApp("", fa)

	require.NoError(t, app.Run(context.Background(), []string{"publickey"}))
	require.Contains(t, out.String(), "fingerprint: abcd")
	require.True(t, fa.closed)

	err := app.Run(context.Background(), []string{"frobnicate"})
	require.ErrorIs(t, err, errUnknownCommand)
}

func TestRun_REPL(t *testing.T) {
	fa := &fakeAuth{pingErr: errors.New("down")}
	app, out := newTestApp("help\n\nping\nrefresh\nexit\nping\n", fa)

	require.NoError(t, app.Run(context.Background(), nil))

	s := out.String()
	require.Contains(t, s, helpText)
	require.Contains(t, s, "error: down")
	require.Contains(t, s, "Access token refreshed")
	require.Contains(t, s, "Bye!")
	require.Equal(t, 1, strings.Count(s, "error: down"), "commands after exit are not run")
}

func TestRoot_EndOfInput(t *testing.T) {
	app, out := newTestApp("ping", &fakeAuth{})
	app.Root(context.Background())
	require.Contains(t, out.String(), "OK")
}
