// Package cli implements authctl, an interactive client of the gophauth
// service. Commands run either one-shot (authctl login) or from a REPL.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher produces stored password hashes for the hashpw command.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

type App struct {
	config      *config.Config
	authService services.AuthService
	hasher      PasswordHasher
	userName    string
	reader      *bufio.Reader
	out         io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	db, err := client.InitDatabase(ctx, c.SessionDB)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewAuthClient(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	as := services.NewAuthService(apiClient, db)

	userName, err := as.Restore(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:      c,
		authService: as,
		hasher:      cryptox.NewBcryptHasher(bcrypt.DefaultCost),
		userName:    userName,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}, nil
}

// Run executes args as a single command, or starts the REPL when args is
// empty. It returns the error of a one-shot command.
func (a *App) Run(ctx context.Context, args []string) error {
	defer func() { _ = a.authService.Close(ctx) }()

	if len(args) > 0 {
		return a.execute(ctx, args[0])
	}

	a.Root(ctx)
	return nil
}

func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
