package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.authService.Login(ctx, userName, password); err != nil {
		return err
	}

	a.userName = userName
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Refresh obtains a new access token for the current session.
func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.authService.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Access token refreshed")
	return nil
}

// Logout revokes the current session.
func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) WhoAmI() error {
	if a.userName == "" {
		return client.ErrNotLoggedIn
	}
	fmt.Fprintln(a.out, a.userName)
	return nil
}

// PublicKey prints the server's verification key and its fingerprint.
func (a *App) PublicKey(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	pem, fingerprint, err := a.authService.PublicKey(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "fingerprint: %s\n%s", fingerprint, pem)
	return nil
}

// Register creates a user account. It needs an admin session.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter new user name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	roleText, err := getSimpleText(a.reader, "Enter role id", a.out)
	if err != nil {
		return err
	}
	roleID, err := strconv.ParseInt(roleText, 10, 64)
	if err != nil || roleID <= 0 {
		return fmt.Errorf("invalid role id %q", roleText)
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	id, err := a.authService.RegisterUser(ctx, userName, password, roleID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Created user %s with id %d\n", userName, id)
	return nil
}

// HashPassword prints a bcrypt hash of a password, e.g. for seeding users
// by hand.
func (a *App) HashPassword() error {
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	hash, err := a.hasher.Hash(string(password))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, hash)
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.authService.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}
