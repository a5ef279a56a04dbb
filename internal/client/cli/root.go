package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var errUnknownCommand = errors.New("unknown command")

const helpText = "Available commands: login, refresh, logout, whoami, publickey, register, hashpw, ping, exit"

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s) ", a.userName)
}

// Root runs the interactive loop until exit or end of input.
func (a *App) Root(ctx context.Context) {

	fmt.Fprintln(a.out, "Welcome to authctl (type 'help' for commands)")

	for {
		fmt.Fprintf(a.out, "authctl %s> ", a.getStatus())

		line, err := a.reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) > 0 {
			cmd := parts[0]
			if cmd == "exit" || cmd == "quit" {
				fmt.Fprintln(a.out, "Bye!")
				return
			}
			if cmdErr := a.execute(ctx, cmd); cmdErr != nil {
				fmt.Fprintf(a.out, "error: %v\n", cmdErr)
			}
		}
		if err != nil {
			return
		}
	}
}

func (a *App) execute(ctx context.Context, cmd string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(a.out, helpText)
		return nil
	case "login":
		return a.Login(ctx)
	case "refresh":
		return a.Refresh(ctx)
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI()
	case "publickey":
		return a.PublicKey(ctx)
	case "register":
		return a.Register(ctx)
	case "hashpw":
		return a.HashPassword()
	case "ping":
		return a.Ping(ctx)
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
}
