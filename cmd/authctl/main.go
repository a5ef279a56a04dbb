package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/buildinfo"
	"github.com/dmitrijs2005/gophauth/internal/client/cli"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	// subcommand is whatever remains once the known flags are removed
	args := flagx.Positional(os.Args[1:], []string{"-a", "-s", "-t", "-c", "-config"})
	if len(args) == 0 {
		buildinfo.PrintBuildData(os.Stdout)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx, args); err != nil {
		log.Fatalf("%v", err)
	}

}
