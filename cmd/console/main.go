package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/callsight/console/cmd/console/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Serve   commands.ServeCmd `cmd:"" help:"Start the console server"`
		Token   commands.TokenCmd `cmd:"" help:"Inspect an access token"`
		Debug   bool              `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	// Load .env before flag parsing so env-tagged flags pick it up.
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
