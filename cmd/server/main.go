package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/codinglab/eduhub/cmd/server/internal/commands"
	"github.com/joho/godotenv"
)

var (
	version = "dev"
	cli     struct {
		Debug      bool `help:"Enable debug mode." env:"EDUHUB_DEBUG"`
		Version    kong.VersionFlag
		Server     commands.ServerCmd     `cmd:"" default:"withargs" help:"Start the API server"`
		Migrate    commands.MigrateCmd    `cmd:"" help:"Apply database migrations"`
		Seed       commands.SeedCmd       `cmd:"" help:"Load classes and a staff account from a fixture file"`
		CreateUser commands.CreateUserCmd `cmd:"" help:"Create an account"`
		SetStaff   commands.SetStaffCmd   `cmd:"" help:"Grant or revoke staff privileges and end the account's sessions"`
	}
)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
