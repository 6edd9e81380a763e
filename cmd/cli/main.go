package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/cmd/cli/internal/commands"
	"github.com/wolfeidau/traceledger/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Keygen   commands.KeygenCmd   `cmd:"" help:"Generate a token signing key pair"`
		TokenCmd commands.TokenCmd    `cmd:"" name:"token" help:"Generate a JWT token"`
		Profiles commands.ProfileCmd  `cmd:"" name:"profile" help:"Manage connection profiles"`
		Registry commands.RegistryCmd `cmd:"" help:"Registry ownership"`
		Org      commands.OrgCmd      `cmd:"" help:"Manage organizations"`
		Ledger   commands.LedgerCmd   `cmd:"" help:"Manage ledgers"`
		Product  commands.ProductCmd  `cmd:"" help:"Manage products"`
		Batch    commands.BatchCmd    `cmd:"" help:"Record and read batches"`
		Data     commands.DataCmd     `cmd:"" help:"Record and read ledger data logs"`
		Role     commands.RoleCmd     `cmd:"" help:"Manage ledger capabilities"`
		Audit    commands.AuditCmd    `cmd:"" help:"Read and verify the audit log"`

		Debug       bool   `help:"Enable debug mode."`
		Profile     string `short:"p" help:"connection profile, defaults to the default profile" env:"TRACELEDGER_PROFILE"`
		Server      string `help:"server URL, overrides the profile" env:"TRACELEDGER_SERVER"`
		BearerToken string `help:"bearer token, overrides the profile" env:"TRACELEDGER_TOKEN"`
		Caller      string `help:"identity sent as X-Caller-Identity to servers without authentication" env:"TRACELEDGER_CALLER"`
		ProfileDir  string `help:"profile directory" default:"" env:"TRACELEDGER_PROFILE_DIR"`
		CacheDir    string `help:"HTTP cache directory, in memory when empty" default:"" env:"TRACELEDGER_CACHE_DIR"`
		Version     kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("traceledger-cli"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)
	if !cli.Debug {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		Profile:    cli.Profile,
		Server:     cli.Server,
		Token:      cli.BearerToken,
		Caller:     cli.Caller,
		ProfileDir: cli.ProfileDir,
		CacheDir:   cli.CacheDir,
	})
	cmd.FatalIfErrorf(err)
}
