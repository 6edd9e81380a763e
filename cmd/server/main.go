package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/traceledger/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"TRACELEDGER_DEBUG"`
		Version kong.VersionFlag
		Server  commands.ServerCmd  `cmd:"" help:"Start the traceledger API server"`
		Archive commands.ArchiveCmd `cmd:"" help:"Compress a journal file into the archive directory"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("traceledger"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
