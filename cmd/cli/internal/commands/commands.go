package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/cmd/cli/internal/credentials"
	"github.com/wolfeidau/traceledger/internal/client"
	"github.com/wolfeidau/traceledger/internal/models"
)

type Globals struct {
	Debug   bool
	Version string

	Profile    string
	Server     string
	Token      string
	Caller     string
	ProfileDir string
	CacheDir   string
}

// Client builds an API client from the selected profile overlaid with any
// explicit flags.
func (g *Globals) Client() (*client.Client, error) {
	cfg := client.DefaultConfig()
	cfg.Debug = g.Debug
	cfg.CacheDir = g.CacheDir

	store, err := credentials.NewStore(g.ProfileDir)
	if err != nil {
		return nil, err
	}
	p, err := store.Resolve(g.Profile)
	switch {
	case err == nil:
		cfg.ServerURL = p.ServerURL
		cfg.Token = p.Token
		cfg.Caller = models.Identity(p.Identity)
	case g.Profile != "":
		return nil, fmt.Errorf("profile %q: %w", g.Profile, err)
	}

	if g.Server != "" {
		cfg.ServerURL = g.Server
	}
	if g.Token != "" {
		cfg.Token = g.Token
	}
	if g.Caller != "" {
		cfg.Caller = models.Identity(g.Caller)
	}

	if cfg.Token != "" {
		if exp, err := credentials.TokenExpiry(cfg.Token); err == nil && time.Now().After(exp) {
			log.Warn().Time("expired_at", exp).Msg("bearer token has expired, mint a new one with the token command")
		}
	}

	return client.New(cfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLines(lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Println(strings.Join(lines, "\n"))
}
