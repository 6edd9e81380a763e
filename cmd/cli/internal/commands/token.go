package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wolfeidau/traceledger/cmd/cli/internal/credentials"
	"github.com/wolfeidau/traceledger/internal/auth"
)

type TokenCmd struct {
	Subject    string        `help:"Identity the token authenticates" required:""`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey string        `help:"path to the PEM encoded ES256 signing key" required:"" env:"TRACELEDGER_SIGNING_KEY" type:"existingfile"`
	Save       string        `help:"store the token in this profile instead of printing it" default:""`
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	key, err := os.ReadFile(t.SigningKey)
	if err != nil {
		return fmt.Errorf("failed to read signing key: %w", err)
	}

	token, err := auth.IssueToken(string(key), t.Subject, t.TTL)
	if err != nil {
		return err
	}

	if t.Save == "" {
		fmt.Println(token)
		return nil
	}

	store, err := credentials.NewStore(globals.ProfileDir)
	if err != nil {
		return err
	}
	p, err := store.Get(t.Save)
	if err != nil {
		return fmt.Errorf("profile %q: %w", t.Save, err)
	}
	p.Token = token
	p.Identity = t.Subject
	if _, err := store.Save(*p); err != nil {
		return err
	}
	fmt.Printf("Token for %s saved to profile %s\n", t.Subject, t.Save)
	return nil
}

type KeygenCmd struct {
	Dir  string `help:"directory to write the key pair to" default:"./.keys"`
	Name string `help:"base file name" default:"signing"`
}

func (k *KeygenCmd) Run(ctx context.Context, globals *Globals) error {
	kp, err := credentials.GenerateKeyPair(k.Dir, k.Name)
	if err != nil {
		return err
	}
	fmt.Printf("Private key: %s\nPublic key:  %s\nFingerprint: %s\n", kp.PrivateKeyPath, kp.PublicKeyPath, kp.Fingerprint)
	fmt.Printf("\nStart the server with --jwt-public-key %s and mint tokens with --signing-key %s\n", kp.PublicKeyPath, kp.PrivateKeyPath)
	return nil
}
