package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/wolfeidau/traceledger/cmd/cli/internal/credentials"
)

type ProfileCmd struct {
	Add    ProfileAddCmd    `cmd:"" help:"Create or update a profile"`
	List   ProfileListCmd   `cmd:"" help:"List profiles"`
	Use    ProfileUseCmd    `cmd:"" help:"Set the default profile"`
	Delete ProfileDeleteCmd `cmd:"" help:"Delete a profile"`
}

type ProfileAddCmd struct {
	Name     string `arg:"" help:"profile name"`
	URL      string `help:"server URL" required:""`
	Identity string `help:"identity to act as, sent as X-Caller-Identity when no token is set" default:""`
	Token    string `help:"bearer token" default:""`
}

func (c *ProfileAddCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(globals.ProfileDir)
	if err != nil {
		return err
	}
	p, err := store.Save(credentials.Profile{Name: c.Name, ServerURL: c.URL, Identity: c.Identity, Token: c.Token})
	if err != nil {
		return err
	}
	fmt.Printf("Profile %s saved\n", p.Name)
	return nil
}

type ProfileListCmd struct{}

func (c *ProfileListCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(globals.ProfileDir)
	if err != nil {
		return err
	}
	profiles, def, err := store.List()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles. Create one with: traceledger-cli profile add <name> --url <server>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEFAULT\tNAME\tSERVER\tIDENTITY\tTOKEN EXPIRES")
	for _, p := range profiles {
		marker := ""
		if p.Name == def {
			marker = "*"
		}
		expires := "-"
		if p.Token != "" {
			if exp, err := credentials.TokenExpiry(p.Token); err == nil {
				expires = exp.Local().Format("2006-01-02 15:04")
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, p.Name, p.ServerURL, p.Identity, expires)
	}
	return w.Flush()
}

type ProfileUseCmd struct {
	Name string `arg:"" help:"profile name"`
}

func (c *ProfileUseCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(globals.ProfileDir)
	if err != nil {
		return err
	}
	return store.SetDefault(c.Name)
}

type ProfileDeleteCmd struct {
	Name string `arg:"" help:"profile name"`
}

func (c *ProfileDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := credentials.NewStore(globals.ProfileDir)
	if err != nil {
		return err
	}
	return store.Delete(c.Name)
}
