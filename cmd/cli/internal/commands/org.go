package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/traceledger/internal/models"
)

type RegistryCmd struct {
	Owner    RegistryOwnerCmd    `cmd:"" help:"Show the registry owner"`
	Transfer RegistryTransferCmd `cmd:"" help:"Transfer registry ownership"`
}

type RegistryOwnerCmd struct{}

func (c *RegistryOwnerCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	owner, err := cl.RegistryOwner(ctx)
	if err != nil {
		return err
	}
	fmt.Println(owner)
	return nil
}

type RegistryTransferCmd struct {
	NewOwner string `arg:"" help:"identity of the new registry owner"`
}

func (c *RegistryTransferCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	if err := cl.TransferOwnership(ctx, models.Identity(c.NewOwner)); err != nil {
		return err
	}
	fmt.Printf("Registry ownership transferred to %s\n", c.NewOwner)
	return nil
}

type OrgCmd struct {
	Register   OrgRegisterCmd   `cmd:"" help:"Register an organization"`
	Modify     OrgModifyCmd     `cmd:"" help:"Change an organization's name and wallet"`
	Deactivate OrgDeactivateCmd `cmd:"" help:"Deactivate an organization"`
	Get        OrgGetCmd        `cmd:"" help:"Show an organization"`
	List       OrgListCmd       `cmd:"" help:"List organization codes"`
	ID         OrgIDCmd         `cmd:"" name:"id" help:"Derive the organization ID for a code"`
}

type OrgRegisterCmd struct {
	Code   string `arg:"" help:"organization registration code"`
	Name   string `help:"organization name" required:""`
	Wallet string `help:"identity that administers the organization's ledgers" required:""`
}

func (c *OrgRegisterCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	org, err := cl.RegisterOrganization(ctx, c.Code, c.Name, models.Identity(c.Wallet))
	if err != nil {
		return err
	}
	return printJSON(org)
}

type OrgModifyCmd struct {
	Code   string `arg:"" help:"organization registration code"`
	Name   string `help:"organization name" required:""`
	Wallet string `help:"identity that administers the organization's ledgers" required:""`
}

func (c *OrgModifyCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	org, err := cl.ModifyOrganization(ctx, c.Code, c.Name, models.Identity(c.Wallet))
	if err != nil {
		return err
	}
	return printJSON(org)
}

type OrgDeactivateCmd struct {
	Code string `arg:"" help:"organization registration code"`
}

func (c *OrgDeactivateCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	if err := cl.DeactivateOrganization(ctx, c.Code); err != nil {
		return err
	}
	fmt.Printf("Organization %s deactivated\n", c.Code)
	return nil
}

type OrgGetCmd struct {
	Code string `arg:"" help:"organization registration code"`
}

func (c *OrgGetCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	org, err := cl.GetOrganizationInfo(ctx, c.Code)
	if err != nil {
		return err
	}
	return printJSON(org)
}

type OrgListCmd struct{}

func (c *OrgListCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	codes, err := cl.ListOrganizationCodes(ctx)
	if err != nil {
		return err
	}
	printLines(codes)
	return nil
}

type OrgIDCmd struct {
	Code string `arg:"" help:"organization registration code"`
}

func (c *OrgIDCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	id, err := cl.DeriveOrganizationID(ctx, c.Code)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}
