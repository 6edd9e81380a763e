package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/models"
)

type LedgerCmd struct {
	Create   LedgerCreateCmd   `cmd:"" help:"Create a ledger for an organization"`
	List     LedgerListCmd     `cmd:"" help:"List an organization's ledger handles"`
	Info     LedgerInfoCmd     `cmd:"" help:"Show a ledger"`
	Owner    LedgerOwnerCmd    `cmd:"" help:"Show a ledger's owner"`
	SetOwner LedgerSetOwnerCmd `cmd:"" help:"Hand a ledger to a new owner"`
}

type LedgerCreateCmd struct {
	Org         string `arg:"" help:"organization registration code"`
	Name        string `help:"ledger name" required:""`
	Description string `help:"ledger description" default:""`
}

func (c *LedgerCreateCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	handle, err := cl.CreateLedger(ctx, c.Org, c.Name, c.Description)
	if err != nil {
		return err
	}
	fmt.Println(handle)
	return nil
}

type LedgerListCmd struct {
	Org string `arg:"" help:"organization registration code"`
}

func (c *LedgerListCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	handles, err := cl.ListLedgers(ctx, c.Org)
	if err != nil {
		return err
	}
	printLines(handles)
	return nil
}

type LedgerInfoCmd struct {
	Handle string `arg:"" help:"ledger handle"`
}

func (c *LedgerInfoCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	info, err := cl.LedgerInfo(ctx, c.Handle)
	if err != nil {
		return err
	}
	return printJSON(info)
}

type LedgerOwnerCmd struct {
	Handle string `arg:"" help:"ledger handle"`
}

func (c *LedgerOwnerCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	owner, err := cl.GetLedgerOwner(ctx, c.Handle)
	if err != nil {
		return err
	}
	fmt.Println(owner)
	return nil
}

type LedgerSetOwnerCmd struct {
	Handle   string `arg:"" help:"ledger handle"`
	NewOwner string `arg:"" help:"identity of the new owner"`
}

func (c *LedgerSetOwnerCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	return cl.UpdateLedgerOwner(ctx, c.Handle, models.Identity(c.NewOwner))
}

type ProductCmd struct {
	Add        ProductAddCmd        `cmd:"" help:"Add a product"`
	List       ProductListCmd       `cmd:"" help:"List active products"`
	IDs        ProductIDsCmd        `cmd:"" name:"ids" help:"List every product ID, active or not"`
	Get        ProductGetCmd        `cmd:"" help:"Show an active product"`
	Deactivate ProductDeactivateCmd `cmd:"" help:"Deactivate a product"`
	Reactivate ProductReactivateCmd `cmd:"" help:"Reactivate a deactivated product"`
}

type ProductAddCmd struct {
	Handle      string `arg:"" help:"ledger handle"`
	ID          string `arg:"" help:"product ID"`
	Name        string `help:"product name" required:""`
	Description string `help:"product description" default:""`
}

func (c *ProductAddCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	return cl.AddProduct(ctx, c.Handle, c.ID, c.Name, c.Description)
}

type ProductListCmd struct {
	Handle string `arg:"" help:"ledger handle"`
}

func (c *ProductListCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	products, err := cl.ListProducts(ctx, c.Handle)
	if err != nil {
		return err
	}
	return printJSON(products)
}

type ProductIDsCmd struct {
	Handle string `arg:"" help:"ledger handle"`
}

func (c *ProductIDsCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	ids, err := cl.GetAllProductIDs(ctx, c.Handle)
	if err != nil {
		return err
	}
	printLines(ids)
	return nil
}

type ProductGetCmd struct {
	Handle string `arg:"" help:"ledger handle"`
	ID     string `arg:"" help:"product ID"`
}

func (c *ProductGetCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	info, err := cl.GetProductInfo(ctx, c.Handle, c.ID)
	if err != nil {
		return err
	}
	return printJSON(info)
}

type ProductDeactivateCmd struct {
	Handle string `arg:"" help:"ledger handle"`
	ID     string `arg:"" help:"product ID"`
}

func (c *ProductDeactivateCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	return cl.DeactivateProduct(ctx, c.Handle, c.ID)
}

type ProductReactivateCmd struct {
	Handle string `arg:"" help:"ledger handle"`
	ID     string `arg:"" help:"product ID"`
}

func (c *ProductReactivateCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	info, err := cl.ReactivateProduct(ctx, c.Handle, c.ID)
	if err != nil {
		return err
	}
	return printJSON(info)
}

type BatchCmd struct {
	List      BatchListCmd      `cmd:"" help:"List a product's batch IDs"`
	Get       BatchGetCmd       `cmd:"" help:"Show a batch"`
	Processes BatchProcessesCmd `cmd:"" help:"Set a batch's processes"`
	Status    BatchStatusCmd    `cmd:"" help:"Set a batch's status"`
	History   BatchHistoryCmd   `cmd:"" help:"Show every process and status change of a batch"`
}

// BatchArgs are the positional arguments shared by batch commands.
type BatchArgs struct {
	Handle  string `arg:"" help:"ledger handle"`
	Product string `arg:"" help:"product ID"`
}

type BatchListCmd struct {
	BatchArgs `embed:""`
}

func (c *BatchListCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	batches, err := cl.GetProductBatches(ctx, c.Handle, c.Product)
	if err != nil {
		return err
	}
	printLines(batches)
	return nil
}

type BatchGetCmd struct {
	BatchArgs `embed:""`
	Batch string `arg:"" help:"batch ID"`
}

func (c *BatchGetCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	b, err := cl.GetProductByBatch(ctx, c.Handle, c.Product, c.Batch)
	if err != nil {
		return err
	}
	return printJSON(b)
}

type BatchProcessesCmd struct {
	BatchArgs `embed:""`
	Batch     string `arg:"" help:"batch ID"`
	Processes string `arg:"" help:"process description"`
}

func (c *BatchProcessesCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	b, err := cl.UpdateProductProcesses(ctx, c.Handle, c.Product, c.Batch, c.Processes)
	if err != nil {
		return err
	}
	return printJSON(b)
}

type BatchStatusCmd struct {
	BatchArgs `embed:""`
	Batch  string `arg:"" help:"batch ID"`
	Status string `arg:"" help:"status text"`
}

func (c *BatchStatusCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	b, err := cl.UpdateProductStatus(ctx, c.Handle, c.Product, c.Batch, c.Status)
	if err != nil {
		return err
	}
	return printJSON(b)
}

type BatchHistoryCmd struct {
	BatchArgs `embed:""`
	Batch string `arg:"" help:"batch ID"`
}

func (c *BatchHistoryCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	recs, err := cl.BatchHistory(ctx, c.Handle, c.Product, c.Batch)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		printRecord(rec)
	}
	return nil
}

type RoleCmd struct {
	Grant        RoleGrantCmd        `cmd:"" help:"Grant a capability on a ledger"`
	Revoke       RoleRevokeCmd       `cmd:"" help:"Revoke a capability on a ledger"`
	Members      RoleMembersCmd      `cmd:"" help:"List identities holding a capability"`
	Capabilities RoleCapabilitiesCmd `cmd:"" help:"List an identity's capabilities"`
}

type RoleArgs struct {
	Handle     string `arg:"" help:"ledger handle"`
	Capability string `arg:"" help:"ADMIN, PRODUCT_MANAGER or AUDITOR"`
}

func (r RoleArgs) capability() (auth.Capability, error) {
	return auth.ParseCapability(r.Capability)
}

type RoleGrantCmd struct {
	RoleArgs `embed:""`
	Identity string `arg:"" help:"identity to grant"`
}

func (c *RoleGrantCmd) Run(ctx context.Context, globals *Globals) error {
	capability, err := c.capability()
	if err != nil {
		return err
	}
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	return cl.GrantRole(ctx, c.Handle, models.Identity(c.Identity), capability)
}

type RoleRevokeCmd struct {
	RoleArgs `embed:""`
	Identity string `arg:"" help:"identity to revoke"`
}

func (c *RoleRevokeCmd) Run(ctx context.Context, globals *Globals) error {
	capability, err := c.capability()
	if err != nil {
		return err
	}
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	return cl.RevokeRole(ctx, c.Handle, models.Identity(c.Identity), capability)
}

type RoleMembersCmd struct {
	RoleArgs `embed:""`
}

func (c *RoleMembersCmd) Run(ctx context.Context, globals *Globals) error {
	capability, err := c.capability()
	if err != nil {
		return err
	}
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	members, err := cl.RoleMembers(ctx, c.Handle, capability)
	if err != nil {
		return err
	}
	for _, m := range members {
		fmt.Println(m)
	}
	return nil
}

type RoleCapabilitiesCmd struct {
	Handle   string `arg:"" help:"ledger handle"`
	Identity string `arg:"" help:"identity"`
}

func (c *RoleCapabilitiesCmd) Run(ctx context.Context, globals *Globals) error {
	cl, err := globals.Client()
	if err != nil {
		return err
	}
	caps, err := cl.Capabilities(ctx, c.Handle, models.Identity(c.Identity))
	if err != nil {
		return err
	}
	printLines(caps)
	return nil
}
