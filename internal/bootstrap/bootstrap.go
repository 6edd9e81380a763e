// Package bootstrap applies a declarative seed to a fresh registry.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/models"
)

// Service is the subset of the service the seed is applied through.
type Service interface {
	LastSequence(ctx context.Context) (int64, error)
	RegistryOwner() models.Identity
	RegisterOrganization(ctx context.Context, caller models.Identity, code, name string, wallet models.Identity) (*models.Organization, error)
	CreateLedger(ctx context.Context, caller models.Identity, code, name, description string) (string, error)
	GrantRole(ctx context.Context, caller models.Identity, handle string, id models.Identity, c auth.Capability) error
	AddProduct(ctx context.Context, caller models.Identity, handle, productID, name, description string) error
	UpdateProductProcesses(ctx context.Context, caller models.Identity, handle, productID, batchID, processes string) (models.Batch, error)
	UpdateProductStatus(ctx context.Context, caller models.Identity, handle, productID, batchID, status string) (models.Batch, error)
}

// Result maps organization code and ledger name to the created handle.
type Result struct {
	Applied bool
	Ledgers map[string]map[string]string
}

// Apply runs the seed as the registry owner. It does nothing when the audit
// log already has records, so restarts never re-apply it.
func Apply(ctx context.Context, svc Service, seed *Seed) (*Result, error) {
	res := &Result{Ledgers: make(map[string]map[string]string)}

	seq, err := svc.LastSequence(ctx)
	if err != nil {
		return nil, err
	}
	if seq > 0 {
		log.Info().Int64("sequence", seq).Msg("Audit log not empty, skipping seed")
		return res, nil
	}

	owner := svc.RegistryOwner()

	for _, org := range seed.Organizations {
		if _, err := svc.RegisterOrganization(ctx, owner, org.Code, org.Name, models.Identity(org.Wallet)); err != nil {
			return nil, fmt.Errorf("failed to register organization %s: %w", org.Code, err)
		}
		res.Ledgers[org.Code] = make(map[string]string)

		for _, l := range org.Ledgers {
			handle, err := svc.CreateLedger(ctx, owner, org.Code, l.Name, l.Description)
			if err != nil {
				return nil, fmt.Errorf("failed to create ledger %q for %s: %w", l.Name, org.Code, err)
			}
			res.Ledgers[org.Code][l.Name] = handle

			if err := applyLedger(ctx, svc, owner, handle, l); err != nil {
				return nil, fmt.Errorf("ledger %q for %s: %w", l.Name, org.Code, err)
			}

			log.Info().
				Str("organization", org.Code).
				Str("ledger", l.Name).
				Str("handle", handle).
				Int("products", len(l.Products)).
				Msg("Seeded ledger")
		}
	}

	res.Applied = true
	return res, nil
}

func applyLedger(ctx context.Context, svc Service, owner models.Identity, handle string, l LedgerSeed) error {
	for _, g := range l.Grants {
		c, err := auth.ParseCapability(g.Capability)
		if err != nil {
			return err
		}
		if err := svc.GrantRole(ctx, owner, handle, models.Identity(g.Identity), c); err != nil {
			return fmt.Errorf("failed to grant %s to %s: %w", c, g.Identity, err)
		}
	}

	for _, p := range l.Products {
		if err := svc.AddProduct(ctx, owner, handle, p.ID, p.Name, p.Description); err != nil {
			return fmt.Errorf("failed to add product %q: %w", p.ID, err)
		}
		for _, b := range p.Batches {
			if b.Processes != "" {
				if _, err := svc.UpdateProductProcesses(ctx, owner, handle, p.ID, b.ID, b.Processes); err != nil {
					return fmt.Errorf("failed to set processes on %s/%s: %w", p.ID, b.ID, err)
				}
			}
			if b.Status != "" {
				if _, err := svc.UpdateProductStatus(ctx, owner, handle, p.ID, b.ID, b.Status); err != nil {
					return fmt.Errorf("failed to set status on %s/%s: %w", p.ID, b.ID, err)
				}
			}
		}
	}
	return nil
}
