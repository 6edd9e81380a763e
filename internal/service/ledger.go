package service

import (
	"context"

	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/ledger"
	"github.com/wolfeidau/traceledger/internal/models"
)

// LedgerInfo returns the ledger's descriptor.
func (s *Service) LedgerInfo(handle string) (models.LedgerInstance, error) {
	var info models.LedgerInstance
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		info = l.Info()
		return nil
	})
	return info, err
}

func (s *Service) AddProduct(ctx context.Context, caller models.Identity, handle, productID, name, description string) error {
	return s.mutateLedger(ctx, "AddProduct", handle, caller, func(l *ledger.Ledger) error {
		return l.AddProduct(caller, productID, name, description)
	})
}

func (s *Service) DeactivateProduct(ctx context.Context, caller models.Identity, handle, productID string) error {
	return s.mutateLedger(ctx, "DeactivateProduct", handle, caller, func(l *ledger.Ledger) error {
		return l.DeactivateProduct(caller, productID)
	})
}

// ReactivateProduct restores a deactivated product and returns it as it
// stood when the reactivation applied.
func (s *Service) ReactivateProduct(ctx context.Context, caller models.Identity, handle, productID string) (models.ProductInfo, error) {
	var info models.ProductInfo
	err := s.mutateLedger(ctx, "ReactivateProduct", handle, caller, func(l *ledger.Ledger) error {
		if err := l.ReactivateProduct(caller, productID); err != nil {
			return err
		}
		var err error
		info, err = l.GetProductInfo(productID)
		return err
	})
	return info, err
}

// UpdateProductProcesses sets a batch's process log and returns the batch
// as it stood when the update applied.
func (s *Service) UpdateProductProcesses(ctx context.Context, caller models.Identity, handle, productID, batchID, processes string) (models.Batch, error) {
	return s.updateBatch(ctx, "UpdateProductProcesses", caller, handle, productID, batchID, func(l *ledger.Ledger) error {
		return l.UpdateProductProcesses(caller, productID, batchID, processes)
	})
}

// UpdateProductStatus sets a batch's status and returns the batch as it
// stood when the update applied.
func (s *Service) UpdateProductStatus(ctx context.Context, caller models.Identity, handle, productID, batchID, status string) (models.Batch, error) {
	return s.updateBatch(ctx, "UpdateProductStatus", caller, handle, productID, batchID, func(l *ledger.Ledger) error {
		return l.UpdateProductStatus(caller, productID, batchID, status)
	})
}

func (s *Service) updateBatch(ctx context.Context, op string, caller models.Identity, handle, productID, batchID string, fn func(l *ledger.Ledger) error) (models.Batch, error) {
	var batch models.Batch
	err := s.mutateLedger(ctx, op, handle, caller, func(l *ledger.Ledger) error {
		if err := fn(l); err != nil {
			return err
		}
		var err error
		batch, err = l.GetProductByBatch(productID, batchID)
		return err
	})
	return batch, err
}

func (s *Service) GetProductInfo(handle, productID string) (models.ProductInfo, error) {
	var info models.ProductInfo
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		var err error
		info, err = l.GetProductInfo(productID)
		return err
	})
	return info, err
}

func (s *Service) GetProductBatches(handle, productID string) ([]string, error) {
	var batches []string
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		var err error
		batches, err = l.GetProductBatches(productID)
		return err
	})
	return batches, err
}

func (s *Service) GetProductByBatch(handle, productID, batchID string) (models.Batch, error) {
	var batch models.Batch
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		var err error
		batch, err = l.GetProductByBatch(productID, batchID)
		return err
	})
	return batch, err
}

func (s *Service) HasProduct(handle, productID string) (bool, error) {
	var ok bool
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		ok = l.HasProduct(productID)
		return nil
	})
	return ok, err
}

// GetAllProductIDs returns every product ID on the ledger, active or not.
func (s *Service) GetAllProductIDs(handle string) ([]string, error) {
	var ids []string
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		ids = l.GetAllProductIDs()
		return nil
	})
	return ids, err
}

// ListProducts returns the active products on the ledger.
func (s *Service) ListProducts(handle string) ([]models.ProductInfo, error) {
	var products []models.ProductInfo
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		products = l.ListProducts()
		return nil
	})
	return products, err
}

// RecordData appends to one of the ledger's data logs and returns the new
// entry.
func (s *Service) RecordData(ctx context.Context, caller models.Identity, handle string, category models.DataCategory, data string) (models.DataEntry, error) {
	var entry models.DataEntry
	err := s.mutateLedger(ctx, "RecordData", handle, caller, func(l *ledger.Ledger) error {
		index, err := l.RecordData(caller, category, data)
		if err != nil {
			return err
		}
		entry, err = l.GetData(category, index)
		return err
	})
	return entry, err
}

func (s *Service) GetData(handle string, category models.DataCategory, index int) (models.DataEntry, error) {
	var entry models.DataEntry
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		var err error
		entry, err = l.GetData(category, index)
		return err
	})
	return entry, err
}

// DataCounts returns the number of entries in each of the ledger's data logs.
func (s *Service) DataCounts(handle string) (models.DataCounts, error) {
	var counts models.DataCounts
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		counts = l.DataCounts()
		return nil
	})
	return counts, err
}

func (s *Service) GrantRole(ctx context.Context, caller models.Identity, handle string, id models.Identity, c auth.Capability) error {
	return s.mutateLedger(ctx, "GrantRole", handle, caller, func(l *ledger.Ledger) error {
		return l.GrantRole(caller, id, c)
	})
}

func (s *Service) RevokeRole(ctx context.Context, caller models.Identity, handle string, id models.Identity, c auth.Capability) error {
	return s.mutateLedger(ctx, "RevokeRole", handle, caller, func(l *ledger.Ledger) error {
		return l.RevokeRole(caller, id, c)
	})
}

// RoleMembers lists the identities explicitly holding c.
func (s *Service) RoleMembers(handle string, c auth.Capability) ([]models.Identity, error) {
	var members []models.Identity
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		members = l.RoleMembers(c)
		return nil
	})
	return members, err
}

// Capabilities returns the capabilities explicitly granted to id.
func (s *Service) Capabilities(handle string, id models.Identity) ([]auth.Capability, error) {
	var caps []auth.Capability
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		caps = l.Capabilities(id).List()
		return nil
	})
	return caps, err
}

func (s *Service) GetLedgerOwner(handle string) (models.Identity, error) {
	var owner models.Identity
	err := s.readLedger(handle, func(l *ledger.Ledger) error {
		owner = l.GetLedgerOwner()
		return nil
	})
	return owner, err
}

func (s *Service) UpdateLedgerOwner(ctx context.Context, caller models.Identity, handle string, newOwner models.Identity) error {
	return s.mutateLedger(ctx, "UpdateLedgerOwner", handle, caller, func(l *ledger.Ledger) error {
		return l.UpdateLedgerOwner(caller, newOwner)
	})
}
