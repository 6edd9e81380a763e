package service

import (
	"context"

	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/registry"
)

// RegistryOwner returns the current registry owner.
func (s *Service) RegistryOwner() models.Identity {
	var owner models.Identity
	_ = s.read(func(r *registry.Registry) error {
		owner = r.Owner()
		return nil
	})
	return owner
}

func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner models.Identity) error {
	return s.mutate(ctx, "TransferOwnership", caller, func(r *registry.Registry) error {
		return r.TransferOwnership(caller, newOwner)
	})
}

// RegisterOrganization registers code and returns the organization as it
// stood when the registration applied.
func (s *Service) RegisterOrganization(ctx context.Context, caller models.Identity, code, name string, wallet models.Identity) (*models.Organization, error) {
	return s.mutateOrganization(ctx, "RegisterOrganization", caller, code, func(r *registry.Registry) error {
		return r.RegisterOrganization(caller, code, name, wallet)
	})
}

// ModifyOrganization replaces the name and wallet under code and returns the
// organization as it stood when the change applied.
func (s *Service) ModifyOrganization(ctx context.Context, caller models.Identity, code, name string, wallet models.Identity) (*models.Organization, error) {
	return s.mutateOrganization(ctx, "ModifyOrganization", caller, code, func(r *registry.Registry) error {
		return r.ModifyOrganization(caller, code, name, wallet)
	})
}

func (s *Service) mutateOrganization(ctx context.Context, op string, caller models.Identity, code string, fn func(r *registry.Registry) error) (*models.Organization, error) {
	var org *models.Organization
	err := s.mutate(ctx, op, caller, func(r *registry.Registry) error {
		if err := fn(r); err != nil {
			return err
		}
		var err error
		org, err = r.GetOrganizationInfo(code)
		return err
	})
	return org, err
}

func (s *Service) DeactivateOrganization(ctx context.Context, caller models.Identity, code string) error {
	return s.mutate(ctx, "DeactivateOrganization", caller, func(r *registry.Registry) error {
		return r.DeactivateOrganization(caller, code)
	})
}

// CreateLedger creates a ledger for the organization and returns its handle.
func (s *Service) CreateLedger(ctx context.Context, caller models.Identity, code, name, description string) (string, error) {
	var handle string
	err := s.mutate(ctx, "CreateLedger", caller, func(r *registry.Registry) error {
		h, err := r.CreateLedger(caller, code, name, description)
		handle = h
		return err
	})
	return handle, err
}

func (s *Service) GetOrganizationInfo(code string) (*models.Organization, error) {
	var org *models.Organization
	err := s.read(func(r *registry.Registry) error {
		var err error
		org, err = r.GetOrganizationInfo(code)
		return err
	})
	return org, err
}

func (s *Service) ListLedgers(code string) ([]string, error) {
	var handles []string
	err := s.read(func(r *registry.Registry) error {
		var err error
		handles, err = r.ListLedgers(code)
		return err
	})
	return handles, err
}

// ListOrganizationCodes returns every code ever registered.
func (s *Service) ListOrganizationCodes() []string {
	var codes []string
	_ = s.read(func(r *registry.Registry) error {
		codes = r.ListOrganizationCodes()
		return nil
	})
	return codes
}

// DeriveOrganizationID is a pure function of code.
func (s *Service) DeriveOrganizationID(code string) string {
	return registry.DeriveOrganizationID(code)
}
