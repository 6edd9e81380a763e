package registry

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/wolfeidau/traceledger/internal/ledger"
	"github.com/wolfeidau/traceledger/internal/models"
)

// Limits bounds registry and ledger growth. Zero values mean unbounded.
type Limits struct {
	MaxLedgersPerOrganization int
	Ledger                    ledger.Limits
}

// Registry is the directory of organizations and the ledgers they own.
//
// Registry is not safe for concurrent use. The service layer applies
// mutations one at a time and guards reads with a lock.
type Registry struct {
	owner     models.Identity
	orgs      map[string]*models.Organization // keyed by organization ID
	codes     []string                        // first registration order
	ledgers   map[string]*ledger.Ledger
	recorder  ledger.Recorder
	limits    Limits
	newHandle func() (string, error)
}

// New returns an empty registry owned by owner. Hex address identities are
// compared in normalized form throughout.
func New(owner models.Identity, recorder ledger.Recorder, limits Limits) *Registry {
	return &Registry{
		owner:     owner.Normalize(),
		orgs:      make(map[string]*models.Organization),
		ledgers:   make(map[string]*ledger.Ledger),
		recorder:  recorder,
		limits:    limits,
		newHandle: NewLedgerHandle,
	}
}

// NewLedgerHandle returns a base58 encoded UUIDv7.
func NewLedgerHandle() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate ledger handle: %w", err)
	}
	return base58.Encode(id[:]), nil
}

// Owner returns the registry owner.
func (r *Registry) Owner() models.Identity { return r.owner }

func (r *Registry) requireOwner(caller models.Identity) error {
	if caller.IsZero() || caller.Normalize() != r.owner {
		return models.NewError(models.KindPermissionDenied, "caller is not the registry owner")
	}
	return nil
}

func (r *Registry) commit(ev models.Event) error {
	ev.Caller = ev.Caller.Normalize()
	rec, err := r.recorder.Record(ev)
	if err != nil {
		return err
	}
	return r.Apply(rec)
}

func (r *Registry) active(code string) (*models.Organization, bool) {
	org, ok := r.orgs[DeriveOrganizationID(code)]
	if !ok || !org.Active {
		return nil, false
	}
	return org, true
}

func validateOrganization(code, name string, wallet models.Identity) error {
	if code == "" {
		return models.NewError(models.KindInvalidInput, "registration number cannot be empty")
	}
	if name == "" {
		return models.NewError(models.KindInvalidInput, "organization name cannot be empty")
	}
	if wallet.IsZero() {
		return models.NewError(models.KindInvalidInput, "invalid wallet address")
	}
	return models.CheckText("registration number", code, "organization name", name, "wallet address", string(wallet))
}

// RegisterOrganization adds an active organization under code.
func (r *Registry) RegisterOrganization(caller models.Identity, code, name string, wallet models.Identity) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if err := validateOrganization(code, name, wallet); err != nil {
		return err
	}
	if _, ok := r.active(code); ok {
		return models.NewError(models.KindAlreadyRegistered, "already registered")
	}

	return r.commit(models.Event{
		Kind: models.EventOrganizationRegistered,
		Key:  code,
		Values: map[string]string{
			models.ValueName:   name,
			models.ValueWallet: string(wallet.Normalize()),
			models.ValueOrgID:  DeriveOrganizationID(code),
		},
		Caller: caller,
	})
}

// ModifyOrganization replaces the name and wallet of an active organization.
func (r *Registry) ModifyOrganization(caller models.Identity, code, name string, wallet models.Identity) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if err := validateOrganization(code, name, wallet); err != nil {
		return err
	}
	if _, ok := r.active(code); !ok {
		return models.NewError(models.KindNotRegistered, "organization not registered")
	}

	return r.commit(models.Event{
		Kind: models.EventOrganizationModified,
		Key:  code,
		Values: map[string]string{
			models.ValueName:   name,
			models.ValueWallet: string(wallet.Normalize()),
		},
		Caller: caller,
	})
}

// DeactivateOrganization frees code for a fresh registration. Ledgers of
// the deactivated organization stay reachable by handle.
func (r *Registry) DeactivateOrganization(caller models.Identity, code string) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if _, ok := r.active(code); !ok {
		return models.NewError(models.KindNotRegistered, "organization not registered")
	}

	return r.commit(models.Event{
		Kind:   models.EventOrganizationDeactivated,
		Key:    code,
		Caller: caller,
	})
}

// CreateLedger instantiates a ledger for an active organization and returns
// its handle. The caller must be the registry owner or the organization's
// wallet. The registry owner and the wallet both receive ADMIN on it.
func (r *Registry) CreateLedger(caller models.Identity, code, name, description string) (string, error) {
	org := r.orgs[DeriveOrganizationID(code)]
	caller = caller.Normalize()
	if caller.IsZero() || (caller != r.owner && (org == nil || caller != org.Wallet)) {
		return "", models.NewError(models.KindPermissionDenied, "sender does not have permission")
	}
	if org == nil || !org.Active {
		return "", models.NewError(models.KindNotRegistered, "organization not registered")
	}
	if limit := r.limits.MaxLedgersPerOrganization; limit > 0 && len(org.Ledgers) >= limit {
		return "", models.NewError(models.KindLimitExceeded, fmt.Sprintf("organization ledger limit of %d reached", limit))
	}
	if err := models.CheckText("name", name, "description", description); err != nil {
		return "", err
	}

	handle, err := r.newHandle()
	if err != nil {
		return "", err
	}

	err = r.commit(models.Event{
		Kind:   models.EventLedgerCreated,
		Ledger: handle,
		Key:    code,
		SubKey: handle,
		Values: map[string]string{
			models.ValueName:          name,
			models.ValueDescription:   description,
			models.ValueOrgID:         org.OrgID,
			models.ValueOwner:         string(org.Wallet),
			models.ValueRegistryOwner: string(r.owner),
		},
		Caller: caller,
	})
	if err != nil {
		return "", err
	}
	return handle, nil
}

// TransferOwnership hands the registry to a new owner.
func (r *Registry) TransferOwnership(caller, newOwner models.Identity) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return models.NewError(models.KindInvalidInput, "invalid owner address")
	}
	if err := models.CheckText("owner address", string(newOwner)); err != nil {
		return err
	}
	newOwner = newOwner.Normalize()

	return r.commit(models.Event{
		Kind: models.EventRegistryOwnershipTransferred,
		Key:  string(newOwner),
		Values: map[string]string{
			models.ValueOwner:         string(newOwner),
			models.ValuePreviousOwner: string(r.owner),
		},
		Caller: caller,
	})
}

// GetOrganizationInfo returns a copy of the active organization under code.
func (r *Registry) GetOrganizationInfo(code string) (*models.Organization, error) {
	org, ok := r.active(code)
	if !ok {
		return nil, models.NewError(models.KindNotRegistered, "organization is not registered")
	}
	return org.Clone(), nil
}

// ListLedgers returns the handles of the active organization's ledgers in
// creation order.
func (r *Registry) ListLedgers(code string) ([]string, error) {
	org, ok := r.active(code)
	if !ok {
		return nil, models.NewError(models.KindNotRegistered, "organization is not registered")
	}
	return slices.Clone(org.Ledgers), nil
}

// ListOrganizationCodes returns every code ever registered, active or not,
// in first registration order.
func (r *Registry) ListOrganizationCodes() []string {
	return slices.Clone(r.codes)
}

// Ledger returns the ledger behind handle, including ledgers of
// deactivated organizations.
func (r *Registry) Ledger(handle string) (*ledger.Ledger, error) {
	l, ok := r.ledgers[handle]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "ledger not found")
	}
	return l, nil
}

// Apply mutates registry state from a recorded event without checking
// authorization. Ledger scoped events are routed to their ledger.
func (r *Registry) Apply(rec *models.AuditRecord) error {
	if rec.Kind.IsLedgerEvent() {
		l, ok := r.ledgers[rec.Ledger]
		if !ok {
			return fmt.Errorf("apply %s: unknown ledger %q", rec.Kind, rec.Ledger)
		}
		return l.Apply(rec)
	}

	switch rec.Kind {
	case models.EventOrganizationRegistered:
		id := DeriveOrganizationID(rec.Key)
		if _, seen := r.orgs[id]; !seen {
			r.codes = append(r.codes, rec.Key)
		}
		r.orgs[id] = &models.Organization{
			Code:      rec.Key,
			OrgID:     id,
			Name:      rec.Values[models.ValueName],
			Wallet:    models.Identity(rec.Values[models.ValueWallet]).Normalize(),
			Active:    true,
			CreatedAt: rec.Timestamp,
			UpdatedAt: rec.Timestamp,
		}

	case models.EventOrganizationModified:
		org, ok := r.orgs[DeriveOrganizationID(rec.Key)]
		if !ok {
			return fmt.Errorf("apply %s: unknown organization %q", rec.Kind, rec.Key)
		}
		org.Name = rec.Values[models.ValueName]
		org.Wallet = models.Identity(rec.Values[models.ValueWallet]).Normalize()
		org.UpdatedAt = rec.Timestamp

	case models.EventOrganizationDeactivated:
		org, ok := r.orgs[DeriveOrganizationID(rec.Key)]
		if !ok {
			return fmt.Errorf("apply %s: unknown organization %q", rec.Kind, rec.Key)
		}
		org.Active = false
		org.UpdatedAt = rec.Timestamp

	case models.EventLedgerCreated:
		org, ok := r.orgs[DeriveOrganizationID(rec.Key)]
		if !ok {
			return fmt.Errorf("apply %s: unknown organization %q", rec.Kind, rec.Key)
		}
		wallet := models.Identity(rec.Values[models.ValueOwner]).Normalize()
		info := models.LedgerInstance{
			Handle:      rec.SubKey,
			OrgCode:     rec.Key,
			OrgID:       org.OrgID,
			Name:        rec.Values[models.ValueName],
			Description: rec.Values[models.ValueDescription],
			Creator:     rec.Caller,
			Owner:       wallet,
			CreatedAt:   rec.Timestamp,
		}
		admins := []models.Identity{models.Identity(rec.Values[models.ValueRegistryOwner]), wallet}
		r.ledgers[info.Handle] = ledger.New(info, admins, r.recorder, r.limits.Ledger)
		org.Ledgers = append(org.Ledgers, info.Handle)

	case models.EventRegistryOwnershipTransferred:
		r.owner = models.Identity(rec.Key).Normalize()

	default:
		return fmt.Errorf("apply: unknown event kind %q", rec.Kind)
	}
	return nil
}
