package ledger

import (
	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/models"
)

func (l *Ledger) AddProductManager(caller, id models.Identity) error {
	return l.grant(caller, id, auth.CapProductManager)
}

func (l *Ledger) RemoveProductManager(caller, id models.Identity) error {
	return l.revoke(caller, id, auth.CapProductManager)
}

func (l *Ledger) AddAuditor(caller, id models.Identity) error {
	return l.grant(caller, id, auth.CapAuditor)
}

func (l *Ledger) RemoveAuditor(caller, id models.Identity) error {
	return l.revoke(caller, id, auth.CapAuditor)
}

// GrantRole grants any capability, ADMIN included. Admin only.
func (l *Ledger) GrantRole(caller, id models.Identity, c auth.Capability) error {
	return l.grant(caller, id, c)
}

// RevokeRole revokes any capability. Admin only; revoking a capability the
// identity does not hold succeeds without recording anything.
func (l *Ledger) RevokeRole(caller, id models.Identity, c auth.Capability) error {
	return l.revoke(caller, id, c)
}

func (l *Ledger) grant(caller, id models.Identity, c auth.Capability) error {
	if err := l.roles.Require(caller, auth.PermRolesManage); err != nil {
		return err
	}
	if id.IsZero() {
		return models.NewError(models.KindInvalidInput, "invalid user address")
	}
	if err := models.CheckText("user address", string(id)); err != nil {
		return err
	}
	id = id.Normalize()
	if l.roles.Has(id, c) {
		return nil
	}

	return l.commit(models.Event{
		Kind:   models.EventRoleGranted,
		Key:    string(id),
		Values: map[string]string{models.ValueCapability: string(c)},
		Caller: caller,
	})
}

func (l *Ledger) revoke(caller, id models.Identity, c auth.Capability) error {
	if err := l.roles.Require(caller, auth.PermRolesManage); err != nil {
		return err
	}
	if id.IsZero() {
		return models.NewError(models.KindInvalidInput, "invalid user address")
	}
	if err := models.CheckText("user address", string(id)); err != nil {
		return err
	}
	id = id.Normalize()
	if !l.roles.Has(id, c) {
		return nil
	}

	return l.commit(models.Event{
		Kind:   models.EventRoleRevoked,
		Key:    string(id),
		Values: map[string]string{models.ValueCapability: string(c)},
		Caller: caller,
	})
}

// HasRole reports whether id was explicitly granted c.
func (l *Ledger) HasRole(id models.Identity, c auth.Capability) bool {
	return l.roles.Has(id, c)
}

// Capabilities returns the explicit grants of id.
func (l *Ledger) Capabilities(id models.Identity) auth.Capabilities {
	return l.roles.Capabilities(id)
}

// RoleMembers lists the identities explicitly holding c.
func (l *Ledger) RoleMembers(c auth.Capability) []models.Identity {
	return l.roles.Members(c)
}

// UpdateLedgerOwner changes the recorded owner. Role grants are untouched.
func (l *Ledger) UpdateLedgerOwner(caller, newOwner models.Identity) error {
	if err := l.roles.Require(caller, auth.PermLedgerOwner); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return models.NewError(models.KindInvalidInput, "invalid owner address")
	}
	if err := models.CheckText("owner address", string(newOwner)); err != nil {
		return err
	}
	newOwner = newOwner.Normalize()

	return l.commit(models.Event{
		Kind: models.EventLedgerOwnerUpdated,
		Key:  string(newOwner),
		Values: map[string]string{
			models.ValueOwner:         string(newOwner),
			models.ValuePreviousOwner: string(l.info.Owner),
		},
		Caller: caller,
	})
}
