package auth

import (
	"maps"
	"slices"

	"github.com/wolfeidau/traceledger/internal/models"
)

// RoleTable holds the capability grants of a single ledger. Identities are
// normalized on every call, so hex addresses match case insensitively.
// It is not safe for concurrent use; the owning ledger serializes access.
type RoleTable struct {
	grants map[models.Identity]Capabilities
}

func NewRoleTable() *RoleTable {
	return &RoleTable{grants: make(map[models.Identity]Capabilities)}
}

// Grant adds c to id and reports whether the set changed.
func (t *RoleTable) Grant(id models.Identity, c Capability) bool {
	id = id.Normalize()
	before := t.grants[id]
	after := before.With(c)
	t.grants[id] = after
	return before != after
}

// Revoke removes c from id and reports whether the set changed.
// Revoking a capability that was never held is a no-op.
func (t *RoleTable) Revoke(id models.Identity, c Capability) bool {
	id = id.Normalize()
	before, ok := t.grants[id]
	if !ok {
		return false
	}
	after := before.Without(c)
	if after == 0 {
		delete(t.grants, id)
	} else {
		t.grants[id] = after
	}
	return before != after
}

// Capabilities returns the explicit grants of id.
func (t *RoleTable) Capabilities(id models.Identity) Capabilities {
	return t.grants[id.Normalize()]
}

// Has reports whether id was explicitly granted c.
func (t *RoleTable) Has(id models.Identity, c Capability) bool {
	return t.grants[id.Normalize()].Has(c)
}

// Members returns every identity explicitly holding c, sorted.
func (t *RoleTable) Members(c Capability) []models.Identity {
	var out []models.Identity
	for id, caps := range t.grants {
		if caps.Has(c) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Require returns a PermissionDenied error unless id holds a capability
// granting perm.
func (t *RoleTable) Require(id models.Identity, perm Permission) error {
	if HasPermission(t.grants[id.Normalize()], perm) {
		return nil
	}
	return models.NewError(models.KindPermissionDenied, denialMessage(perm))
}

// Clone returns an independent copy.
func (t *RoleTable) Clone() *RoleTable {
	return &RoleTable{grants: maps.Clone(t.grants)}
}

func denialMessage(perm Permission) string {
	switch perm {
	case PermProductsManage, PermBatchesStatus:
		return "caller is not a product manager"
	case PermBatchesProcesses:
		return "caller is not an auditor"
	case PermDataRecord:
		return "caller holds no role on this ledger"
	default:
		return "caller is not an admin"
	}
}
