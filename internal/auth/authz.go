package auth

import (
	"fmt"
	"slices"
	"strings"
)

// Capability is a role that can be granted to an identity on a ledger.
type Capability string

const (
	CapAdmin          Capability = "ADMIN"
	CapProductManager Capability = "PRODUCT_MANAGER"
	CapAuditor        Capability = "AUDITOR"
)

// ParseCapability parses a capability name, case insensitive.
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(strings.ToUpper(strings.TrimSpace(s))); c {
	case CapAdmin, CapProductManager, CapAuditor:
		return c, nil
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

func (c Capability) bit() Capabilities {
	switch c {
	case CapAdmin:
		return 1 << 0
	case CapProductManager:
		return 1 << 1
	case CapAuditor:
		return 1 << 2
	}
	return 0
}

// Capabilities is the set of capabilities explicitly granted to one identity.
type Capabilities uint8

// Has reports whether c was explicitly granted.
func (cs Capabilities) Has(c Capability) bool {
	b := c.bit()
	return b != 0 && cs&b == b
}

// With returns the set with c added.
func (cs Capabilities) With(c Capability) Capabilities { return cs | c.bit() }

// Without returns the set with c removed.
func (cs Capabilities) Without(c Capability) Capabilities { return cs &^ c.bit() }

// List returns the granted capabilities in a stable order.
func (cs Capabilities) List() []Capability {
	var out []Capability
	for _, c := range []Capability{CapAdmin, CapProductManager, CapAuditor} {
		if cs.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Permission represents an authorized ledger action
type Permission string

const (
	PermProductsManage   Permission = "products:manage"
	PermBatchesStatus    Permission = "batches:status"
	PermBatchesProcesses Permission = "batches:processes"
	PermRolesManage      Permission = "roles:manage"
	PermLedgerOwner      Permission = "ledger:owner"
	PermDataRecord       Permission = "data:record"
)

// CapabilityPermissions maps capabilities to allowed permissions
var CapabilityPermissions = map[Capability][]Permission{
	CapAdmin: {
		PermProductsManage,
		PermBatchesStatus,
		PermBatchesProcesses,
		PermRolesManage,
		PermLedgerOwner,
		PermDataRecord,
	},
	CapProductManager: {
		PermProductsManage,
		PermBatchesStatus,
		PermBatchesProcesses,
		PermDataRecord,
	},
	CapAuditor: {
		PermBatchesProcesses,
		PermDataRecord,
	},
}

// HasPermission checks if any capability in the set grants perm
func HasPermission(caps Capabilities, perm Permission) bool {
	for _, c := range caps.List() {
		if slices.Contains(CapabilityPermissions[c], perm) {
			return true
		}
	}
	return false
}
