package models

import (
	"slices"
	"time"
)

// Organization is a registered company, keyed by its external registration code.
// Deactivated organizations are kept; a later registration under the same code
// replaces the directory entry with a fresh organization.
type Organization struct {
	Code      string    `json:"code"`
	OrgID     string    `json:"org_id"` // keccak256 of the ABI encoded code
	Name      string    `json:"name"`
	Wallet    Identity  `json:"wallet"` // administrative identity
	Active    bool      `json:"active"`
	Ledgers   []string  `json:"ledgers"` // ledger handles, creation order
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (o *Organization) Clone() *Organization {
	c := *o
	c.Ledgers = slices.Clone(o.Ledgers)
	return &c
}

// LedgerInstance describes one traceability ledger owned by an organization.
type LedgerInstance struct {
	Handle      string    `json:"handle"`
	OrgCode     string    `json:"org_code"`
	OrgID       string    `json:"org_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Creator     Identity  `json:"creator"`
	Owner       Identity  `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
}
