package models

import (
	"slices"
	"time"
)

// Product is a tracked item type within a ledger. Products are never removed,
// only deactivated.
type Product struct {
	ID          string
	Name        string
	Description string
	Active      bool
	Batches     []string // first reference order, no duplicates
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy.
func (p *Product) Clone() *Product {
	c := *p
	c.Batches = slices.Clone(p.Batches)
	return &c
}

// ProductInfo is the reader visible view of an active product.
type ProductInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// Batch holds the process log and status of one lot of a product.
// Unset fields are empty strings.
type Batch struct {
	ID        string `json:"id"`
	Processes string `json:"processes"`
	Status    string `json:"status"`
}
