// Package api holds the JSON request and response bodies shared by the HTTP
// server and its client.
package api

import "github.com/wolfeidau/traceledger/internal/models"

// ErrorResponse is the body of every non 2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// KindUnauthenticated is reported when a mutation arrives without a caller.
const KindUnauthenticated = "Unauthenticated"

// KindInternal is reported for failures that are not domain errors.
const KindInternal = "Internal"

type OwnerResponse struct {
	Owner models.Identity `json:"owner"`
}

type TransferOwnershipRequest struct {
	NewOwner models.Identity `json:"new_owner"`
}

type RegisterOrganizationRequest struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Wallet models.Identity `json:"wallet"`
}

type ModifyOrganizationRequest struct {
	Name   string          `json:"name"`
	Wallet models.Identity `json:"wallet"`
}

type OrganizationCodesResponse struct {
	Codes []string `json:"codes"`
}

type OrganizationIDResponse struct {
	Code  string `json:"code"`
	OrgID string `json:"org_id"`
}

type CreateLedgerRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreateLedgerResponse struct {
	Handle string `json:"handle"`
}

type LedgersResponse struct {
	Handles []string `json:"handles"`
}

type AddProductRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ProductsResponse struct {
	Products []models.ProductInfo `json:"products"`
}

type ProductIDsResponse struct {
	IDs []string `json:"ids"`
}

type BatchesResponse struct {
	Batches []string `json:"batches"`
}

// UpdateBatchRequest sets either the processes or the status text of a batch.
type UpdateBatchRequest struct {
	Value string `json:"value"`
}

type GrantRoleRequest struct {
	Identity models.Identity `json:"identity"`
}

type MembersResponse struct {
	Capability string            `json:"capability"`
	Members    []models.Identity `json:"members"`
}

type CapabilitiesResponse struct {
	Identity     models.Identity `json:"identity"`
	Capabilities []string        `json:"capabilities"`
}

type UpdateLedgerOwnerRequest struct {
	Owner models.Identity `json:"owner"`
}

// RecordDataRequest appends to a data log. CID is accepted in place of Data
// for content identifiers.
type RecordDataRequest struct {
	Data string `json:"data,omitempty"`
	CID  string `json:"cid,omitempty"`
}

type DataCountsResponse struct {
	Counts models.DataCounts `json:"counts"`
}

type AuditRecordsResponse struct {
	Records []*models.AuditRecord `json:"records"`
}

type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Records int64  `json:"records"`
	Error   string `json:"error,omitempty"`
}
