// Package client is a Go client for the traceledger HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfeidau/traceledger/internal/api"
	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	// Token is sent as a bearer token when set.
	Token string
	// Caller is sent in the X-Caller-Identity header when Token is empty,
	// for servers started without authentication.
	Caller   models.Identity
	CacheDir string
	MaxTries uint
	Debug    bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
		MaxTries:  4,
	}
}

// APIError is returned for non 2xx responses. It unwraps to a
// *models.Error when the server reported a domain error kind, so
// errors.Is(err, models.ErrNotFound) works on the client side.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Kind)
}

func (e *APIError) Unwrap() error {
	if e.Kind == "" || e.Kind == api.KindInternal || e.Kind == api.KindUnauthenticated {
		return nil
	}
	return models.NewError(models.Kind(e.Kind), e.Message)
}

// Client calls the traceledger API.
type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client
}

// New creates a client. Reads go through an HTTP cache and are retried
// on transient failures.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", cfg.ServerURL)
	}

	var transport http.RoundTripper = http.DefaultTransport
	transport = newRetryTransport(transport, cfg.MaxTries)
	transport = newCachingTransport(cfg.CacheDir, transport)

	// no client timeout, streams are bounded by their context instead
	return &Client{cfg: cfg, base: base, http: &http.Client{Transport: transport}}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := c.base.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	switch {
	case c.cfg.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	case !c.cfg.Caller.IsZero():
		req.Header.Set(auth.CallerHeader, c.cfg.Caller.String())
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return decodeError(res)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	// read to EOF so the cache stores the response and the connection is reused
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func decodeError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}
	var body api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Kind, apiErr.Message = body.Kind, body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = res.Status
		}
	}
	return apiErr
}

func ledgerPath(handle string, parts ...string) string {
	p := "/v1/ledgers/" + url.PathEscape(handle)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func orgPath(code string, parts ...string) string {
	p := "/v1/organizations/" + url.PathEscape(code)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// Registry

func (c *Client) RegistryOwner(ctx context.Context) (models.Identity, error) {
	var res api.OwnerResponse
	err := c.do(ctx, http.MethodGet, "/v1/registry/owner", nil, nil, &res)
	return res.Owner, err
}

func (c *Client) TransferOwnership(ctx context.Context, newOwner models.Identity) error {
	return c.do(ctx, http.MethodPost, "/v1/registry/owner", nil, api.TransferOwnershipRequest{NewOwner: newOwner}, nil)
}

func (c *Client) RegisterOrganization(ctx context.Context, code, name string, wallet models.Identity) (*models.Organization, error) {
	var org models.Organization
	err := c.do(ctx, http.MethodPost, "/v1/organizations", nil, api.RegisterOrganizationRequest{Code: code, Name: name, Wallet: wallet}, &org)
	return &org, err
}

func (c *Client) ModifyOrganization(ctx context.Context, code, name string, wallet models.Identity) (*models.Organization, error) {
	var org models.Organization
	err := c.do(ctx, http.MethodPut, orgPath(code), nil, api.ModifyOrganizationRequest{Name: name, Wallet: wallet}, &org)
	return &org, err
}

func (c *Client) DeactivateOrganization(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodDelete, orgPath(code), nil, nil, nil)
}

func (c *Client) GetOrganizationInfo(ctx context.Context, code string) (*models.Organization, error) {
	var org models.Organization
	err := c.do(ctx, http.MethodGet, orgPath(code), nil, nil, &org)
	return &org, err
}

func (c *Client) ListOrganizationCodes(ctx context.Context) ([]string, error) {
	var res api.OrganizationCodesResponse
	err := c.do(ctx, http.MethodGet, "/v1/organizations", nil, nil, &res)
	return res.Codes, err
}

// DeriveOrganizationID asks the server for the organization ID of code.
// Responses are cached.
func (c *Client) DeriveOrganizationID(ctx context.Context, code string) (string, error) {
	var res api.OrganizationIDResponse
	err := c.do(ctx, http.MethodGet, orgPath(code, "id"), nil, nil, &res)
	return res.OrgID, err
}

func (c *Client) CreateLedger(ctx context.Context, code, name, description string) (string, error) {
	var res api.CreateLedgerResponse
	err := c.do(ctx, http.MethodPost, orgPath(code, "ledgers"), nil, api.CreateLedgerRequest{Name: name, Description: description}, &res)
	return res.Handle, err
}

func (c *Client) ListLedgers(ctx context.Context, code string) ([]string, error) {
	var res api.LedgersResponse
	err := c.do(ctx, http.MethodGet, orgPath(code, "ledgers"), nil, nil, &res)
	return res.Handles, err
}

// Ledgers

func (c *Client) LedgerInfo(ctx context.Context, handle string) (models.LedgerInstance, error) {
	var info models.LedgerInstance
	err := c.do(ctx, http.MethodGet, ledgerPath(handle), nil, nil, &info)
	return info, err
}

func (c *Client) AddProduct(ctx context.Context, handle, productID, name, description string) error {
	return c.do(ctx, http.MethodPost, ledgerPath(handle, "products"), nil,
		api.AddProductRequest{ID: productID, Name: name, Description: description}, nil)
}

func (c *Client) DeactivateProduct(ctx context.Context, handle, productID string) error {
	return c.do(ctx, http.MethodPost, ledgerPath(handle, "products", productID, "deactivate"), nil, nil, nil)
}

func (c *Client) ReactivateProduct(ctx context.Context, handle, productID string) (models.ProductInfo, error) {
	var info models.ProductInfo
	err := c.do(ctx, http.MethodPost, ledgerPath(handle, "products", productID, "reactivate"), nil, nil, &info)
	return info, err
}

func (c *Client) GetProductInfo(ctx context.Context, handle, productID string) (models.ProductInfo, error) {
	var info models.ProductInfo
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "products", productID), nil, nil, &info)
	return info, err
}

func (c *Client) ListProducts(ctx context.Context, handle string) ([]models.ProductInfo, error) {
	var res api.ProductsResponse
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "products"), nil, nil, &res)
	return res.Products, err
}

func (c *Client) GetAllProductIDs(ctx context.Context, handle string) ([]string, error) {
	var res api.ProductIDsResponse
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "product-ids"), nil, nil, &res)
	return res.IDs, err
}

func (c *Client) GetProductBatches(ctx context.Context, handle, productID string) ([]string, error) {
	var res api.BatchesResponse
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "products", productID, "batches"), nil, nil, &res)
	return res.Batches, err
}

func (c *Client) GetProductByBatch(ctx context.Context, handle, productID, batchID string) (models.Batch, error) {
	var b models.Batch
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "products", productID, "batches", batchID), nil, nil, &b)
	return b, err
}

func (c *Client) UpdateProductProcesses(ctx context.Context, handle, productID, batchID, processes string) (models.Batch, error) {
	var b models.Batch
	err := c.do(ctx, http.MethodPut, ledgerPath(handle, "products", productID, "batches", batchID, "processes"), nil,
		api.UpdateBatchRequest{Value: processes}, &b)
	return b, err
}

func (c *Client) UpdateProductStatus(ctx context.Context, handle, productID, batchID, status string) (models.Batch, error) {
	var b models.Batch
	err := c.do(ctx, http.MethodPut, ledgerPath(handle, "products", productID, "batches", batchID, "status"), nil,
		api.UpdateBatchRequest{Value: status}, &b)
	return b, err
}

func (c *Client) BatchHistory(ctx context.Context, handle, productID, batchID string) ([]*models.AuditRecord, error) {
	var res api.AuditRecordsResponse
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "products", productID, "batches", batchID, "history"), nil, nil, &res)
	return res.Records, err
}

// RecordData appends data to one of the ledger's data logs.
func (c *Client) RecordData(ctx context.Context, handle string, category models.DataCategory, data string) (models.DataEntry, error) {
	var entry models.DataEntry
	err := c.do(ctx, http.MethodPost, ledgerPath(handle, "data", string(category)), nil,
		api.RecordDataRequest{Data: data}, &entry)
	return entry, err
}

func (c *Client) GetData(ctx context.Context, handle string, category models.DataCategory, index int) (models.DataEntry, error) {
	var entry models.DataEntry
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "data", string(category), strconv.Itoa(index)), nil, nil, &entry)
	return entry, err
}

func (c *Client) DataCounts(ctx context.Context, handle string) (models.DataCounts, error) {
	var res api.DataCountsResponse
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "data"), nil, nil, &res)
	return res.Counts, err
}

func (c *Client) GrantRole(ctx context.Context, handle string, id models.Identity, capability auth.Capability) error {
	return c.do(ctx, http.MethodPost, ledgerPath(handle, "roles", string(capability)), nil, api.GrantRoleRequest{Identity: id}, nil)
}

func (c *Client) RevokeRole(ctx context.Context, handle string, id models.Identity, capability auth.Capability) error {
	return c.do(ctx, http.MethodDelete, ledgerPath(handle, "roles", string(capability), id.String()), nil, nil, nil)
}

func (c *Client) RoleMembers(ctx context.Context, handle string, capability auth.Capability) ([]models.Identity, error) {
	var res api.MembersResponse
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "roles", string(capability)), nil, nil, &res)
	return res.Members, err
}

func (c *Client) Capabilities(ctx context.Context, handle string, id models.Identity) ([]string, error) {
	var res api.CapabilitiesResponse
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "capabilities", id.String()), nil, nil, &res)
	return res.Capabilities, err
}

func (c *Client) GetLedgerOwner(ctx context.Context, handle string) (models.Identity, error) {
	var res api.OwnerResponse
	err := c.do(ctx, http.MethodGet, ledgerPath(handle, "owner"), nil, nil, &res)
	return res.Owner, err
}

func (c *Client) UpdateLedgerOwner(ctx context.Context, handle string, newOwner models.Identity) error {
	return c.do(ctx, http.MethodPut, ledgerPath(handle, "owner"), nil, api.UpdateLedgerOwnerRequest{Owner: newOwner}, nil)
}

// Audit

func filterQuery(f store.AuditFilter) url.Values {
	q := url.Values{}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		q.Set("kind", strings.Join(kinds, ","))
	}
	if f.Ledger != "" {
		q.Set("ledger", f.Ledger)
	}
	if f.Key != "" {
		q.Set("key", f.Key)
	}
	if f.SubKey != "" {
		q.Set("sub_key", f.SubKey)
	}
	if !f.Caller.IsZero() {
		q.Set("caller", f.Caller.String())
	}
	if f.FromSequence > 0 {
		q.Set("from", strconv.FormatInt(f.FromSequence, 10))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (c *Client) Replay(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	var res api.AuditRecordsResponse
	err := c.do(ctx, http.MethodGet, "/v1/audit", filterQuery(filter), nil, &res)
	return res.Records, err
}

func (c *Client) Verify(ctx context.Context) (api.VerifyResponse, error) {
	var res api.VerifyResponse
	err := c.do(ctx, http.MethodGet, "/v1/audit/verify", nil, nil, &res)
	return res, err
}

// Stream calls fn for each audit record the server streams until ctx is
// done, the server closes the stream or fn returns an error.
func (c *Client) Stream(ctx context.Context, filter store.AuditFilter, fn func(*models.AuditRecord) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/audit/stream", filterQuery(filter), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	// keep the cache transport from buffering an endless body
	req.Header.Set("Cache-Control", "no-store")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("audit stream: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return decodeError(res)
	}

	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var rec models.AuditRecord
			if err := json.Unmarshal([]byte(data.String()), &rec); err != nil {
				return fmt.Errorf("failed to decode audit record: %w", err)
			}
			data.Reset()
			if err := fn(&rec); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("audit stream: %w", err)
	}
	return nil
}
