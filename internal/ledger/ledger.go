package ledger

import (
	"fmt"
	"slices"

	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/models"
)

// Recorder durably appends an accepted event and returns the sequenced record.
// A ledger only mutates its state after Record succeeds.
type Recorder interface {
	Record(ev models.Event) (*models.AuditRecord, error)
}

// Limits bounds attacker controllable growth. Zero means unbounded.
type Limits struct {
	MaxProducts int
	MaxBatches  int
	MaxData     int // entries per data category
}

// Ledger is one organization's traceability ledger: a product catalog with
// per batch process and status history, gated by a capability table.
//
// Ledger is not safe for concurrent use. Callers apply operations one at a
// time and may read concurrently only while no operation is applying.
type Ledger struct {
	info     models.LedgerInstance
	roles    *auth.RoleTable
	products map[string]*models.Product
	order    []string
	batches  map[string]map[string]*models.Batch
	data     map[models.DataCategory][]models.DataEntry
	recorder Recorder
	limits   Limits
}

// New returns an empty ledger. Each identity in admins receives ADMIN.
func New(info models.LedgerInstance, admins []models.Identity, recorder Recorder, limits Limits) *Ledger {
	info.Owner = info.Owner.Normalize()
	l := &Ledger{
		info:     info,
		roles:    auth.NewRoleTable(),
		products: make(map[string]*models.Product),
		batches:  make(map[string]map[string]*models.Batch),
		data:     make(map[models.DataCategory][]models.DataEntry),
		recorder: recorder,
		limits:   limits,
	}
	for _, id := range admins {
		if !id.IsZero() {
			l.roles.Grant(id, auth.CapAdmin)
		}
	}
	return l
}

// Info returns the ledger's descriptor, including its current owner.
func (l *Ledger) Info() models.LedgerInstance { return l.info }

// Handle returns the ledger's handle.
func (l *Ledger) Handle() string { return l.info.Handle }

// OrganizationID returns the ID of the owning organization.
func (l *Ledger) OrganizationID() string { return l.info.OrgID }

// GetLedgerOwner returns the identity recorded as the ledger owner.
func (l *Ledger) GetLedgerOwner() models.Identity { return l.info.Owner }

// commit records ev and applies it. Nothing changes if recording fails.
func (l *Ledger) commit(ev models.Event) error {
	ev.Ledger = l.info.Handle
	ev.Caller = ev.Caller.Normalize()
	rec, err := l.recorder.Record(ev)
	if err != nil {
		return err
	}
	return l.Apply(rec)
}

// Apply mutates ledger state from a recorded event. It performs no
// authorization or validation and is used both after a live commit and
// when rebuilding state from the audit log.
func (l *Ledger) Apply(rec *models.AuditRecord) error {
	switch rec.Kind {
	case models.EventProductAdded:
		if p, ok := l.products[rec.Key]; ok {
			p.Active = true
			p.UpdatedAt = rec.Timestamp
			return nil
		}
		l.products[rec.Key] = &models.Product{
			ID:          rec.Key,
			Name:        rec.Values[models.ValueName],
			Description: rec.Values[models.ValueDescription],
			Active:      true,
			CreatedAt:   rec.Timestamp,
			UpdatedAt:   rec.Timestamp,
		}
		l.order = append(l.order, rec.Key)

	case models.EventProductDeactivated:
		p, ok := l.products[rec.Key]
		if !ok {
			return fmt.Errorf("apply %s: unknown product %q", rec.Kind, rec.Key)
		}
		p.Active = false
		p.UpdatedAt = rec.Timestamp

	case models.EventProcessesUpdated, models.EventStatusUpdated:
		p, ok := l.products[rec.Key]
		if !ok {
			return fmt.Errorf("apply %s: unknown product %q", rec.Kind, rec.Key)
		}
		b := l.touchBatch(p, rec.SubKey)
		if rec.Kind == models.EventProcessesUpdated {
			b.Processes = rec.Values[models.ValueProcesses]
		} else {
			b.Status = rec.Values[models.ValueStatus]
		}
		p.UpdatedAt = rec.Timestamp

	case models.EventRoleGranted, models.EventRoleRevoked:
		c, err := auth.ParseCapability(rec.Values[models.ValueCapability])
		if err != nil {
			return fmt.Errorf("apply %s: %w", rec.Kind, err)
		}
		if rec.Kind == models.EventRoleGranted {
			l.roles.Grant(models.Identity(rec.Key), c)
		} else {
			l.roles.Revoke(models.Identity(rec.Key), c)
		}

	case models.EventLedgerOwnerUpdated:
		l.info.Owner = models.Identity(rec.Key).Normalize()

	case models.EventDataRecorded:
		category := models.DataCategory(rec.Key)
		l.data[category] = append(l.data[category], models.DataEntry{
			Category:  category,
			Index:     len(l.data[category]),
			Data:      rec.Values[models.ValueData],
			Timestamp: rec.Timestamp,
			Sender:    rec.Caller,
		})

	default:
		return fmt.Errorf("apply: %s is not a ledger event", rec.Kind)
	}
	return nil
}

// touchBatch returns the batch, registering it on the product the first time.
func (l *Ledger) touchBatch(p *models.Product, batchID string) *models.Batch {
	byID, ok := l.batches[p.ID]
	if !ok {
		byID = make(map[string]*models.Batch)
		l.batches[p.ID] = byID
	}
	b, ok := byID[batchID]
	if !ok {
		b = &models.Batch{ID: batchID}
		byID[batchID] = b
		p.Batches = append(p.Batches, batchID)
	}
	return b
}

// AddProduct registers a new active product. Product IDs are never reused:
// a deactivated product can only come back through ReactivateProduct.
func (l *Ledger) AddProduct(caller models.Identity, productID, name, description string) error {
	if err := l.roles.Require(caller, auth.PermProductsManage); err != nil {
		return err
	}
	if productID == "" {
		return models.NewError(models.KindEmptyField, "product ID cannot be empty")
	}
	if err := models.CheckText("product ID", productID, "name", name, "description", description); err != nil {
		return err
	}
	if _, ok := l.products[productID]; ok {
		return models.NewError(models.KindAlreadyExists, "product already registered")
	}
	if l.limits.MaxProducts > 0 && len(l.order) >= l.limits.MaxProducts {
		return models.NewError(models.KindLimitExceeded, fmt.Sprintf("ledger product limit of %d reached", l.limits.MaxProducts))
	}

	return l.commit(models.Event{
		Kind:   models.EventProductAdded,
		Key:    productID,
		Values: map[string]string{models.ValueName: name, models.ValueDescription: description},
		Caller: caller,
	})
}

// DeactivateProduct hides a product from readers. Deactivating an inactive
// product succeeds and records the deactivation again.
func (l *Ledger) DeactivateProduct(caller models.Identity, productID string) error {
	if err := l.roles.Require(caller, auth.PermProductsManage); err != nil {
		return err
	}
	if _, ok := l.products[productID]; !ok {
		return models.NewError(models.KindNotFound, "product not found")
	}

	return l.commit(models.Event{
		Kind:   models.EventProductDeactivated,
		Key:    productID,
		Caller: caller,
	})
}

// ReactivateProduct restores a deactivated product with its original
// name and description.
func (l *Ledger) ReactivateProduct(caller models.Identity, productID string) error {
	if err := l.roles.Require(caller, auth.PermProductsManage); err != nil {
		return err
	}
	p, ok := l.products[productID]
	if !ok {
		return models.NewError(models.KindNotFound, "product does not exist")
	}
	if p.Active {
		return models.NewError(models.KindAlreadyActive, "product is already active")
	}

	return l.commit(models.Event{
		Kind: models.EventProductAdded,
		Key:  productID,
		Values: map[string]string{
			models.ValueName:        p.Name,
			models.ValueDescription: p.Description,
			models.ValueReactivated: "true",
		},
		Caller: caller,
	})
}

// UpdateProductProcesses sets the process log of a batch, registering the
// batch on first reference.
func (l *Ledger) UpdateProductProcesses(caller models.Identity, productID, batchID, processes string) error {
	if err := l.roles.Require(caller, auth.PermBatchesProcesses); err != nil {
		return err
	}
	if err := l.checkBatchWrite(productID, batchID); err != nil {
		return err
	}
	if err := models.CheckText("processes", processes); err != nil {
		return err
	}

	return l.commit(models.Event{
		Kind:   models.EventProcessesUpdated,
		Key:    productID,
		SubKey: batchID,
		Values: map[string]string{models.ValueProcesses: processes},
		Caller: caller,
	})
}

// UpdateProductStatus sets the status of a batch, registering the batch on
// first reference.
func (l *Ledger) UpdateProductStatus(caller models.Identity, productID, batchID, status string) error {
	if err := l.roles.Require(caller, auth.PermBatchesStatus); err != nil {
		return err
	}
	if err := l.checkBatchWrite(productID, batchID); err != nil {
		return err
	}
	if err := models.CheckText("status", status); err != nil {
		return err
	}

	return l.commit(models.Event{
		Kind:   models.EventStatusUpdated,
		Key:    productID,
		SubKey: batchID,
		Values: map[string]string{models.ValueStatus: status},
		Caller: caller,
	})
}

func (l *Ledger) checkBatchWrite(productID, batchID string) error {
	if batchID == "" {
		return models.NewError(models.KindEmptyField, "batch ID cannot be empty")
	}
	if err := models.CheckText("batch ID", batchID); err != nil {
		return err
	}
	p, ok := l.products[productID]
	if !ok || !p.Active {
		return models.NewError(models.KindNotActive, "product is not active or not found")
	}
	if l.limits.MaxBatches > 0 && len(p.Batches) >= l.limits.MaxBatches {
		if _, exists := l.batches[productID][batchID]; !exists {
			return models.NewError(models.KindLimitExceeded, fmt.Sprintf("product batch limit of %d reached", l.limits.MaxBatches))
		}
	}
	return nil
}

// GetProductInfo returns an active product. Deactivated products are not
// visible to readers.
func (l *Ledger) GetProductInfo(productID string) (models.ProductInfo, error) {
	p, ok := l.products[productID]
	if !ok {
		return models.ProductInfo{}, models.NewError(models.KindNotFound, "product not found")
	}
	if !p.Active {
		return models.ProductInfo{}, models.NewError(models.KindNotActive, "product is not active")
	}
	return productInfo(p), nil
}

// GetProductBatches returns the product's batch IDs in first reference
// order, whether or not the product is active.
func (l *Ledger) GetProductBatches(productID string) ([]string, error) {
	p, ok := l.products[productID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "product not found")
	}
	return slices.Clone(p.Batches), nil
}

// GetProductByBatch returns a batch's fields. A batch that was never
// written reads as empty fields.
func (l *Ledger) GetProductByBatch(productID, batchID string) (models.Batch, error) {
	if _, ok := l.products[productID]; !ok {
		return models.Batch{}, models.NewError(models.KindNotFound, "product not found")
	}
	if batchID == "" {
		return models.Batch{}, models.NewError(models.KindEmptyField, "batch ID cannot be empty")
	}
	if b, ok := l.batches[productID][batchID]; ok {
		return *b, nil
	}
	return models.Batch{ID: batchID}, nil
}

// HasProduct reports whether the product exists and is active.
func (l *Ledger) HasProduct(productID string) bool {
	p, ok := l.products[productID]
	return ok && p.Active
}

// GetAllProductIDs returns every product ID, active or not, in creation order.
func (l *Ledger) GetAllProductIDs() []string {
	return slices.Clone(l.order)
}

// ListProducts returns the active products in creation order.
func (l *Ledger) ListProducts() []models.ProductInfo {
	var out []models.ProductInfo
	for _, id := range l.order {
		if p := l.products[id]; p.Active {
			out = append(out, productInfo(p))
		}
	}
	return out
}

// Product returns a copy of the full product record, including inactive ones.
func (l *Ledger) Product(productID string) (*models.Product, bool) {
	p, ok := l.products[productID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// RecordData appends data to one of the ledger's data logs and returns the
// index of the new entry. Any role on the ledger may record.
func (l *Ledger) RecordData(caller models.Identity, category models.DataCategory, data string) (int, error) {
	if err := l.roles.Require(caller, auth.PermDataRecord); err != nil {
		return 0, err
	}
	if !category.Valid() {
		return 0, models.NewError(models.KindInvalidInput, fmt.Sprintf("unknown data category %q", category))
	}
	if data == "" {
		return 0, models.NewError(models.KindEmptyField, "data cannot be empty")
	}
	if err := models.CheckText("data", data); err != nil {
		return 0, err
	}
	if l.limits.MaxData > 0 && len(l.data[category]) >= l.limits.MaxData {
		return 0, models.NewError(models.KindLimitExceeded, fmt.Sprintf("%s data limit of %d reached", category, l.limits.MaxData))
	}

	index := len(l.data[category])
	err := l.commit(models.Event{
		Kind:   models.EventDataRecorded,
		Key:    string(category),
		Values: map[string]string{models.ValueData: data},
		Caller: caller,
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}

// GetData returns the entry at index in a data log.
func (l *Ledger) GetData(category models.DataCategory, index int) (models.DataEntry, error) {
	if !category.Valid() {
		return models.DataEntry{}, models.NewError(models.KindInvalidInput, fmt.Sprintf("unknown data category %q", category))
	}
	entries := l.data[category]
	if index < 0 || index >= len(entries) {
		return models.DataEntry{}, models.NewError(models.KindNotFound, fmt.Sprintf("%s entry %d not found", category, index))
	}
	return entries[index], nil
}

// DataCounts returns the number of entries in every data log, empty
// categories included.
func (l *Ledger) DataCounts() models.DataCounts {
	out := make(models.DataCounts, len(models.DataCategories))
	for _, c := range models.DataCategories {
		out[c] = len(l.data[c])
	}
	return out
}

func productInfo(p *models.Product) models.ProductInfo {
	return models.ProductInfo{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
	}
}
