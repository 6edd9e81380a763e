package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/registry"
	"github.com/wolfeidau/traceledger/internal/sequencer"
	"github.com/wolfeidau/traceledger/internal/store"
	"github.com/wolfeidau/traceledger/internal/store/journal"
	"github.com/wolfeidau/traceledger/internal/store/memory"
)

const (
	owner   = models.Identity("0x00000000000000000000000000000000000000aa")
	wallet  = models.Identity("0x00000000000000000000000000000000000000bb")
	manager = models.Identity("0x00000000000000000000000000000000000000cc")
	auditor = models.Identity("0x00000000000000000000000000000000000000dd")
	nobody  = models.Identity("0x00000000000000000000000000000000000000ee")
)

func startService(t *testing.T, s store.AuditStore, limits registry.Limits) *Service {
	t.Helper()
	svc, err := New(s, Config{RegistryOwner: owner, Limits: limits}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}

// seedLedger registers REG123, creates one ledger as the wallet and grants
// the manager and auditor roles.
func seedLedger(t *testing.T, svc *Service) string {
	t.Helper()
	ctx := context.Background()

	_, err := svc.RegisterOrganization(ctx, owner, "REG123", "Test Company", wallet)
	require.NoError(t, err)
	handle, err := svc.CreateLedger(ctx, wallet, "REG123", "Coffee", "single origin")
	require.NoError(t, err)
	require.NoError(t, svc.GrantRole(ctx, wallet, handle, manager, auth.CapProductManager))
	require.NoError(t, svc.GrantRole(ctx, wallet, handle, auditor, auth.CapAuditor))
	return handle
}

func TestNew_RequiresOwner(t *testing.T) {
	_, err := New(memory.NewAuditStore(), Config{}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(memory.NewAuditStore(), Config{RegistryOwner: owner, Limits: registry.Limits{MaxLedgersPerOrganization: -1}}, zerolog.Nop())
	require.Error(t, err)
}

func TestService_OrganizationScenario(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	handle := seedLedger(t, svc)

	ledgers, err := svc.ListLedgers("REG123")
	require.NoError(t, err)
	require.Equal(t, []string{handle}, ledgers)

	org, err := svc.GetOrganizationInfo("REG123")
	require.NoError(t, err)
	require.Equal(t, svc.DeriveOrganizationID("REG123"), org.OrgID)
	require.Equal(t, "0x33a5e91835941c9788f23c4256a99d1e2a8b5f90c1bb09341215810c87f20727", org.OrgID)

	_, err = svc.CreateLedger(ctx, nobody, "REG123", "Nope", "")
	require.ErrorIs(t, err, models.ErrPermissionDenied)

	_, err = svc.RegisterOrganization(ctx, owner, "REG123", "Again", wallet)
	require.ErrorIs(t, err, models.ErrAlreadyRegistered)

	info, err := svc.LedgerInfo(handle)
	require.NoError(t, err)
	require.Equal(t, "Coffee", info.Name)
	require.Equal(t, wallet, info.Owner)

	_, err = svc.LedgerInfo("missing")
	require.ErrorIs(t, err, models.ErrNotFound)

	require.Equal(t, []string{"REG123"}, svc.ListOrganizationCodes())
}

func TestService_ProductLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	handle := seedLedger(t, svc)

	require.NoError(t, svc.AddProduct(ctx, manager, handle, "P1", "名前🌾", "desc"))
	require.ErrorIs(t, svc.AddProduct(ctx, manager, handle, "", "x", "y"), models.ErrEmptyField)
	require.ErrorIs(t, svc.AddProduct(ctx, auditor, handle, "P2", "x", "y"), models.ErrPermissionDenied)

	updated, err := svc.UpdateProductProcesses(ctx, auditor, handle, "P1", "B1", "x")
	require.NoError(t, err)
	require.Equal(t, models.Batch{ID: "B1", Processes: "x"}, updated)
	updated, err = svc.UpdateProductStatus(ctx, manager, handle, "P1", "B1", "y")
	require.NoError(t, err)
	require.Equal(t, models.Batch{ID: "B1", Processes: "x", Status: "y"}, updated)
	_, err = svc.UpdateProductStatus(ctx, auditor, handle, "P1", "B1", "z")
	require.ErrorIs(t, err, models.ErrPermissionDenied)

	batches, err := svc.GetProductBatches(handle, "P1")
	require.NoError(t, err)
	require.Equal(t, []string{"B1"}, batches)

	batch, err := svc.GetProductByBatch(handle, "P1", "B1")
	require.NoError(t, err)
	require.Equal(t, "x", batch.Processes)
	require.Equal(t, "y", batch.Status)

	info, err := svc.GetProductInfo(handle, "P1")
	require.NoError(t, err)
	require.Equal(t, "名前🌾", info.Name)

	require.NoError(t, svc.DeactivateProduct(ctx, manager, handle, "P1"))
	ok, err := svc.HasProduct(handle, "P1")
	require.NoError(t, err)
	require.False(t, ok)
	_, err = svc.GetProductInfo(handle, "P1")
	require.ErrorIs(t, err, models.ErrNotActive)

	info, err = svc.ReactivateProduct(ctx, manager, handle, "P1")
	require.NoError(t, err)
	require.Equal(t, models.ProductInfo{ID: "P1", Name: "名前🌾", Description: "desc", Active: true}, info)
	_, err = svc.ReactivateProduct(ctx, manager, handle, "P1")
	require.ErrorIs(t, err, models.ErrAlreadyActive)

	ids, err := svc.GetAllProductIDs(handle)
	require.NoError(t, err)
	require.Equal(t, []string{"P1"}, ids)

	products, err := svc.ListProducts(handle)
	require.NoError(t, err)
	require.Len(t, products, 1)

	hist, err := svc.BatchHistory(ctx, handle, "P1", "B1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, auditor, hist[0].Caller)
	require.Equal(t, manager, hist[1].Caller)

	_, err = svc.BatchHistory(ctx, "missing", "P1", "B1")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestService_Roles(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	handle := seedLedger(t, svc)

	members, err := svc.RoleMembers(handle, auth.CapAdmin)
	require.NoError(t, err)
	require.ElementsMatch(t, []models.Identity{owner, wallet}, members)

	caps, err := svc.Capabilities(handle, manager)
	require.NoError(t, err)
	require.Equal(t, []auth.Capability{auth.CapProductManager}, caps)

	before, err := svc.LastSequence(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.RevokeRole(ctx, wallet, handle, nobody, auth.CapAuditor))
	after, err := svc.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	require.NoError(t, svc.RevokeRole(ctx, wallet, handle, manager, auth.CapProductManager))
	require.ErrorIs(t, svc.AddProduct(ctx, manager, handle, "P1", "n", "d"), models.ErrPermissionDenied)

	require.NoError(t, svc.UpdateLedgerOwner(ctx, wallet, handle, nobody))
	ledgerOwner, err := svc.GetLedgerOwner(handle)
	require.NoError(t, err)
	require.Equal(t, nobody, ledgerOwner)

	// ownership does not grant capabilities
	require.ErrorIs(t, svc.AddProduct(ctx, nobody, handle, "P1", "n", "d"), models.ErrPermissionDenied)
}

func TestService_RestoreRebuildsState(t *testing.T) {
	ctx := context.Background()
	s := memory.NewAuditStore()

	svc := startService(t, s, registry.Limits{})
	handle := seedLedger(t, svc)
	for _, b := range []string{"ALPHA", "BETA", "GAMMA", "DELTA"} {
		if b == "ALPHA" {
			require.NoError(t, svc.AddProduct(ctx, manager, handle, "P1", "Beans", "washed"))
		}
		_, err := svc.UpdateProductProcesses(ctx, auditor, handle, "P1", b, "roasted "+b)
		require.NoError(t, err)
	}
	require.NoError(t, svc.DeactivateProduct(ctx, manager, handle, "P1"))
	newOwner := models.Identity("0x00000000000000000000000000000000000000ff")
	require.NoError(t, svc.TransferOwnership(ctx, owner, newOwner))
	require.NoError(t, svc.Stop(ctx))

	restored := startService(t, s, registry.Limits{})
	require.Equal(t, newOwner, restored.RegistryOwner())

	ledgers, err := restored.ListLedgers("REG123")
	require.NoError(t, err)
	require.Equal(t, []string{handle}, ledgers)

	batches, err := restored.GetProductBatches(handle, "P1")
	require.NoError(t, err)
	require.Equal(t, []string{"ALPHA", "BETA", "GAMMA", "DELTA"}, batches)

	ok, err := restored.HasProduct(handle, "P1")
	require.NoError(t, err)
	require.False(t, ok)

	batch, err := restored.GetProductByBatch(handle, "P1", "GAMMA")
	require.NoError(t, err)
	require.Equal(t, "roasted GAMMA", batch.Processes)

	// the restored service keeps extending the same chain
	_, err = restored.ReactivateProduct(ctx, manager, handle, "P1")
	require.NoError(t, err)
	n, err := restored.Verify(ctx)
	require.NoError(t, err)

	seq, err := restored.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, seq, n)

	_, err = restored.RegisterOrganization(ctx, owner, "NEW", "n", wallet)
	require.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestService_RestoreRejectsBrokenChain(t *testing.T) {
	ctx := context.Background()
	s := memory.NewAuditStore()
	require.NoError(t, s.Append(ctx, &models.AuditRecord{
		Sequence:  1,
		Timestamp: time.Now().UTC(),
		Event: models.Event{
			Kind:   models.EventOrganizationRegistered,
			Key:    "REG123",
			Values: map[string]string{models.ValueName: "Forged", models.ValueWallet: string(wallet)},
			Caller: owner,
		},
		PrevHash: "bogus",
		Hash:     "bogus",
	}))

	svc, err := New(s, Config{RegistryOwner: owner}, zerolog.Nop())
	require.NoError(t, err)
	require.ErrorIs(t, svc.Start(ctx), store.ErrChainBroken)
}

func TestService_StoreFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s := memory.NewAuditStore()
	svc := startService(t, s, registry.Limits{})
	handle := seedLedger(t, svc)

	require.NoError(t, s.Close())
	err := svc.AddProduct(ctx, manager, handle, "P1", "n", "d")
	require.ErrorIs(t, err, store.ErrStoreClosed)
	require.Empty(t, models.KindOf(err))

	ok, err := svc.HasProduct(handle, "P1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestService_Limits(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{MaxLedgersPerOrganization: 1})
	seedLedger(t, svc)

	_, err := svc.CreateLedger(ctx, wallet, "REG123", "Second", "")
	require.ErrorIs(t, err, models.ErrLimitExceeded)
}

func TestService_ConcurrentWritersAndReaders(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	handle := seedLedger(t, svc)
	require.NoError(t, svc.AddProduct(ctx, manager, handle, "P1", "n", "d"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateProductProcesses(ctx, auditor, handle, "P1", fmt.Sprintf("B%02d", i), "x")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			batches, err := svc.GetProductBatches(handle, "P1")
			assert.NoError(t, err)
			assert.LessOrEqual(t, len(batches), 20)
		}()
	}
	wg.Wait()

	batches, err := svc.GetProductBatches(handle, "P1")
	require.NoError(t, err)
	require.Len(t, batches, 20)

	_, err = svc.Verify(ctx)
	require.NoError(t, err)
}

func TestService_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	handle := seedLedger(t, svc)

	ch, err := svc.Subscribe(ctx, store.AuditFilter{Ledger: handle, Kinds: []models.EventKind{models.EventProductAdded}})
	require.NoError(t, err)

	require.NoError(t, svc.AddProduct(ctx, manager, handle, "P1", "n", "d"))

	select {
	case rec := <-ch:
		require.Equal(t, "P1", rec.Key)
		require.Equal(t, manager, rec.Caller)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription")
	}

	recs, err := svc.Replay(ctx, store.AuditFilter{Caller: manager})
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestService_Stopped(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	require.NoError(t, svc.Stop(ctx))

	_, err := svc.RegisterOrganization(ctx, owner, "REG123", "Test Company", wallet)
	require.ErrorIs(t, err, sequencer.ErrStopped)
}

func TestService_JournalRestartKeepsChainValid(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.jrn")

	j, err := journal.Open(path)
	require.NoError(t, err)
	svc := startService(t, j, registry.Limits{})
	handle := seedLedger(t, svc)

	err = svc.AddProduct(ctx, manager, handle, "P1", "bad\xffname", "")
	require.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.UpdateProductStatus(ctx, manager, handle, "P1", "B\xff", "x")
	require.Error(t, err)

	const control = "ctl\x00\a名前🌾"
	require.NoError(t, svc.AddProduct(ctx, manager, handle, "P1", control, "line\x00break"))
	_, err = svc.UpdateProductProcesses(ctx, auditor, handle, "P1", "B1", control)
	require.NoError(t, err)
	_, err = svc.RecordData(ctx, auditor, handle, models.DataIoT, control)
	require.NoError(t, err)

	require.NoError(t, svc.Stop(ctx))
	require.NoError(t, j.Close())

	reopened, err := journal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	restored := startService(t, reopened, registry.Limits{})

	info, err := restored.GetProductInfo(handle, "P1")
	require.NoError(t, err)
	require.Equal(t, control, info.Name)
	require.Equal(t, "line\x00break", info.Description)

	batch, err := restored.GetProductByBatch(handle, "P1", "B1")
	require.NoError(t, err)
	require.Equal(t, control, batch.Processes)

	entry, err := restored.GetData(handle, models.DataIoT, 0)
	require.NoError(t, err)
	require.Equal(t, control, entry.Data)

	_, err = restored.Verify(ctx)
	require.NoError(t, err)
}

func TestService_DataLogs(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	handle := seedLedger(t, svc)

	_, err := svc.RecordData(ctx, nobody, handle, models.DataIoT, "t=20")
	require.ErrorIs(t, err, models.ErrPermissionDenied)

	entry, err := svc.RecordData(ctx, auditor, handle, models.DataIoT, "t=20")
	require.NoError(t, err)
	require.Equal(t, models.DataIoT, entry.Category)
	require.Equal(t, 0, entry.Index)
	require.Equal(t, auditor, entry.Sender)
	require.False(t, entry.Timestamp.IsZero())

	entry, err = svc.RecordData(ctx, manager, handle, models.DataContributions, "bafybeigdyrzt5")
	require.NoError(t, err)
	require.Equal(t, 0, entry.Index)

	got, err := svc.GetData(handle, models.DataContributions, 0)
	require.NoError(t, err)
	require.Equal(t, entry, got)

	counts, err := svc.DataCounts(handle)
	require.NoError(t, err)
	require.Equal(t, 1, counts[models.DataIoT])
	require.Equal(t, 1, counts[models.DataContributions])
	require.Equal(t, 0, counts[models.DataBackup])

	_, err = svc.DataCounts("missing")
	require.ErrorIs(t, err, models.ErrNotFound)

	recs, err := svc.Replay(ctx, store.AuditFilter{Kinds: []models.EventKind{models.EventDataRecorded}, Key: string(models.DataIoT)})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "t=20", recs[0].Values[models.ValueData])
}

func TestService_ReactivateReturnsStateOfItsOwnMutation(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	handle := seedLedger(t, svc)
	require.NoError(t, svc.AddProduct(ctx, manager, handle, "P1", "Beans", "washed"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, svc.DeactivateProduct(ctx, manager, handle, "P1"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			info, err := svc.ReactivateProduct(ctx, manager, handle, "P1")
			if err != nil {
				assert.ErrorIs(t, err, models.ErrAlreadyActive)
				continue
			}
			assert.True(t, info.Active)
			assert.Equal(t, "Beans", info.Name)
		}
	}()
	wg.Wait()
}

func TestService_BatchUpdateReturnsItsOwnValue(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})
	handle := seedLedger(t, svc)
	require.NoError(t, svc.AddProduct(ctx, manager, handle, "P1", "Beans", "washed"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := fmt.Sprintf("status %d", i)
			batch, err := svc.UpdateProductStatus(ctx, manager, handle, "P1", "B1", want)
			assert.NoError(t, err)
			assert.Equal(t, want, batch.Status)
		}()
	}
	wg.Wait()
}

func TestService_MixedCaseWallet(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, memory.NewAuditStore(), registry.Limits{})

	mixed := models.Identity("0x00000000000000000000000000000000000000BB")
	org, err := svc.RegisterOrganization(ctx, owner, "REG123", "Test Company", mixed)
	require.NoError(t, err)
	require.Equal(t, wallet, org.Wallet)
	handle, err := svc.CreateLedger(ctx, wallet, "REG123", "Coffee", "")
	require.NoError(t, err)

	info, err := svc.LedgerInfo(handle)
	require.NoError(t, err)
	require.Equal(t, wallet, info.Owner)
	require.NoError(t, svc.GrantRole(ctx, mixed, handle, "0x00000000000000000000000000000000000000CC", auth.CapProductManager))
	require.NoError(t, svc.AddProduct(ctx, manager, handle, "P1", "n", "d"))
}
