package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/traceledger/internal/auth"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/service"
	"github.com/wolfeidau/traceledger/internal/store/memory"
)

const owner = models.Identity("0x00000000000000000000000000000000000000aa")

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed("testdata/seed.yaml")
	require.NoError(t, err)
	require.Len(t, seed.Organizations, 1)
	require.Equal(t, "名前🌾", seed.Organizations[0].Ledgers[0].Products[0].Name)

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"organizations":[{"code":"C1","name":"n","wallet":"0x01"}]}`), 0o600))
	seed, err = LoadSeed(jsonPath)
	require.NoError(t, err)
	require.Equal(t, "C1", seed.Organizations[0].Code)

	_, err = LoadSeed(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestSeedValidate(t *testing.T) {
	tests := []struct {
		name    string
		seed    Seed
		wantErr string
	}{
		{
			name:    "missing code",
			seed:    Seed{Organizations: []OrganizationSeed{{Name: "x"}}},
			wantErr: "code is required",
		},
		{
			name:    "duplicate code",
			seed:    Seed{Organizations: []OrganizationSeed{{Code: "A"}, {Code: "A"}}},
			wantErr: "duplicate code",
		},
		{
			name: "duplicate ledger name",
			seed: Seed{Organizations: []OrganizationSeed{{
				Code:    "A",
				Ledgers: []LedgerSeed{{Name: "L"}, {Name: "L"}},
			}}},
			wantErr: "duplicate name",
		},
		{
			name: "unknown capability",
			seed: Seed{Organizations: []OrganizationSeed{{
				Code:    "A",
				Ledgers: []LedgerSeed{{Name: "L", Grants: []GrantSeed{{Identity: "0x01", Capability: "ROOT"}}}},
			}}},
			wantErr: "unknown capability",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorContains(t, tt.seed.Validate(), tt.wantErr)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	svc, err := service.New(memory.NewAuditStore(), service.Config{RegistryOwner: owner}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop(ctx)

	seed, err := LoadSeed("testdata/seed.yaml")
	require.NoError(t, err)

	res, err := Apply(ctx, svc, seed)
	require.NoError(t, err)
	require.True(t, res.Applied)

	handle := res.Ledgers["REG123"]["Coffee"]
	require.NotEmpty(t, handle)

	batches, err := svc.GetProductBatches(handle, "P1")
	require.NoError(t, err)
	require.Equal(t, []string{"ALPHA", "BETA"}, batches)

	batch, err := svc.GetProductByBatch(handle, "P1", "ALPHA")
	require.NoError(t, err)
	require.Equal(t, "shipped", batch.Status)

	members, err := svc.RoleMembers(handle, auth.CapProductManager)
	require.NoError(t, err)
	require.Equal(t, []models.Identity{"0x00000000000000000000000000000000000000cc"}, members)

	t.Run("second apply is skipped", func(t *testing.T) {
		res, err := Apply(ctx, svc, seed)
		require.NoError(t, err)
		require.False(t, res.Applied)
		require.Equal(t, []string{"REG123"}, svc.ListOrganizationCodes())
	})
}
