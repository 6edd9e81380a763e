package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/traceledger/internal/auth"
)

func TestNewStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "profiles")

		store, err := NewStore(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, store.Dir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("creates empty profiles file", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		cfg, err := store.loadConfig()
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Version)
		assert.Empty(t, cfg.DefaultProfile)
		assert.Empty(t, cfg.Profiles)
	})
}

func TestStore_Save(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr error
	}{
		{"valid", Profile{Name: "local", ServerURL: "http://localhost:8080"}, nil},
		{"missing name", Profile{ServerURL: "http://localhost:8080"}, ErrInvalidProfile},
		{"path in name", Profile{Name: "a/b", ServerURL: "http://localhost:8080"}, ErrInvalidProfile},
		{"missing server", Profile{Name: "local"}, ErrInvalidProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(t.TempDir())
			require.NoError(t, err)

			p, err := store.Save(tt.profile)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, p.CreatedAt.IsZero())
			assert.Equal(t, p.CreatedAt, p.UpdatedAt)
		})
	}
}

func TestStore_DefaultAndResolve(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetDefault()
	require.ErrorIs(t, err, ErrNoDefaultProfile)

	_, err = store.Save(Profile{Name: "prod", ServerURL: "https://ledger.example.com", Identity: "0xaa"})
	require.NoError(t, err)
	_, err = store.Save(Profile{Name: "local", ServerURL: "http://localhost:8080"})
	require.NoError(t, err)

	// first saved profile becomes the default
	p, err := store.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "prod", p.Name)

	require.NoError(t, store.SetDefault("local"))
	p, err = store.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name)

	p, err = store.Resolve("prod")
	require.NoError(t, err)
	assert.Equal(t, "0xaa", p.Identity)

	require.ErrorIs(t, store.SetDefault("missing"), ErrProfileNotFound)
	_, err = store.Resolve("missing")
	require.ErrorIs(t, err, ErrProfileNotFound)

	profiles, def, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, "local", def)
	require.Len(t, profiles, 2)
	assert.Equal(t, "local", profiles[0].Name)
	assert.Equal(t, "prod", profiles[1].Name)
}

func TestStore_UpdateKeepsCreatedAt(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	first, err := store.Save(Profile{Name: "local", ServerURL: "http://localhost:8080"})
	require.NoError(t, err)

	second, err := store.Save(Profile{Name: "local", ServerURL: "http://localhost:9090", Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := store.Get("local")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9090", got.ServerURL)
	assert.Equal(t, "t", got.Token)
}

func TestStore_Delete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(Profile{Name: "local", ServerURL: "http://localhost:8080"})
	require.NoError(t, err)

	require.NoError(t, store.Delete("local"))
	require.ErrorIs(t, store.Delete("local"), ErrProfileNotFound)

	_, err = store.GetDefault()
	require.ErrorIs(t, err, ErrNoDefaultProfile)
}

func TestStore_AtomicConfigUpdate(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.Save(Profile{Name: "local", ServerURL: "http://localhost:8080"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "profiles.json.tmp"))
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(filepath.Join(dir, "profiles.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGenerateKeyPair(t *testing.T) {
	dir := t.TempDir()

	kp, err := GenerateKeyPair(dir, "signing")
	require.NoError(t, err)
	assert.NotEmpty(t, kp.Fingerprint)

	info, err := os.Stat(kp.PrivateKeyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = GenerateKeyPair(dir, "signing")
	require.ErrorIs(t, err, ErrKeyExists)

	// the pair works end to end with token issuing
	privateKeyPEM, err := os.ReadFile(kp.PrivateKeyPath)
	require.NoError(t, err)
	token, err := auth.IssueToken(string(privateKeyPEM), "0xaa", time.Hour)
	require.NoError(t, err)

	exp, err := TokenExpiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	_, err = TokenExpiry("not-a-token")
	require.Error(t, err)
}
