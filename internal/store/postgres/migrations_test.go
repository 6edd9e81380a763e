package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		ms, err := loadMigrations(migrationsFS, "migrations")
		require.NoError(t, err)
		require.NotEmpty(t, ms)
		require.Equal(t, 1, ms[0].version)
		require.Contains(t, ms[0].sql, "audit_records")
		require.Equal(t, 2, ms[1].version)
		require.Contains(t, ms[1].sql, "BYTEA")
	})

	t.Run("ordered by version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/10_later.sql":  {Data: []byte("SELECT 10")},
			"m/2_second.sql":  {Data: []byte("SELECT 2")},
			"m/1_initial.sql": {Data: []byte("SELECT 1")},
			"m/README.md":     {Data: []byte("ignored")},
		}
		ms, err := loadMigrations(fsys, "m")
		require.NoError(t, err)
		require.Len(t, ms, 3)
		require.Equal(t, []int{1, 2, 10}, []int{ms[0].version, ms[1].version, ms[2].version})
		require.Equal(t, "SELECT 10", ms[2].sql)
	})

	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"no separator", fstest.MapFS{"m/initial.sql": {Data: []byte("x")}}},
		{"bad version", fstest.MapFS{"m/v1_initial.sql": {Data: []byte("x")}}},
		{"zero version", fstest.MapFS{"m/0_initial.sql": {Data: []byte("x")}}},
		{"duplicate", fstest.MapFS{
			"m/1_a.sql": {Data: []byte("x")},
			"m/1_b.sql": {Data: []byte("y")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrations(tt.fsys, "m")
			require.Error(t, err)
		})
	}
}
