package migrate_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientpilot/internal/db"
	"clientpilot/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	defer conn.Close()

	v, err := migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	all, err := migrate.Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	latest := all[len(all)-1].Version

	v, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	v, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	v, err = migrate.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	for _, table := range []string{"users", "clients", "projects", "deliverables", "agent_runs", "step_runs", "events", "api_keys"} {
		var n int
		require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}
}
