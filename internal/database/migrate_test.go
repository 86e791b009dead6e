package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "records.db")
	db, err := Prepare(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	require.Equal(t, uint(1), v)
	require.False(t, dirty)

	// Re-running migrations on a current schema is a no-op.
	require.NoError(t, RunMigrations(path))
}

func TestWithTxRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Prepare(filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO collections (id, name, kind) VALUES ('c1', 'Card', 'csv')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&n))
	require.Zero(t, n)
}
