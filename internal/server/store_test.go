package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ovpnadmin/internal/shared"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(context.Background(), db, nil))
	// Migrations are rerun on every start.
	require.NoError(t, RunMigrations(context.Background(), db, nil))
	return NewSQLiteStore(db)
}

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": newSQLiteStore(t),
		"memory": NewMemoryStore(),
	}
}

func TestStoreUsers(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := st.EnsureUser(ctx, "admin", "hash-1")
			require.NoError(t, err)
			assert.True(t, created)

			created, err = st.EnsureUser(ctx, "admin", "hash-2")
			require.NoError(t, err)
			assert.False(t, created)

			u, err := st.GetUser(ctx, "admin")
			require.NoError(t, err)
			assert.Equal(t, "hash-1", u.PasswordHash)

			_, err = st.GetUser(ctx, "nobody")
			assert.ErrorIs(t, err, ErrUserNotFound)
			assert.NoError(t, st.Ping(ctx))
		})
	}
}

func TestStoreAudit(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, target := range []string{"alice", "bob", "carol"} {
				e, err := st.AddAudit(ctx, shared.AuditEntry{
					Actor: "admin", Action: "client_create", Target: target, Result: AuditSuccess,
				})
				require.NoError(t, err)
				assert.NotEmpty(t, e.ID)
				assert.NotZero(t, e.CreatedAt)
			}

			entries, err := st.ListAudit(ctx, 2)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, "carol", entries[0].Target)
			assert.Equal(t, "bob", entries[1].Target)

			entries, err = st.ListAudit(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, entries, 3)
		})
	}
}
