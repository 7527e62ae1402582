package transactions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudguard/internal/testutil"
)

func TestPostgresStore_Contract(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	runStoreContract(t, func(t *testing.T) Store {
		_, err := store.DeleteAll(context.Background())
		require.NoError(t, err)
		return store
	})
}

func TestPostgresStore_MigrateIsIdempotent(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
}
