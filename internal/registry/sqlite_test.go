package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/userdb/internal/common"
	"github.com/dmitrijs2005/userdb/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *SQLiteRepository {
	t.Helper()
	r, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLite_Get_Unknown(t *testing.T) {
	r := openTestRegistry(t)

	_, err := r.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_SetExternalLocation_InsertThenGet(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	loc := provider.Locator("file:///docs/alice.db")
	require.NoError(t, r.SetExternalLocation(ctx, "alice", loc, provider.FromMillis(1000)))

	rec, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.ID)
	assert.True(t, rec.External())
	assert.Equal(t, loc, rec.ExternalLocation)
	assert.True(t, rec.CachedTimestamp.Equal(provider.FromMillis(1000)))
}

func TestSQLite_SetExternalLocation_UnknownTimestamp(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SetExternalLocation(ctx, "alice", "file:///a.db", provider.Unknown))

	rec, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, rec.CachedTimestamp.Known())
}

func TestSQLite_SetExternalLocation_EmptyClears(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SetExternalLocation(ctx, "alice", "file:///a.db", provider.FromMillis(7)))
	require.NoError(t, r.SetExternalLocation(ctx, "alice", "", provider.FromMillis(7)))

	rec, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, rec.External())
	assert.False(t, rec.CachedTimestamp.Known())
}

func TestSQLite_SetCachedTimestamp(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SetExternalLocation(ctx, "alice", "file:///a.db", provider.Unknown))
	require.NoError(t, r.SetCachedTimestamp(ctx, "alice", provider.FromMillis(42)))

	rec, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.CachedTimestamp.Millis())

	require.NoError(t, r.SetCachedTimestamp(ctx, "alice", provider.Unknown))
	rec, err = r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, rec.CachedTimestamp.Known())
}

func TestSQLite_SetCachedTimestamp_Unknown(t *testing.T) {
	r := openTestRegistry(t)

	err := r.SetCachedTimestamp(context.Background(), "ghost", provider.FromMillis(1))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_ListAndDelete(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SetExternalLocation(ctx, "bob", "", provider.Unknown))
	require.NoError(t, r.SetExternalLocation(ctx, "alice", "s3://bucket/alice.db", provider.FromMillis(3)))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].ID)
	assert.Equal(t, "bob", list[1].ID)
	assert.False(t, list[1].External())

	require.NoError(t, r.Delete(ctx, "alice"))
	require.NoError(t, r.Delete(ctx, "alice"))

	list, err = r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestSQLite_Ensure_KeepsExisting(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Ensure(ctx, "bob"))
	rec, err := r.Get(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, rec.External())

	require.NoError(t, r.SetExternalLocation(ctx, "bob", "file:///b.db", provider.FromMillis(9)))
	require.NoError(t, r.Ensure(ctx, "bob"))

	rec, err = r.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, provider.Locator("file:///b.db"), rec.ExternalLocation)
}

func TestSQLite_Grants(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	loc := provider.Locator("file:///a.db")

	ok, err := r.Granted(ctx, loc)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Grant(ctx, loc))
	require.NoError(t, r.Grant(ctx, loc))

	ok, err = r.Granted(ctx, loc)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.Revoke(ctx, loc))
	ok, err = r.Granted(ctx, loc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	ctx := context.Background()

	r, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, r.SetExternalLocation(ctx, "alice", "file:///a.db", provider.FromMillis(5)))
	require.NoError(t, r.Close())

	r, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.CachedTimestamp.Millis())
}

func TestMigrate_UnsupportedDialect(t *testing.T) {
	err := Migrate(context.Background(), nil, "mysql")
	require.Error(t, err)
}

func TestSQLite_SetExternalLocation_SharedDocumentRejected(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SetExternalLocation(ctx, "alice", "file:///shared.db", provider.Unknown))
	require.Error(t, r.SetExternalLocation(ctx, "bob", "file:///shared.db", provider.Unknown))

	// Managed users have no location and never collide.
	require.NoError(t, r.Ensure(ctx, "carol"))
	require.NoError(t, r.Ensure(ctx, "dave"))
	require.NoError(t, r.SetExternalLocation(ctx, "alice", "", provider.Unknown))
	require.NoError(t, r.SetExternalLocation(ctx, "bob", "file:///shared.db", provider.Unknown))
}
