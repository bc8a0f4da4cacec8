package sqlstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/angelmondragon/cuisync/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.KVEntry{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestSaveUpsertsAndLoads(t *testing.T) {
	db := newTestDB(t, "sqlstore_upsert")
	store, err := New(db, "host-stand")
	require.NoError(t, err)
	ctx := context.Background()

	value, err := store.Load(ctx, "cuisync-pads")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, store.Save(ctx, "cuisync-pads", []byte(`[{"id":"a"}]`)))
	require.NoError(t, store.Save(ctx, "cuisync-pads", []byte(`[{"id":"b"}]`)))

	value, err = store.Load(ctx, "cuisync-pads")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b"}]`, string(value))

	var count int64
	require.NoError(t, db.Model(&models.KVEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestScopesAreIsolated(t *testing.T) {
	db := newTestDB(t, "sqlstore_scopes")
	host, err := New(db, "host-stand")
	require.NoError(t, err)
	kitchen, err := New(db, "kitchen")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, host.Save(ctx, "cuisync-settings", []byte(`{"compactMode":true}`)))
	require.NoError(t, host.Save(ctx, "cuisync-history", []byte(`[]`)))

	value, err := kitchen.Load(ctx, "cuisync-settings")
	require.NoError(t, err)
	assert.Nil(t, value)

	keys, err := host.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cuisync-history", "cuisync-settings"}, keys)
}

func TestSaveBatchWritesAllKeys(t *testing.T) {
	db := newTestDB(t, "sqlstore_batch")
	store, err := New(db, "bar")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "cuisync-pads", []byte(`[]`)))
	require.NoError(t, store.SaveBatch(ctx, map[string]json.RawMessage{
		"cuisync-pads":     []byte(`[{"id":"a"}]`),
		"cuisync-history":  []byte(`[{"id":"h"}]`),
		"cuisync-settings": []byte(`{"compactMode":false}`),
	}))

	value, err := store.Load(ctx, "cuisync-pads")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(value))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cuisync-history", "cuisync-pads", "cuisync-settings"}, keys)
}

func TestConnBindsContext(t *testing.T) {
	db := newTestDB(t, "sqlstore_conn")
	store, err := New(db, "bar")
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	assert.Equal(t, ctx, store.conn(ctx).Statement.Context)
	assert.Same(t, db, store.conn(nil))
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, "x")
	assert.Error(t, err)
	_, err = New(newTestDB(t, "sqlstore_validate"), "")
	assert.Error(t, err)
}
