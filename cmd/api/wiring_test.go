package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/cuisync/internal/padsync/memory"
	"github.com/angelmondragon/cuisync/internal/persistence"
	"github.com/angelmondragon/cuisync/internal/persistence/sqlstore"
	"github.com/angelmondragon/cuisync/pkg/config"
	"github.com/angelmondragon/cuisync/pkg/db"
	"github.com/angelmondragon/cuisync/pkg/logger"
)

func testConfig(driver, transport string) *config.Config {
	return &config.Config{
		Device:  config.DeviceConfig{Restaurant: "bistro-7"},
		Storage: config.StorageConfig{Driver: driver},
		Sync:    config.SyncConfig{Transport: transport},
	}
}

func TestBuildAdapterMemory(t *testing.T) {
	adapter, err := buildAdapter(testConfig(config.StorageMemory, config.TransportMemory), &dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &persistence.Memory{}, adapter)
}

func TestBuildAdapterSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:wiring?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	adapter, err := buildAdapter(testConfig(config.StorageSQLite, config.TransportMemory), &dependencies{db: db.FromConn(conn)})
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, adapter)
}

func TestBuildAdapterUnsupported(t *testing.T) {
	_, err := buildAdapter(testConfig("floppy", config.TransportMemory), &dependencies{})
	assert.Error(t, err)
}

func TestBuildChannel(t *testing.T) {
	channel, err := buildChannel(testConfig(config.StorageMemory, config.TransportMemory), "kitchen", &dependencies{}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Hub{}, channel)

	_, err = buildChannel(testConfig(config.StorageMemory, "carrier-pigeon"), "kitchen", &dependencies{}, logger.Nop())
	assert.Error(t, err)
}

func TestPingersSkipMissingClients(t *testing.T) {
	deps := &dependencies{}
	assert.Empty(t, deps.pingers())
	deps.Close(context.Background(), logger.Nop())
}
