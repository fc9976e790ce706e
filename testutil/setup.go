package testutil

import (
	"testing"

	"github.com/kasuganosora/combatcore/bus"
	"github.com/kasuganosora/combatcore/config"
	dbadapter "github.com/kasuganosora/combatcore/db"
	"github.com/kasuganosora/combatcore/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory SQLite DB and runs AutoMigrate.
// It requires no external services.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: dbadapter.MemoryPath,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestBus creates an in-process bus (no Redis required).
func SetupTestBus(t *testing.T) bus.PubSub {
	t.Helper()
	ps, err := bus.New(config.BusConfig{})
	require.NoError(t, err, "SetupTestBus: New")
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}
