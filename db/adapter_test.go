package db

import (
	"testing"

	"github.com/kasuganosora/combatcore/config"
	"github.com/kasuganosora/combatcore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Disabled(t *testing.T) {
	for _, mode := range []string{"", ModeNone} {
		db, err := Open(config.DatabaseConfig{Mode: mode})
		assert.ErrorIs(t, err, ErrDisabled)
		assert.Nil(t, db)
	}
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestOpen_MySQLRequiresDSN(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: ModeMySQL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql_dsn")
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Mode: ModeSQLite, SQLitePath: MemoryPath})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	ev := &model.CombatEvent{SessionID: "s", Run: 1, Event: "death", Source: "e1"}
	require.NoError(t, db.Create(ev).Error)
	assert.NotZero(t, ev.ID)

	var n int64
	require.NoError(t, db.Model(&model.CombatEvent{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
