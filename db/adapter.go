package db

import (
	"errors"
	"fmt"

	"github.com/kasuganosora/combatcore/config"
	dbmysql "github.com/kasuganosora/combatcore/db/mysql"
	dbsqlite "github.com/kasuganosora/combatcore/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeNone   = "none"
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = "file::memory:"

// ErrDisabled is returned by Open when persistence is switched off.
var ErrDisabled = errors.New("db: persistence disabled")

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case "", ModeNone:
		return nil, ErrDisabled
	case ModeSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = MemoryPath
		}
		return dbsqlite.Open(path)
	case ModeMySQL:
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("db: mysql mode requires mysql_dsn")
		}
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
