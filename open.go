package condbuilder

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectionConfig describes a database to open with Open.
type ConnectionConfig struct {
	// Driver is "sqlite", "postgres" or "mysql".
	Driver string
	// DSN is passed to the gorm driver unchanged.
	DSN string

	// MaxOpenConns limits open connections. Zero keeps the driver default,
	// except for in-memory sqlite databases which are limited to one
	// connection so every statement sees the same database.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Logger replaces gorm's logger. Nil silences gorm.
	Logger logger.Interface
}

// Open connects to the database described by cfg.
func Open(cfg ConnectionConfig) (*gorm.DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("condbuilder: %w", err)
	}

	var dialector gorm.Dialector
	switch dialect {
	case SQLite:
		dialector = sqlite.Open(cfg.DSN)
	case Postgres:
		dialector = postgres.Open(cfg.DSN)
	case MySQL:
		dialector = mysql.Open(cfg.DSN)
	}

	gormLogger := cfg.Logger
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("condbuilder: open %s: %w", dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("condbuilder: open %s: %w", dialect, err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 && dialect == SQLite && strings.Contains(cfg.DSN, ":memory:") {
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}
