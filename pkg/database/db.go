// Package database opens gorm connections for the file system item table.
package database

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shashiranjanraj/filemanager/config"
)

type driver struct {
	open func(dsn string) gorm.Dialector
	// single is for sqlite: one connection serialises writers, and an
	// in-memory database lives only as long as its connection.
	single bool
	setup  []string
}

var drivers = map[string]driver{
	"sqlite":    {open: sqlite.Open, single: true, setup: []string{"PRAGMA foreign_keys = ON"}},
	"postgres":  {open: postgres.Open},
	"mysql":     {open: mysql.Open},
	"sqlserver": {open: sqlserver.Open},
}

// Drivers lists the accepted DB_DRIVER values.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Connect opens DB_DRIVER at DATABASE_DSN.
func Connect() (*gorm.DB, error) {
	return Open(config.DatabaseDriver(), config.DatabaseDSN())
}

// Open connects, sizes the pool for the driver and pings.
func Open(name, dsn string) (*gorm.DB, error) {
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("database: unsupported driver %q (want one of %s)", name, strings.Join(Drivers(), ", "))
	}

	db, err := gorm.Open(d.open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", name, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %s handle: %w", name, err)
	}

	if d.single {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		sqlDB.SetConnMaxIdleTime(2 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database: ping %s: %w", name, err)
	}
	for _, stmt := range d.setup {
		if err := db.Exec(stmt).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("database: %s: %w", stmt, err)
		}
	}
	return db, nil
}
