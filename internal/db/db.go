package db

import (
	"fmt"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Connect opens the session store. An empty DSN selects a shared
// in-memory sqlite database, which keeps sessions strictly ephemeral;
// any other DSN is treated as MySQL.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		gdb, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("open in-memory store: %w", err)
		}
		return gdb, nil
	}

	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql store: %w", err)
	}
	return gdb, nil
}
