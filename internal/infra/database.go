package infra

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tillsync/internal/model"
)

// NewDatabase opens the device-local SQLite store and migrates the schema.
// The driver is pure Go, so the daemon cross-compiles to till hardware
// without cgo. WAL mode keeps single-row status updates atomic with
// respect to concurrent reads (a pending-count query during a drain sees
// either the old or the new row, never a torn read).
func NewDatabase(path string) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}
	return db, nil
}

// RunMigrations creates or updates all tables. Also used by tests against
// in-memory databases.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Product{},
		&model.OutboxReceipt{},
		&model.SyncMeta{},
	)
}
