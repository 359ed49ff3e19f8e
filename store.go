package main

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/Ananth-NQI/sessiongate/database"
	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/storage"
)

// openStore builds the session store for cfg.Store.Driver.
// The returned close func is never nil.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Println("⚠️  Using in-memory storage (not for production!)")
		return storage.NewMemoryStore(), noop, nil

	case config.DriverPostgres:
		log.Println("📦 Connecting to PostgreSQL database...")
		db, err := database.Connect()
		if err != nil {
			return nil, noop, err
		}
		store, closeDB, err := databaseStore(db, "postgres")
		if err != nil {
			return nil, noop, err
		}
		log.Println("✅ Using PostgreSQL database storage")
		return store, closeDB, nil

	case config.DriverSQLite:
		store, err := storage.NewSQLiteStore(ctx, cfg.StorePath())
		if err != nil {
			return nil, noop, err
		}
		log.Printf("✅ Using SQLite storage at %s", store.Path())
		return store, store.Close, nil

	case "", config.DriverFile:
		log.Printf("📁 Using session file %s", cfg.StorePath())
		return storage.NewFileStore(cfg.StorePath()), noop, nil

	default:
		return nil, noop, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalid, cfg.Store.Driver)
	}
}

// databaseStore migrates db and wraps it in a DatabaseStore.
// db is closed when the store cannot be set up.
func databaseStore(db *gorm.DB, name string) (storage.Store, func() error, error) {
	noop := func() error { return nil }

	sqlDB, err := db.DB()
	if err != nil {
		return nil, noop, fmt.Errorf("failed to get database handle: %w", err)
	}
	store, err := storage.NewDatabaseStore(db, name)
	if err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			log.Printf("⚠️  Failed to close database: %v", closeErr)
		}
		return nil, noop, err
	}
	return store, sqlDB.Close, nil
}

// storageType describes the driver for startup logs
func storageType(driver string) string {
	switch driver {
	case config.DriverMemory:
		return "In-Memory (Testing)"
	case config.DriverPostgres:
		return "PostgreSQL Database"
	case config.DriverSQLite:
		return "SQLite"
	default:
		return "JSON file"
	}
}
