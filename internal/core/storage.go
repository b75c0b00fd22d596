package core

import (
	"context"
	"flightcore/internal/infra/persistence/memory"
	"flightcore/internal/infra/persistence/postgres"
	"flightcore/internal/infra/persistence/sqlite"
	"fmt"
	"os"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageOptions selects and configures a backend.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// Snapshot is the full committed state of a store.
type Snapshot = memory.Snapshot

// StateStore is implemented by every backend and lets callers take and
// restore full-state snapshots.
type StateStore interface {
	ExportState() Snapshot
	Restore(ctx context.Context, snapshot Snapshot) error
}

// OpenStorage opens the backend named by opts. An empty driver means sqlite.
func OpenStorage(opts StorageOptions, engine *RulesEngine) (PersistentStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return NewSQLiteStore(opts.SQLitePath, engine)
	case StoragePostgres:
		ps, err := NewPostgresStore(opts.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	FLIGHTCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	FLIGHTCORE_SQLITE_PATH: path to sqlite file (default ./flightcore.db)
//	FLIGHTCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	return OpenStorage(StorageOptions{
		Driver:      StorageDriver(os.Getenv("FLIGHTCORE_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("FLIGHTCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("FLIGHTCORE_POSTGRES_DSN"),
	}, engine)
}

// NewSQLiteStore constructs a SQLite-backed persistent store using the
// provided file path (may be empty for default) and rules engine.
func NewSQLiteStore(path string, engine *RulesEngine) (*sqlite.Store, error) {
	return sqlite.NewStore(path, engine)
}

// NewPostgresStore constructs a Postgres-backed store from the provided DSN.
func NewPostgresStore(dsn string, engine *RulesEngine) (*postgres.Store, error) {
	return postgres.NewStore(dsn, engine)
}

// CloseStore releases backend resources when the store holds any.
func CloseStore(store PersistentStore) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
