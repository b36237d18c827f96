package database

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens (or creates) the embedded chat database at path.
func OpenBadger(path string) (*badger.DB, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create Badger directory: %w", err)
	}

	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger database: %w", err)
	}
	return db, nil
}
