package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Bootstrap provisions the device on first run: it records the door identity
// and seeds every mutable setting that has no persisted value yet.
// This is called after migrations and is a no-op for provisioned devices.
func (db *DB) Bootstrap(ctx context.Context, doorID string, defaults DeviceConfig) error {
	if _, err := db.Identity().Get(ctx); err == nil {
		return nil // Already bootstrapped
	} else if !errors.Is(err, ErrIdentityNotFound) {
		return fmt.Errorf("failed to check identity: %w", err)
	}

	if doorID == "" {
		doorID = uuid.NewString()
	}

	return db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO identity (id, door_id) VALUES (1, ?)`, doorID); err != nil {
			return fmt.Errorf("failed to create identity: %w", err)
		}

		for key, value := range defaults.values() {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO NOTHING
			`, key, value)
			if err != nil {
				return fmt.Errorf("failed to seed setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// NeedsBootstrap returns true if the device has no identity yet.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identity`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
