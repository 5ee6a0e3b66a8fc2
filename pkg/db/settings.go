package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// ErrSettingNotFound is returned when a key has never been persisted.
var ErrSettingNotFound = errors.New("setting not found")

// Persisted setting keys.
const (
	KeyWiFiSSID       = "wifiSSID"
	KeyWiFiPassword   = "wifiPassword"
	KeyServerAddress  = "serverAddress"
	KeyPresetPassword = "presetPassword"
	KeyPublicKey      = "publicKey"
	KeyPrivateKey     = "privateKey"
)

// SettingsStore provides key-value access to persisted settings.
// Every write is synchronous: it has been committed when the call returns.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
}

// Settings returns a SettingsStore for this database.
func (db *DB) Settings() SettingsStore {
	return &settingsStore{db: db}
}

type settingsStore struct {
	db *DB
}

func (s *settingsStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *settingsStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany writes all values in one transaction; either every key is
// persisted or none is.
func (s *settingsStore) SetMany(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
			`, k, values[k])
			if err != nil {
				return fmt.Errorf("failed to write setting %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *settingsStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSettingNotFound
	}
	return nil
}

func (s *settingsStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, rows.Err()
}
