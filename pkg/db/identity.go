package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrIdentityNotFound = errors.New("device identity not provisioned")

// Identity is the immutable per-device identity.
type Identity struct {
	DoorID    string
	CreatedAt time.Time
}

// IdentityStore reads the device identity written by Bootstrap.
type IdentityStore interface {
	Get(ctx context.Context) (*Identity, error)
}

// Identity returns an IdentityStore for this database.
func (db *DB) Identity() IdentityStore {
	return &identityStore{db: db}
}

type identityStore struct {
	db *DB
}

func (s *identityStore) Get(ctx context.Context) (*Identity, error) {
	id := &Identity{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT door_id, created_at FROM identity WHERE id = 1
	`).Scan(&id.DoorID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	id.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	return id, nil
}
